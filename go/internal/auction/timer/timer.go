package timer

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// DefaultTickInterval stands in for a display refresh rate.
const DefaultTickInterval = 50 * time.Millisecond

// Checkpoint is an authoritative timer sample from the server
type Checkpoint struct {
	Value   float64 // seconds remaining when sampled
	Running bool
}

// Advance computes the displayed value for cp, sampled at baseTime, as of now.
// A stopped timer is pinned to its checkpoint value. The result never goes
// below zero and never exceeds the checkpoint value.
func Advance(cp Checkpoint, baseTime, now time.Time) float64 {
	base := cp.Value
	if base < 0 {
		base = 0
	}
	if !cp.Running {
		return base
	}

	elapsed := now.Sub(baseTime).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}

	remaining := base - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Engine turns sparse checkpoints into a continuously advancing display value
type Engine struct {
	clock clockwork.Clock

	mu       sync.RWMutex
	base     Checkpoint
	baseTime time.Time
	// rebased wakes Run so a start/stop is reflected without waiting for a tick
	rebased chan struct{}
}

// NewEngine creates an engine reading time from clock.
func NewEngine(clock clockwork.Clock) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{
		clock:    clock,
		baseTime: clock.Now(),
		rebased:  make(chan struct{}, 1),
	}
}

// Rebase records cp as sampled now. Every checkpoint rebases, whether or not the
// value changed, so a start and a no-op resync look the same here.
func (e *Engine) Rebase(cp Checkpoint) {
	e.mu.Lock()
	e.base = cp
	e.baseTime = e.clock.Now()
	e.mu.Unlock()

	select {
	case e.rebased <- struct{}{}:
	default:
	}
}

// Display returns the value to show right now.
func (e *Engine) Display() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Advance(e.base, e.baseTime, e.clock.Now())
}

// Running reports the running flag of the last checkpoint.
func (e *Engine) Running() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.base.Running
}

// Checkpoint returns the last checkpoint and when it was applied.
func (e *Engine) Checkpoint() (Checkpoint, time.Time) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.base, e.baseTime
}

// Run calls fn with the displayed value on every tick while the timer is running,
// and once after each rebase so pauses and resets are shown immediately. It
// returns when ctx is cancelled; the ticker is stopped on the way out.
func (e *Engine) Run(ctx context.Context, interval time.Duration, fn func(float64)) {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ticker := e.clock.NewTicker(interval)
	defer ticker.Stop()

	log.Debug().Dur("interval", interval).Msg("timer loop started")

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("timer loop stopped")
			return
		case <-e.rebased:
			fn(e.Display())
		case <-ticker.Chan():
			if e.Running() {
				fn(e.Display())
			}
		}
	}
}
