package bidding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/chzzk-auction/auctionsync/go/internal/models"
)

// Increments are the quick-add amounts offered next to the bid button.
var Increments = []int{10, 50, 100}

var (
	ErrDenied        = errors.New("bid denied")
	ErrEmptyResponse = errors.New("bid returned no state")
)

// DeniedError lists why a submission was refused locally
type DeniedError struct {
	Reasons Reasons
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("bid denied: %s", e.Reasons)
}

func (e *DeniedError) Is(target error) bool {
	return target == ErrDenied
}

// Bidder submits a bid increment and returns the authoritative state after it
type Bidder interface {
	Bid(ctx context.Context, teamID string, amount int) (*models.GameState, error)
}

// Phase is where a bid attempt currently is
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseValidating
	PhaseDenied
	PhaseSubmitting
	PhaseConfirmed
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseValidating:
		return "validating"
	case PhaseDenied:
		return "denied"
	case PhaseSubmitting:
		return "submitting"
	case PhaseConfirmed:
		return "confirmed"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome records how the last attempt ended
type Outcome struct {
	Phase   Phase // Denied, Confirmed or Failed
	Amount  int
	Reasons Reasons
	Err     error
}

// Machine tracks the pending increment and runs one bid attempt at a time.
// Denied, Confirmed and Failed are terminal for an attempt; the machine is
// back to Idle as soon as Submit returns.
type Machine struct {
	bidder Bidder

	mu      sync.Mutex
	pending int
	phase   Phase
	last    Outcome
}

func NewMachine(bidder Bidder) *Machine {
	return &Machine{bidder: bidder}
}

// Add changes the pending increment by n and returns the new value. The
// increment never goes below zero.
func (m *Machine) Add(n int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending += n
	if m.pending < 0 {
		m.pending = 0
	}
	return m.pending
}

// Reset clears the pending increment.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = 0
}

func (m *Machine) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func (m *Machine) LastOutcome() Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Check evaluates the pending increment against state without submitting.
func (m *Machine) Check(state *models.GameState, myTeam *models.Team) Admission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.check(state, myTeam)
}

func (m *Machine) check(state *models.GameState, myTeam *models.Team) Admission {
	adm := CanSubmit(state, myTeam, m.pending)
	if m.phase == PhaseSubmitting {
		adm.Reasons.add(InFlight)
		adm.Allowed = false
	}
	return adm
}

// Submit sends the pending increment for myTeam. On success the pending
// increment is cleared and the server's state is returned for the caller to
// install. On failure the increment is kept for a retry and the bidder's error
// is returned unchanged.
func (m *Machine) Submit(ctx context.Context, state *models.GameState, myTeam *models.Team) (*models.GameState, error) {
	m.mu.Lock()
	if m.phase != PhaseSubmitting {
		m.phase = PhaseValidating
	}
	adm := m.check(state, myTeam)
	if !adm.Allowed {
		if m.phase == PhaseValidating {
			m.phase = PhaseIdle
		}
		m.last = Outcome{Phase: PhaseDenied, Amount: m.pending, Reasons: adm.Reasons}
		m.mu.Unlock()
		log.Debug().Str("reasons", adm.Reasons.String()).Msg("bid denied locally")
		return nil, &DeniedError{Reasons: adm.Reasons}
	}
	amount := m.pending
	m.phase = PhaseSubmitting
	m.mu.Unlock()

	next, err := m.bidder.Bid(ctx, myTeam.ID, amount)
	if err == nil && next == nil {
		err = ErrEmptyResponse
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.phase = PhaseIdle

	if err != nil {
		m.last = Outcome{Phase: PhaseFailed, Amount: amount, Err: err}
		log.Warn().Err(err).Str("team_id", myTeam.ID).Int("amount", amount).Msg("bid rejected")
		return nil, err
	}

	m.pending = 0
	m.last = Outcome{Phase: PhaseConfirmed, Amount: amount}
	log.Info().Str("team_id", myTeam.ID).Int("amount", amount).Int("current_bid", next.CurrentBid).Msg("bid confirmed")
	return next, nil
}
