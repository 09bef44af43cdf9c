package reconciler

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/chzzk-auction/auctionsync/go/internal/auction/events"
	"github.com/chzzk-auction/auctionsync/go/internal/auction/snapshot"
	"github.com/chzzk-auction/auctionsync/go/internal/models"
)

var ErrStoreClosed = errors.New("reconciler store closed")

// ResultHook observes every applied message. ev is nil for snapshots and
// server replacements.
type ResultHook func(ev events.Event, res Result)

type msg interface{ isStoreMsg() }

type eventMsg struct {
	ev    events.Event
	reply chan Result
}

type snapshotMsg struct {
	snap      snapshot.Snapshot
	issuedSeq uint64
	reply     chan Result
}

type replaceStateMsg struct {
	state models.GameState
	reply chan Result
}

type replaceTeamMsg struct {
	team  models.Team
	reply chan Result
}

func (eventMsg) isStoreMsg()        {}
func (snapshotMsg) isStoreMsg()     {}
func (replaceStateMsg) isStoreMsg() {}
func (replaceTeamMsg) isStoreMsg()  {}

// Store owns the canonical state. Every mutation is a message handled by the
// single goroutine in Run, so transitions never interleave.
type Store struct {
	scope string
	inbox chan msg
	hook  ResultHook

	mu      sync.RWMutex
	current Canonical

	refetch chan struct{}

	subMu  sync.Mutex
	subs   map[int]chan Canonical
	nextID int

	runOnce sync.Once
	done    chan struct{}
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithResultHook registers fn to observe every applied message.
func WithResultHook(fn ResultHook) StoreOption {
	return func(s *Store) { s.hook = fn }
}

// WithInitial seeds the store, mostly for tests.
func WithInitial(c Canonical) StoreOption {
	return func(s *Store) { s.current = c }
}

// NewStore creates a store that accepts events scoped to auctionID. An empty
// auctionID accepts every event.
func NewStore(auctionID string, opts ...StoreOption) *Store {
	s := &Store{
		scope:   auctionID,
		inbox:   make(chan msg, 64),
		refetch: make(chan struct{}, 1),
		subs:    make(map[int]chan Canonical),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run processes messages until ctx is cancelled. It must be called once.
func (s *Store) Run(ctx context.Context) {
	started := false
	s.runOnce.Do(func() { started = true })
	if !started {
		return
	}
	defer s.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-s.inbox:
			s.handle(m)
		}
	}
}

func (s *Store) handle(m msg) {
	cur := s.Current()

	switch m := m.(type) {
	case eventMsg:
		res := Apply(cur, m.ev, s.scope)
		s.commit(m.ev, res)
		m.reply <- res

	case snapshotMsg:
		res := MergeSnapshot(cur, m.snap, m.issuedSeq)
		s.commit(nil, res)
		m.reply <- res

	case replaceStateMsg:
		res := changed(ReplaceState(cur, m.state))
		s.commit(nil, res)
		m.reply <- res

	case replaceTeamMsg:
		res := changed(ReplaceTeam(cur, m.team))
		s.commit(nil, res)
		m.reply <- res
	}
}

func (s *Store) commit(ev events.Event, res Result) {
	if res.Changed {
		s.mu.Lock()
		s.current = res.Next
		s.mu.Unlock()
		s.publish(res.Next)
	}
	if res.Refetch {
		s.RequestRefetch()
	}
	if res.Dropped != NotDropped {
		evt := log.Debug().Str("reason", string(res.Dropped))
		if ev != nil {
			evt = evt.Str("event", string(ev.Kind()))
		}
		evt.Msg("auction message dropped")
	}
	if s.hook != nil {
		s.hook(ev, res)
	}
}

// Current returns the latest canonical state. The value must not be modified.
func (s *Store) Current() Canonical {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Seq is the sequence a snapshot fetch should be stamped with when issued.
func (s *Store) Seq() uint64 {
	return s.Current().Seq
}

// Refetches delivers coalesced requests for a full snapshot.
func (s *Store) Refetches() <-chan struct{} {
	return s.refetch
}

// RequestRefetch queues a refetch request unless one is already pending.
func (s *Store) RequestRefetch() {
	select {
	case s.refetch <- struct{}{}:
	default:
	}
}

// Done is closed when Run returns.
func (s *Store) Done() <-chan struct{} {
	return s.done
}

// ApplyEvent merges a pushed event.
func (s *Store) ApplyEvent(ctx context.Context, ev events.Event) (Result, error) {
	reply := make(chan Result, 1)
	return s.send(ctx, eventMsg{ev: ev, reply: reply}, reply)
}

// ApplySnapshot merges a snapshot whose fetch was issued at issuedSeq.
func (s *Store) ApplySnapshot(ctx context.Context, snap snapshot.Snapshot, issuedSeq uint64) (Result, error) {
	reply := make(chan Result, 1)
	return s.send(ctx, snapshotMsg{snap: snap, issuedSeq: issuedSeq, reply: reply}, reply)
}

// ReplaceState installs a state returned by the server for a bid or admin call.
func (s *Store) ReplaceState(ctx context.Context, state models.GameState) (Canonical, error) {
	reply := make(chan Result, 1)
	res, err := s.send(ctx, replaceStateMsg{state: state, reply: reply}, reply)
	return res.Next, err
}

// ReplaceTeam installs a team returned by the server.
func (s *Store) ReplaceTeam(ctx context.Context, team models.Team) (Canonical, error) {
	reply := make(chan Result, 1)
	res, err := s.send(ctx, replaceTeamMsg{team: team, reply: reply}, reply)
	return res.Next, err
}

func (s *Store) send(ctx context.Context, m msg, reply chan Result) (Result, error) {
	select {
	case <-s.done:
		return Result{}, ErrStoreClosed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case s.inbox <- m:
	}

	select {
	case res := <-reply:
		return res, nil
	case <-s.done:
		// The loop may have handled the message before stopping.
		select {
		case res := <-reply:
			return res, nil
		default:
			return Result{}, ErrStoreClosed
		}
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Subscribe returns a channel carrying the newest canonical state after each
// change. Slow readers only miss intermediate values. cancel releases it.
func (s *Store) Subscribe() (<-chan Canonical, func()) {
	ch := make(chan Canonical, 1)

	s.subMu.Lock()
	select {
	case <-s.done:
		s.subMu.Unlock()
		close(ch)
		return ch, func() {}
	default:
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

func (s *Store) publish(c Canonical) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		// latest wins
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- c:
		default:
		}
	}
}

func (s *Store) shutdown() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	close(s.done)
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}
