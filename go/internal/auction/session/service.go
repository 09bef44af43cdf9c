package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/chzzk-auction/auctionsync/go/clients/auction_client"
	"github.com/chzzk-auction/auctionsync/go/internal/auction/bidding"
	"github.com/chzzk-auction/auctionsync/go/internal/auction/events"
	"github.com/chzzk-auction/auctionsync/go/internal/auction/identity"
	"github.com/chzzk-auction/auctionsync/go/internal/auction/reconciler"
	"github.com/chzzk-auction/auctionsync/go/internal/auction/snapshot"
	"github.com/chzzk-auction/auctionsync/go/internal/auction/timer"
	"github.com/chzzk-auction/auctionsync/go/internal/auction/transport"
	"github.com/chzzk-auction/auctionsync/go/internal/auction/view"
	"github.com/chzzk-auction/auctionsync/go/internal/models"
)

var (
	ErrNotStarted    = errors.New("session not started")
	ErrStopped       = errors.New("session stopped")
	ErrEmptyResponse = errors.New("server returned no body")
)

const (
	triggerInitial   = "initial"
	triggerReconnect = "reconnect"
	triggerManual    = "manual"
	triggerDecision  = "decision"
	triggerLobby     = "lobby"
	triggerStart     = "start"
)

// API is the request/response side of the auction server the session needs.
// *auction_client.AuctionClient satisfies it.
type API interface {
	snapshot.Source
	bidding.Bidder
	AdminTimer(ctx context.Context, action auction_client.TimerAction, value *float64) (*models.GameState, error)
	AdminDecision(ctx context.Context, action auction_client.Decision) (*models.GameState, error)
	UpdateTeamPoints(ctx context.Context, teamID string, points int) (*models.Team, error)
	StartGame(ctx context.Context, players []auction_client.PlayerInput, order auction_client.OrderType) (*models.GameState, error)
	CreatePlayer(ctx context.Context, in auction_client.PlayerInput) (*models.Player, error)
	DeletePlayer(ctx context.Context, playerID string) error
}

// Config holds configuration for a session
type Config struct {
	AuctionID    string
	TickInterval time.Duration
	Clock        clockwork.Clock
	Metrics      MetricsCollector
	FetchOptions []snapshot.Option
}

// DefaultConfig returns default session configuration
func DefaultConfig() Config {
	return Config{
		TickInterval: timer.DefaultTickInterval,
	}
}

// Service wires the push stream, snapshot fetches, the timer and bid admission
// around one canonical store
type Service struct {
	config     Config
	api        API
	source     transport.Source
	identities identity.Store
	metrics    MetricsCollector

	store   *reconciler.Store
	fetcher *snapshot.Fetcher
	timer   *timer.Engine
	bids    *bidding.Machine

	mu sync.RWMutex
	me identity.Identity

	alive   atomic.Bool
	started atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	tickMu    sync.Mutex
	tickFuncs []func(float64)
}

// NewService creates a session. source may be nil for a pull-only session.
func NewService(config Config, api API, source transport.Source, identities identity.Store) (*Service, error) {
	if api == nil {
		return nil, errors.New("api cannot be nil")
	}
	if identities == nil {
		return nil, errors.New("identity store cannot be nil")
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	if config.TickInterval <= 0 {
		config.TickInterval = timer.DefaultTickInterval
	}
	if config.Metrics == nil {
		config.Metrics = &NoOpMetricsCollector{}
	}

	s := &Service{
		config:     config,
		api:        api,
		source:     source,
		identities: identities,
		metrics:    config.Metrics,
		fetcher:    snapshot.NewFetcher(api, config.FetchOptions...),
		timer:      timer.NewEngine(config.Clock),
		bids:       bidding.NewMachine(api),
	}
	s.store = reconciler.NewStore(config.AuctionID, reconciler.WithResultHook(s.observe))
	return s, nil
}

// Start loads the local identity and runs the session until Stop is called or
// ctx is cancelled. It returns once everything is running.
func (s *Service) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("session already started")
	}

	me, err := identity.LoadOrZero(ctx, s.identities)
	if err != nil {
		return fmt.Errorf("failed to load identity: %w", err)
	}
	s.setIdentity(me)

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.alive.Store(true)

	s.goRun(func() { s.store.Run(runCtx) })
	s.goRun(func() { s.refetchLoop(runCtx) })
	s.goRun(func() { s.timer.Run(runCtx, s.config.TickInterval, s.tick) })
	if s.source != nil {
		s.goRun(func() {
			if err := s.source.Run(runCtx); err != nil {
				log.Error().Err(err).Msg("auction event source failed")
			}
		})
		s.goRun(func() { s.pumpFrames(runCtx) })
	}
	s.goRun(func() {
		<-runCtx.Done()
		s.alive.Store(false)
	})

	log.Info().
		Str("auction_id", s.config.AuctionID).
		Str("team_id", me.TeamID).
		Msg("auction session started")
	return nil
}

// Stop tears everything down together: the push connection, the timer, the
// store and in-flight fetches. Results that arrive afterwards are discarded.
func (s *Service) Stop() {
	s.alive.Store(false)
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	log.Info().Str("auction_id", s.config.AuctionID).Msg("auction session stopped")
}

func (s *Service) goRun(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// pumpFrames decodes pushed frames in arrival order and feeds the store.
func (s *Service) pumpFrames(ctx context.Context) {
	frames := s.source.Frames()
	reconnected := s.source.Reconnected()

	for {
		select {
		case <-ctx.Done():
			return
		case <-reconnected:
			s.metrics.RecordRefetch(triggerReconnect)
			s.store.RequestRefetch()
		case frame, ok := <-frames:
			if !ok {
				return
			}
			ev, err := events.Decode(frame)
			if err != nil {
				s.metrics.RecordEventDropped("malformed")
				log.Debug().Err(err).Msg("dropping malformed auction frame")
				continue
			}
			if _, err := s.store.ApplyEvent(ctx, ev); err != nil {
				return
			}
		}
	}
}

// refetchLoop performs the initial load and then one fetch per coalesced
// refetch request. Only one fetch is ever in flight.
func (s *Service) refetchLoop(ctx context.Context) {
	s.metrics.RecordRefetch(triggerInitial)
	s.refetch(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.store.Refetches():
			s.refetch(ctx)
		}
	}
}

func (s *Service) refetch(ctx context.Context) {
	issued := s.store.Seq()
	start := s.config.Clock.Now()

	snap, err := s.fetcher.Fetch(ctx)
	s.metrics.RecordSnapshot(err == nil, s.config.Clock.Since(start))
	if err != nil {
		if ctx.Err() == nil {
			log.Error().Err(err).Msg("snapshot fetch failed")
		}
		return
	}
	if !s.alive.Load() {
		log.Debug().Msg("discarding snapshot that arrived after teardown")
		return
	}

	res, err := s.store.ApplySnapshot(ctx, snap, issued)
	if err != nil {
		return
	}
	log.Debug().
		Uint64("seq", res.Next.Seq).
		Bool("stale", res.Dropped == reconciler.DropStale).
		Int("teams", len(res.Next.Teams)).
		Int("players", len(res.Next.Players)).
		Msg("snapshot applied")
}

// observe runs on the store goroutine after every transition.
func (s *Service) observe(ev events.Event, res reconciler.Result) {
	if ev != nil {
		switch {
		case res.Dropped != reconciler.NotDropped:
			s.metrics.RecordEventDropped(string(res.Dropped))
		default:
			s.metrics.RecordEventApplied(string(ev.Kind()))
		}
		if res.Refetch {
			s.metrics.RecordRefetch(string(ev.Kind()))
		}
	}
	if res.Unresolved {
		s.metrics.RecordUnresolvedBidder()
		log.Debug().Str("team_id", res.Next.State.HighBidder.ID).Msg("high bidder not in team list")
	}

	if !res.Changed || res.Next.State == nil {
		return
	}
	// A checkpoint is a timer_sync or any full state replacement.
	_, isTimerSync := ev.(*events.TimerSync)
	if isTimerSync || res.Next.StateSeq == res.Next.Seq {
		s.timer.Rebase(timer.Checkpoint{
			Value:   res.Next.State.TimerValue,
			Running: res.Next.State.IsTimerRunning,
		})
	}
}

func (s *Service) tick(display float64) {
	s.tickMu.Lock()
	fns := append([]func(float64){}, s.tickFuncs...)
	s.tickMu.Unlock()
	for _, fn := range fns {
		fn(display)
	}
}

// OnTick registers fn to receive the displayed timer value on every frame
// while the timer runs and after every checkpoint.
func (s *Service) OnTick(fn func(float64)) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	s.tickFuncs = append(s.tickFuncs, fn)
}

// Subscribe delivers the newest canonical state after each change.
func (s *Service) Subscribe() (<-chan reconciler.Canonical, func()) {
	return s.store.Subscribe()
}

// Canonical returns the current canonical state.
func (s *Service) Canonical() reconciler.Canonical {
	return s.store.Current()
}

// View projects the current state for display, with the locally counted timer.
func (s *Service) View() view.View {
	return view.Project(s.store.Current(), s.Identity()).WithTimer(s.timer.Display())
}

func (s *Service) Identity() identity.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.me
}

// SetIdentity saves the team this client joined as.
func (s *Service) SetIdentity(ctx context.Context, me identity.Identity) error {
	if err := s.identities.Save(ctx, me); err != nil {
		return err
	}
	s.setIdentity(me)
	return nil
}

func (s *Service) setIdentity(me identity.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.me = me
}

// Refresh schedules a full snapshot re-fetch.
func (s *Service) Refresh() {
	s.metrics.RecordRefetch(triggerManual)
	s.store.RequestRefetch()
}

// AddIncrement changes the pending bid increment and returns the new value.
func (s *Service) AddIncrement(n int) int {
	return s.bids.Add(n)
}

func (s *Service) ResetIncrement() {
	s.bids.Reset()
}

func (s *Service) PendingIncrement() int {
	return s.bids.Pending()
}

// CheckBid evaluates the pending increment against the current state.
func (s *Service) CheckBid() bidding.Admission {
	cur := s.store.Current()
	mine := view.ResolveMyTeam(cur.Teams, s.Identity())
	return s.bids.Check(cur.State, mine.AdmissionTeam())
}

// Bid submits the pending increment and installs the server's resulting state.
func (s *Service) Bid(ctx context.Context) (reconciler.Canonical, error) {
	if err := s.live(); err != nil {
		return reconciler.Canonical{}, err
	}

	cur := s.store.Current()
	mine := view.ResolveMyTeam(cur.Teams, s.Identity())
	next, err := s.bids.Submit(ctx, cur.State, mine.AdmissionTeam())
	s.metrics.RecordBidAttempt(s.bids.LastOutcome().Phase.String())
	if err != nil {
		return cur, err
	}
	return s.replaceState(ctx, next)
}

// AdminTimer starts, pauses or resets the round timer.
func (s *Service) AdminTimer(ctx context.Context, action auction_client.TimerAction, value *float64) (reconciler.Canonical, error) {
	if err := s.live(); err != nil {
		return reconciler.Canonical{}, err
	}
	next, err := s.api.AdminTimer(ctx, action, value)
	if err != nil {
		return s.store.Current(), err
	}
	return s.replaceState(ctx, next)
}

// AdminDecision sells or passes the current player. Rosters change with it,
// so a full re-fetch follows.
func (s *Service) AdminDecision(ctx context.Context, action auction_client.Decision) (reconciler.Canonical, error) {
	if err := s.live(); err != nil {
		return reconciler.Canonical{}, err
	}
	next, err := s.api.AdminDecision(ctx, action)
	if err != nil {
		return s.store.Current(), err
	}
	return s.replaceAndRefetch(ctx, next, triggerDecision)
}

// StartGame sends the current player list (every player, in queue order) and
// opens the first round. The server recreates the players, so a full re-fetch
// follows.
func (s *Service) StartGame(ctx context.Context, order auction_client.OrderType) (reconciler.Canonical, error) {
	if err := s.live(); err != nil {
		return reconciler.Canonical{}, err
	}

	cur := s.store.Current()
	ordered := models.ClonePlayers(cur.Players)
	view.SortByOrder(ordered)
	list := make([]auction_client.PlayerInput, 0, len(ordered))
	for _, p := range ordered {
		list = append(list, auction_client.PlayerInput{ID: p.ID, Name: p.Name, Tiers: p.Tiers})
	}

	next, err := s.api.StartGame(ctx, list, order)
	if err != nil {
		return cur, err
	}
	return s.replaceAndRefetch(ctx, next, triggerStart)
}

// AddPlayer registers a player before the auction starts. The lobby broadcast
// normally carries the change; a re-fetch covers a missed one.
func (s *Service) AddPlayer(ctx context.Context, in auction_client.PlayerInput) (*models.Player, error) {
	if err := s.live(); err != nil {
		return nil, err
	}
	p, err := s.api.CreatePlayer(ctx, in)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrEmptyResponse
	}
	s.metrics.RecordRefetch(triggerLobby)
	s.store.RequestRefetch()
	return p, nil
}

// RemovePlayer deletes a player before the auction starts.
func (s *Service) RemovePlayer(ctx context.Context, playerID string) error {
	if err := s.live(); err != nil {
		return err
	}
	if err := s.api.DeletePlayer(ctx, playerID); err != nil {
		return err
	}
	s.metrics.RecordRefetch(triggerLobby)
	s.store.RequestRefetch()
	return nil
}

// UpdatePoints sets a team's budget.
func (s *Service) UpdatePoints(ctx context.Context, teamID string, points int) (reconciler.Canonical, error) {
	if err := s.live(); err != nil {
		return reconciler.Canonical{}, err
	}
	team, err := s.api.UpdateTeamPoints(ctx, teamID, points)
	if err != nil {
		return s.store.Current(), err
	}
	if team == nil {
		return s.store.Current(), ErrEmptyResponse
	}
	if !s.alive.Load() {
		return reconciler.Canonical{}, ErrStopped
	}
	return s.store.ReplaceTeam(ctx, *team)
}

func (s *Service) replaceAndRefetch(ctx context.Context, state *models.GameState, trigger string) (reconciler.Canonical, error) {
	c, err := s.replaceState(ctx, state)
	if err == nil {
		s.metrics.RecordRefetch(trigger)
		s.store.RequestRefetch()
	}
	return c, err
}

func (s *Service) replaceState(ctx context.Context, state *models.GameState) (reconciler.Canonical, error) {
	if state == nil {
		return s.store.Current(), ErrEmptyResponse
	}
	if !s.alive.Load() {
		return reconciler.Canonical{}, ErrStopped
	}
	c, err := s.store.ReplaceState(ctx, *state)
	if errors.Is(err, reconciler.ErrStoreClosed) {
		return reconciler.Canonical{}, ErrStopped
	}
	return c, err
}

func (s *Service) live() error {
	if !s.started.Load() {
		return ErrNotStarted
	}
	if !s.alive.Load() {
		return ErrStopped
	}
	return nil
}
