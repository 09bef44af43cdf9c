package snapshot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/chzzk-auction/auctionsync/go/clients"
	"github.com/chzzk-auction/auctionsync/go/internal/models"
)

const (
	DefaultMaxElapsed      = 10 * time.Second
	DefaultInitialInterval = 200 * time.Millisecond
	DefaultMaxInterval     = 2 * time.Second
)

// Source is the request/response side of the auction API that a snapshot is
// pulled from. *auction_client.AuctionClient satisfies it.
type Source interface {
	ListTeams(ctx context.Context) ([]models.Team, error)
	ListPlayers(ctx context.Context) ([]models.Player, error)
	GetGameState(ctx context.Context) (*models.GameState, error)
}

// Fetcher pulls full snapshots, retrying transient failures with exponential backoff
type Fetcher struct {
	source          Source
	maxElapsed      time.Duration
	initialInterval time.Duration
	maxInterval     time.Duration
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithMaxElapsed bounds the total time spent retrying. Zero disables retries.
func WithMaxElapsed(d time.Duration) Option {
	return func(f *Fetcher) { f.maxElapsed = d }
}

// WithIntervals sets the first and the largest wait between attempts.
func WithIntervals(initial, max time.Duration) Option {
	return func(f *Fetcher) {
		f.initialInterval = initial
		f.maxInterval = max
	}
}

func NewFetcher(source Source, opts ...Option) *Fetcher {
	f := &Fetcher{
		source:          source,
		maxElapsed:      DefaultMaxElapsed,
		initialInterval: DefaultInitialInterval,
		maxInterval:     DefaultMaxInterval,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch loads teams, players and state concurrently. The snapshot fails as a
// whole when any of the three calls fails after retries.
func (f *Fetcher) Fetch(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	attempt := 0

	op := func() error {
		attempt++
		s, err := f.fetchOnce(ctx)
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		snap = s
		return nil
	}

	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("snapshot fetch failed, retrying")
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(f.policy(), ctx), notify); err != nil {
		return Snapshot{}, fmt.Errorf("fetch snapshot: %w", err)
	}
	return snap, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		teams, err := f.source.ListTeams(gctx)
		if err != nil {
			return fmt.Errorf("teams: %w", err)
		}
		snap.Teams = teams
		return nil
	})
	g.Go(func() error {
		players, err := f.source.ListPlayers(gctx)
		if err != nil {
			return fmt.Errorf("players: %w", err)
		}
		snap.Players = players
		return nil
	})
	g.Go(func() error {
		state, err := f.source.GetGameState(gctx)
		if err != nil {
			return fmt.Errorf("state: %w", err)
		}
		if state == nil {
			return errors.New("state: empty response")
		}
		snap.State = *state
		return nil
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	if snap.Teams == nil {
		snap.Teams = []models.Team{}
	}
	if snap.Players == nil {
		snap.Players = []models.Player{}
	}
	return snap, nil
}

func (f *Fetcher) policy() backoff.BackOff {
	if f.maxElapsed <= 0 {
		return &backoff.StopBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.initialInterval
	b.MaxInterval = f.maxInterval
	b.MaxElapsedTime = f.maxElapsed
	return b
}

// retryable reports whether another attempt could succeed. Client errors other
// than timeouts and rate limits will not.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *clients.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode >= 500:
			return true
		default:
			return false
		}
	}
	return true
}
