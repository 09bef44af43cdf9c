package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chzzk-auction/auctionsync/go/clients"
	"github.com/chzzk-auction/auctionsync/go/clients/auction_client"
	"github.com/chzzk-auction/auctionsync/go/internal/auction/bidding"
	"github.com/chzzk-auction/auctionsync/go/internal/auction/reconciler"
	"github.com/chzzk-auction/auctionsync/go/internal/auction/view"
	"github.com/chzzk-auction/auctionsync/go/internal/models"
)

type fakeSession struct {
	pending   int
	admission bidding.Admission
	bidErr    error
	refreshed int
	timer     []auction_client.TimerAction
	timerVals []*float64
	decisions []auction_client.Decision
	orders    []auction_client.OrderType
	added     []auction_client.PlayerInput
	removed   []string
	adminErr  error
	view      view.View
	updates   chan reconciler.Canonical
}

func (f *fakeSession) Subscribe() (<-chan reconciler.Canonical, func()) {
	return f.updates, func() {}
}
func (f *fakeSession) View() view.View             { return f.view }
func (f *fakeSession) Refresh()                    { f.refreshed++ }
func (f *fakeSession) AddIncrement(n int) int      { f.pending += n; return f.pending }
func (f *fakeSession) ResetIncrement()             { f.pending = 0 }
func (f *fakeSession) CheckBid() bidding.Admission { return f.admission }
func (f *fakeSession) Bid(ctx context.Context) (reconciler.Canonical, error) {
	return reconciler.Canonical{}, f.bidErr
}
func (f *fakeSession) AdminTimer(ctx context.Context, action auction_client.TimerAction, value *float64) (reconciler.Canonical, error) {
	f.timer = append(f.timer, action)
	f.timerVals = append(f.timerVals, value)
	return reconciler.Canonical{}, nil
}
func (f *fakeSession) AdminDecision(ctx context.Context, action auction_client.Decision) (reconciler.Canonical, error) {
	f.decisions = append(f.decisions, action)
	return reconciler.Canonical{}, nil
}
func (f *fakeSession) StartGame(ctx context.Context, order auction_client.OrderType) (reconciler.Canonical, error) {
	f.orders = append(f.orders, order)
	return reconciler.Canonical{}, f.adminErr
}
func (f *fakeSession) AddPlayer(ctx context.Context, in auction_client.PlayerInput) (*models.Player, error) {
	if f.adminErr != nil {
		return nil, f.adminErr
	}
	f.added = append(f.added, in)
	return &models.Player{ID: "p9", Name: in.Name, Tiers: in.Tiers}, nil
}
func (f *fakeSession) RemovePlayer(ctx context.Context, playerID string) error {
	f.removed = append(f.removed, playerID)
	return f.adminErr
}

func TestConsoleIncrements(t *testing.T) {
	f := &fakeSession{admission: bidding.Admission{Allowed: true, Total: 160}}
	c := newConsole(f, nil, &bytes.Buffer{})
	ctx := context.Background()

	assert.Equal(t, "pending +50 (total 160)", c.execute(ctx, "+50"))
	assert.Equal(t, "pending +60 (total 160)", c.execute(ctx, "+10"))
	assert.Equal(t, "pending +10 (total 160)", c.execute(ctx, " -50 "))
	assert.Equal(t, "pending cleared", c.execute(ctx, "reset"))
	assert.Equal(t, 0, f.pending)
}

func TestConsoleDeniedHint(t *testing.T) {
	f := &fakeSession{admission: bidding.Admission{Reasons: bidding.Reasons{
		bidding.OverBudget:    {},
		bidding.BiddingClosed: {},
	}}}
	c := newConsole(f, nil, &bytes.Buffer{})

	assert.Equal(t, "cannot bid (bidding is closed; not enough points)", c.execute(context.Background(), "check"))
}

func TestConsoleBid(t *testing.T) {
	f := &fakeSession{}
	c := newConsole(f, nil, &bytes.Buffer{})
	ctx := context.Background()

	assert.Equal(t, "bid accepted", c.execute(ctx, "bid"))

	f.bidErr = errors.New("boom")
	assert.Equal(t, "bid failed: boom", c.execute(ctx, "bid"))
}

func TestConsoleAdminCommands(t *testing.T) {
	f := &fakeSession{}
	c := newConsole(f, nil, &bytes.Buffer{})
	ctx := context.Background()

	assert.Equal(t, "timer start", c.execute(ctx, "start"))
	assert.Equal(t, "timer reset", c.execute(ctx, "reset-timer 15"))
	assert.Equal(t, "timer value must be a number", c.execute(ctx, "pause soon"))
	assert.Equal(t, "decision sold", c.execute(ctx, "SOLD"))
	assert.Equal(t, "refresh requested", c.execute(ctx, "refresh"))

	assert.Equal(t, []auction_client.TimerAction{auction_client.TimerStart, auction_client.TimerReset}, f.timer)
	require.NotNil(t, f.timerVals[1])
	assert.Equal(t, 15.0, *f.timerVals[1])
	assert.Equal(t, []auction_client.Decision{auction_client.DecisionSold}, f.decisions)
	assert.Equal(t, 1, f.refreshed)
	assert.Contains(t, c.execute(ctx, "dance"), "commands:")
	assert.Empty(t, c.execute(ctx, "   "))
}

func TestConsoleGameSetupCommands(t *testing.T) {
	f := &fakeSession{}
	c := newConsole(f, nil, &bytes.Buffer{})
	ctx := context.Background()

	assert.Equal(t, "game started (seq)", c.execute(ctx, "start-game"))
	assert.Equal(t, "game started (rand)", c.execute(ctx, "start-game RAND"))
	assert.Equal(t, []auction_client.OrderType{auction_client.OrderSequential, auction_client.OrderRandom}, f.orders)

	assert.Equal(t, "added Zeus (p9)", c.execute(ctx, "add-player Zeus A S B"))
	assert.Equal(t, "added Keria (p9)", c.execute(ctx, "add-player Keria"))
	require.Len(t, f.added, 2)
	assert.Equal(t, models.PlayerTier{Tank: "A", DPS: "S", Supp: "B"}, f.added[0].Tiers)
	assert.Equal(t, models.PlayerTier{}, f.added[1].Tiers)
	assert.Contains(t, c.execute(ctx, "add-player"), "usage")

	assert.Equal(t, "removed p3", c.execute(ctx, "remove-player p3"))
	assert.Equal(t, []string{"p3"}, f.removed)
	assert.Contains(t, c.execute(ctx, "remove-player"), "usage")
}

func TestConsoleShowsServerDetail(t *testing.T) {
	f := &fakeSession{
		bidErr:   fmt.Errorf("failed to bid: %w", &clients.APIError{StatusCode: 400, Body: `{"detail":"Bidding is closed"}`, Detail: "Bidding is closed"}),
		adminErr: fmt.Errorf("failed to start game: %w", &clients.APIError{StatusCode: 400, Body: `{"detail":"Player list is empty"}`, Detail: "Player list is empty"}),
	}
	c := newConsole(f, nil, &bytes.Buffer{})
	ctx := context.Background()

	assert.Equal(t, "bid failed: Bidding is closed", c.execute(ctx, "bid"))
	assert.Equal(t, "start failed: Player list is empty", c.execute(ctx, "start-game seq"))
	assert.Equal(t, "remove failed: Player list is empty", c.execute(ctx, "remove-player p1"))
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "syncing...", summarize(view.View{}))

	v := view.View{
		Initialized:    true,
		Phase:          models.PhaseAuction,
		CurrentPlayer:  &models.Player{Name: "Lucio"},
		CurrentBid:     120,
		HighBidderName: "Blue",
		Timer:          7.3,
		TimerRunning:   true,
		MyTeam:         &models.Team{Name: "Red", Points: 880},
		Queue:          []models.Player{{ID: "p2"}, {ID: "p3"}},
	}
	assert.Equal(t, "[AUCTION] Lucio bid 120 by Blue | 7.3s running | Red 880pt | queue 2", summarize(v))
}

func TestConsoleRendersOnUpdate(t *testing.T) {
	f := &fakeSession{
		updates: make(chan reconciler.Canonical, 1),
		view:    view.View{Initialized: true, Phase: models.PhaseWaiting},
	}
	out := &syncBuffer{}
	c := newConsole(f, strings.NewReader(""), out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.render(ctx)

	f.updates <- reconciler.Canonical{}
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "[WAITING]")
	}, time.Second, 5*time.Millisecond)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
