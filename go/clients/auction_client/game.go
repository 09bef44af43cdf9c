package auction_client

import (
	"context"
	"errors"
	"fmt"

	"github.com/chzzk-auction/auctionsync/go/clients"
	"github.com/chzzk-auction/auctionsync/go/internal/models"
)

// TimerAction is an admin timer control
type TimerAction string

const (
	TimerStart TimerAction = "start"
	TimerPause TimerAction = "pause"
	TimerReset TimerAction = "reset"
)

// Decision closes the current round
type Decision string

const (
	DecisionSold Decision = "sold"
	DecisionPass Decision = "pass"
)

// OrderType picks how the start call orders the player queue
type OrderType string

const (
	OrderSequential OrderType = "seq"
	OrderRandom     OrderType = "rand"
)

type startGameRequest struct {
	PlayerList []PlayerInput `json:"playerList"`
	OrderType  OrderType     `json:"orderType"`
}

type bidRequest struct {
	TeamID string `json:"teamId"`
	Amount int    `json:"amount"`
}

type adminTimerRequest struct {
	Action TimerAction `json:"action"`
	Value  *float64    `json:"value,omitempty"`
}

type adminDecisionRequest struct {
	Action Decision `json:"action"`
}

func (c *AuctionClient) GetGameState(ctx context.Context) (*models.GameState, error) {
	return c.gameState("get game state", func() ([]byte, error) {
		return c.Get(ctx, GameStateEndpoint)
	})
}

// Bid raises the current bid by amount on behalf of teamID. The returned state is
// the server's view after the bid.
func (c *AuctionClient) Bid(ctx context.Context, teamID string, amount int) (*models.GameState, error) {
	return c.gameState("bid", func() ([]byte, error) {
		return c.Post(ctx, BidEndpoint, bidRequest{TeamID: teamID, Amount: amount})
	})
}

// AdminTimer starts, pauses or resets the round timer. value only applies to reset.
func (c *AuctionClient) AdminTimer(ctx context.Context, action TimerAction, value *float64) (*models.GameState, error) {
	switch action {
	case TimerStart, TimerPause, TimerReset:
	default:
		return nil, fmt.Errorf("unknown timer action %q", action)
	}
	return c.gameState("admin timer", func() ([]byte, error) {
		return c.Post(ctx, AdminTimerEndpoint, adminTimerRequest{Action: action, Value: value})
	})
}

func (c *AuctionClient) AdminDecision(ctx context.Context, action Decision) (*models.GameState, error) {
	switch action {
	case DecisionSold, DecisionPass:
	default:
		return nil, fmt.Errorf("unknown decision %q", action)
	}
	return c.gameState("admin decision", func() ([]byte, error) {
		return c.Post(ctx, AdminDecisionEndpoint, adminDecisionRequest{Action: action})
	})
}

// StartGame replaces the auction's players with players, orders the queue and
// opens the first round. Admin only.
func (c *AuctionClient) StartGame(ctx context.Context, players []PlayerInput, order OrderType) (*models.GameState, error) {
	switch order {
	case OrderSequential, OrderRandom:
	default:
		return nil, fmt.Errorf("unknown order type %q", order)
	}
	if len(players) == 0 {
		return nil, errors.New("player list is empty")
	}
	return c.gameState("start game", func() ([]byte, error) {
		return c.Post(ctx, StartGameEndpoint, startGameRequest{PlayerList: players, OrderType: order})
	})
}

func (c *AuctionClient) gameState(op string, call func() ([]byte, error)) (*models.GameState, error) {
	body, err := call()
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}

	state, err := clients.DecodeJSON[models.GameState](body)
	if err != nil {
		return nil, err
	}
	return &state, nil
}
