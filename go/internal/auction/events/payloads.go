package events

import (
	"encoding/json"

	"github.com/chzzk-auction/auctionsync/go/internal/models"
)

// Scoped carries the optional auction id every payload may be tagged with
type Scoped struct {
	AuctionID string `json:"auctionId,omitempty"`
}

func (s Scoped) Scope() string { return s.AuctionID }

// LobbyUpdate replaces the team and player collections. A nil field means the
// collection was absent from the payload and must be left alone.
type LobbyUpdate struct {
	Scoped
	Players *[]models.Player `json:"players,omitempty"`
	Teams   *[]models.Team   `json:"teams,omitempty"`
}

// TimerSync is an authoritative timer checkpoint
type TimerSync struct {
	Scoped
	TimeLeft  float64 `json:"timeLeft"`
	IsRunning bool    `json:"isRunning"`
}

// BidUpdate reports a new standing bid
type BidUpdate struct {
	Scoped
	CurrentBid     int     `json:"currentBid"`
	HighBidder     string  `json:"highBidder"`
	HighBidderName *string `json:"highBidderName,omitempty"`
	Log            *string `json:"log,omitempty"`
}

// StateSync carries a full auction state. The state itself is the payload.
type StateSync struct {
	State models.GameState
}

func (e *StateSync) Scope() string { return e.State.AuctionID }

// RoundEnd is published when a player is sold or passed
type RoundEnd struct {
	Scoped
	Result string         `json:"result"` // "sold" or "pass"
	Player *models.Player `json:"player,omitempty"`
	Price  *int           `json:"price,omitempty"`
	TeamID *string        `json:"teamId,omitempty"`
}

// NewRound is published when the next player goes on the block
type NewRound struct {
	Scoped
	Player  *models.Player `json:"player,omitempty"`
	EndTime float64        `json:"endTime,omitempty"` // unix seconds, informational
}

// PointChange is published when an admin edits a team's budget
type PointChange struct {
	Scoped
	TeamID    string `json:"teamId"`
	NewPoints int    `json:"newPoints"`
}

// GameStarted is published once the auction leaves setup
type GameStarted struct {
	Scoped
}

// Unknown is any event name this client does not consume
type Unknown struct {
	Scoped
	Name string
	Raw  json.RawMessage
}

func (*LobbyUpdate) Kind() Kind { return KindLobbyUpdate }
func (*TimerSync) Kind() Kind   { return KindTimerSync }
func (*BidUpdate) Kind() Kind   { return KindBidUpdate }
func (*StateSync) Kind() Kind   { return KindStateSync }
func (*RoundEnd) Kind() Kind    { return KindRoundEnd }
func (*NewRound) Kind() Kind    { return KindNewRound }
func (*PointChange) Kind() Kind { return KindPointChange }
func (*GameStarted) Kind() Kind { return KindGameStarted }
func (*Unknown) Kind() Kind     { return KindUnknown }

func (*LobbyUpdate) isEvent() {}
func (*TimerSync) isEvent()   {}
func (*BidUpdate) isEvent()   {}
func (*StateSync) isEvent()   {}
func (*RoundEnd) isEvent()    {}
func (*NewRound) isEvent()    {}
func (*PointChange) isEvent() {}
func (*GameStarted) isEvent() {}
func (*Unknown) isEvent()     {}
