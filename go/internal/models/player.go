package models

// PlayerStatus is the auction lifecycle of a player
type PlayerStatus string

const (
	PlayerStatusWaiting PlayerStatus = "waiting"
	PlayerStatusBidding PlayerStatus = "bidding"
	PlayerStatusSold    PlayerStatus = "sold"
	PlayerStatusUnsold  PlayerStatus = "unsold"
)

// PlayerTier holds the three role ratings shown next to a player
type PlayerTier struct {
	Tank string `json:"tank"`
	DPS  string `json:"dps"`
	Supp string `json:"supp"`
}

// Player represents a player put up for auction
type Player struct {
	ID           string       `json:"id"`
	AuctionID    string       `json:"auctionId,omitempty"`
	Name         string       `json:"name"`
	Tiers        PlayerTier   `json:"tiers"`
	Status       PlayerStatus `json:"status,omitempty"`
	OrderIndex   *int         `json:"orderIndex,omitempty"` // nil sorts after every indexed player
	SoldToTeamID *string      `json:"soldToTeamId,omitempty"`
	SoldPrice    *int         `json:"soldPrice,omitempty"`
}

// EffectiveStatus treats a missing status as waiting.
func (p Player) EffectiveStatus() PlayerStatus {
	if p.Status == "" {
		return PlayerStatusWaiting
	}
	return p.Status
}

// Clone returns a copy that shares no pointers with p.
func (p Player) Clone() Player {
	out := p
	if p.OrderIndex != nil {
		v := *p.OrderIndex
		out.OrderIndex = &v
	}
	if p.SoldToTeamID != nil {
		v := *p.SoldToTeamID
		out.SoldToTeamID = &v
	}
	if p.SoldPrice != nil {
		v := *p.SoldPrice
		out.SoldPrice = &v
	}
	return out
}

// ClonePlayers deep-copies a player list. A nil list stays nil.
func ClonePlayers(players []Player) []Player {
	if players == nil {
		return nil
	}
	out := make([]Player, len(players))
	for i, p := range players {
		out[i] = p.Clone()
	}
	return out
}
