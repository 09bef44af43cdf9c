package models

// RosterCapacity is the number of seats on a team, the captain's own seat included.
const RosterCapacity = 5

// Team represents a captain's team bidding in the auction
type Team struct {
	ID           string      `json:"id"`
	AuctionID    string      `json:"auctionId,omitempty"`
	Name         string      `json:"name"`
	CaptainName  string      `json:"captainName"`
	Points       int         `json:"points"`
	CaptainStats *PlayerTier `json:"captainStats,omitempty"`
	Roster       []Player    `json:"roster"` // won players, captain excluded
}

// TeamSlim is the id+name reference used where a full team is not needed
type TeamSlim struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Slim returns the slim reference for t.
func (t Team) Slim() TeamSlim {
	return TeamSlim{ID: t.ID, Name: t.Name}
}

// SeatsTaken counts the won players plus the captain.
func (t Team) SeatsTaken() int {
	return len(t.Roster) + 1
}

// Clone returns a copy that shares no slices or pointers with t.
func (t Team) Clone() Team {
	out := t
	if t.CaptainStats != nil {
		stats := *t.CaptainStats
		out.CaptainStats = &stats
	}
	out.Roster = ClonePlayers(t.Roster)
	return out
}

// CloneTeams deep-copies a team list. A nil list stays nil.
func CloneTeams(teams []Team) []Team {
	if teams == nil {
		return nil
	}
	out := make([]Team, len(teams))
	for i, t := range teams {
		out[i] = t.Clone()
	}
	return out
}

// FindTeam returns the team with the given id, or nil.
func FindTeam(teams []Team, id string) *Team {
	if id == "" {
		return nil
	}
	for i := range teams {
		if teams[i].ID == id {
			return &teams[i]
		}
	}
	return nil
}
