package view

import (
	"sort"

	"github.com/chzzk-auction/auctionsync/go/internal/auction/identity"
	"github.com/chzzk-auction/auctionsync/go/internal/auction/reconciler"
	"github.com/chzzk-auction/auctionsync/go/internal/models"
)

// TeamView is a team as displayed, flagged when it is the local team
type TeamView struct {
	models.Team
	IsMe      bool `json:"isMe"`
	OpenSeats int  `json:"openSeats"`
}

// MyTeam is the local team as far as it could be resolved
type MyTeam struct {
	Team *models.Team
	// Resolved is true only when the identity matched a team id in the list.
	Resolved bool
}

// View is everything a screen needs, derived from canonical state
type View struct {
	Phase          models.Phase    `json:"phase"`
	CurrentPlayer  *models.Player  `json:"currentPlayer"`
	CurrentBid     int             `json:"currentBid"`
	HighBidderID   string          `json:"highBidderId,omitempty"`
	HighBidderName string          `json:"highBidderName,omitempty"`
	BidHistory     []string        `json:"bidHistory"`
	Timer          float64         `json:"timer"` // seconds left as displayed
	TimerRunning   bool            `json:"timerRunning"`
	Queue          []models.Player `json:"queue"`
	Unsold         []models.Player `json:"unsold"`
	Sold           []models.Player `json:"sold"`
	Teams          []TeamView      `json:"teams"`
	MyTeam         *models.Team    `json:"myTeam,omitempty"`
	MyTeamResolved bool            `json:"myTeamResolved"`
	Initialized    bool            `json:"initialized"`
	Seq            uint64          `json:"seq"`
}

// Project derives the view. It has no side effects and never fails.
func Project(c reconciler.Canonical, me identity.Identity) View {
	mine := ResolveMyTeam(c.Teams, me)

	v := View{
		Queue:          Queue(c.Players),
		Unsold:         Unsold(c.Players),
		Sold:           byStatus(c.Players, models.PlayerStatusSold),
		Teams:          DisplayTeams(c.Teams, me),
		MyTeam:         mine.Team,
		MyTeamResolved: mine.Resolved,
		Initialized:    c.Initialized(),
		Seq:            c.Seq,
		BidHistory:     []string{},
	}

	if s := c.State; s != nil {
		v.Phase = s.Phase
		v.CurrentPlayer = s.CurrentPlayer
		v.CurrentBid = s.CurrentBid
		v.Timer = s.TimerValue
		v.TimerRunning = s.IsTimerRunning
		if s.HighBidder != nil {
			v.HighBidderID = s.HighBidder.ID
			v.HighBidderName = s.HighBidder.Name
		}
		if s.BidHistory != nil {
			v.BidHistory = s.BidHistory
		}
	}
	return v
}

// WithTimer replaces the checkpoint value with the locally counted one.
func (v View) WithTimer(display float64) View {
	v.Timer = display
	return v
}

// Queue lists waiting players in auction order.
func Queue(players []models.Player) []models.Player {
	return byStatus(players, models.PlayerStatusWaiting)
}

// Unsold lists passed players in auction order.
func Unsold(players []models.Player) []models.Player {
	return byStatus(players, models.PlayerStatusUnsold)
}

func byStatus(players []models.Player, status models.PlayerStatus) []models.Player {
	out := []models.Player{}
	for _, p := range players {
		if p.EffectiveStatus() == status {
			out = append(out, p)
		}
	}
	SortByOrder(out)
	return out
}

// SortByOrder sorts in place by OrderIndex with missing indexes last; ties keep input order.
func SortByOrder(players []models.Player) {
	sort.SliceStable(players, func(i, j int) bool {
		a, b := players[i].OrderIndex, players[j].OrderIndex
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
}

// DisplayTeams flags the local team by id. Nothing else marks a team as mine.
func DisplayTeams(teams []models.Team, me identity.Identity) []TeamView {
	out := make([]TeamView, 0, len(teams))
	for _, t := range teams {
		out = append(out, TeamView{
			Team:      t,
			IsMe:      me.TeamID != "" && t.ID == me.TeamID,
			OpenSeats: max(0, models.RosterCapacity-t.SeatsTaken()),
		})
	}
	return out
}

// ResolveMyTeam finds the local team. An id match is authoritative; otherwise
// the team cached at join time is used, then the first team, so a screen always
// has something to show. Only an id match sets Resolved.
func ResolveMyTeam(teams []models.Team, me identity.Identity) MyTeam {
	if t := models.FindTeam(teams, me.TeamID); t != nil {
		team := t.Clone()
		return MyTeam{Team: &team, Resolved: true}
	}
	if !me.IsZero() {
		return MyTeam{Team: &models.Team{ID: me.TeamID, Name: me.TeamName, Points: me.Points}}
	}
	if len(teams) > 0 {
		team := teams[0].Clone()
		return MyTeam{Team: &team}
	}
	return MyTeam{}
}

// AdmissionTeam is the team bid admission may act for: only an id match counts.
func (m MyTeam) AdmissionTeam() *models.Team {
	if !m.Resolved {
		return nil
	}
	return m.Team
}
