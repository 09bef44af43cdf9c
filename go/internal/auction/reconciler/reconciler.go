package reconciler

import (
	"github.com/chzzk-auction/auctionsync/go/internal/auction/events"
	"github.com/chzzk-auction/auctionsync/go/internal/auction/snapshot"
	"github.com/chzzk-auction/auctionsync/go/internal/models"
)

// Canonical is the locally held source of truth. Values are never modified in
// place: every transition builds a new Canonical, so a value handed out to a
// reader stays valid. Readers must treat it as read-only.
type Canonical struct {
	State   *models.GameState // nil until the first snapshot or state_sync
	Teams   []models.Team
	Players []models.Player

	// Seq increments on every applied transition.
	Seq uint64
	// StateSeq is the Seq of the last full GameState replacement.
	StateSeq uint64
	// LobbySeq is the Seq of the last full team/player replacement.
	LobbySeq uint64
}

// Initialized reports whether a GameState baseline exists.
func (c Canonical) Initialized() bool {
	return c.State != nil
}

// DropReason explains why an event left the state untouched
type DropReason string

const (
	NotDropped      DropReason = ""
	DropScope       DropReason = "scope_mismatch"
	DropNoBaseline  DropReason = "no_baseline"
	DropUnknown     DropReason = "unknown_event"
	DropNilEvent    DropReason = "nil_event"
	DropStale       DropReason = "stale_snapshot"
	DropUnknownTeam DropReason = "unknown_team"
)

// Result is the outcome of applying one event
type Result struct {
	Next    Canonical
	Changed bool
	// Refetch asks the owner to pull a full snapshot.
	Refetch bool
	Dropped DropReason
	// Unresolved is set when a bidder name fell back to the raw team id.
	Unresolved bool
}

// Apply merges ev into c. scope is the locally active auction id; events tagged
// with a different one are dropped. Apply is total: it never panics or fails,
// and c itself is left untouched.
func Apply(c Canonical, ev events.Event, scope string) Result {
	if ev == nil {
		return Result{Next: c, Dropped: DropNilEvent}
	}
	if s := ev.Scope(); s != "" && scope != "" && s != scope {
		return Result{Next: c, Dropped: DropScope}
	}

	switch e := ev.(type) {
	case *events.LobbyUpdate:
		return applyLobby(c, e)

	case *events.TimerSync:
		if c.State == nil {
			return Result{Next: c, Refetch: true, Dropped: DropNoBaseline}
		}
		state := c.State.Clone()
		state.TimerValue = e.TimeLeft
		state.IsTimerRunning = e.IsRunning
		return changed(c.withState(&state))

	case *events.BidUpdate:
		return applyBid(c, e)

	case *events.StateSync:
		state := e.State.Clone()
		next := c.withState(&state)
		next.StateSeq = next.Seq
		return changed(next)

	case *events.RoundEnd, *events.NewRound, *events.GameStarted:
		// Round boundaries are not trusted incrementally.
		return Result{Next: c, Refetch: true}

	case *events.PointChange:
		idx := teamIndex(c.Teams, e.TeamID)
		if idx < 0 {
			return Result{Next: c, Dropped: DropUnknownTeam}
		}
		teams := models.CloneTeams(c.Teams)
		teams[idx].Points = e.NewPoints
		next := c.bump()
		next.Teams = teams
		return changed(next)

	default:
		return Result{Next: c, Dropped: DropUnknown}
	}
}

// ApplySnapshot builds canonical state wholesale from a full pull.
func ApplySnapshot(s snapshot.Snapshot) Canonical {
	state := s.State.Clone()
	return Canonical{
		State:   &state,
		Teams:   models.CloneTeams(s.Teams),
		Players: models.ClonePlayers(s.Players),
	}
}

// MergeSnapshot applies a snapshot whose fetch was issued when c.Seq was
// issuedSeq. Parts that were fully replaced after the fetch was issued are kept,
// since the snapshot may predate them; everything else is replaced.
func MergeSnapshot(c Canonical, s snapshot.Snapshot, issuedSeq uint64) Result {
	fresh := ApplySnapshot(s)
	stateStale := c.State != nil && c.StateSeq > issuedSeq
	lobbyStale := c.LobbySeq > issuedSeq

	if stateStale && lobbyStale {
		return Result{Next: c, Dropped: DropStale}
	}

	next := c.bump()
	if !stateStale {
		next.State = fresh.State
		next.StateSeq = next.Seq
	}
	if !lobbyStale {
		next.Teams = fresh.Teams
		next.Players = fresh.Players
		next.LobbySeq = next.Seq
	}
	next.State = recohere(next.State, next.Teams)
	return changed(next)
}

// ReplaceState installs a server-returned state (bid or admin response).
func ReplaceState(c Canonical, state models.GameState) Canonical {
	s := state.Clone()
	next := c.withState(&s)
	next.StateSeq = next.Seq
	return next
}

// ReplaceTeam swaps in a server-returned team, appending it if unknown.
func ReplaceTeam(c Canonical, team models.Team) Canonical {
	teams := models.CloneTeams(c.Teams)
	if idx := teamIndex(teams, team.ID); idx >= 0 {
		teams[idx] = team.Clone()
	} else {
		teams = append(teams, team.Clone())
	}
	next := c.bump()
	next.Teams = teams
	next.State = recohere(next.State, teams)
	return next
}

func applyLobby(c Canonical, e *events.LobbyUpdate) Result {
	if e.Players == nil && e.Teams == nil {
		return Result{Next: c}
	}

	next := c.bump()
	if e.Players != nil {
		next.Players = models.ClonePlayers(*e.Players)
		if next.Players == nil {
			next.Players = []models.Player{}
		}
	}
	if e.Teams != nil {
		next.Teams = models.CloneTeams(*e.Teams)
		if next.Teams == nil {
			next.Teams = []models.Team{}
		}
		next.State = recohere(next.State, next.Teams)
	}
	next.LobbySeq = next.Seq
	return changed(next)
}

func applyBid(c Canonical, e *events.BidUpdate) Result {
	if c.State == nil {
		return Result{Next: c, Refetch: true, Dropped: DropNoBaseline}
	}

	state := c.State.Clone()
	state.CurrentBid = e.CurrentBid

	unresolved := false
	if e.HighBidder != "" {
		name, ok := ResolveBidderName(e.HighBidder, e.HighBidderName, c.Teams)
		unresolved = !ok
		state.HighBidder = &models.TeamSlim{ID: e.HighBidder, Name: name}
	}
	if e.Log != nil && *e.Log != "" {
		state.BidHistory = models.PrependHistory(state.BidHistory, *e.Log)
	}

	res := changed(c.withState(&state))
	res.Unresolved = unresolved
	return res
}

// ResolveBidderName prefers the name sent with the event, then the local team
// list, then the raw id. ok is false only for the raw-id fallback.
func ResolveBidderName(id string, explicit *string, teams []models.Team) (name string, ok bool) {
	if explicit != nil && *explicit != "" {
		return *explicit, true
	}
	if t := models.FindTeam(teams, id); t != nil {
		return t.Name, true
	}
	return id, false
}

// recohere refreshes the cached high bidder name after the team list changed.
func recohere(state *models.GameState, teams []models.Team) *models.GameState {
	if state == nil || state.HighBidder == nil {
		return state
	}
	t := models.FindTeam(teams, state.HighBidder.ID)
	if t == nil || t.Name == state.HighBidder.Name {
		return state
	}
	s := state.Clone()
	s.HighBidder.Name = t.Name
	return &s
}

func teamIndex(teams []models.Team, id string) int {
	for i := range teams {
		if teams[i].ID == id {
			return i
		}
	}
	return -1
}

func (c Canonical) bump() Canonical {
	c.Seq++
	return c
}

func (c Canonical) withState(state *models.GameState) Canonical {
	next := c.bump()
	next.State = state
	return next
}

func changed(next Canonical) Result {
	return Result{Next: next, Changed: true}
}
