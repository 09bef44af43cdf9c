package bidding

import (
	"sort"
	"strings"

	"github.com/chzzk-auction/auctionsync/go/internal/models"
)

// DenialReason is one independent reason a bid may not be submitted
type DenialReason int

const (
	NoTeamIdentity DenialReason = iota + 1
	BiddingClosed
	AlreadyHighBidder
	RosterFull
	NoIncrement
	OverBudget
	InFlight
)

func (r DenialReason) String() string {
	switch r {
	case NoTeamIdentity:
		return "no_team_identity"
	case BiddingClosed:
		return "bidding_closed"
	case AlreadyHighBidder:
		return "already_high_bidder"
	case RosterFull:
		return "roster_full"
	case NoIncrement:
		return "no_increment"
	case OverBudget:
		return "over_budget"
	case InFlight:
		return "in_flight"
	default:
		return "unknown"
	}
}

// Message is the text shown next to a disabled bid button.
func (r DenialReason) Message() string {
	switch r {
	case NoTeamIdentity:
		return "your team could not be found in this auction"
	case BiddingClosed:
		return "bidding is closed"
	case AlreadyHighBidder:
		return "you already hold the highest bid"
	case RosterFull:
		return "your roster is full"
	case NoIncrement:
		return "add an amount to bid"
	case OverBudget:
		return "not enough points"
	case InFlight:
		return "a bid is already being submitted"
	default:
		return "bid not allowed"
	}
}

// Reasons is the set of denial reasons that apply
type Reasons map[DenialReason]struct{}

func (rs Reasons) Has(r DenialReason) bool {
	_, ok := rs[r]
	return ok
}

func (rs Reasons) add(r DenialReason) {
	rs[r] = struct{}{}
}

// List returns the reasons in declaration order.
func (rs Reasons) List() []DenialReason {
	out := make([]DenialReason, 0, len(rs))
	for r := range rs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (rs Reasons) String() string {
	parts := make([]string, 0, len(rs))
	for _, r := range rs.List() {
		parts = append(parts, r.String())
	}
	return strings.Join(parts, ",")
}

// Admission is the verdict of CanSubmit
type Admission struct {
	Allowed bool
	Reasons Reasons
	// Total is the amount a submission would bid.
	Total int
}

// CanSubmit decides whether myTeam may bid pendingAdd on top of the current
// bid. Every rule is evaluated so all applicable reasons are reported. myTeam
// must be nil when the local identity did not match a team in the list.
func CanSubmit(state *models.GameState, myTeam *models.Team, pendingAdd int) Admission {
	reasons := Reasons{}

	currentBid := 0
	if state != nil {
		currentBid = state.CurrentBid
	}
	total := currentBid + pendingAdd

	if myTeam == nil {
		reasons.add(NoTeamIdentity)
	}
	if state == nil || !state.IsTimerRunning || state.TimerValue <= 0 {
		reasons.add(BiddingClosed)
	}
	if myTeam != nil && state != nil && state.HighBidder != nil && state.HighBidder.ID == myTeam.ID {
		reasons.add(AlreadyHighBidder)
	}
	if myTeam != nil && myTeam.SeatsTaken() >= models.RosterCapacity {
		reasons.add(RosterFull)
	}
	if pendingAdd <= 0 {
		reasons.add(NoIncrement)
	}
	if myTeam != nil && total > myTeam.Points {
		reasons.add(OverBudget)
	}

	return Admission{
		Allowed: len(reasons) == 0,
		Reasons: reasons,
		Total:   total,
	}
}
