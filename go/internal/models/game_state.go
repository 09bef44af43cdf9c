package models

// Phase defines the stage an auction is in.
type Phase string

const (
	PhaseSetup   Phase = "SETUP"
	PhaseWaiting Phase = "WAITING"
	PhaseAuction Phase = "AUCTION"
	PhaseEnded   Phase = "ENDED"
)

// MaxBidHistory bounds the bid log kept on the client. The server returns the same
// number of newest lines with every state response.
const MaxBidHistory = 50

// GameState is the authoritative auction snapshot.
type GameState struct {
	Phase          Phase     `json:"phase"`
	AuctionID      string    `json:"auctionId,omitempty"`
	CurrentPlayer  *Player   `json:"currentPlayer"`
	CurrentBid     int       `json:"currentBid"`
	HighBidder     *TeamSlim `json:"highBidder"`
	TimerValue     float64   `json:"timerValue"` // seconds
	IsTimerRunning bool      `json:"isTimerRunning"`
	BidHistory     []string  `json:"bidHistory"` // newest first
}

// Clone deep-copies the state so callers can derive a new value without touching s.
func (s GameState) Clone() GameState {
	out := s
	if s.CurrentPlayer != nil {
		p := s.CurrentPlayer.Clone()
		out.CurrentPlayer = &p
	}
	if s.HighBidder != nil {
		hb := *s.HighBidder
		out.HighBidder = &hb
	}
	if s.BidHistory != nil {
		out.BidHistory = append([]string(nil), s.BidHistory...)
	}
	return out
}

// PrependHistory returns a new log with line in front, capped at MaxBidHistory.
func PrependHistory(history []string, line string) []string {
	n := len(history) + 1
	if n > MaxBidHistory {
		n = MaxBidHistory
	}
	out := make([]string, 0, n)
	out = append(out, line)
	for _, h := range history {
		if len(out) == n {
			break
		}
		out = append(out, h)
	}
	return out
}
