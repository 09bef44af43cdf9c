package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

var (
	ErrMalformedEnvelope = errors.New("malformed event envelope")
	ErrMalformedPayload  = errors.New("malformed event payload")
)

// Envelope is the frame pushed over the persistent connection
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Kind is the event discriminator
type Kind string

const (
	KindLobbyUpdate Kind = "lobby_update"
	KindTimerSync   Kind = "timer_sync"
	KindBidUpdate   Kind = "bid_update"
	KindStateSync   Kind = "state_sync"
	KindRoundEnd    Kind = "round_end"
	KindNewRound    Kind = "new_round"
	KindPointChange Kind = "point_change"
	KindGameStarted Kind = "game_started"
	KindUnknown     Kind = "unknown"
)

// Event is one of the payload types in this package. The set is closed: the
// unexported marker keeps other packages from adding variants.
type Event interface {
	Kind() Kind
	// Scope is the auction id the event was published for, empty when untagged.
	Scope() string
	isEvent()
}

// Decode parses a raw frame into its typed event. Unknown event names decode to
// *Unknown without error so callers can ignore them.
func Decode(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("%w: missing event name", ErrMalformedEnvelope)
	}
	return ParsePayload(env)
}

// ParsePayload decodes the payload of an already split envelope.
func ParsePayload(env Envelope) (Event, error) {
	payload := env.Payload
	if isEmpty(payload) {
		payload = json.RawMessage("{}")
	}

	switch Kind(env.Event) {
	case KindLobbyUpdate:
		var ev LobbyUpdate
		return decodeInto(&ev, payload)

	case KindTimerSync:
		var raw struct {
			Scoped
			TimeLeft  *float64 `json:"timeLeft"`
			IsRunning *bool    `json:"isRunning"`
		}
		if err := json.Unmarshal(payload, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		if raw.TimeLeft == nil || raw.IsRunning == nil {
			return nil, fmt.Errorf("%w: timer_sync requires timeLeft and isRunning", ErrMalformedPayload)
		}
		return &TimerSync{Scoped: raw.Scoped, TimeLeft: *raw.TimeLeft, IsRunning: *raw.IsRunning}, nil

	case KindBidUpdate:
		var raw struct {
			Scoped
			CurrentBid     *int    `json:"currentBid"`
			HighBidder     string  `json:"highBidder"`
			HighBidderName *string `json:"highBidderName"`
			Log            *string `json:"log"`
		}
		if err := json.Unmarshal(payload, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		if raw.CurrentBid == nil {
			return nil, fmt.Errorf("%w: bid_update requires currentBid", ErrMalformedPayload)
		}
		return &BidUpdate{
			Scoped:         raw.Scoped,
			CurrentBid:     *raw.CurrentBid,
			HighBidder:     raw.HighBidder,
			HighBidderName: raw.HighBidderName,
			Log:            raw.Log,
		}, nil

	case KindStateSync:
		if isEmpty(env.Payload) {
			return nil, fmt.Errorf("%w: state_sync without state", ErrMalformedPayload)
		}
		var ev StateSync
		if err := json.Unmarshal(payload, &ev.State); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		return &ev, nil

	case KindRoundEnd:
		var ev RoundEnd
		return decodeInto(&ev, payload)

	case KindNewRound:
		var ev NewRound
		return decodeInto(&ev, payload)

	case KindPointChange:
		var raw struct {
			Scoped
			TeamID    string `json:"teamId"`
			NewPoints *int   `json:"newPoints"`
		}
		if err := json.Unmarshal(payload, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		if raw.TeamID == "" || raw.NewPoints == nil {
			return nil, fmt.Errorf("%w: point_change requires teamId and newPoints", ErrMalformedPayload)
		}
		return &PointChange{Scoped: raw.Scoped, TeamID: raw.TeamID, NewPoints: *raw.NewPoints}, nil

	case KindGameStarted:
		var ev GameStarted
		return decodeInto(&ev, payload)

	default:
		ev := &Unknown{Name: env.Event, Raw: env.Payload}
		// An unknown event may still be scoped; a payload that is not an object stays unscoped.
		if err := json.Unmarshal(payload, &ev.Scoped); err != nil {
			log.Debug().Err(err).Str("event", env.Event).Msg("unknown event payload is not an object")
		}
		return ev, nil
	}
}

// Encode builds a frame for the given event. Used by publishers and tests.
func Encode(ev Event) ([]byte, error) {
	var payload any = ev
	name := string(ev.Kind())
	switch e := ev.(type) {
	case *StateSync:
		payload = e.State
	case *Unknown:
		name = e.Name
		payload = e.Raw
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", name, err)
	}
	return json.Marshal(Envelope{Event: name, Payload: raw})
}

func decodeInto[T Event](ev T, payload json.RawMessage) (Event, error) {
	if err := json.Unmarshal(payload, ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return ev, nil
}

func isEmpty(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
