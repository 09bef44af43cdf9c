package events

import (
	"bytes"
	"testing"

	"github.com/chzzk-auction/auctionsync/go/internal/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeKnownEvents(t *testing.T) {
	cases := []struct {
		name  string
		frame string
		check func(t *testing.T, ev Event)
	}{
		{
			name:  "lobby update with both collections",
			frame: `{"event":"lobby_update","payload":{"auctionId":"A1","teams":[{"id":"t1","name":"ONE","captainName":"cap","points":1000,"roster":[]}],"players":[{"id":"p1","name":"Faker","tiers":{"tank":"D","dps":"C","supp":"M"},"status":"waiting","orderIndex":0}]}}`,
			check: func(t *testing.T, ev Event) {
				lu, ok := ev.(*LobbyUpdate)
				require.True(t, ok)
				assert.Equal(t, "A1", lu.Scope())
				require.NotNil(t, lu.Teams)
				require.NotNil(t, lu.Players)
				assert.Equal(t, "ONE", (*lu.Teams)[0].Name)
				assert.Equal(t, "M", (*lu.Players)[0].Tiers.Supp)
			},
		},
		{
			name:  "lobby update missing players keeps the field nil",
			frame: `{"event":"lobby_update","payload":{"teams":[]}}`,
			check: func(t *testing.T, ev Event) {
				lu := ev.(*LobbyUpdate)
				assert.Nil(t, lu.Players)
				require.NotNil(t, lu.Teams)
				assert.Empty(t, *lu.Teams)
			},
		},
		{
			name:  "timer sync",
			frame: `{"event":"timer_sync","payload":{"auctionId":"A1","timeLeft":12.5,"isRunning":true}}`,
			check: func(t *testing.T, ev Event) {
				ts := ev.(*TimerSync)
				assert.Equal(t, 12.5, ts.TimeLeft)
				assert.True(t, ts.IsRunning)
			},
		},
		{
			name:  "bid update without name or log",
			frame: `{"event":"bid_update","payload":{"currentBid":40,"highBidder":"t9"}}`,
			check: func(t *testing.T, ev Event) {
				bu := ev.(*BidUpdate)
				assert.Equal(t, 40, bu.CurrentBid)
				assert.Equal(t, "t9", bu.HighBidder)
				assert.Nil(t, bu.HighBidderName)
				assert.Nil(t, bu.Log)
			},
		},
		{
			name:  "state sync uses the payload as the state",
			frame: `{"event":"state_sync","payload":{"phase":"AUCTION","currentPlayer":null,"currentBid":70,"highBidder":{"id":"t1","name":"ONE"},"timerValue":8,"isTimerRunning":false,"bidHistory":["ONE bid 70"]}}`,
			check: func(t *testing.T, ev Event) {
				ss := ev.(*StateSync)
				assert.Equal(t, models.PhaseAuction, ss.State.Phase)
				assert.Equal(t, 70, ss.State.CurrentBid)
				assert.Equal(t, "ONE", ss.State.HighBidder.Name)
				assert.Equal(t, "", ss.Scope())
			},
		},
		{
			name:  "round end without payload",
			frame: `{"event":"round_end"}`,
			check: func(t *testing.T, ev Event) {
				assert.Equal(t, KindRoundEnd, ev.Kind())
			},
		},
		{
			name:  "new round",
			frame: `{"event":"new_round","payload":{"auctionId":"A1","player":{"id":"p2","name":"Chovy","tiers":{"tank":"","dps":"","supp":""}},"endTime":1700000000.5}}`,
			check: func(t *testing.T, ev Event) {
				nr := ev.(*NewRound)
				require.NotNil(t, nr.Player)
				assert.Equal(t, "Chovy", nr.Player.Name)
			},
		},
		{
			name:  "point change",
			frame: `{"event":"point_change","payload":{"auctionId":"A1","teamId":"t1","newPoints":700}}`,
			check: func(t *testing.T, ev Event) {
				pc := ev.(*PointChange)
				assert.Equal(t, "t1", pc.TeamID)
				assert.Equal(t, 700, pc.NewPoints)
			},
		},
		{
			name:  "game started",
			frame: `{"event":"game_started","payload":{"auctionId":"A1"}}`,
			check: func(t *testing.T, ev Event) {
				assert.Equal(t, KindGameStarted, ev.Kind())
				assert.Equal(t, "A1", ev.Scope())
			},
		},
		{
			name:  "unknown event is not an error",
			frame: `{"event":"chat_message","payload":{"auctionId":"A2","text":"hi"}}`,
			check: func(t *testing.T, ev Event) {
				u := ev.(*Unknown)
				assert.Equal(t, "chat_message", u.Name)
				assert.Equal(t, "A2", u.Scope())
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := Decode([]byte(tc.frame))
			require.NoError(t, err)
			tc.check(t, ev)
		})
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	cases := []struct {
		name  string
		frame string
		want  error
	}{
		{name: "not json", frame: `{{{`, want: ErrMalformedEnvelope},
		{name: "missing event name", frame: `{"payload":{}}`, want: ErrMalformedEnvelope},
		{name: "timer sync without value", frame: `{"event":"timer_sync","payload":{"isRunning":true}}`, want: ErrMalformedPayload},
		{name: "bid update without bid", frame: `{"event":"bid_update","payload":{"highBidder":"t1"}}`, want: ErrMalformedPayload},
		{name: "state sync without state", frame: `{"event":"state_sync"}`, want: ErrMalformedPayload},
		{name: "lobby update with wrong types", frame: `{"event":"lobby_update","payload":{"teams":"nope"}}`, want: ErrMalformedPayload},
		{name: "point change without team", frame: `{"event":"point_change","payload":{"newPoints":3}}`, want: ErrMalformedPayload},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := Decode([]byte(tc.frame))
			assert.Nil(t, ev)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestEncodeDecodeBidUpdate(t *testing.T) {
	name := "TEAM NINE"
	line := "TEAM NINE bid 20"
	frame, err := Encode(&BidUpdate{
		Scoped:         Scoped{AuctionID: "A1"},
		CurrentBid:     20,
		HighBidder:     "t9",
		HighBidderName: &name,
		Log:            &line,
	})
	require.NoError(t, err)

	ev, err := Decode(frame)
	require.NoError(t, err)
	bu := ev.(*BidUpdate)
	assert.Equal(t, "A1", bu.Scope())
	assert.Equal(t, "TEAM NINE", *bu.HighBidderName)
	assert.Equal(t, line, *bu.Log)
}

func TestUnknownEventWithNonObjectPayload(t *testing.T) {
	var buf bytes.Buffer
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	ev, err := Decode([]byte(`{"event":"chat_message","payload":["hi"]}`))
	require.NoError(t, err)

	u := ev.(*Unknown)
	assert.Equal(t, "chat_message", u.Name)
	assert.Empty(t, u.Scope())
	assert.Contains(t, buf.String(), "unknown event payload is not an object")
	assert.Contains(t, buf.String(), `"event":"chat_message"`)
}
