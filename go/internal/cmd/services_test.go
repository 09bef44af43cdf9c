package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chzzk-auction/auctionsync/go/internal/auction/identity"
	"github.com/chzzk-auction/auctionsync/go/internal/clientconfig"
	"github.com/chzzk-auction/auctionsync/go/internal/models"
)

// lobbyServer answers the join flow for auction A42 and reports status for it.
func lobbyServer(t *testing.T, status string) (*httptest.Server, *map[string]any) {
	t.Helper()
	joined := map[string]any{}
	mux := http.NewServeMux()
	mux.HandleFunc("/invite/validate/INV42", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"valid":true,"auctionId":"A42"}`))
	})
	mux.HandleFunc("/invite/validate/NOPE", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"valid":false}`))
	})
	mux.HandleFunc("/auctions/A42", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer admin", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":"A42","title":"Spring Cup","status":"` + status + `","inviteCode":"INV42","createdAt":"2026-10-17T12:00:00.123456"}`))
	})
	mux.HandleFunc("/lobby/join", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&joined))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"t7","auctionId":"A42","name":"SEVEN","captainName":"cap","points":1000,"roster":[]}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &joined
}

func testConfig(t *testing.T, apiURL string) clientconfig.Config {
	t.Helper()
	cfg := clientconfig.Defaults()
	cfg.APIURL = apiURL
	cfg.WSURL = apiURL
	cfg.AdminToken = "admin"
	cfg.IdentityFile = filepath.Join(t.TempDir(), "identity.yaml")
	cfg.TickInterval = 10 * time.Millisecond
	return cfg
}

func joinThenResolve(t *testing.T, cfg clientconfig.Config) (clientconfig.Config, identity.Identity) {
	t.Helper()
	ctx := context.Background()

	joined, err := joinAuction(ctx, cfg, joinRequest{
		Code:    "inv42",
		Team:    "SEVEN",
		Captain: "cap",
		Tiers:   models.PlayerTier{Tank: "A", DPS: "S", Supp: "B"},
	})
	require.NoError(t, err)
	assert.Equal(t, "A42", joined.AuctionID)

	// run starts with no auction configured
	runCfg := cfg
	runCfg.AuctionID = ""
	identities, closeFn, err := setupIdentityStore(ctx, runCfg)
	require.NoError(t, err)
	t.Cleanup(closeFn)

	resolved, me, err := resolveAuction(ctx, runCfg, identities)
	require.NoError(t, err)
	return resolved, me
}

func TestJoinThenRunFollowsJoinedAuction(t *testing.T) {
	server, joined := lobbyServer(t, "LIVE")
	cfg := testConfig(t, server.URL)

	resolved, me := joinThenResolve(t, cfg)
	assert.Equal(t, "A42", resolved.AuctionID)
	assert.Equal(t, "t7", me.TeamID)
	assert.Equal(t, "SEVEN", me.TeamName)

	tiers, _ := (*joined)["tiers"].(map[string]any)
	assert.Equal(t, map[string]any{"tank": "A", "dps": "S", "supp": "B"}, tiers)
}

func TestJoinThenRunWithRedisIdentity(t *testing.T) {
	mr := miniredis.RunT(t)
	server, _ := lobbyServer(t, "DRAFT")
	cfg := testConfig(t, server.URL)
	cfg.RedisAddr = mr.Addr()

	resolved, me := joinThenResolve(t, cfg)
	assert.Equal(t, "A42", resolved.AuctionID)
	assert.Equal(t, "t7", me.TeamID)
	assert.True(t, mr.Exists("auction:identity:A42"))

	// a run pinned to the same auction reads the same key
	identities, closeFn, err := setupIdentityStore(context.Background(), resolved)
	require.NoError(t, err)
	defer closeFn()
	got, err := identities.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "t7", got.TeamID)
}

func TestRunRefusesOtherAuction(t *testing.T) {
	server, _ := lobbyServer(t, "LIVE")
	cfg := testConfig(t, server.URL)
	joinThenResolve(t, cfg)

	cfg.AuctionID = "B2"
	identities, closeFn, err := setupIdentityStore(context.Background(), cfg)
	require.NoError(t, err)
	defer closeFn()

	_, _, err = resolveAuction(context.Background(), cfg, identities)
	assert.ErrorIs(t, err, identity.ErrAuctionMismatch)
}

func TestRunWithoutAuctionOrIdentity(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:0")
	cfg.AuctionID = ""
	identities, closeFn, err := setupIdentityStore(context.Background(), cfg)
	require.NoError(t, err)
	defer closeFn()

	_, _, err = resolveAuction(context.Background(), cfg, identities)
	assert.ErrorIs(t, err, errNoAuction)
}

func TestJoinRejectsEndedAuctionAndBadInvite(t *testing.T) {
	server, joined := lobbyServer(t, "ENDED")
	cfg := testConfig(t, server.URL)

	_, err := joinAuction(context.Background(), cfg, joinRequest{Code: "INV42", Team: "SEVEN", Captain: "cap"})
	assert.ErrorIs(t, err, errAuctionEnded)
	assert.Empty(t, *joined, "no team created for an ended auction")

	_, err = joinAuction(context.Background(), cfg, joinRequest{Code: "NOPE", Team: "SEVEN", Captain: "cap"})
	assert.ErrorContains(t, err, "not valid")
}

func TestSetupSessionChecksAuction(t *testing.T) {
	server, _ := lobbyServer(t, "ENDED")
	cfg := testConfig(t, server.URL)
	cfg.AuctionID = "A42"

	_, err := setupSession(context.Background(), cfg, nil, identity.NewFileStore(cfg.IdentityFile))
	assert.ErrorIs(t, err, errAuctionEnded)

	cfg.AuctionID = "missing"
	_, err = setupSession(context.Background(), cfg, nil, identity.NewFileStore(cfg.IdentityFile))
	assert.ErrorContains(t, err, "404 page not found")
}

type closingSource struct {
	closed bool
}

func (s *closingSource) Run(ctx context.Context) error { return nil }
func (s *closingSource) Frames() <-chan []byte { return nil }
func (s *closingSource) Reconnected() <-chan struct{} { return nil }
func (s *closingSource) Close() error { s.closed = true; return nil }

func TestCloseSourceReleasesConnection(t *testing.T) {
	src := &closingSource{}
	closeSource(src)
	assert.True(t, src.closed)
}
