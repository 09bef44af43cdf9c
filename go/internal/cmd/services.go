package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/chzzk-auction/auctionsync/go/clients"
	"github.com/chzzk-auction/auctionsync/go/clients/auction_client"
	"github.com/chzzk-auction/auctionsync/go/internal/auction/identity"
	"github.com/chzzk-auction/auctionsync/go/internal/auction/session"
	"github.com/chzzk-auction/auctionsync/go/internal/auction/transport"
	"github.com/chzzk-auction/auctionsync/go/internal/clientconfig"
	"github.com/chzzk-auction/auctionsync/go/internal/models"
)

var (
	errNoAuction    = errors.New("no auction to follow: set AUCTION_ID, pass -auction or run join first")
	errAuctionEnded = errors.New("auction has ended")
)

// resolveAuction settles the auction id from config and the saved identity.
func resolveAuction(ctx context.Context, cfg clientconfig.Config, identities identity.Store) (clientconfig.Config, identity.Identity, error) {
	me, auctionID, err := identity.Resolve(ctx, identities, cfg.AuctionID)
	if err != nil {
		return cfg, identity.Identity{}, err
	}
	if auctionID == "" {
		return cfg, identity.Identity{}, errNoAuction
	}
	cfg.AuctionID = auctionID
	return cfg, me, nil
}

// checkAuction looks the auction up and refuses ended or unknown ones. The
// lookup is admin only, so captains skip it; other failures only warn since the
// session keeps retrying its own fetches.
func checkAuction(ctx context.Context, client *auction_client.AuctionClient, cfg clientconfig.Config, auctionID string) error {
	if cfg.AdminToken == "" {
		return nil
	}
	auction, err := client.GetAuction(ctx, auctionID)
	if err != nil {
		var apiErr *clients.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return fmt.Errorf("auction %s: %s", auctionID, apiErr.Message())
		}
		log.Warn().Err(err).Str("auction_id", auctionID).Msg("could not look up auction")
		return nil
	}
	if auction.Ended() {
		return fmt.Errorf("%w: %s", errAuctionEnded, auction.Title)
	}

	log.Info().
		Str("auction_id", auction.ID).
		Str("title", auction.Title).
		Str("status", string(auction.Status)).
		Msg("following auction")
	return nil
}

// setupSession wires client -> auction check -> push source -> session.
// cfg.AuctionID must already be resolved.
func setupSession(ctx context.Context, cfg clientconfig.Config, reg prometheus.Registerer, identities identity.Store) (*session.Service, error) {
	client := auction_client.NewAuctionClient(cfg.APIURL, cfg.AuctionID, cfg.AdminToken)
	if err := checkAuction(ctx, client, cfg, cfg.AuctionID); err != nil {
		return nil, err
	}

	source, err := setupSource(cfg)
	if err != nil {
		return nil, err
	}

	sessionConfig := session.DefaultConfig()
	sessionConfig.AuctionID = cfg.AuctionID
	sessionConfig.TickInterval = cfg.TickInterval
	sessionConfig.Metrics = session.NewPrometheusMetrics(reg)

	svc, err := session.NewService(sessionConfig, client, source, identities)
	if err != nil {
		closeSource(source)
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return svc, nil
}

// setupSource prefers the NATS mirror when configured, the websocket otherwise.
func setupSource(cfg clientconfig.Config) (transport.Source, error) {
	if cfg.NATSURL != "" {
		natsConfig := transport.DefaultNATSConfig()
		natsConfig.URL = cfg.NATSURL
		natsConfig.AuctionID = cfg.AuctionID
		source, err := transport.NewNATSSource(natsConfig)
		if err != nil {
			return nil, err
		}
		log.Info().Str("subject", natsConfig.Subject()).Msg("using NATS event source")
		return source, nil
	}

	socketConfig := transport.DefaultSocketConfig()
	socketConfig.URL = cfg.WSURL
	socketConfig.AuctionID = cfg.AuctionID
	source, err := transport.NewSocket(socketConfig)
	if err != nil {
		return nil, err
	}
	log.Info().Str("url", cfg.WSURL).Msg("using websocket event source")
	return source, nil
}

// closeSource releases a source that never ran.
func closeSource(source transport.Source) {
	if c, ok := source.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close event source")
		}
	}
}

// setupIdentityStore keeps the identity in redis when an address is set, in a
// local yaml file otherwise. An empty cfg.AuctionID opens the redis store on the
// auction of the last join.
func setupIdentityStore(ctx context.Context, cfg clientconfig.Config) (identity.Store, func(), error) {
	if cfg.RedisAddr == "" {
		return identity.NewFileStore(cfg.IdentityFile), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	store, err := identity.NewRedisStore(ctx, client, cfg.AuctionID)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis identity store")
	return store, func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close redis client")
		}
	}, nil
}

type joinRequest struct {
	Code    string
	Team    string
	Captain string
	Tiers   models.PlayerTier
}

// joinAuction redeems an invite, creates the team and saves it as the local
// identity under the invite's auction.
func joinAuction(ctx context.Context, cfg clientconfig.Config, req joinRequest) (identity.Identity, error) {
	client := auction_client.NewAuctionClient(cfg.APIURL, "", cfg.AdminToken)
	validation, err := client.ValidateInvite(ctx, req.Code)
	if err != nil {
		return identity.Identity{}, err
	}
	if !validation.Valid || validation.AuctionID == "" {
		return identity.Identity{}, fmt.Errorf("invite code %q is not valid", req.Code)
	}
	if err := checkAuction(ctx, client, cfg, validation.AuctionID); err != nil {
		return identity.Identity{}, err
	}

	created, err := client.JoinLobby(ctx, auction_client.JoinLobbyRequest{
		TeamName:   req.Team,
		Captain:    req.Captain,
		Tiers:      req.Tiers,
		InviteCode: req.Code,
	})
	if err != nil {
		return identity.Identity{}, err
	}

	cfg.AuctionID = validation.AuctionID
	store, closeFn, err := setupIdentityStore(ctx, cfg)
	if err != nil {
		return identity.Identity{}, err
	}
	defer closeFn()

	me := identity.Identity{
		TeamID:    created.ID,
		TeamName:  created.Name,
		Points:    created.Points,
		AuctionID: validation.AuctionID,
	}
	if err := store.Save(ctx, me); err != nil {
		return identity.Identity{}, err
	}
	return me, nil
}
