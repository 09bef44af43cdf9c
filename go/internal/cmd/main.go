package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/chzzk-auction/auctionsync/go/internal/clientconfig"
)

const usage = `usage: auctionsync <command> [flags]

commands:
  run    follow an auction and bid from stdin
  join   redeem an invite code and save the team identity`

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	cfg, err := clientconfig.NewConfigFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(cfg.Level())

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "run":
		err = runCommand(ctx, cfg, os.Args[2:])
	case "join":
		err = joinCommand(ctx, cfg, os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg(os.Args[1] + " failed")
	}
}

func runCommand(ctx context.Context, cfg clientconfig.Config, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	auctionID := fs.String("auction", cfg.AuctionID, "auction id (defaults to the joined auction)")
	noOverlay := fs.Bool("no-overlay", false, "do not serve the overlay endpoints")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.AuctionID = *auctionID

	identities, closeIdentities, err := setupIdentityStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeIdentities()

	cfg, me, err := resolveAuction(ctx, cfg, identities)
	if err != nil {
		return err
	}
	log.Info().
		Str("auction_id", cfg.AuctionID).
		Str("team_id", me.TeamID).
		Msg("resolved auction")

	registry := prometheus.NewRegistry()
	svc, err := setupSession(ctx, cfg, registry, identities)
	if err != nil {
		return err
	}

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer svc.Stop()

	var server *http.Server
	if !*noOverlay {
		server = setupServer(cfg, svc, registry)
		go func() {
			log.Info().Str("addr", server.Addr).Msg("overlay server starting")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("overlay server failed")
			}
		}()
	}

	console := newConsole(svc, os.Stdin, os.Stdout)
	go console.render(ctx)
	go console.readCommands(ctx)

	<-ctx.Done()
	log.Info().Msg("received shutdown signal")

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("overlay server shutdown failed")
		}
	}
	return nil
}

func joinCommand(ctx context.Context, cfg clientconfig.Config, args []string) error {
	fs := flag.NewFlagSet("join", flag.ExitOnError)
	var req joinRequest
	fs.StringVar(&req.Code, "code", "", "invite code")
	fs.StringVar(&req.Team, "team", "", "team name")
	fs.StringVar(&req.Captain, "captain", "", "captain name")
	fs.StringVar(&req.Tiers.Tank, "tank", "", "captain tank tier")
	fs.StringVar(&req.Tiers.DPS, "dps", "", "captain dps tier")
	fs.StringVar(&req.Tiers.Supp, "supp", "", "captain support tier")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if req.Code == "" || req.Team == "" || req.Captain == "" {
		fs.Usage()
		return errors.New("code, team and captain are required")
	}

	me, err := joinAuction(ctx, cfg, req)
	if err != nil {
		return err
	}

	log.Info().
		Str("auction_id", me.AuctionID).
		Str("team_id", me.TeamID).
		Str("team", me.TeamName).
		Msg("joined auction")
	return nil
}
