package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/chzzk-auction/auctionsync/go/clients"
	"github.com/chzzk-auction/auctionsync/go/clients/auction_client"
	"github.com/chzzk-auction/auctionsync/go/internal/auction/bidding"
	"github.com/chzzk-auction/auctionsync/go/internal/auction/reconciler"
	"github.com/chzzk-auction/auctionsync/go/internal/auction/view"
	"github.com/chzzk-auction/auctionsync/go/internal/models"
)

// consoleSession is the part of *session.Service the console drives.
type consoleSession interface {
	Subscribe() (<-chan reconciler.Canonical, func())
	View() view.View
	Refresh()
	AddIncrement(n int) int
	ResetIncrement()
	CheckBid() bidding.Admission
	Bid(ctx context.Context) (reconciler.Canonical, error)
	AdminTimer(ctx context.Context, action auction_client.TimerAction, value *float64) (reconciler.Canonical, error)
	AdminDecision(ctx context.Context, action auction_client.Decision) (reconciler.Canonical, error)
	StartGame(ctx context.Context, order auction_client.OrderType) (reconciler.Canonical, error)
	AddPlayer(ctx context.Context, in auction_client.PlayerInput) (*models.Player, error)
	RemovePlayer(ctx context.Context, playerID string) error
}

type console struct {
	svc consoleSession
	in  io.Reader

	outMu sync.Mutex
	out   io.Writer
}

func newConsole(svc consoleSession, in io.Reader, out io.Writer) *console {
	return &console{svc: svc, in: in, out: out}
}

// render prints a summary line each time canonical state changes.
func (c *console) render(ctx context.Context) {
	updates, cancel := c.svc.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			c.println(summarize(c.svc.View()))
		}
	}
}

func (c *console) readCommands(ctx context.Context) {
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if reply := c.execute(ctx, scanner.Text()); reply != "" {
			c.println(reply)
		}
	}
}

// execute runs one console command and returns the text to show for it.
func (c *console) execute(ctx context.Context, line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}

	switch cmd := strings.ToLower(fields[0]); cmd {
	case "+10", "+50", "+100", "-10", "-50", "-100":
		n, _ := strconv.Atoi(cmd)
		pending := c.svc.AddIncrement(n)
		return fmt.Sprintf("pending +%d", pending) + admissionHint(c.svc.CheckBid())
	case "reset":
		c.svc.ResetIncrement()
		return "pending cleared"
	case "bid":
		if _, err := c.svc.Bid(ctx); err != nil {
			return "bid failed: " + errorText(err)
		}
		return "bid accepted"
	case "check":
		adm := c.svc.CheckBid()
		if adm.Allowed {
			return fmt.Sprintf("can bid %d", adm.Total)
		}
		return "cannot bid" + admissionHint(adm)
	case "refresh":
		c.svc.Refresh()
		return "refresh requested"
	case "start", "pause", "reset-timer":
		action := auction_client.TimerAction(strings.TrimSuffix(cmd, "-timer"))
		var value *float64
		if len(fields) > 1 {
			v, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return "timer value must be a number"
			}
			value = &v
		}
		if _, err := c.svc.AdminTimer(ctx, action, value); err != nil {
			return "timer failed: " + errorText(err)
		}
		return "timer " + string(action)
	case "sold", "pass":
		if _, err := c.svc.AdminDecision(ctx, auction_client.Decision(cmd)); err != nil {
			return "decision failed: " + errorText(err)
		}
		return "decision " + cmd
	case "start-game":
		order := auction_client.OrderSequential
		if len(fields) > 1 {
			order = auction_client.OrderType(strings.ToLower(fields[1]))
		}
		if _, err := c.svc.StartGame(ctx, order); err != nil {
			return "start failed: " + errorText(err)
		}
		return "game started (" + string(order) + ")"
	case "add-player":
		// add-player <name> [tank dps supp]
		if len(fields) < 2 {
			return "usage: add-player <name> [tank dps supp]"
		}
		in := auction_client.PlayerInput{Name: fields[1]}
		if len(fields) >= 5 {
			in.Tiers = models.PlayerTier{Tank: fields[2], DPS: fields[3], Supp: fields[4]}
		}
		p, err := c.svc.AddPlayer(ctx, in)
		if err != nil {
			return "add failed: " + errorText(err)
		}
		return fmt.Sprintf("added %s (%s)", p.Name, p.ID)
	case "remove-player":
		if len(fields) < 2 {
			return "usage: remove-player <id>"
		}
		if err := c.svc.RemovePlayer(ctx, fields[1]); err != nil {
			return "remove failed: " + errorText(err)
		}
		return "removed " + fields[1]
	case "view":
		return summarize(c.svc.View())
	default:
		log.Debug().Str("command", line).Msg("unknown console command")
		return "commands: +10 +50 +100 -10 -50 -100 reset check bid refresh view " +
			"start pause reset-timer sold pass start-game add-player remove-player"
	}
}

func (c *console) println(s string) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintln(c.out, s)
}

// errorText shows server refusals as the server worded them.
func errorText(err error) string {
	var apiErr *clients.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message()
	}
	return err.Error()
}

func admissionHint(adm bidding.Admission) string {
	if adm.Allowed {
		return fmt.Sprintf(" (total %d)", adm.Total)
	}
	msgs := make([]string, 0, len(adm.Reasons))
	for _, r := range adm.Reasons.List() {
		msgs = append(msgs, r.Message())
	}
	return " (" + strings.Join(msgs, "; ") + ")"
}

func summarize(v view.View) string {
	if !v.Initialized {
		return "syncing..."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", v.Phase)
	if v.CurrentPlayer != nil {
		fmt.Fprintf(&b, " %s", v.CurrentPlayer.Name)
	}
	fmt.Fprintf(&b, " bid %d", v.CurrentBid)
	if v.HighBidderName != "" {
		fmt.Fprintf(&b, " by %s", v.HighBidderName)
	}
	state := "paused"
	if v.TimerRunning {
		state = "running"
	}
	fmt.Fprintf(&b, " | %.1fs %s", v.Timer, state)
	if v.MyTeam != nil {
		fmt.Fprintf(&b, " | %s %dpt", v.MyTeam.Name, v.MyTeam.Points)
	}
	fmt.Fprintf(&b, " | queue %d", len(v.Queue))
	return b.String()
}
