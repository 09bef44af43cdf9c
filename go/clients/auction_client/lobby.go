package auction_client

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/chzzk-auction/auctionsync/go/clients"
	"github.com/chzzk-auction/auctionsync/go/internal/models"
)

// AuctionStatus is the server-side lifecycle of an auction
type AuctionStatus string

const (
	AuctionDraft AuctionStatus = "DRAFT"
	AuctionLive  AuctionStatus = "LIVE"
	AuctionEnded AuctionStatus = "ENDED"
)

type Auction struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Status     AuctionStatus `json:"status"`
	InviteCode string        `json:"inviteCode"`
	// CreatedAt is kept as sent: the server emits naive ISO timestamps without a zone.
	CreatedAt string `json:"createdAt"`
}

// Ended reports whether the auction can no longer be joined or bid in.
func (a Auction) Ended() bool {
	return a.Status == AuctionEnded
}

type InviteValidation struct {
	Valid     bool   `json:"valid"`
	AuctionID string `json:"auctionId,omitempty"`
}

type JoinLobbyRequest struct {
	TeamName   string            `json:"teamName"`
	Captain    string            `json:"captain"`
	Tiers      models.PlayerTier `json:"tiers"`
	InviteCode string            `json:"inviteCode"`
}

func (c *AuctionClient) GetAuction(ctx context.Context, auctionID string) (*Auction, error) {
	body, err := c.Get(ctx, fmt.Sprintf(AuctionEndpoint, url.PathEscape(auctionID)))
	if err != nil {
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}

	auction, err := clients.DecodeJSON[Auction](body)
	if err != nil {
		return nil, err
	}
	return &auction, nil
}

// ValidateInvite checks an invite code. Codes are case-insensitive.
func (c *AuctionClient) ValidateInvite(ctx context.Context, code string) (*InviteValidation, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return &InviteValidation{Valid: false}, nil
	}

	body, err := c.Get(ctx, fmt.Sprintf(InviteEndpoint, url.PathEscape(code)))
	if err != nil {
		return nil, fmt.Errorf("failed to validate invite: %w", err)
	}

	validation, err := clients.DecodeJSON[InviteValidation](body)
	if err != nil {
		return nil, err
	}
	return &validation, nil
}

// JoinLobby registers a captain's team and returns it as created by the server.
func (c *AuctionClient) JoinLobby(ctx context.Context, req JoinLobbyRequest) (*models.Team, error) {
	body, err := c.Post(ctx, JoinLobbyEndpoint, req)
	if err != nil {
		return nil, fmt.Errorf("failed to join lobby: %w", err)
	}

	team, err := clients.DecodeJSON[models.Team](body)
	if err != nil {
		return nil, err
	}
	return &team, nil
}
