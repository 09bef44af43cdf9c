package auction_client

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/chzzk-auction/auctionsync/go/clients"
	"github.com/chzzk-auction/auctionsync/go/internal/models"
)

// PlayerInput describes a player to register. ID may be empty; the server then
// assigns one.
type PlayerInput struct {
	ID    string            `json:"id,omitempty"`
	Name  string            `json:"name"`
	Tiers models.PlayerTier `json:"tiers"`
}

func (c *AuctionClient) ListPlayers(ctx context.Context) ([]models.Player, error) {
	body, err := c.Get(ctx, PlayersEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to get players: %w", err)
	}
	return clients.DecodeJSON[[]models.Player](body)
}

// CreatePlayer adds a player before the auction starts. Admin only.
func (c *AuctionClient) CreatePlayer(ctx context.Context, in PlayerInput) (*models.Player, error) {
	if in.Name == "" {
		return nil, errors.New("player name is required")
	}
	body, err := c.Post(ctx, PlayersEndpoint, in)
	if err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}

	player, err := clients.DecodeJSON[models.Player](body)
	if err != nil {
		return nil, err
	}
	return &player, nil
}

// DeletePlayer removes a player before the auction starts. Admin only.
func (c *AuctionClient) DeletePlayer(ctx context.Context, playerID string) error {
	if _, err := c.Delete(ctx, fmt.Sprintf(PlayerEndpoint, url.PathEscape(playerID))); err != nil {
		return fmt.Errorf("failed to delete player: %w", err)
	}
	return nil
}
