package auction_client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/chzzk-auction/auctionsync/go/clients"
	"github.com/chzzk-auction/auctionsync/go/internal/models"
)

func (c *AuctionClient) ListTeams(ctx context.Context) ([]models.Team, error) {
	body, err := c.Get(ctx, TeamsEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to get teams: %w", err)
	}
	return clients.DecodeJSON[[]models.Team](body)
}

// UpdateTeamPoints overwrites a team's budget (admin only).
func (c *AuctionClient) UpdateTeamPoints(ctx context.Context, teamID string, points int) (*models.Team, error) {
	endpoint := fmt.Sprintf(TeamPointsEndpoint, url.PathEscape(teamID))
	body, err := c.Patch(ctx, endpoint, map[string]int{"points": points})
	if err != nil {
		return nil, fmt.Errorf("failed to update team points: %w", err)
	}

	team, err := clients.DecodeJSON[models.Team](body)
	if err != nil {
		return nil, err
	}
	return &team, nil
}
