package snapshot

import (
	"github.com/chzzk-auction/auctionsync/go/internal/models"
)

// Snapshot is a full pull of the auction: teams, players and state together
type Snapshot struct {
	Teams   []models.Team
	Players []models.Player
	State   models.GameState
}
