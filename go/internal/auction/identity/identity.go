package identity

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no identity has been saved yet
	ErrNotFound = errors.New("identity not found")
	// ErrAuctionMismatch means the saved team belongs to another auction
	ErrAuctionMismatch = errors.New("identity belongs to another auction")
)

// Identity is the team this client joined as. It is written by the join flow
// and only read everywhere else.
type Identity struct {
	TeamID    string `json:"teamId" yaml:"team_id"`
	TeamName  string `json:"teamName" yaml:"team_name"`
	Points    int    `json:"points" yaml:"points"`
	AuctionID string `json:"auctionId,omitempty" yaml:"auction_id,omitempty"`
}

// IsZero reports whether no team has been joined.
func (i Identity) IsZero() bool {
	return i.TeamID == ""
}

// Store persists the local identity
type Store interface {
	Load(ctx context.Context) (Identity, error)
	Save(ctx context.Context, id Identity) error
	Clear(ctx context.Context) error
}

// LoadOrZero returns the saved identity, or the zero identity when none exists.
func LoadOrZero(ctx context.Context, s Store) (Identity, error) {
	id, err := s.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		return Identity{}, nil
	}
	return id, err
}

// Resolve loads the saved identity and settles which auction to follow. An empty
// auctionID adopts the identity's auction; two different non-empty ids are an
// error rather than a silent switch.
func Resolve(ctx context.Context, s Store, auctionID string) (Identity, string, error) {
	me, err := LoadOrZero(ctx, s)
	if err != nil {
		return Identity{}, "", err
	}
	switch {
	case me.AuctionID == "":
	case auctionID == "":
		auctionID = me.AuctionID
	case auctionID != me.AuctionID:
		return Identity{}, "", fmt.Errorf("%w: configured %q, joined %q", ErrAuctionMismatch, auctionID, me.AuctionID)
	}
	return me, auctionID, nil
}
