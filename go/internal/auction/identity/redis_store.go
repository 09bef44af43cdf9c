package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "auction:identity:"
	// lastKey holds the auction id of the most recent save, for stores opened
	// before the auction is known.
	lastKey = keyPrefix + "last"
)

// RedisStore shares one identity between several processes, e.g. an overlay
// running next to the bidding client
type RedisStore struct {
	client    *redis.Client
	auctionID string
}

// NewRedisStore keys the identity by auction so one redis can serve several
// auctions. With an empty auctionID the store follows the auction of the last
// save. The connection is checked up front.
func NewRedisStore(ctx context.Context, client *redis.Client, auctionID string) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisStore{client: client, auctionID: auctionID}, nil
}

func (s *RedisStore) key(ctx context.Context) (string, error) {
	if s.auctionID != "" {
		return keyPrefix + s.auctionID, nil
	}
	last, err := s.client.Get(ctx, lastKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to load last auction: %w", err)
	}
	return keyPrefix + last, nil
}

func (s *RedisStore) Load(ctx context.Context) (Identity, error) {
	key, err := s.key(ctx)
	if err != nil {
		return Identity{}, err
	}
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Identity{}, ErrNotFound
		}
		return Identity{}, fmt.Errorf("failed to load identity: %w", err)
	}

	var id Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return Identity{}, fmt.Errorf("failed to unmarshal identity: %w", err)
	}
	return id, nil
}

// Save writes the identity under its auction and records that auction as the
// last one joined.
func (s *RedisStore) Save(ctx context.Context, id Identity) error {
	auctionID := s.auctionID
	if auctionID == "" {
		auctionID = id.AuctionID
	}
	if s.auctionID != "" && id.AuctionID != "" && id.AuctionID != s.auctionID {
		return fmt.Errorf("%w: store is for %q, identity is for %q", ErrAuctionMismatch, s.auctionID, id.AuctionID)
	}

	raw, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, keyPrefix+auctionID, raw, 0)
		if auctionID != "" {
			pipe.Set(ctx, lastKey, auctionID, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save identity: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	key, err := s.key(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to clear identity: %w", err)
	}
	return nil
}
