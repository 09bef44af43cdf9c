package identity

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "nested", "identity.yaml"))

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	want := Identity{TeamID: "t1", TeamName: "ONE", Points: 1000, AuctionID: "A1"}
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx), "clearing twice is fine")
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.yaml")
	require.NoError(t, os.WriteFile(path, []byte("team_id: [unclosed"), 0o600))

	_, err := NewFileStore(path).Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestLoadOrZero(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "identity.yaml"))
	id, err := LoadOrZero(context.Background(), store)
	require.NoError(t, err)
	assert.True(t, id.IsZero())
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "identity.yaml"))

	me, auctionID, err := Resolve(ctx, store, "")
	require.NoError(t, err)
	assert.True(t, me.IsZero())
	assert.Empty(t, auctionID)

	me, auctionID, err = Resolve(ctx, store, "A1")
	require.NoError(t, err)
	assert.True(t, me.IsZero())
	assert.Equal(t, "A1", auctionID)

	require.NoError(t, store.Save(ctx, Identity{TeamID: "t1", AuctionID: "A1"}))

	me, auctionID, err = Resolve(ctx, store, "")
	require.NoError(t, err)
	assert.Equal(t, "t1", me.TeamID)
	assert.Equal(t, "A1", auctionID, "auction adopted from the joined identity")

	_, auctionID, err = Resolve(ctx, store, "A1")
	require.NoError(t, err)
	assert.Equal(t, "A1", auctionID)

	_, _, err = Resolve(ctx, store, "B2")
	assert.ErrorIs(t, err, ErrAuctionMismatch)
}

type RedisStoreTestSuite struct {
	suite.Suite
	mr     *miniredis.Miniredis
	client *redis.Client
	store  *RedisStore
}

func (s *RedisStoreTestSuite) SetupTest() {
	mr, err := miniredis.Run()
	s.Require().NoError(err)
	s.mr = mr

	s.client = redis.NewClient(&redis.Options{Addr: s.mr.Addr()})

	store, err := NewRedisStore(context.Background(), s.client, "A1")
	s.Require().NoError(err)
	s.store = store
}

func (s *RedisStoreTestSuite) TearDownTest() {
	s.client.Close()
	s.mr.Close()
}

func TestRedisStoreTestSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreTestSuite))
}

func (s *RedisStoreTestSuite) TestSaveAndLoad() {
	ctx := context.Background()
	want := Identity{TeamID: "t9", TeamName: "TEAM NINE", Points: 800, AuctionID: "A1"}

	s.Require().NoError(s.store.Save(ctx, want))
	s.True(s.mr.Exists("auction:identity:A1"))

	got, err := s.store.Load(ctx)
	s.Require().NoError(err)
	s.Equal(want, got)
}

func (s *RedisStoreTestSuite) TestLoadMissing() {
	_, err := s.store.Load(context.Background())
	s.ErrorIs(err, ErrNotFound)
}

func (s *RedisStoreTestSuite) TestClear() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, Identity{TeamID: "t1"}))
	s.Require().NoError(s.store.Clear(ctx))

	_, err := s.store.Load(ctx)
	s.ErrorIs(err, ErrNotFound)
}

func (s *RedisStoreTestSuite) TestAuctionsAreIsolated() {
	ctx := context.Background()
	other, err := NewRedisStore(ctx, s.client, "B2")
	s.Require().NoError(err)

	s.Require().NoError(s.store.Save(ctx, Identity{TeamID: "t1"}))
	_, err = other.Load(ctx)
	s.ErrorIs(err, ErrNotFound)
}

func (s *RedisStoreTestSuite) TestUnreachableRedis() {
	s.mr.Close()
	_, err := NewRedisStore(context.Background(), s.client, "A1")
	s.Error(err)
}

func (s *RedisStoreTestSuite) TestUnscopedStoreFollowsLastSave() {
	ctx := context.Background()
	unscoped, err := NewRedisStore(ctx, s.client, "")
	s.Require().NoError(err)

	_, err = unscoped.Load(ctx)
	s.ErrorIs(err, ErrNotFound)

	want := Identity{TeamID: "t9", AuctionID: "A1"}
	s.Require().NoError(unscoped.Save(ctx, want))
	s.True(s.mr.Exists("auction:identity:A1"))

	got, err := s.store.Load(ctx)
	s.Require().NoError(err)
	s.Equal(want, got, "scoped store reads what the unscoped one wrote")

	got, err = unscoped.Load(ctx)
	s.Require().NoError(err)
	s.Equal(want, got)
}

func (s *RedisStoreTestSuite) TestSaveRejectsOtherAuction() {
	err := s.store.Save(context.Background(), Identity{TeamID: "t1", AuctionID: "B2"})
	s.ErrorIs(err, ErrAuctionMismatch)
	s.False(s.mr.Exists("auction:identity:B2"))
}
