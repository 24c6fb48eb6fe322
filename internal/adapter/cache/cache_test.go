package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRateCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	c := NewRedisRateCache(rdb, time.Minute)

	_, ok, err := c.Get(ctx, "rates:fee_bps")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "rates:fee_bps", 500))

	v, ok, err := c.Get(ctx, "rates:fee_bps")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(500), v)
}

func TestRateCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	c := NewRedisRateCache(rdb, time.Minute)

	require.NoError(t, c.Set(ctx, "rates:tax_bps:US", 1000))
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "rates:tax_bps:US")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRateCachePoisonedEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	c := NewRedisRateCache(rdb, time.Minute)

	mr.Set("rates:fee_bps", "not-a-number")

	_, ok, err := c.Get(ctx, "rates:fee_bps")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIdempotencyTryLockWinsOnce(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	s := NewRedisIdempotencyStore(rdb, time.Hour)

	ok, err := s.TryLock(ctx, "org-1", "key-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TryLock(ctx, "org-1", "key-1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Other scopes are independent.
	ok, err = s.TryLock(ctx, "org-2", "key-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIdempotencyRememberRecall(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	s := NewRedisIdempotencyStore(rdb, time.Hour)

	_, ok, err := s.Recall(ctx, "org-1", "key-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Remember(ctx, "org-1", "key-1", "order-42"))

	v, ok, err := s.Recall(ctx, "org-1", "key-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "order-42", v)
}

func TestIdempotencyLockExpires(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	s := NewRedisIdempotencyStore(rdb, time.Minute)

	ok, err := s.TryLock(ctx, "org-1", "key-1")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	ok, err = s.TryLock(ctx, "org-1", "key-1")
	require.NoError(t, err)
	assert.True(t, ok)
}
