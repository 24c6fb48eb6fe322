package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/openbounty/commerce-api/internal/usecase"
	"github.com/redis/go-redis/v9"
)

// RedisRateCache is the time-boxed cache in front of the fee/tax rate
// lookups. Entries expire after ttl so a configuration change propagates
// without a restart.
type RedisRateCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisRateCache(rdb *redis.Client, ttl time.Duration) *RedisRateCache {
	return &RedisRateCache{rdb: rdb, ttl: ttl}
}

func (c *RedisRateCache) Get(ctx context.Context, key string) (int64, bool, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		// Poisoned entry; treat as a miss.
		return 0, false, nil
	}
	return n, true, nil
}

func (c *RedisRateCache) Set(ctx context.Context, key string, v int64) error {
	return c.rdb.Set(ctx, key, strconv.FormatInt(v, 10), c.ttl).Err()
}

var _ usecase.RateCache = (*RedisRateCache)(nil)
