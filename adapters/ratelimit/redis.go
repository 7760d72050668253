package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
	"github.com/redis/go-redis/v9"
)

var _ ports.RateLimiter = (*RedisLimiter)(nil)

const redisKeyPrefix = "walletauth:rate:"

// RedisLimiter is a fixed-window counter shared by every instance using the same redis
type RedisLimiter struct {
	client redis.UniversalClient
}

// NewRedisLimiter creates a new limiter keeping its counters in redis
func NewRedisLimiter(client redis.UniversalClient) *RedisLimiter {
	return &RedisLimiter{client: client}
}

// Allow counts a hit against key. The window opens with the first hit and the counter never exists without its TTL.
func (l *RedisLimiter) Allow(ctx context.Context, key string, window time.Duration, limit int) (bool, error) {
	redisKey := redisKeyPrefix + key

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, redisKey, 0, window)
		incr = pipe.Incr(ctx, redisKey)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: rate limit counter: %v", core.ErrStorageUnavailable, err)
	}

	return incr.Val() <= int64(limit), nil
}

// Sweep is a no-op; windows expire through key TTLs
func (l *RedisLimiter) Sweep(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}
