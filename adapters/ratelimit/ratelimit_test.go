package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterFixedWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "login:10.0.0.1", time.Minute, 3)
		require.NoError(t, err)
		assert.True(t, ok, "hit %d", i+1)
	}

	ok, err := limiter.Allow(ctx, "login:10.0.0.1", time.Minute, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	// other keys have their own window
	ok, err = limiter.Allow(ctx, "login:10.0.0.2", time.Minute, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(time.Minute)
	ok, err = limiter.Allow(ctx, "login:10.0.0.1", time.Minute, 3)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLimiterSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(func() time.Time { return now })

	_, _ = limiter.Allow(ctx, "short", time.Second, 1)
	_, _ = limiter.Allow(ctx, "long", time.Hour, 1)

	removed, err := limiter.Sweep(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Len(t, limiter.buckets, 1)
}

func TestRedisLimiterFixedWindow(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewRedisLimiter(client)

	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, "otp:10.0.0.1", 15*time.Minute, 2)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := limiter.Allow(ctx, "otp:10.0.0.1", 15*time.Minute, 2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Greater(t, mr.TTL(redisKeyPrefix+"otp:10.0.0.1"), time.Duration(0))

	mr.FastForward(15 * time.Minute)

	ok, err = limiter.Allow(ctx, "otp:10.0.0.1", 15*time.Minute, 2)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiterWindowOpensOnFirstHit(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewRedisLimiter(client)
	key := redisKeyPrefix + "login:10.0.0.1"

	_, err := limiter.Allow(ctx, "login:10.0.0.1", time.Minute, 5)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL(key))

	// later hits keep the original deadline
	mr.FastForward(40 * time.Second)
	_, err = limiter.Allow(ctx, "login:10.0.0.1", time.Minute, 5)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, mr.TTL(key))

	count, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "2", count)
}

func TestRedisLimiterUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })

	_, err := NewRedisLimiter(client).Allow(context.Background(), "k", time.Minute, 1)
	assert.Error(t, err)
}
