package ports

import (
	"context"
	"time"
)

// RateLimiter is a fixed-window request counter
type RateLimiter interface {
	// Allow counts a hit for key and reports whether it is within limit for the current window
	Allow(ctx context.Context, key string, window time.Duration, limit int) (bool, error)
}
