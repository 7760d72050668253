package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/walletauth/ports"
)

var _ ports.RateLimiter = (*MemoryLimiter)(nil)

type bucket struct {
	count       int
	windowStart time.Time
	window      time.Duration
}

// MemoryLimiter is a fixed-window counter held in process memory
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

// NewMemoryLimiter creates a limiter reading time from now
func NewMemoryLimiter(now func() time.Time) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryLimiter{
		buckets: make(map[string]*bucket),
		now:     now,
	}
}

// Allow counts a hit and reports whether the key is still within limit.
// The first hit after a window has elapsed opens a new window.
func (l *MemoryLimiter) Allow(ctx context.Context, key string, window time.Duration, limit int) (bool, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok || !now.Before(b.windowStart.Add(b.window)) {
		b = &bucket{windowStart: now, window: window}
		l.buckets[key] = b
	}
	b.count++

	return b.count <= limit, nil
}

// Sweep drops buckets whose window has closed
func (l *MemoryLimiter) Sweep(ctx context.Context, now time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, b := range l.buckets {
		if !now.Before(b.windowStart.Add(b.window)) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed, nil
}
