package service

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// Sweepable is a store holding entries that expire
type Sweepable interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

type sweepTarget struct {
	name  string
	store Sweepable
}

// Sweeper periodically evicts expired entries from the registered stores
type Sweeper struct {
	targets  []sweepTarget
	interval time.Duration
	now      func() time.Time
}

// NewSweeper creates a new sweeper with no registered stores
func NewSweeper(interval time.Duration, now func() time.Time) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &Sweeper{interval: interval, now: now}
}

// Add registers a store under name; nil stores are ignored
func (s *Sweeper) Add(name string, store Sweepable) *Sweeper {
	if store != nil {
		s.targets = append(s.targets, sweepTarget{name: name, store: store})
	}
	return s
}

// SweepOnce runs every target once and returns how many entries each removed
func (s *Sweeper) SweepOnce(ctx context.Context) map[string]int {
	now := s.now()
	removed := make(map[string]int, len(s.targets))
	for _, target := range s.targets {
		n, err := target.store.Sweep(ctx, now)
		if err != nil {
			log.Warn("Sweep failed", "store", target.name, "error", err)
			continue
		}
		removed[target.name] = n
		if n > 0 {
			log.Debug("Swept expired entries", "store", target.name, "removed", n)
		}
	}
	return removed
}

// Run sweeps on every tick until ctx is cancelled
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}
