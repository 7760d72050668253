package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

// MemoryChallengeStore is an in-memory implementation of the ChallengeStore interface
type MemoryChallengeStore struct {
	challenges map[string]core.Challenge
	mu         sync.Mutex
}

// NewMemoryChallengeStore creates a new in-memory challenge store
func NewMemoryChallengeStore() ports.ChallengeStore {
	return &MemoryChallengeStore{
		challenges: make(map[string]core.Challenge),
	}
}

// Put stores the challenge, overwriting any previous one for the address
func (s *MemoryChallengeStore) Put(ctx context.Context, challenge *core.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.challenges[challenge.Address] = *challenge
	return nil
}

// Take removes and returns the challenge for the address
func (s *MemoryChallengeStore) Take(ctx context.Context, address string) (*core.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[address]
	if !ok {
		return nil, core.ErrChallengeNotFound
	}
	delete(s.challenges, address)

	return &challenge, nil
}

// Sweep evicts expired challenges
func (s *MemoryChallengeStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for address, challenge := range s.challenges {
		if !now.Before(challenge.ExpiresAt) {
			delete(s.challenges, address)
			removed++
		}
	}

	return removed, nil
}
