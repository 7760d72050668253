package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
	"github.com/redis/go-redis/v9"
)

// RedisChallengeStore is a Redis implementation of the ChallengeStore interface
type RedisChallengeStore struct {
	client redis.UniversalClient
	prefix string
}

type challengeRecord struct {
	Address   string `json:"address"`
	Nonce     string `json:"nonce"`
	Message   string `json:"message"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// NewRedisChallengeStore creates a new Redis challenge store
func NewRedisChallengeStore(client redis.UniversalClient) ports.ChallengeStore {
	return &RedisChallengeStore{
		client: client,
		prefix: "walletauth:challenge:",
	}
}

// Put stores the challenge with a TTL matching its lifetime
func (s *RedisChallengeStore) Put(ctx context.Context, challenge *core.Challenge) error {
	payload, err := json.Marshal(challengeRecord{
		Address:   challenge.Address,
		Nonce:     challenge.Nonce,
		Message:   challenge.Message,
		IssuedAt:  toMillis(challenge.IssuedAt),
		ExpiresAt: toMillis(challenge.ExpiresAt),
	})
	if err != nil {
		return fmt.Errorf("failed to encode challenge: %w", err)
	}

	ttl := challenge.ExpiresAt.Sub(challenge.IssuedAt)
	if err := s.client.Set(ctx, s.prefix+challenge.Address, payload, ttl).Err(); err != nil {
		return fmt.Errorf("%w: failed to store challenge: %v", core.ErrStorageUnavailable, err)
	}

	return nil
}

// Take reads and deletes the challenge in one round trip
func (s *RedisChallengeStore) Take(ctx context.Context, address string) (*core.Challenge, error) {
	payload, err := s.client.GetDel(ctx, s.prefix+address).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("%w: failed to take challenge: %v", core.ErrStorageUnavailable, err)
	}

	var record challengeRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("failed to decode challenge: %w", err)
	}

	return &core.Challenge{
		Address:   record.Address,
		Nonce:     record.Nonce,
		Message:   record.Message,
		IssuedAt:  fromMillis(record.IssuedAt),
		ExpiresAt: fromMillis(record.ExpiresAt),
	}, nil
}

// Sweep is a no-op; Redis expires challenge keys on its own
func (s *RedisChallengeStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}
