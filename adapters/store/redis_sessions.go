package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
	"github.com/redis/go-redis/v9"
)

// RedisSessionRegistry is a Redis implementation of the SessionRegistry interface
type RedisSessionRegistry struct {
	client redis.UniversalClient
	prefix string
}

type sessionRecord struct {
	ID               string `json:"id"`
	Subject          string `json:"sub"`
	Kind             string `json:"kind"`
	Address          string `json:"addr,omitempty"`
	Email            string `json:"email,omitempty"`
	LinkedIdentityID string `json:"lid,omitempty"`
	IssuedAt         int64  `json:"iat"`
	ExpiresAt        int64  `json:"exp"`
}

// NewRedisSessionRegistry creates a new Redis session registry
func NewRedisSessionRegistry(client redis.UniversalClient) ports.SessionRegistry {
	return &RedisSessionRegistry{
		client: client,
		prefix: "walletauth:session:",
	}
}

// key hashes the token so raw bearer tokens never appear in the keyspace
func (s *RedisSessionRegistry) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return s.prefix + hex.EncodeToString(sum[:])
}

// Put registers the session until its expiry
func (s *RedisSessionRegistry) Put(ctx context.Context, session *core.Session) error {
	payload, err := json.Marshal(sessionRecord{
		ID:               session.ID,
		Subject:          session.Subject,
		Kind:             string(session.Kind),
		Address:          session.Address,
		Email:            session.Email,
		LinkedIdentityID: session.LinkedIdentityID,
		IssuedAt:         toMillis(session.IssuedAt),
		ExpiresAt:        toMillis(session.ExpiresAt),
	})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	ttl := session.ExpiresAt.Sub(session.IssuedAt)
	if err := s.client.Set(ctx, s.key(session.Token), payload, ttl).Err(); err != nil {
		return fmt.Errorf("%w: failed to register session: %v", core.ErrStorageUnavailable, err)
	}

	return nil
}

// Get looks up a registered session
func (s *RedisSessionRegistry) Get(ctx context.Context, token string) (*core.Session, error) {
	payload, err := s.client.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrSessionInvalid
		}
		return nil, fmt.Errorf("%w: failed to load session: %v", core.ErrStorageUnavailable, err)
	}

	var record sessionRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	return &core.Session{
		Token:            token,
		ID:               record.ID,
		Subject:          record.Subject,
		Kind:             core.SubjectKind(record.Kind),
		Address:          record.Address,
		Email:            record.Email,
		LinkedIdentityID: record.LinkedIdentityID,
		IssuedAt:         fromMillis(record.IssuedAt),
		ExpiresAt:        fromMillis(record.ExpiresAt),
	}, nil
}

// Delete removes the session
func (s *RedisSessionRegistry) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("%w: failed to revoke session: %v", core.ErrStorageUnavailable, err)
	}
	return nil
}

// Sweep is a no-op; Redis expires session keys on its own
func (s *RedisSessionRegistry) Sweep(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}
