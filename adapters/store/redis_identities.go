package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
	"github.com/redis/go-redis/v9"
)

const (
	fieldCreatedAt    = "created_at"
	fieldLastLoginAt  = "last_login_at"
	fieldLinked       = "linked"
	fieldEmail        = "email"
	fieldDisplayName  = "display_name"
	fieldLastLinkedAt = "last_linked_at"
)

// RedisIdentityStore is a Redis implementation of the IdentityStore interface.
// Wallets are hashes, identities are a hash plus a set of wallet addresses.
type RedisIdentityStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisIdentityStore creates a new Redis identity store
func NewRedisIdentityStore(client redis.UniversalClient) ports.IdentityStore {
	return &RedisIdentityStore{
		client: client,
		prefix: "walletauth:",
	}
}

func (s *RedisIdentityStore) walletKey(address string) string {
	return s.prefix + "wallet:" + address
}

func (s *RedisIdentityStore) identityKey(identityID string) string {
	return s.prefix + "identity:" + identityID
}

func (s *RedisIdentityStore) walletSetKey(identityID string) string {
	return s.prefix + "identity:" + identityID + ":wallets"
}

// TouchWallet creates the wallet hash if needed and stamps the login time
func (s *RedisIdentityStore) TouchWallet(ctx context.Context, address string, now time.Time) (*core.WalletIdentity, error) {
	key := s.walletKey(address)
	stamp := strconv.FormatInt(toMillis(now), 10)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, fieldCreatedAt, stamp)
		pipe.HSet(ctx, key, fieldLastLoginAt, stamp)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to touch wallet: %v", core.ErrStorageUnavailable, err)
	}

	return s.GetWallet(ctx, address)
}

// GetWallet loads the wallet hash
func (s *RedisIdentityStore) GetWallet(ctx context.Context, address string) (*core.WalletIdentity, error) {
	fields, err := s.client.HGetAll(ctx, s.walletKey(address)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load wallet: %v", core.ErrStorageUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, core.ErrNotFound
	}

	return &core.WalletIdentity{
		Address:          address,
		LinkedIdentityID: fields[fieldLinked],
		CreatedAt:        parseMillis(fields[fieldCreatedAt]),
		LastLoginAt:      parseMillis(fields[fieldLastLoginAt]),
	}, nil
}

// LinkWallet sets the link with HSETNX so a concurrent link to another identity cannot overwrite it
func (s *RedisIdentityStore) LinkWallet(ctx context.Context, address, identityID string, now time.Time) (*core.WalletIdentity, error) {
	key := s.walletKey(address)
	stamp := strconv.FormatInt(toMillis(now), 10)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, fieldCreatedAt, stamp)
		pipe.HSetNX(ctx, key, fieldLinked, identityID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to link wallet: %v", core.ErrStorageUnavailable, err)
	}

	wallet, err := s.GetWallet(ctx, address)
	if err != nil {
		return nil, err
	}
	if wallet.LinkedIdentityID != identityID {
		return nil, core.ErrAlreadyLinked
	}

	return wallet, nil
}

// AttachWallet upserts the identity hash and adds the wallet to its set
func (s *RedisIdentityStore) AttachWallet(ctx context.Context, profile core.FederatedProfile, address string, now time.Time) (*core.FederatedIdentity, error) {
	key := s.identityKey(profile.ID)
	stamp := strconv.FormatInt(toMillis(now), 10)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, fieldCreatedAt, stamp)
		pipe.HSet(ctx, key, fieldLastLinkedAt, stamp)
		if profile.Email != "" {
			pipe.HSet(ctx, key, fieldEmail, profile.Email)
		}
		if profile.DisplayName != "" {
			pipe.HSet(ctx, key, fieldDisplayName, profile.DisplayName)
		}
		pipe.SAdd(ctx, s.walletSetKey(profile.ID), address)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to attach wallet: %v", core.ErrStorageUnavailable, err)
	}

	return s.GetIdentity(ctx, profile.ID)
}

// GetIdentity loads the identity hash and its wallet set
func (s *RedisIdentityStore) GetIdentity(ctx context.Context, identityID string) (*core.FederatedIdentity, error) {
	var (
		fieldsCmd  *redis.MapStringStringCmd
		membersCmd *redis.StringSliceCmd
	)
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		fieldsCmd = pipe.HGetAll(ctx, s.identityKey(identityID))
		membersCmd = pipe.SMembers(ctx, s.walletSetKey(identityID))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load identity: %v", core.ErrStorageUnavailable, err)
	}

	fields := fieldsCmd.Val()
	if len(fields) == 0 {
		return nil, core.ErrNotFound
	}
	wallets := membersCmd.Val()
	sort.Strings(wallets)

	return &core.FederatedIdentity{
		ID:           identityID,
		Wallets:      wallets,
		Email:        fields[fieldEmail],
		DisplayName:  fields[fieldDisplayName],
		CreatedAt:    parseMillis(fields[fieldCreatedAt]),
		LastLinkedAt: parseMillis(fields[fieldLastLinkedAt]),
	}, nil
}

func parseMillis(value string) time.Time {
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return fromMillis(ms)
}
