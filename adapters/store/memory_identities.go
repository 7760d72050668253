package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

type memoryIdentity struct {
	core.FederatedIdentity
	wallets map[string]struct{}
}

// MemoryIdentityStore is an in-memory implementation of the IdentityStore interface
type MemoryIdentityStore struct {
	wallets    map[string]core.WalletIdentity
	identities map[string]*memoryIdentity
	mu         sync.RWMutex
}

// NewMemoryIdentityStore creates a new in-memory identity store
func NewMemoryIdentityStore() ports.IdentityStore {
	return &MemoryIdentityStore{
		wallets:    make(map[string]core.WalletIdentity),
		identities: make(map[string]*memoryIdentity),
	}
}

// TouchWallet records a successful sign-in for the wallet
func (s *MemoryIdentityStore) TouchWallet(ctx context.Context, address string, now time.Time) (*core.WalletIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wallet := s.walletLocked(address, now)
	wallet.LastLoginAt = now
	s.wallets[address] = wallet

	return &wallet, nil
}

// GetWallet returns the wallet record
func (s *MemoryIdentityStore) GetWallet(ctx context.Context, address string) (*core.WalletIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wallet, ok := s.wallets[address]
	if !ok {
		return nil, core.ErrNotFound
	}

	return &wallet, nil
}

// LinkWallet links the wallet to the identity unless it is linked elsewhere
func (s *MemoryIdentityStore) LinkWallet(ctx context.Context, address, identityID string, now time.Time) (*core.WalletIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wallet := s.walletLocked(address, now)
	if wallet.LinkedIdentityID != "" && wallet.LinkedIdentityID != identityID {
		return nil, core.ErrAlreadyLinked
	}
	wallet.LinkedIdentityID = identityID
	s.wallets[address] = wallet

	return &wallet, nil
}

// AttachWallet adds the wallet to the identity's wallet set
func (s *MemoryIdentityStore) AttachWallet(ctx context.Context, profile core.FederatedProfile, address string, now time.Time) (*core.FederatedIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[profile.ID]
	if !ok {
		identity = &memoryIdentity{
			FederatedIdentity: core.FederatedIdentity{ID: profile.ID, CreatedAt: now},
			wallets:           make(map[string]struct{}),
		}
		s.identities[profile.ID] = identity
	}
	if profile.Email != "" {
		identity.Email = profile.Email
	}
	if profile.DisplayName != "" {
		identity.DisplayName = profile.DisplayName
	}
	identity.LastLinkedAt = now
	identity.wallets[address] = struct{}{}

	return identity.snapshot(), nil
}

// GetIdentity returns the federated identity
func (s *MemoryIdentityStore) GetIdentity(ctx context.Context, identityID string) (*core.FederatedIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.identities[identityID]
	if !ok {
		return nil, core.ErrNotFound
	}

	return identity.snapshot(), nil
}

func (s *MemoryIdentityStore) walletLocked(address string, now time.Time) core.WalletIdentity {
	wallet, ok := s.wallets[address]
	if !ok {
		wallet = core.WalletIdentity{Address: address, CreatedAt: now}
	}
	return wallet
}

func (i *memoryIdentity) snapshot() *core.FederatedIdentity {
	out := i.FederatedIdentity
	out.Wallets = make([]string, 0, len(i.wallets))
	for address := range i.wallets {
		out.Wallets = append(out.Wallets, address)
	}
	sort.Strings(out.Wallets)
	return &out
}
