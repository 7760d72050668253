package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

// MemoryCredentialStore keeps credentials in process memory.
// Used by tests and DEV_MODE when no database is configured.
type MemoryCredentialStore struct {
	byEmail map[string]core.Credential
	byPhone map[string]string // phone -> email
	mu      sync.RWMutex
}

// NewMemoryCredentialStore creates a new in-memory credential store
func NewMemoryCredentialStore() ports.CredentialStore {
	return &MemoryCredentialStore{
		byEmail: make(map[string]core.Credential),
		byPhone: make(map[string]string),
	}
}

// Create inserts the credential if neither its email nor phone is taken
func (s *MemoryCredentialStore) Create(ctx context.Context, credential *core.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[credential.Email]; ok {
		return core.ErrEmailTaken
	}
	if _, ok := s.byPhone[credential.Phone]; ok {
		return core.ErrPhoneTaken
	}
	s.byEmail[credential.Email] = *credential
	s.byPhone[credential.Phone] = credential.Email

	return nil
}

// GetByEmail looks up a credential by normalized email
func (s *MemoryCredentialStore) GetByEmail(ctx context.Context, email string) (*core.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	credential, ok := s.byEmail[email]
	if !ok {
		return nil, core.ErrAccountNotFound
	}

	return &credential, nil
}

// GetByPhone looks up a credential by normalized phone
func (s *MemoryCredentialStore) GetByPhone(ctx context.Context, phone string) (*core.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email, ok := s.byPhone[phone]
	if !ok {
		return nil, core.ErrAccountNotFound
	}
	credential := s.byEmail[email]

	return &credential, nil
}

// UpdatePassword replaces the stored password hash
func (s *MemoryCredentialStore) UpdatePassword(ctx context.Context, email, passwordHash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	credential, ok := s.byEmail[email]
	if !ok {
		return core.ErrAccountNotFound
	}
	credential.PasswordHash = passwordHash
	credential.UpdatedAt = now
	s.byEmail[email] = credential

	return nil
}

// TouchLogin records a successful login
func (s *MemoryCredentialStore) TouchLogin(ctx context.Context, email string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	credential, ok := s.byEmail[email]
	if !ok {
		return core.ErrAccountNotFound
	}
	credential.LastLoginAt = &now
	s.byEmail[email] = credential

	return nil
}

// MemoryOtpStore keeps outstanding reset codes in process memory
type MemoryOtpStore struct {
	challenges map[string]core.OtpChallenge
	mu         sync.Mutex
}

// NewMemoryOtpStore creates a new in-memory OTP store
func NewMemoryOtpStore() ports.OtpStore {
	return &MemoryOtpStore{
		challenges: make(map[string]core.OtpChallenge),
	}
}

// Save replaces the outstanding challenge for the phone
func (s *MemoryOtpStore) Save(ctx context.Context, challenge *core.OtpChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.challenges[challenge.Phone] = *challenge
	return nil
}

// Get returns the outstanding challenge for the phone
func (s *MemoryOtpStore) Get(ctx context.Context, phone string) (*core.OtpChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[phone]
	if !ok {
		return nil, core.ErrOtpNotFound
	}

	return &challenge, nil
}

// ReserveAttempt counts an attempt while the challenge is live and below maxAttempts
func (s *MemoryOtpStore) ReserveAttempt(ctx context.Context, phone string, maxAttempts int, now time.Time) (*core.OtpChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[phone]
	switch {
	case !ok:
		return nil, core.ErrOtpNotFound
	case !now.Before(challenge.ExpiresAt):
		return nil, core.ErrOtpExpired
	case challenge.Attempts >= maxAttempts:
		return nil, core.ErrTooManyAttempts
	}
	challenge.Attempts++
	s.challenges[phone] = challenge

	return &challenge, nil
}

// Delete removes the challenge
func (s *MemoryOtpStore) Delete(ctx context.Context, phone string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.challenges[phone]
	delete(s.challenges, phone)

	return ok, nil
}

// Sweep evicts expired challenges
func (s *MemoryOtpStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for phone, challenge := range s.challenges {
		if !now.Before(challenge.ExpiresAt) {
			delete(s.challenges, phone)
			removed++
		}
	}

	return removed, nil
}
