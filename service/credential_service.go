package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

// LoginResult is an email session and the account it belongs to
type LoginResult struct {
	Session    *core.Session
	Credential *core.Credential
}

// CredentialService registers and signs in email/password accounts
type CredentialService struct {
	credentials ports.CredentialStore
	hasher      ports.Hasher
	sessions    *SessionManager
	now         func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewCredentialService creates the email account service.
// A nil store makes every call fail with core.ErrStorageUnavailable.
func NewCredentialService(credentials ports.CredentialStore, hasher ports.Hasher, sessions *SessionManager, now func() time.Time) *CredentialService {
	if now == nil {
		now = time.Now
	}
	return &CredentialService{
		credentials: credentials,
		hasher:      hasher,
		sessions:    sessions,
		now:         now,
	}
}

// Register creates an account. Email and phone must both be unused.
func (s *CredentialService) Register(ctx context.Context, email, password, phone string) (_ *core.Credential, err error) {
	ctx, span := tracer.Start(ctx, "CredentialService.Register")
	defer func() { endSpan(span, err) }()

	if s.credentials == nil {
		return nil, core.ErrStorageUnavailable
	}
	if email == "" || password == "" || phone == "" {
		return nil, core.ErrMissingFields
	}

	email, err = NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	phone, err = NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	// early field-specific answers; the insert below stays the authority
	if err := s.ensureUnused(ctx, s.credentials.GetByEmail, email, core.ErrEmailTaken); err != nil {
		return nil, err
	}
	if err := s.ensureUnused(ctx, s.credentials.GetByPhone, phone, core.ErrPhoneTaken); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	credential := &core.Credential{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Phone:        phone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.credentials.Create(ctx, credential); err != nil {
		return nil, err
	}

	log.Info("Email account registered", "id", credential.ID)
	return credential, nil
}

func (s *CredentialService) ensureUnused(ctx context.Context, lookup func(context.Context, string) (*core.Credential, error), value string, taken error) error {
	_, err := lookup(ctx, value)
	switch {
	case err == nil:
		return taken
	case errors.Is(err, core.ErrNotFound):
		return nil
	default:
		return err
	}
}

// Login checks the password and opens an email session.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *CredentialService) Login(ctx context.Context, email, password string) (_ *LoginResult, err error) {
	ctx, span := tracer.Start(ctx, "CredentialService.Login")
	defer func() { endSpan(span, err) }()

	if s.credentials == nil {
		return nil, core.ErrStorageUnavailable
	}
	if email == "" || password == "" {
		return nil, core.ErrMissingFields
	}

	email, err = NormalizeEmail(email)
	if err != nil {
		return nil, core.ErrInvalidCredentials
	}

	credential, err := s.credentials.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.burnHash(password)
			return nil, core.ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := s.hasher.Verify(password, credential.PasswordHash)
	if err != nil {
		log.Error("Stored password hash is unreadable", "id", credential.ID, "error", err)
		return nil, core.ErrInvalidCredentials
	}
	if !ok {
		return nil, core.ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.credentials.TouchLogin(ctx, email, now); err != nil {
		log.Warn("Failed to record login time", "id", credential.ID, "error", err)
	} else {
		credential.LastLoginAt = &now
	}

	session, err := s.sessions.IssueEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	return &LoginResult{Session: session, Credential: credential}, nil
}

// burnHash spends the same work as a real verify so a missing account costs as much as a wrong password
func (s *CredentialService) burnHash(password string) {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("walletauth-timing-equalizer")
		if err != nil {
			log.Warn("Failed to prepare timing hash", "error", err)
			return
		}
		s.dummyHash = hash
	})
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(password, s.dummyHash)
	}
}
