package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

// SessionManager issues signed session tokens and tracks them in a registry,
// so a token is only honoured while its registry entry is live
type SessionManager struct {
	tokenizer ports.Tokenizer
	registry  ports.SessionRegistry
	ttl       time.Duration
	now       func() time.Time
}

// NewSessionManager creates a new session manager; a nil clock means time.Now
func NewSessionManager(tokenizer ports.Tokenizer, registry ports.SessionRegistry, ttl time.Duration, now func() time.Time) *SessionManager {
	if now == nil {
		now = time.Now
	}
	return &SessionManager{
		tokenizer: tokenizer,
		registry:  registry,
		ttl:       ttl,
		now:       now,
	}
}

// IssueWallet creates a session for a wallet address
func (m *SessionManager) IssueWallet(ctx context.Context, address, linkedIdentityID string) (*core.Session, error) {
	return m.issue(ctx, &core.Session{
		Subject:          string(core.SubjectWallet) + ":" + address,
		Kind:             core.SubjectWallet,
		Address:          address,
		LinkedIdentityID: linkedIdentityID,
	})
}

// IssueEmail creates a session for an email account
func (m *SessionManager) IssueEmail(ctx context.Context, email string) (*core.Session, error) {
	return m.issue(ctx, &core.Session{
		Subject: string(core.SubjectEmail) + ":" + email,
		Kind:    core.SubjectEmail,
		Email:   email,
	})
}

func (m *SessionManager) issue(ctx context.Context, session *core.Session) (*core.Session, error) {
	now := m.now()
	session.ID = uuid.NewString()
	session.IssuedAt = now
	session.ExpiresAt = now.Add(m.ttl)

	token, err := m.tokenizer.SessionToToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}
	session.Token = token

	if err := m.registry.Put(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to register session: %w", err)
	}

	return session, nil
}

// Validate returns the live session behind token.
// Every rejection is core.ErrSessionInvalid; only storage outages surface as themselves.
func (m *SessionManager) Validate(ctx context.Context, token string) (*core.Session, error) {
	if token == "" {
		return nil, core.ErrSessionInvalid
	}

	claimed, err := m.tokenizer.TokenToSession(token)
	if err != nil {
		return nil, core.ErrSessionInvalid
	}

	now := m.now()
	if claimed.Expired(now) {
		return nil, core.ErrSessionInvalid
	}

	session, err := m.registry.Get(ctx, token)
	if err != nil {
		if errors.Is(err, core.ErrStorageUnavailable) {
			return nil, err
		}
		return nil, core.ErrSessionInvalid
	}
	if session.ID != claimed.ID || session.Expired(now) {
		_ = m.registry.Delete(ctx, token)
		return nil, core.ErrSessionInvalid
	}

	return session, nil
}

// Revoke removes the session from the registry; revoking twice is not an error
func (m *SessionManager) Revoke(ctx context.Context, token string) error {
	if err := m.registry.Delete(ctx, token); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}
