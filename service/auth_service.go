package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
	"go.opentelemetry.io/otel/attribute"
)

const nonceBytes = 32

// AuthConfig tunes wallet sign-in
type AuthConfig struct {
	AppName      string
	ChallengeTTL time.Duration
}

// VerifyResult is the outcome of a successful wallet sign-in
type VerifyResult struct {
	Session        *core.Session
	FederatedToken string
}

// AuthService handles wallet challenge sign-in and logout
type AuthService struct {
	challenges ports.ChallengeStore
	verifier   ports.SignatureVerifier
	identities ports.IdentityStore
	sessions   *SessionManager
	minter     ports.TokenMinter
	eventPub   ports.EventPublisher

	config AuthConfig
	now    func() time.Time
}

// NewAuthService creates a new authentication service.
// minter may be nil when the federated token bridge is disabled.
func NewAuthService(
	challenges ports.ChallengeStore,
	verifier ports.SignatureVerifier,
	identities ports.IdentityStore,
	sessions *SessionManager,
	minter ports.TokenMinter,
	eventPub ports.EventPublisher,
	config AuthConfig,
	now func() time.Time,
) *AuthService {
	if config.AppName == "" {
		config.AppName = "walletauth"
	}
	if config.ChallengeTTL <= 0 {
		config.ChallengeTTL = 5 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		challenges: challenges,
		verifier:   verifier,
		identities: identities,
		sessions:   sessions,
		minter:     minter,
		eventPub:   eventPub,
		config:     config,
		now:        now,
	}
}

// IssueChallenge creates a fresh challenge for the address, replacing any outstanding one
func (s *AuthService) IssueChallenge(ctx context.Context, address string) (_ *core.Challenge, err error) {
	ctx, span := tracer.Start(ctx, "AuthService.IssueChallenge")
	defer func() { endSpan(span, err) }()

	address, err = NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := s.now().UTC()
	challenge := &core.Challenge{
		Address:   address,
		Nonce:     hex.EncodeToString(nonce),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.config.ChallengeTTL),
	}
	challenge.Message = s.challengeMessage(challenge)

	if err := s.challenges.Put(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}

	return challenge, nil
}

func (s *AuthService) challengeMessage(c *core.Challenge) string {
	return fmt.Sprintf("%s wants you to sign in with your wallet.\n\nAddress: %s\nNonce: %s\nIssued At: %s",
		s.config.AppName, c.Address, c.Nonce, c.IssuedAt.Format(time.RFC3339))
}

// consumeChallenge removes the challenge whatever happens next, so a nonce is never checked twice
func (s *AuthService) consumeChallenge(ctx context.Context, address string) (*core.Challenge, error) {
	challenge, err := s.challenges.Take(ctx, address)
	if err != nil {
		return nil, err
	}
	if !s.now().Before(challenge.ExpiresAt) {
		return nil, core.ErrChallengeExpired
	}
	return challenge, nil
}

// Verify consumes the address's challenge, checks the signature over its message
// and opens a wallet session
func (s *AuthService) Verify(ctx context.Context, address, signature string) (_ *VerifyResult, err error) {
	ctx, span := tracer.Start(ctx, "AuthService.Verify")
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(address) == "" || strings.TrimSpace(signature) == "" {
		return nil, core.ErrMissingFields
	}
	address, err = NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("wallet.address", address))

	challenge, err := s.consumeChallenge(ctx, address)
	if err != nil {
		return nil, err
	}

	if !s.verifier.Verify(address, challenge.Message, signature) {
		log.Debug("Wallet signature rejected", "address", address)
		return nil, core.ErrInvalidSignature
	}

	wallet, err := s.identities.TouchWallet(ctx, address, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to record wallet login: %w", err)
	}

	session, err := s.sessions.IssueWallet(ctx, address, wallet.LinkedIdentityID)
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{Session: session}
	if s.minter != nil {
		identity, err := linkedIdentity(ctx, s.identities, address, wallet.LinkedIdentityID)
		if err != nil {
			log.Warn("Failed to load linked identity", "address", address, "error", err)
		} else {
			result.FederatedToken = federatedToken(s.minter, address, identity)
		}
	}

	log.Info("Wallet signed in", "address", address, "session", session.ID, "linked", wallet.LinkedIdentityID != "")
	return result, nil
}

// Logout revokes the session and notifies other instances
func (s *AuthService) Logout(ctx context.Context, session *core.Session) (err error) {
	ctx, span := tracer.Start(ctx, "AuthService.Logout")
	defer func() { endSpan(span, err) }()

	if session == nil {
		return core.ErrSessionInvalid
	}

	if err := s.sessions.Revoke(ctx, session.Token); err != nil {
		return err
	}

	if s.eventPub != nil {
		if err := s.eventPub.PublishLogout(ctx, session.Subject, session.ID); err != nil {
			log.Warn("Failed to publish logout event", "subject", session.Subject, "error", err)
		}
	}

	return nil
}

// Session validates a bearer token
func (s *AuthService) Session(ctx context.Context, token string) (*core.Session, error) {
	session, err := s.sessions.Validate(ctx, token)
	if err != nil && !errors.Is(err, core.ErrSessionInvalid) {
		log.Error("Session lookup failed", "error", err)
	}
	return session, err
}
