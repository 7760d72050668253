package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
	"go.opentelemetry.io/otel/attribute"
)

// LinkProof is what a client presents to link its wallet to a federated identity
type LinkProof struct {
	IdentityID  string // client-asserted id, only honoured when client claims are trusted
	Email       string
	DisplayName string
	AccessToken string // provider access token, verified when present
}

// LinkResult is the linked identity together with the session that now carries it
type LinkResult struct {
	Identity       *core.FederatedIdentity
	Session        *core.Session
	FederatedToken string
}

// Profile is the public view of a wallet and the identity it belongs to
type Profile struct {
	Address          string
	LinkedIdentityID string
	Wallets          []string
}

// IdentityService links wallets to federated identities
type IdentityService struct {
	identities        ports.IdentityStore
	verifier          ports.FederationVerifier
	sessions          *SessionManager
	minter            ports.TokenMinter
	eventPub          ports.EventPublisher
	trustClientClaims bool
	now               func() time.Time
}

// NewIdentityService creates the identity linker.
// With trustClientClaims set, a proof without an access token is accepted as is.
func NewIdentityService(
	identities ports.IdentityStore,
	verifier ports.FederationVerifier,
	sessions *SessionManager,
	minter ports.TokenMinter,
	eventPub ports.EventPublisher,
	trustClientClaims bool,
	now func() time.Time,
) *IdentityService {
	if now == nil {
		now = time.Now
	}
	return &IdentityService{
		identities:        identities,
		verifier:          verifier,
		sessions:          sessions,
		minter:            minter,
		eventPub:          eventPub,
		trustClientClaims: trustClientClaims,
		now:               now,
	}
}

// Link attaches the session's wallet to the proven identity and issues a session carrying the link.
// A wallet already linked to another identity is left as is and core.ErrAlreadyLinked is returned.
func (s *IdentityService) Link(ctx context.Context, session *core.Session, proof LinkProof) (_ *LinkResult, err error) {
	ctx, span := tracer.Start(ctx, "IdentityService.Link")
	defer func() { endSpan(span, err) }()

	if session == nil || session.Kind != core.SubjectWallet || session.Address == "" {
		return nil, core.ErrWalletSessionOnly
	}
	address := session.Address
	span.SetAttributes(attribute.String("wallet.address", address))

	profile, err := s.resolve(ctx, proof)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if _, err := s.identities.LinkWallet(ctx, address, profile.ID, now); err != nil {
		if errors.Is(err, core.ErrAlreadyLinked) {
			log.Info("Wallet already linked elsewhere", "address", address)
		}
		return nil, err
	}

	identity, err := s.identities.AttachWallet(ctx, *profile, address, now)
	if err != nil {
		return nil, fmt.Errorf("failed to attach wallet: %w", err)
	}

	linked, err := s.sessions.IssueWallet(ctx, address, identity.ID)
	if err != nil {
		return nil, err
	}

	if s.eventPub != nil {
		if err := s.eventPub.PublishWalletLinked(ctx, address, identity.ID); err != nil {
			log.Warn("Failed to publish wallet linked event", "address", address, "error", err)
		}
	}

	log.Info("Wallet linked", "address", address, "identity", identity.ID, "wallets", len(identity.Wallets))
	return &LinkResult{
		Identity:       identity,
		Session:        linked,
		FederatedToken: federatedToken(s.minter, address, identity),
	}, nil
}

// resolve turns a proof into a profile. A verified provider subject always wins over the client's id.
func (s *IdentityService) resolve(ctx context.Context, proof LinkProof) (*core.FederatedProfile, error) {
	if token := strings.TrimSpace(proof.AccessToken); token != "" {
		if s.verifier == nil {
			return nil, core.ErrNoResolvableID
		}
		profile, err := s.verifier.Verify(ctx, token)
		if err != nil {
			return nil, err
		}
		if claimed := strings.TrimSpace(proof.IdentityID); claimed != "" && claimed != profile.ID {
			log.Warn("Client identity id differs from verified subject", "claimed", claimed, "verified", profile.ID)
		}
		if profile.Email == "" {
			profile.Email = strings.TrimSpace(proof.Email)
		}
		if profile.DisplayName == "" {
			profile.DisplayName = strings.TrimSpace(proof.DisplayName)
		}
		return profile, nil
	}

	id := strings.TrimSpace(proof.IdentityID)
	if id == "" || !s.trustClientClaims {
		return nil, core.ErrNoResolvableID
	}

	return &core.FederatedProfile{
		ID:          id,
		Email:       strings.TrimSpace(proof.Email),
		DisplayName: strings.TrimSpace(proof.DisplayName),
	}, nil
}

// Profile returns the wallet's link and every wallet sharing its identity
func (s *IdentityService) Profile(ctx context.Context, session *core.Session) (_ *Profile, err error) {
	ctx, span := tracer.Start(ctx, "IdentityService.Profile")
	defer func() { endSpan(span, err) }()

	if session == nil || session.Kind != core.SubjectWallet || session.Address == "" {
		return nil, core.ErrWalletSessionOnly
	}
	address := session.Address

	profile := &Profile{Address: address, Wallets: []string{address}}

	wallet, err := s.identities.GetWallet(ctx, address)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return profile, nil
		}
		return nil, err
	}

	identity, err := linkedIdentity(ctx, s.identities, address, wallet.LinkedIdentityID)
	if err != nil {
		return nil, err
	}
	if identity != nil {
		profile.LinkedIdentityID = identity.ID
		profile.Wallets = identity.Wallets
	}

	return profile, nil
}
