package ports

import (
	"context"
	"time"

	"github.com/layer-3/walletauth/core"
)

// ChallengeStore holds at most one outstanding challenge per address
type ChallengeStore interface {
	// Put stores the challenge, replacing any unconsumed one for the same address
	Put(ctx context.Context, challenge *core.Challenge) error
	// Take atomically removes and returns the challenge, core.ErrChallengeNotFound if none
	Take(ctx context.Context, address string) (*core.Challenge, error)
	// Sweep evicts challenges expired at now and returns how many were removed
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// SessionRegistry tracks active sessions keyed by the token string
type SessionRegistry interface {
	Put(ctx context.Context, session *core.Session) error
	// Get returns core.ErrSessionInvalid when the token is not registered
	Get(ctx context.Context, token string) (*core.Session, error)
	// Delete is idempotent
	Delete(ctx context.Context, token string) error
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// IdentityStore keeps wallet records and the federated identities they link to
type IdentityStore interface {
	// TouchWallet creates the wallet record if missing and sets its last login time
	TouchWallet(ctx context.Context, address string, now time.Time) (*core.WalletIdentity, error)
	// GetWallet returns core.ErrNotFound when the wallet has never signed in
	GetWallet(ctx context.Context, address string) (*core.WalletIdentity, error)
	// LinkWallet sets the wallet's identity if it is unset or already equal to identityID.
	// A wallet linked to a different identity is left untouched and core.ErrAlreadyLinked is returned.
	LinkWallet(ctx context.Context, address, identityID string, now time.Time) (*core.WalletIdentity, error)
	// AttachWallet adds the wallet to the identity's wallet set, creating the identity on first use
	AttachWallet(ctx context.Context, profile core.FederatedProfile, address string, now time.Time) (*core.FederatedIdentity, error)
	// GetIdentity returns core.ErrNotFound when the identity does not exist
	GetIdentity(ctx context.Context, identityID string) (*core.FederatedIdentity, error)
}

// CredentialStore is the durable email/password account store
type CredentialStore interface {
	// Create inserts the credential; a duplicate email or phone yields an error wrapping core.ErrConflict
	Create(ctx context.Context, credential *core.Credential) error
	GetByEmail(ctx context.Context, email string) (*core.Credential, error)
	GetByPhone(ctx context.Context, phone string) (*core.Credential, error)
	UpdatePassword(ctx context.Context, email, passwordHash string, now time.Time) error
	TouchLogin(ctx context.Context, email string, now time.Time) error
}

// OtpStore is the durable store of outstanding password reset codes, one per phone
type OtpStore interface {
	// Save replaces any outstanding challenge for the phone
	Save(ctx context.Context, challenge *core.OtpChallenge) error
	// Get returns core.ErrOtpNotFound when nothing is outstanding
	Get(ctx context.Context, phone string) (*core.OtpChallenge, error)
	// ReserveAttempt counts one attempt against the challenge in a single atomic step, as long as it
	// is live at now and has fewer than maxAttempts attempts, and returns the challenge after the count.
	// Otherwise it fails with core.ErrOtpNotFound, core.ErrOtpExpired or core.ErrTooManyAttempts.
	ReserveAttempt(ctx context.Context, phone string, maxAttempts int, now time.Time) (*core.OtpChallenge, error)
	// Delete removes the challenge and reports whether a row was removed
	Delete(ctx context.Context, phone string) (bool, error)
	Sweep(ctx context.Context, now time.Time) (int, error)
}
