package ports

import (
	"context"

	"github.com/layer-3/walletauth/core"
)

// SignatureVerifier checks a wallet signature over a message
type SignatureVerifier interface {
	// Verify reports whether signature over message was produced by address. It never errors.
	Verify(address, message, signature string) bool
}

// FederationVerifier resolves an access token into a verified federated profile
type FederationVerifier interface {
	Verify(ctx context.Context, accessToken string) (*core.FederatedProfile, error)
}

// Hasher hashes and verifies secrets such as passwords and one-time codes
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, encoded string) (bool, error)
}
