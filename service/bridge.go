package service

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/log"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

// federatedToken mints a bridge token for the wallet when a minter is configured.
// Linked wallets sign in as their identity carrying every linked wallet, unlinked ones as themselves.
// Minting failures are logged and yield an empty token; the wallet session stays valid without it.
func federatedToken(minter ports.TokenMinter, address string, identity *core.FederatedIdentity) string {
	if minter == nil {
		return ""
	}

	uid := address
	wallets := []string{address}
	if identity != nil {
		uid = identity.ID
		wallets = identity.Wallets
	}

	token, err := minter.Mint(uid, wallets)
	if err != nil {
		log.Warn("Failed to mint federated token", "address", address, "error", err)
		return ""
	}
	return token
}

// linkedIdentity loads the identity a wallet is linked to, nil when unlinked.
// A link whose identity record was never written stands for the wallet alone until a relink attaches it.
func linkedIdentity(ctx context.Context, identities ports.IdentityStore, address, linkedID string) (*core.FederatedIdentity, error) {
	if linkedID == "" {
		return nil, nil
	}

	identity, err := identities.GetIdentity(ctx, linkedID)
	if errors.Is(err, core.ErrNotFound) {
		log.Warn("Linked identity record missing", "address", address, "identity", linkedID)
		return &core.FederatedIdentity{ID: linkedID, Wallets: []string{address}}, nil
	}
	return identity, err
}
