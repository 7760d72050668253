package ports

import "github.com/layer-3/walletauth/core"

// Tokenizer converts between sessions and signed bearer tokens
type Tokenizer interface {
	SessionToToken(session *core.Session) (string, error)
	// TokenToSession verifies signature and expiry; any failure wraps core.ErrSessionInvalid
	TokenToSession(token string) (*core.Session, error)
}

// TokenMinter mints companion tokens for a federated identity backend
type TokenMinter interface {
	Mint(uid string, wallets []string) (string, error)
}
