package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims combines standard claims with session-specific ones
type SessionClaims struct {
	jwt.RegisteredClaims
	Kind             string `json:"kind"`
	Address          string `json:"addr,omitempty"`
	Email            string `json:"email,omitempty"`
	LinkedIdentityID string `json:"lid,omitempty"`
}

// CustomTokenClaims is the payload a federated identity backend exchanges for its own session.
// aud is a plain string there, so it shadows the array form of RegisteredClaims.
type CustomTokenClaims struct {
	jwt.RegisteredClaims
	Audience string            `json:"aud"`
	UID      string            `json:"uid"`
	Claims   CustomTokenExtras `json:"claims"`
}

// CustomTokenExtras are developer claims carried inside a custom token
type CustomTokenExtras struct {
	Wallets []string `json:"wallets"`
}
