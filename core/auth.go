package core

import "time"

// SubjectKind tells which credential a session was issued for
type SubjectKind string

const (
	SubjectWallet SubjectKind = "wallet"
	SubjectEmail  SubjectKind = "email"
)

// Challenge represents a pending wallet sign-in challenge
type Challenge struct {
	Address   string    // Lowercase hex address the challenge was issued for
	Nonce     string    // Random nonce embedded in the message
	Message   string    // Human-readable message the wallet signs
	IssuedAt  time.Time // When the challenge was created
	ExpiresAt time.Time // When the challenge expires
}

// Session represents an authenticated bearer session
type Session struct {
	Token            string      // Signed bearer token, empty until issued
	ID               string      // Unique session identifier
	Subject          string      // "<kind>:<address|email>"
	Kind             SubjectKind // Wallet or email session
	Address          string      // Wallet address for wallet sessions
	Email            string      // Account email for email sessions
	LinkedIdentityID string      // Federated identity the wallet is linked to, if any
	IssuedAt         time.Time   // When the session was created
	ExpiresAt        time.Time   // When the session expires
}

// Expired reports whether the session has passed its expiry at now
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// WalletIdentity is the persistent record of a wallet that has signed in
type WalletIdentity struct {
	Address          string
	LinkedIdentityID string
	CreatedAt        time.Time
	LastLoginAt      time.Time
}

// FederatedIdentity is an externally managed identity holding one or more wallets
type FederatedIdentity struct {
	ID           string
	Wallets      []string
	Email        string
	DisplayName  string
	CreatedAt    time.Time
	LastLinkedAt time.Time
}

// FederatedProfile is the verified result of a federated provider lookup
type FederatedProfile struct {
	ID          string
	Email       string
	DisplayName string
}

// Credential is an email/password account with a recovery phone
type Credential struct {
	ID           string
	Email        string // trimmed, lowercased
	PasswordHash string // argon2id PHC string
	Phone        string // digits only
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  *time.Time
}

// OtpChallenge is an outstanding password reset code for a phone number
type OtpChallenge struct {
	Phone     string
	Email     string
	OtpHash   string
	Attempts  int
	ExpiresAt time.Time
	CreatedAt time.Time
}
