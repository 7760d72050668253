package tokenizer

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/walletauth/ports"
)

// AudienceIdentityToolkit is the audience identity toolkit expects on custom tokens
const AudienceIdentityToolkit = "https://identitytoolkit.googleapis.com/google.identity.identitytoolkit.v1.IdentityToolkit"

// MaxCustomTokenTTL is the longest lifetime identity toolkit accepts
const MaxCustomTokenTTL = time.Hour

var ErrEmptyUID = errors.New("custom token uid is empty")

var _ ports.TokenMinter = (*CustomTokenMinter)(nil)

// CustomTokenMinter mints RS256 custom tokens signed by a service account,
// letting a wallet session sign into the federated identity backend
type CustomTokenMinter struct {
	serviceAccount string
	signKey        *rsa.PrivateKey
	ttl            time.Duration
	now            func() time.Time
}

// NewCustomTokenMinter parses the PEM encoded service account key
func NewCustomTokenMinter(serviceAccount string, privateKeyPEM []byte, ttl time.Duration, now func() time.Time) (*CustomTokenMinter, error) {
	if serviceAccount == "" {
		return nil, errors.New("service account email is required")
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account key: %w", err)
	}

	if ttl <= 0 || ttl > MaxCustomTokenTTL {
		ttl = MaxCustomTokenTTL
	}
	if now == nil {
		now = time.Now
	}

	return &CustomTokenMinter{
		serviceAccount: serviceAccount,
		signKey:        key,
		ttl:            ttl,
		now:            now,
	}, nil
}

// Mint signs a custom token for uid carrying the wallets as developer claims
func (m *CustomTokenMinter) Mint(uid string, wallets []string) (string, error) {
	if uid == "" {
		return "", ErrEmptyUID
	}
	if wallets == nil {
		wallets = []string{}
	}

	now := m.now()
	claims := CustomTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.serviceAccount,
			Subject:   m.serviceAccount,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Audience: AudienceIdentityToolkit,
		UID:      uid,
		Claims:   CustomTokenExtras{Wallets: wallets},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)

	signedToken, err := token.SignedString(m.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign custom token: %w", err)
	}

	return signedToken, nil
}
