package tokenizer

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

const AudienceSession = "walletauth:session"

// JWTTokenizer implements the Tokenizer interface using ES256 JWTs
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
	now     func() time.Time
}

// NewJWTTokenizer creates a new JWT tokenizer validating expiry against now
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, now func() time.Time) ports.Tokenizer {
	if now == nil {
		now = time.Now
	}
	return &JWTTokenizer{signKey: signKey, now: now}
}

// SessionToToken signs the session into a bearer token
func (j *JWTTokenizer) SessionToToken(session *core.Session) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.Subject,
			ID:        session.ID,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceSession},
		},
		Kind:             string(session.Kind),
		Address:          session.Address,
		Email:            session.Email,
		LinkedIdentityID: session.LinkedIdentityID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signedToken, nil
}

// TokenToSession verifies the token and rebuilds the session it carries
func (j *JWTTokenizer) TokenToSession(tokenStr string) (*core.Session, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	}, jwt.WithAudience(AudienceSession), jwt.WithExpirationRequired(), jwt.WithTimeFunc(j.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSessionInvalid, err)
	}

	if !token.Valid {
		return nil, core.ErrSessionInvalid
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || claims.IssuedAt == nil {
		return nil, core.ErrSessionInvalid
	}

	return &core.Session{
		Token:            tokenStr,
		ID:               claims.ID,
		Subject:          claims.Subject,
		Kind:             core.SubjectKind(claims.Kind),
		Address:          claims.Address,
		Email:            claims.Email,
		LinkedIdentityID: claims.LinkedIdentityID,
		IssuedAt:         claims.IssuedAt.Time,
		ExpiresAt:        claims.ExpiresAt.Time,
	}, nil
}
