package core

import (
	"errors"
	"fmt"
)

// Kind errors. Every error returned by the services wraps exactly one of these,
// so callers can classify failures with errors.Is.
var (
	ErrValidation         = errors.New("validation error")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrConflict           = errors.New("conflict")
	ErrExpired            = errors.New("expired")
	ErrNotFound           = errors.New("not found")
	ErrTooManyAttempts    = errors.New("too many attempts")
	ErrInvalidCode        = errors.New("invalid code")
	ErrRateLimited        = errors.New("rate limited")
	ErrUpstream           = errors.New("upstream failure")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

var (
	ErrInvalidAddress     = fmt.Errorf("invalid wallet address: %w", ErrValidation)
	ErrMissingFields      = fmt.Errorf("missing required fields: %w", ErrValidation)
	ErrInvalidEmail       = fmt.Errorf("invalid email: %w", ErrValidation)
	ErrInvalidPhone       = fmt.Errorf("phone must have 8 to 15 digits: %w", ErrValidation)
	ErrWeakPassword       = fmt.Errorf("password must be 8 to 128 characters: %w", ErrValidation)
	ErrNoResolvableID     = fmt.Errorf("no resolvable federated identity: %w", ErrValidation)
	ErrWalletSessionOnly  = fmt.Errorf("a wallet session is required: %w", ErrValidation)
	ErrInvalidSignature   = fmt.Errorf("invalid signature: %w", ErrUnauthorized)
	ErrInvalidCredentials = fmt.Errorf("invalid email or password: %w", ErrUnauthorized)
	ErrSessionInvalid     = fmt.Errorf("session is invalid or expired: %w", ErrUnauthorized)
	ErrInvalidToken       = fmt.Errorf("invalid federated token: %w", ErrUnauthorized)
	ErrChallengeNotFound  = fmt.Errorf("challenge not found: %w", ErrNotFound)
	ErrChallengeExpired   = fmt.Errorf("challenge expired: %w", ErrExpired)
	ErrEmailTaken         = fmt.Errorf("email already registered: %w", ErrConflict)
	ErrPhoneTaken         = fmt.Errorf("phone already registered: %w", ErrConflict)
	ErrAlreadyLinked      = fmt.Errorf("wallet already linked to a different identity: %w", ErrConflict)
	ErrAccountNotFound    = fmt.Errorf("no account uses this phone: %w", ErrNotFound)
	ErrOtpNotFound        = fmt.Errorf("no reset code outstanding: %w", ErrNotFound)
	ErrOtpExpired         = fmt.Errorf("reset code expired: %w", ErrExpired)
)
