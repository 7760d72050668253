package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

const otpRequestedMessage = "Reset code sent"

// OtpConfig tunes the password reset flow
type OtpConfig struct {
	TTL         time.Duration
	MaxAttempts int
	Digits      int
	DevMode     bool // echo the code back to the caller
}

// OtpRequest is the answer to a reset code request
type OtpRequest struct {
	Message string
	DevOtp  string
}

// OtpService runs phone based password resets
type OtpService struct {
	credentials ports.CredentialStore
	otps        ports.OtpStore
	hasher      ports.Hasher
	sender      ports.OtpSender
	eventPub    ports.EventPublisher
	config      OtpConfig
	now         func() time.Time
}

// NewOtpService creates the reset flow. Nil stores make every call fail with core.ErrStorageUnavailable.
func NewOtpService(
	credentials ports.CredentialStore,
	otps ports.OtpStore,
	hasher ports.Hasher,
	sender ports.OtpSender,
	eventPub ports.EventPublisher,
	config OtpConfig,
	now func() time.Time,
) *OtpService {
	if config.TTL <= 0 {
		config.TTL = 10 * time.Minute
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	if config.Digits <= 0 {
		config.Digits = 6
	}
	if now == nil {
		now = time.Now
	}
	return &OtpService{
		credentials: credentials,
		otps:        otps,
		hasher:      hasher,
		sender:      sender,
		eventPub:    eventPub,
		config:      config,
		now:         now,
	}
}

// RequestOtp issues a fresh code for the phone's account, replacing any outstanding one
func (s *OtpService) RequestOtp(ctx context.Context, phone string) (_ *OtpRequest, err error) {
	ctx, span := tracer.Start(ctx, "OtpService.RequestOtp")
	defer func() { endSpan(span, err) }()

	if s.credentials == nil || s.otps == nil {
		return nil, core.ErrStorageUnavailable
	}
	if strings.TrimSpace(phone) == "" {
		return nil, core.ErrMissingFields
	}
	phone, err = NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	credential, err := s.credentials.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.ErrAccountNotFound
		}
		return nil, err
	}

	code, err := newOtp(s.config.Digits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate reset code: %w", err)
	}
	hash, err := s.hasher.Hash(code)
	if err != nil {
		return nil, fmt.Errorf("failed to hash reset code: %w", err)
	}

	now := s.now().UTC()
	err = s.otps.Save(ctx, &core.OtpChallenge{
		Phone:     phone,
		Email:     credential.Email,
		OtpHash:   hash,
		Attempts:  0,
		ExpiresAt: now.Add(s.config.TTL),
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	if s.sender != nil {
		if err := s.sender.DeliverOtp(ctx, phone, code); err != nil {
			log.Error("Failed to hand off reset code", "error", err)
		}
	}

	result := &OtpRequest{Message: otpRequestedMessage}
	if s.config.DevMode {
		result.DevOtp = code
	}
	return result, nil
}

// ResetPassword checks the code and replaces the account's password.
// Each wrong code counts an attempt; the challenge is gone after success, expiry or too many attempts.
func (s *OtpService) ResetPassword(ctx context.Context, phone, code, newPassword string) (_ string, err error) {
	ctx, span := tracer.Start(ctx, "OtpService.ResetPassword")
	defer func() { endSpan(span, err) }()

	if s.credentials == nil || s.otps == nil {
		return "", core.ErrStorageUnavailable
	}
	if strings.TrimSpace(phone) == "" || strings.TrimSpace(code) == "" || newPassword == "" {
		return "", core.ErrMissingFields
	}
	phone, err = NormalizePhone(phone)
	if err != nil {
		return "", err
	}
	if err := ValidatePassword(newPassword); err != nil {
		return "", err
	}

	// the attempt is counted before the code is compared
	challenge, err := s.otps.ReserveAttempt(ctx, phone, s.config.MaxAttempts, s.now())
	if err != nil {
		if errors.Is(err, core.ErrOtpExpired) || errors.Is(err, core.ErrTooManyAttempts) {
			s.discard(ctx, phone)
		}
		return "", err
	}

	ok, err := s.hasher.Verify(strings.TrimSpace(code), challenge.OtpHash)
	if err != nil {
		return "", fmt.Errorf("failed to check reset code: %w", err)
	}
	if !ok {
		log.Info("Wrong reset code", "attempts", challenge.Attempts, "max", s.config.MaxAttempts)
		return "", core.ErrInvalidCode
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	// only the caller that removes the row may apply the reset
	removed, err := s.otps.Delete(ctx, phone)
	if err != nil {
		return "", err
	}
	if !removed {
		return "", core.ErrOtpNotFound
	}

	if err := s.credentials.UpdatePassword(ctx, challenge.Email, hash, s.now().UTC()); err != nil {
		return "", err
	}

	if s.eventPub != nil {
		if err := s.eventPub.PublishPasswordReset(ctx, challenge.Email); err != nil {
			log.Warn("Failed to publish password reset event", "error", err)
		}
	}

	log.Info("Password reset through OTP")
	return challenge.Email, nil
}

func (s *OtpService) discard(ctx context.Context, phone string) {
	if _, err := s.otps.Delete(ctx, phone); err != nil {
		log.Warn("Failed to discard reset code", "error", err)
	}
}

// newOtp draws each digit independently from crypto/rand
func newOtp(digits int) (string, error) {
	var b strings.Builder
	b.Grow(digits)
	ten := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
