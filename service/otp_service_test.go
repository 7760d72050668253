package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	resetEmail = "alice@example.com"
	resetPhone = "15551234567"
)

func registerForReset(t *testing.T, env *testEnv) {
	t.Helper()
	_, err := env.accounts.Register(context.Background(), resetEmail, "original-password", resetPhone)
	require.NoError(t, err)
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestRequestOtp(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	registerForReset(t, env)

	result, err := env.resets.RequestOtp(ctx, "+1 555 123 4567")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Message)
	assert.Empty(t, result.DevOtp)

	code := env.events.code(resetPhone)
	assert.Regexp(t, `^[0-9]{6}$`, code)

	challenge, err := env.otps.Get(ctx, resetPhone)
	require.NoError(t, err)
	assert.Equal(t, resetEmail, challenge.Email)
	assert.Equal(t, 0, challenge.Attempts)
	assert.NotEqual(t, code, challenge.OtpHash)
	assert.Equal(t, env.clock.Now().Add(10*time.Minute), challenge.ExpiresAt)
}

func TestRequestOtpDevMode(t *testing.T) {
	env := newTestEnv(t, withDevMode())
	registerForReset(t, env)

	result, err := env.resets.RequestOtp(context.Background(), resetPhone)
	require.NoError(t, err)
	assert.Equal(t, env.events.code(resetPhone), result.DevOtp)
}

func TestRequestOtpUnknownPhone(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.resets.RequestOtp(context.Background(), "15550000000")
	assert.ErrorIs(t, err, core.ErrAccountNotFound)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestResetPassword(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	registerForReset(t, env)

	_, err := env.resets.RequestOtp(ctx, resetPhone)
	require.NoError(t, err)
	code := env.events.code(resetPhone)

	email, err := env.resets.ResetPassword(ctx, resetPhone, code, "brand-new-password")
	require.NoError(t, err)
	assert.Equal(t, resetEmail, email)
	assert.Contains(t, env.events.kinds(), "password_reset")

	_, err = env.accounts.Login(ctx, resetEmail, "brand-new-password")
	assert.NoError(t, err)
	_, err = env.accounts.Login(ctx, resetEmail, "original-password")
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)

	// the code is spent
	_, err = env.resets.ResetPassword(ctx, resetPhone, code, "another-password")
	assert.ErrorIs(t, err, core.ErrOtpNotFound)
}

func TestResetPasswordAttemptLimit(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	registerForReset(t, env)

	_, err := env.resets.RequestOtp(ctx, resetPhone)
	require.NoError(t, err)
	code := env.events.code(resetPhone)

	for i := 1; i <= 5; i++ {
		_, err := env.resets.ResetPassword(ctx, resetPhone, wrongCode(code), "brand-new-password")
		assert.ErrorIs(t, err, core.ErrInvalidCode, "attempt %d", i)
	}

	// the right code no longer helps once the limit is reached
	_, err = env.resets.ResetPassword(ctx, resetPhone, code, "brand-new-password")
	assert.ErrorIs(t, err, core.ErrTooManyAttempts)

	_, err = env.otps.Get(ctx, resetPhone)
	assert.ErrorIs(t, err, core.ErrOtpNotFound)

	_, err = env.accounts.Login(ctx, resetEmail, "original-password")
	assert.NoError(t, err)
}

func TestResetPasswordExpired(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	registerForReset(t, env)

	_, err := env.resets.RequestOtp(ctx, resetPhone)
	require.NoError(t, err)
	code := env.events.code(resetPhone)

	env.clock.Advance(10 * time.Minute)
	_, err = env.resets.ResetPassword(ctx, resetPhone, code, "brand-new-password")
	assert.ErrorIs(t, err, core.ErrOtpExpired)

	_, err = env.otps.Get(ctx, resetPhone)
	assert.ErrorIs(t, err, core.ErrOtpNotFound)
}

func TestResetPasswordNewRequestResetsAttempts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	registerForReset(t, env)

	_, err := env.resets.RequestOtp(ctx, resetPhone)
	require.NoError(t, err)
	_, err = env.resets.ResetPassword(ctx, resetPhone, wrongCode(env.events.code(resetPhone)), "brand-new-password")
	require.ErrorIs(t, err, core.ErrInvalidCode)

	_, err = env.resets.RequestOtp(ctx, resetPhone)
	require.NoError(t, err)

	challenge, err := env.otps.Get(ctx, resetPhone)
	require.NoError(t, err)
	assert.Equal(t, 0, challenge.Attempts)
}

func TestResetPasswordSingleSuccess(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	registerForReset(t, env)

	_, err := env.resets.RequestOtp(ctx, resetPhone)
	require.NoError(t, err)
	code := env.events.code(resetPhone)

	// one caller per allowed attempt, so every call gets to compare the code
	const callers = 5
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.resets.ResetPassword(ctx, resetPhone, code, "brand-new-password"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestResetPasswordConcurrentWrongCodes(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, withVerifyDelay(20*time.Millisecond))
	registerForReset(t, env)

	_, err := env.resets.RequestOtp(ctx, resetPhone)
	require.NoError(t, err)
	guess := wrongCode(env.events.code(resetPhone))

	const callers = 40
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.resets.ResetPassword(ctx, resetPhone, guess, "brand-new-password")
		}(i)
	}
	wg.Wait()

	evaluated := 0
	for _, err := range errs {
		switch {
		case errors.Is(err, core.ErrInvalidCode):
			evaluated++
		case errors.Is(err, core.ErrTooManyAttempts), errors.Is(err, core.ErrOtpNotFound):
		default:
			t.Fatalf("unexpected result: %v", err)
		}
	}
	assert.Equal(t, 5, evaluated)

	_, err = env.accounts.Login(ctx, resetEmail, "original-password")
	assert.NoError(t, err)
}

func TestResetPasswordValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.resets.ResetPassword(context.Background(), resetPhone, "", "brand-new-password")
	assert.ErrorIs(t, err, core.ErrMissingFields)

	_, err = env.resets.ResetPassword(context.Background(), resetPhone, "123456", "short")
	assert.ErrorIs(t, err, core.ErrWeakPassword)

	_, err = env.resets.ResetPassword(context.Background(), resetPhone, "123456", "brand-new-password")
	assert.ErrorIs(t, err, core.ErrOtpNotFound)
}
