package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DEV_MODE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 5*time.Minute, cfg.ChallengeTTL)
	assert.Equal(t, 6, cfg.Otp.Digits)
	assert.Equal(t, RatePolicy{Limit: 3, Window: 15 * time.Minute}, cfg.Rate.OtpRequest)
	assert.Equal(t, RatePolicy{Limit: 30, Window: time.Minute}, cfg.Rate.Logout)
	assert.False(t, cfg.Firebase.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DEV_MODE", "true")
	t.Setenv("HTTP_ADDR", ":8080")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("OTP_MAX_ATTEMPTS", "3")
	t.Setenv("ARGON2_THREADS", "2")
	t.Setenv("GOOGLE_CLIENT_ID", "client-1")
	t.Setenv("FEDERATION_TRUST_CLIENT_CLAIMS", "true")
	t.Setenv("RATE_OTP_VERIFY_LIMIT", "7")
	t.Setenv("RATE_OTP_VERIFY_WINDOW", "30s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 3, cfg.Otp.MaxAttempts)
	assert.Equal(t, uint8(2), cfg.Argon2.Threads)
	assert.Equal(t, "client-1", cfg.Google.ClientID)
	assert.True(t, cfg.TrustClientClaims)
	assert.Equal(t, RatePolicy{Limit: 7, Window: 30 * time.Second}, cfg.Rate.OtpVerify)
	assert.Equal(t, RatePolicy{Limit: 30, Window: time.Minute}, cfg.Rate.Nonce)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("DEV_MODE", "true")
	t.Setenv("SESSION_TTL", "forever")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"signing key required", func(c *Config) { c.DevMode = false }, "SESSION_SIGNING_KEY"},
		{"signing key given", func(c *Config) { c.DevMode = false; c.SessionSigningKey = "pem" }, ""},
		{"otp digits", func(c *Config) { c.Otp.Digits = 3 }, "OTP_DIGITS"},
		{"half firebase", func(c *Config) { c.Firebase.ServiceAccountEmail = "svc@example.iam.gserviceaccount.com" }, "FIREBASE_PRIVATE_KEY"},
		{"rate policy", func(c *Config) { c.Rate.Login.Limit = 0 }, "RATE_LOGIN_LIMIT"},
		{"logout window", func(c *Config) { c.Rate.Logout.Window = 0 }, "RATE_LOGOUT_WINDOW"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "LOG_LEVEL"},
		{"argon2", func(c *Config) { c.Argon2.Threads = 0 }, "ARGON2_THREADS"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.DevMode = true
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
