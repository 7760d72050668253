package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	HTTPAddr          string        `env:"HTTP_ADDR"`
	RedisURL          string        `env:"REDIS_URL"`
	DatabaseURL       string        `env:"DATABASE_URL"`
	SessionSigningKey string        `env:"SESSION_SIGNING_KEY"`
	SessionTTL        time.Duration `env:"SESSION_TTL"`
	ChallengeTTL      time.Duration `env:"CHALLENGE_TTL"`
	AppName           string        `env:"APP_NAME"`
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL"`
	DevMode           bool          `env:"DEV_MODE"`

	Otp      OtpConfig      `envPrefix:"OTP_"`
	Argon2   Argon2Config   `envPrefix:"ARGON2_"`
	Google   GoogleConfig   `envPrefix:"GOOGLE_"`
	Firebase FirebaseConfig `envPrefix:"FIREBASE_"`
	Rate     RateConfig     `envPrefix:"RATE_"`

	// TrustClientClaims accepts unverified link claims when no access token is sent
	TrustClientClaims bool `env:"FEDERATION_TRUST_CLIENT_CLAIMS"`

	LogLevel     string `env:"LOG_LEVEL"`
	LogJSON      bool   `env:"LOG_JSON"`
	OtelEndpoint string `env:"OTEL_ENDPOINT"`
}

type OtpConfig struct {
	TTL         time.Duration `env:"TTL"`
	MaxAttempts int           `env:"MAX_ATTEMPTS"`
	Digits      int           `env:"DIGITS"`
}

type Argon2Config struct {
	MemoryKB uint32 `env:"MEMORY_KB"`
	Time     uint32 `env:"TIME"`
	Threads  uint8  `env:"THREADS"`
}

type GoogleConfig struct {
	ClientID     string        `env:"CLIENT_ID"`
	TokenInfoURL string        `env:"TOKENINFO_URL"`
	UserInfoURL  string        `env:"USERINFO_URL"`
	Timeout      time.Duration `env:"TIMEOUT"`
}

// FirebaseConfig enables the federated token bridge when both fields are set
type FirebaseConfig struct {
	ServiceAccountEmail string        `env:"SERVICE_ACCOUNT_EMAIL"`
	PrivateKey          string        `env:"PRIVATE_KEY"`
	TokenTTL            time.Duration `env:"TOKEN_TTL"`
}

// Enabled reports whether custom tokens should be minted
func (f FirebaseConfig) Enabled() bool {
	return f.ServiceAccountEmail != "" && f.PrivateKey != ""
}

// RatePolicy is read from <NAME>_LIMIT and <NAME>_WINDOW
type RatePolicy struct {
	Limit  int           `env:"LIMIT"`
	Window time.Duration `env:"WINDOW"`
}

type RateConfig struct {
	Nonce      RatePolicy `envPrefix:"NONCE_"`
	Verify     RatePolicy `envPrefix:"VERIFY_"`
	Link       RatePolicy `envPrefix:"LINK_"`
	Logout     RatePolicy `envPrefix:"LOGOUT_"`
	Register   RatePolicy `envPrefix:"REGISTER_"`
	Login      RatePolicy `envPrefix:"LOGIN_"`
	OtpRequest RatePolicy `envPrefix:"OTP_REQUEST_"`
	OtpVerify  RatePolicy `envPrefix:"OTP_VERIFY_"`
}

// Default returns the configuration used for every key left unset
func Default() Config {
	return Config{
		HTTPAddr:      ":9000",
		SessionTTL:    24 * time.Hour,
		ChallengeTTL:  5 * time.Minute,
		AppName:       "walletauth",
		SweepInterval: time.Minute,
		Otp: OtpConfig{
			TTL:         10 * time.Minute,
			MaxAttempts: 5,
			Digits:      6,
		},
		Argon2: Argon2Config{
			MemoryKB: 64 * 1024,
			Time:     1,
			Threads:  4,
		},
		Google: GoogleConfig{
			TokenInfoURL: "https://oauth2.googleapis.com/tokeninfo",
			UserInfoURL:  "https://openidconnect.googleapis.com/v1/userinfo",
			Timeout:      10 * time.Second,
		},
		Firebase: FirebaseConfig{TokenTTL: time.Hour},
		Rate: RateConfig{
			Nonce:      RatePolicy{Limit: 30, Window: time.Minute},
			Verify:     RatePolicy{Limit: 20, Window: time.Minute},
			Link:       RatePolicy{Limit: 10, Window: time.Minute},
			Logout:     RatePolicy{Limit: 30, Window: time.Minute},
			Register:   RatePolicy{Limit: 10, Window: time.Hour},
			Login:      RatePolicy{Limit: 20, Window: time.Minute},
			OtpRequest: RatePolicy{Limit: 3, Window: 15 * time.Minute},
			OtpVerify:  RatePolicy{Limit: 10, Window: 15 * time.Minute},
		},
		LogLevel: "info",
	}
}

// Load reads an optional .env file, then the environment, over the defaults
func Load() (*Config, error) {
	// A missing .env is fine, real environment variables win anyway
	_ = godotenv.Load()

	cfg := Default()
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var logLevels = map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true, "crit": true}

// Validate rejects values the service cannot start with
func (c *Config) Validate() error {
	var errs []error

	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("HTTP_ADDR must not be empty"))
	}
	if c.SessionSigningKey == "" && !c.DevMode {
		errs = append(errs, errors.New("SESSION_SIGNING_KEY is required outside DEV_MODE"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.ChallengeTTL <= 0 {
		errs = append(errs, errors.New("CHALLENGE_TTL must be positive"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL must be positive"))
	}
	if c.Otp.TTL <= 0 {
		errs = append(errs, errors.New("OTP_TTL must be positive"))
	}
	if c.Otp.MaxAttempts <= 0 {
		errs = append(errs, errors.New("OTP_MAX_ATTEMPTS must be positive"))
	}
	if c.Otp.Digits < 4 || c.Otp.Digits > 10 {
		errs = append(errs, errors.New("OTP_DIGITS must be between 4 and 10"))
	}
	if c.Argon2.MemoryKB == 0 || c.Argon2.Time == 0 || c.Argon2.Threads == 0 {
		errs = append(errs, errors.New("ARGON2_MEMORY_KB, ARGON2_TIME and ARGON2_THREADS must be positive"))
	}
	if (c.Firebase.ServiceAccountEmail == "") != (c.Firebase.PrivateKey == "") {
		errs = append(errs, errors.New("FIREBASE_SERVICE_ACCOUNT_EMAIL and FIREBASE_PRIVATE_KEY must be set together"))
	}
	if !logLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("unknown LOG_LEVEL %q", c.LogLevel))
	}

	for name, policy := range c.Rate.policies() {
		if policy.Limit <= 0 || policy.Window <= 0 {
			errs = append(errs, fmt.Errorf("RATE_%s_LIMIT and RATE_%s_WINDOW must be positive", name, name))
		}
	}

	return errors.Join(errs...)
}

func (r RateConfig) policies() map[string]RatePolicy {
	return map[string]RatePolicy{
		"NONCE":       r.Nonce,
		"VERIFY":      r.Verify,
		"LINK":        r.Link,
		"LOGOUT":      r.Logout,
		"REGISTER":    r.Register,
		"LOGIN":       r.Login,
		"OTP_REQUEST": r.OtpRequest,
		"OTP_VERIFY":  r.OtpVerify,
	}
}
