package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ethereum/go-ethereum/log"
	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/walletauth/adapters/events"
	"github.com/layer-3/walletauth/adapters/federation"
	"github.com/layer-3/walletauth/adapters/hasher"
	"github.com/layer-3/walletauth/adapters/ratelimit"
	"github.com/layer-3/walletauth/adapters/signature"
	"github.com/layer-3/walletauth/adapters/sqlstore"
	"github.com/layer-3/walletauth/adapters/store"
	"github.com/layer-3/walletauth/adapters/tokenizer"
	"github.com/layer-3/walletauth/internal/config"
	"github.com/layer-3/walletauth/internal/logging"
	"github.com/layer-3/walletauth/internal/telemetry"
	"github.com/layer-3/walletauth/ports"
	"github.com/layer-3/walletauth/service"
	httptransport "github.com/layer-3/walletauth/transport/http"
	"github.com/redis/go-redis/v9"
)

const serviceName = "walletauth"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Crit("Failed to load configuration", "error", err)
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogJSON); err != nil {
		log.Crit("Failed to set up logging", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Crit("Service stopped", "error", err)
	}
}

// wallet-side stores, shared between instances when redis is configured
type walletStores struct {
	challenges ports.ChallengeStore
	sessions   ports.SessionRegistry
	identities ports.IdentityStore
	limiter    ports.RateLimiter
	sweepable  map[string]service.Sweepable
}

// account-side stores, nil when no durable storage is configured
type accountStores struct {
	credentials ports.CredentialStore
	otps        ports.OtpStore
	sweepable   map[string]service.Sweepable
}

func run(ctx context.Context, cfg *config.Config) error {
	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OtelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("Failed to flush traces", "error", err)
		}
	}()

	wmLogger := watermill.NewStdLogger(false, false)

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	wallets := newWalletStores(redisClient)

	accounts, closeAccounts, err := openAccountStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeAccounts()

	publisher, err := newPublisher(redisClient, wmLogger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	signKey, err := loadSigningKey(cfg)
	if err != nil {
		return err
	}

	var minter ports.TokenMinter
	if cfg.Firebase.Enabled() {
		pem := strings.ReplaceAll(cfg.Firebase.PrivateKey, `\n`, "\n")
		customTokens, err := tokenizer.NewCustomTokenMinter(cfg.Firebase.ServiceAccountEmail, []byte(pem), cfg.Firebase.TokenTTL, nil)
		if err != nil {
			return fmt.Errorf("failed to create custom token minter: %w", err)
		}
		minter = customTokens
	}

	argon, err := hasher.NewArgon2(hasher.Params{
		MemoryKB:   cfg.Argon2.MemoryKB,
		Time:       cfg.Argon2.Time,
		Threads:    cfg.Argon2.Threads,
		SaltLength: hasher.DefaultParams().SaltLength,
		KeyLength:  hasher.DefaultParams().KeyLength,
	})
	if err != nil {
		return fmt.Errorf("failed to create password hasher: %w", err)
	}

	verifier := federation.NewGoogleVerifier(federation.GoogleConfig{
		ClientID:     cfg.Google.ClientID,
		TokenInfoURL: cfg.Google.TokenInfoURL,
		UserInfoURL:  cfg.Google.UserInfoURL,
		Timeout:      cfg.Google.Timeout,
	}, nil)

	sessions := service.NewSessionManager(tokenizer.NewJWTTokenizer(signKey, nil), wallets.sessions, cfg.SessionTTL, nil)
	services := httptransport.Services{
		Auth: service.NewAuthService(wallets.challenges, signature.PersonalSign{}, wallets.identities, sessions, minter, publisher,
			service.AuthConfig{AppName: cfg.AppName, ChallengeTTL: cfg.ChallengeTTL}, nil),
		Identity:    service.NewIdentityService(wallets.identities, verifier, sessions, minter, publisher, cfg.TrustClientClaims, nil),
		Credentials: service.NewCredentialService(accounts.credentials, argon, sessions, nil),
		Otp: service.NewOtpService(accounts.credentials, accounts.otps, argon, publisher, publisher, service.OtpConfig{
			TTL:         cfg.Otp.TTL,
			MaxAttempts: cfg.Otp.MaxAttempts,
			Digits:      cfg.Otp.Digits,
			DevMode:     cfg.DevMode,
		}, nil),
	}

	sweeper := service.NewSweeper(cfg.SweepInterval, nil)
	for name, s := range wallets.sweepable {
		sweeper.Add(name, s)
	}
	for name, s := range accounts.sweepable {
		sweeper.Add(name, s)
	}
	go sweeper.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httptransport.SetupRouter(services, wallets.limiter, ratePolicies(cfg.Rate), nil),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", "addr", cfg.HTTPAddr, "devMode", cfg.DevMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("Server exited")
	return nil
}

func openRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	return client, nil
}

func newWalletStores(client *redis.Client) walletStores {
	if client != nil {
		s := walletStores{
			challenges: store.NewRedisChallengeStore(client),
			sessions:   store.NewRedisSessionRegistry(client),
			identities: store.NewRedisIdentityStore(client),
			limiter:    ratelimit.NewRedisLimiter(client),
		}
		s.sweepable = map[string]service.Sweepable{"challenges": s.challenges, "sessions": s.sessions}
		return s
	}

	log.Warn("REDIS_URL not set, wallet state is kept in process memory")
	limiter := ratelimit.NewMemoryLimiter(nil)
	s := walletStores{
		challenges: store.NewMemoryChallengeStore(),
		sessions:   store.NewMemorySessionRegistry(),
		identities: store.NewMemoryIdentityStore(),
		limiter:    limiter,
	}
	s.sweepable = map[string]service.Sweepable{"challenges": s.challenges, "sessions": s.sessions, "rate": limiter}
	return s
}

func openAccountStores(ctx context.Context, cfg *config.Config) (accountStores, func(), error) {
	if cfg.DatabaseURL != "" {
		db, err := sqlstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return accountStores{}, nil, err
		}
		otps := db.Otps()
		return accountStores{
			credentials: db.Credentials(),
			otps:        otps,
			sweepable:   map[string]service.Sweepable{"otps": otps},
		}, func() { db.Close() }, nil
	}

	if cfg.DevMode {
		log.Warn("DATABASE_URL not set, accounts are kept in process memory")
		otps := store.NewMemoryOtpStore()
		return accountStores{
			credentials: store.NewMemoryCredentialStore(),
			otps:        otps,
			sweepable:   map[string]service.Sweepable{"otps": otps},
		}, func() {}, nil
	}

	log.Warn("DATABASE_URL not set, account endpoints will answer storage_unavailable")
	return accountStores{}, func() {}, nil
}

func newPublisher(client *redis.Client, logger watermill.LoggerAdapter) (*events.WatermillPublisher, error) {
	if client != nil {
		return events.NewRedisStreamPublisher(client, logger)
	}
	return events.NewWatermillPublisher(gochannel.NewGoChannel(gochannel.Config{}, logger)), nil
}

func loadSigningKey(cfg *config.Config) (*ecdsa.PrivateKey, error) {
	if cfg.SessionSigningKey != "" {
		pem := strings.ReplaceAll(cfg.SessionSigningKey, `\n`, "\n")
		key, err := jwt.ParseECPrivateKeyFromPEM([]byte(pem))
		if err != nil {
			return nil, fmt.Errorf("failed to parse SESSION_SIGNING_KEY: %w", err)
		}
		if key.Curve != elliptic.P256() {
			return nil, errors.New("SESSION_SIGNING_KEY must be a P-256 key")
		}
		return key, nil
	}

	log.Warn("SESSION_SIGNING_KEY not set, using an ephemeral key; sessions end on restart")
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}

func ratePolicies(rate config.RateConfig) httptransport.RatePolicies {
	policy := func(p config.RatePolicy) httptransport.RatePolicy {
		return httptransport.RatePolicy{Limit: p.Limit, Window: p.Window}
	}
	return httptransport.RatePolicies{
		Nonce:      policy(rate.Nonce),
		Verify:     policy(rate.Verify),
		Link:       policy(rate.Link),
		Logout:     policy(rate.Logout),
		Register:   policy(rate.Register),
		Login:      policy(rate.Login),
		OtpRequest: policy(rate.OtpRequest),
		OtpVerify:  policy(rate.OtpVerify),
	}
}
