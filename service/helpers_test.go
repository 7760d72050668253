package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/walletauth/adapters/hasher"
	"github.com/layer-3/walletauth/adapters/signature"
	"github.com/layer-3/walletauth/adapters/store"
	"github.com/layer-3/walletauth/adapters/tokenizer"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordedEvent struct {
	kind string
	args []string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	codes  map[string]string
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{codes: make(map[string]string)}
}

func (p *recordingPublisher) record(kind string, args ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{kind: kind, args: args})
}

func (p *recordingPublisher) PublishLogout(ctx context.Context, subject, sessionID string) error {
	p.record("logout", subject, sessionID)
	return nil
}

func (p *recordingPublisher) PublishWalletLinked(ctx context.Context, address, identityID string) error {
	p.record("linked", address, identityID)
	return nil
}

func (p *recordingPublisher) PublishPasswordReset(ctx context.Context, email string) error {
	p.record("password_reset", email)
	return nil
}

func (p *recordingPublisher) DeliverOtp(ctx context.Context, phone, code string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.codes[phone] = code
	return nil
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.kind)
	}
	return out
}

func (p *recordingPublisher) code(phone string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.codes[phone]
}

type stubFederation struct {
	profiles map[string]core.FederatedProfile
	err      error
}

func (f *stubFederation) Verify(ctx context.Context, accessToken string) (*core.FederatedProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	profile, ok := f.profiles[accessToken]
	if !ok {
		return nil, core.ErrInvalidToken
	}
	return &profile, nil
}

type stubMinter struct {
	uid     string
	wallets []string
}

func (m *stubMinter) Mint(uid string, wallets []string) (string, error) {
	m.uid = uid
	m.wallets = append([]string(nil), wallets...)
	return "custom-token-for-" + uid, nil
}

type wallet struct {
	key     *ecdsa.PrivateKey
	address string
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return wallet{key: key, address: strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())}
}

func (w wallet) sign(t *testing.T, message string) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), w.key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

type testEnv struct {
	clock       *testClock
	events      *recordingPublisher
	federation  *stubFederation
	minter      *stubMinter
	challenges  ports.ChallengeStore
	registry    ports.SessionRegistry
	identities  ports.IdentityStore
	credentials ports.CredentialStore
	otps        ports.OtpStore
	hasher      ports.Hasher
	sessions    *SessionManager
	auth        *AuthService
	linker      *IdentityService
	accounts    *CredentialService
	resets      *OtpService
}

type envOption func(*envConfig)

type envConfig struct {
	trustClientClaims bool
	devMode           bool
	verifyDelay       time.Duration
}

func withTrustedClaims() envOption { return func(c *envConfig) { c.trustClientClaims = true } }
func withDevMode() envOption       { return func(c *envConfig) { c.devMode = true } }

// withVerifyDelay stretches every hash comparison to the cost of production parameters
func withVerifyDelay(d time.Duration) envOption { return func(c *envConfig) { c.verifyDelay = d } }

type slowHasher struct {
	ports.Hasher
	delay time.Duration
}

func (h slowHasher) Verify(secret, encoded string) (bool, error) {
	time.Sleep(h.delay)
	return h.Hasher.Verify(secret, encoded)
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	var cfg envConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	argon, err := hasher.NewArgon2(hasher.Params{MemoryKB: 64, Time: 1, Threads: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)

	env := &testEnv{
		clock:       newTestClock(),
		events:      newRecordingPublisher(),
		federation:  &stubFederation{profiles: map[string]core.FederatedProfile{}},
		minter:      &stubMinter{},
		challenges:  store.NewMemoryChallengeStore(),
		registry:    store.NewMemorySessionRegistry(),
		identities:  store.NewMemoryIdentityStore(),
		credentials: store.NewMemoryCredentialStore(),
		otps:        store.NewMemoryOtpStore(),
		hasher:      argon,
	}
	if cfg.verifyDelay > 0 {
		env.hasher = slowHasher{Hasher: argon, delay: cfg.verifyDelay}
	}

	now := env.clock.Now
	env.sessions = NewSessionManager(tokenizer.NewJWTTokenizer(signKey, now), env.registry, 24*time.Hour, now)
	env.auth = NewAuthService(env.challenges, signature.PersonalSign{}, env.identities, env.sessions, env.minter, env.events,
		AuthConfig{AppName: "walletauth", ChallengeTTL: 5 * time.Minute}, now)
	env.linker = NewIdentityService(env.identities, env.federation, env.sessions, env.minter, env.events, cfg.trustClientClaims, now)
	env.accounts = NewCredentialService(env.credentials, env.hasher, env.sessions, now)
	env.resets = NewOtpService(env.credentials, env.otps, env.hasher, env.events, env.events,
		OtpConfig{TTL: 10 * time.Minute, MaxAttempts: 5, Digits: 6, DevMode: cfg.devMode}, now)

	return env
}

// signIn runs the full challenge flow for w
func (e *testEnv) signIn(t *testing.T, w wallet) *VerifyResult {
	t.Helper()
	ctx := context.Background()

	challenge, err := e.auth.IssueChallenge(ctx, w.address)
	require.NoError(t, err)

	result, err := e.auth.Verify(ctx, w.address, w.sign(t, challenge.Message))
	require.NoError(t, err)
	return result
}
