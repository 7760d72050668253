package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueChallenge(t *testing.T) {
	env := newTestEnv(t)
	w := newWallet(t)
	upper := "0x" + strings.ToUpper(w.address[2:])

	challenge, err := env.auth.IssueChallenge(context.Background(), "  "+upper+" ")
	require.NoError(t, err)

	assert.Equal(t, w.address, challenge.Address)
	assert.Len(t, challenge.Nonce, 64)
	assert.Equal(t, env.clock.Now().Add(5*time.Minute), challenge.ExpiresAt)
	assert.Equal(t, fmt.Sprintf(
		"walletauth wants you to sign in with your wallet.\n\nAddress: %s\nNonce: %s\nIssued At: %s",
		w.address, challenge.Nonce, env.clock.Now().Format(time.RFC3339),
	), challenge.Message)
}

func TestIssueChallengeRejectsBadAddress(t *testing.T) {
	env := newTestEnv(t)

	for _, address := range []string{"", "0x1234", "1111111111111111111111111111111111111111", "0xzz11111111111111111111111111111111111111"} {
		_, err := env.auth.IssueChallenge(context.Background(), address)
		assert.ErrorIs(t, err, core.ErrInvalidAddress, address)
		assert.ErrorIs(t, err, core.ErrValidation, address)
	}
}

func TestVerifySignsIn(t *testing.T) {
	env := newTestEnv(t)
	w := newWallet(t)

	result := env.signIn(t, w)

	assert.Equal(t, core.SubjectWallet, result.Session.Kind)
	assert.Equal(t, w.address, result.Session.Address)
	assert.Equal(t, "wallet:"+w.address, result.Session.Subject)
	assert.Empty(t, result.Session.LinkedIdentityID)
	assert.Equal(t, "custom-token-for-"+w.address, result.FederatedToken)
	assert.Equal(t, []string{w.address}, env.minter.wallets)

	session, err := env.auth.Session(context.Background(), result.Session.Token)
	require.NoError(t, err)
	assert.Equal(t, result.Session.ID, session.ID)

	record, err := env.identities.GetWallet(context.Background(), w.address)
	require.NoError(t, err)
	assert.Equal(t, env.clock.Now(), record.LastLoginAt)
}

func TestNonceIsSingleUse(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	w := newWallet(t)

	challenge, err := env.auth.IssueChallenge(ctx, w.address)
	require.NoError(t, err)
	signature := w.sign(t, challenge.Message)

	_, err = env.auth.Verify(ctx, w.address, signature)
	require.NoError(t, err)

	_, err = env.auth.Verify(ctx, w.address, signature)
	assert.ErrorIs(t, err, core.ErrChallengeNotFound)
}

func TestNonceConsumedOnBadSignature(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	w := newWallet(t)
	impostor := newWallet(t)

	challenge, err := env.auth.IssueChallenge(ctx, w.address)
	require.NoError(t, err)

	_, err = env.auth.Verify(ctx, w.address, impostor.sign(t, challenge.Message))
	assert.ErrorIs(t, err, core.ErrInvalidSignature)

	// the real owner cannot reuse the burned challenge
	_, err = env.auth.Verify(ctx, w.address, w.sign(t, challenge.Message))
	assert.ErrorIs(t, err, core.ErrChallengeNotFound)
}

func TestNonceExpires(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	w := newWallet(t)

	challenge, err := env.auth.IssueChallenge(ctx, w.address)
	require.NoError(t, err)

	env.clock.Advance(5 * time.Minute)
	_, err = env.auth.Verify(ctx, w.address, w.sign(t, challenge.Message))
	assert.ErrorIs(t, err, core.ErrChallengeExpired)

	// the expired challenge was removed as well
	_, err = env.challenges.Take(ctx, w.address)
	assert.ErrorIs(t, err, core.ErrChallengeNotFound)
}

func TestNewChallengeReplacesOld(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	w := newWallet(t)

	first, err := env.auth.IssueChallenge(ctx, w.address)
	require.NoError(t, err)
	second, err := env.auth.IssueChallenge(ctx, w.address)
	require.NoError(t, err)
	require.NotEqual(t, first.Nonce, second.Nonce)

	_, err = env.auth.Verify(ctx, w.address, w.sign(t, first.Message))
	assert.ErrorIs(t, err, core.ErrInvalidSignature)
}

func TestVerifyMissingFields(t *testing.T) {
	env := newTestEnv(t)
	w := newWallet(t)

	_, err := env.auth.Verify(context.Background(), w.address, "")
	assert.ErrorIs(t, err, core.ErrMissingFields)
	_, err = env.auth.Verify(context.Background(), " ", "0xdead")
	assert.ErrorIs(t, err, core.ErrMissingFields)
}

func TestVerifyCarriesExistingLink(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, withTrustedClaims())
	w := newWallet(t)

	first := env.signIn(t, w)
	_, err := env.linker.Link(ctx, first.Session, LinkProof{IdentityID: "google-123"})
	require.NoError(t, err)

	again := env.signIn(t, w)
	assert.Equal(t, "google-123", again.Session.LinkedIdentityID)
	assert.Equal(t, "custom-token-for-google-123", again.FederatedToken)
	assert.Equal(t, "google-123", env.minter.uid)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	w := newWallet(t)

	result := env.signIn(t, w)
	require.NoError(t, env.auth.Logout(ctx, result.Session))

	_, err := env.auth.Session(ctx, result.Session.Token)
	assert.ErrorIs(t, err, core.ErrSessionInvalid)

	// revoking twice is harmless
	require.NoError(t, env.auth.Logout(ctx, result.Session))
	assert.Equal(t, []string{"logout", "logout"}, env.events.kinds())
}
