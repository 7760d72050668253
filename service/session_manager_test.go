package service

import (
	"context"
	"testing"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	session, err := env.sessions.IssueEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "email:alice@example.com", session.Subject)
	assert.Equal(t, env.clock.Now().Add(24*time.Hour), session.ExpiresAt)

	valid, err := env.sessions.Validate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.ID, valid.ID)
	assert.Equal(t, core.SubjectEmail, valid.Kind)

	require.NoError(t, env.sessions.Revoke(ctx, session.Token))
	_, err = env.sessions.Validate(ctx, session.Token)
	assert.ErrorIs(t, err, core.ErrSessionInvalid)
}

func TestSessionExpires(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	session, err := env.sessions.IssueWallet(ctx, "0x1111111111111111111111111111111111111111", "")
	require.NoError(t, err)

	env.clock.Advance(24*time.Hour - time.Second)
	_, err = env.sessions.Validate(ctx, session.Token)
	require.NoError(t, err)

	env.clock.Advance(time.Second)
	_, err = env.sessions.Validate(ctx, session.Token)
	assert.ErrorIs(t, err, core.ErrSessionInvalid)
}

func TestSessionRequiresRegistryEntry(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	session, err := env.sessions.IssueWallet(ctx, "0x1111111111111111111111111111111111111111", "")
	require.NoError(t, err)

	// a correctly signed token alone is not enough
	require.NoError(t, env.registry.Delete(ctx, session.Token))
	_, err = env.sessions.Validate(ctx, session.Token)
	assert.ErrorIs(t, err, core.ErrSessionInvalid)
}

func TestSessionRejectsGarbage(t *testing.T) {
	env := newTestEnv(t)

	for _, token := range []string{"", "abc", "a.b.c"} {
		_, err := env.sessions.Validate(context.Background(), token)
		assert.ErrorIs(t, err, core.ErrSessionInvalid)
	}
}
