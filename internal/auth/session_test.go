package auth

import (
	"context"
	"testing"
	"time"

	"account_service/internal/lib/cryptox"
	"account_service/internal/lib/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate_AccessTokenFastPath(t *testing.T) {
	a, store := newTestAuth(t)
	user := seedUser(t, store, testEmail, testPassword)

	accessToken, err := jwt.NewAccessToken(user.ID, user.Email, "test-secret", time.Minute)
	require.NoError(t, err)

	res, err := a.Authenticate(context.Background(), Credentials{AccessToken: accessToken})
	require.NoError(t, err)

	assert.True(t, res.Authenticated)
	assert.Equal(t, user.ID, res.User.ID)
	assert.Equal(t, user.Email, res.User.Email)
	assert.Empty(t, res.NewAccessToken, "no re-issue on the fast path")
	assert.Empty(t, res.NewRefreshToken)
}

func TestAuthenticate_NoCredentials(t *testing.T) {
	a, _ := newTestAuth(t)

	res, err := a.Authenticate(context.Background(), Credentials{})
	require.NoError(t, err)

	assert.False(t, res.Authenticated)
}

func TestAuthenticate_RefreshRotation(t *testing.T) {
	a, store := newTestAuth(t)
	user := seedUser(t, store, testEmail, testPassword)

	tokens, err := a.Login(context.Background(), testEmail, testPassword, true, testAgent)
	require.NoError(t, err)

	res, err := a.Authenticate(context.Background(), Credentials{RefreshToken: tokens.RefreshToken})
	require.NoError(t, err)

	require.True(t, res.Authenticated)
	assert.Equal(t, user.ID, res.User.ID)
	require.NotEmpty(t, res.NewAccessToken)
	require.NotEmpty(t, res.NewRefreshToken)
	assert.NotEqual(t, tokens.RefreshToken, res.NewRefreshToken)

	// The old hash no longer resolves; the new one does.
	_, _, err = store.LoginSessionByTokenHash(context.Background(), cryptox.HashToken(tokens.RefreshToken))
	assert.Error(t, err)

	_, _, err = store.LoginSessionByTokenHash(context.Background(), cryptox.HashToken(res.NewRefreshToken))
	assert.NoError(t, err)
}

func TestAuthenticate_ReusedRefreshTokenFailsClosed(t *testing.T) {
	a, store := newTestAuth(t)
	seedUser(t, store, testEmail, testPassword)

	tokens, err := a.Login(context.Background(), testEmail, testPassword, true, testAgent)
	require.NoError(t, err)

	first, err := a.Authenticate(context.Background(), Credentials{RefreshToken: tokens.RefreshToken})
	require.NoError(t, err)
	require.True(t, first.Authenticated)

	// Refresh tokens are single-use: replaying the consumed one must not
	// authenticate.
	second, err := a.Authenticate(context.Background(), Credentials{RefreshToken: tokens.RefreshToken})
	require.NoError(t, err)
	assert.False(t, second.Authenticated)
}

func TestAuthenticate_ForgedRefreshToken(t *testing.T) {
	a, store := newTestAuth(t)
	seedUser(t, store, testEmail, testPassword)

	res, err := a.Authenticate(context.Background(), Credentials{RefreshToken: "forged"})
	require.NoError(t, err)

	assert.False(t, res.Authenticated)
}

func TestAuthenticate_ExpiredLoginSession(t *testing.T) {
	a, store := newTestAuth(t)
	seedUser(t, store, testEmail, testPassword)

	tokens, err := a.Login(context.Background(), testEmail, testPassword, true, testAgent)
	require.NoError(t, err)

	hash := cryptox.HashToken(tokens.RefreshToken)

	store.mu.Lock()
	session := store.loginSessions[hash]
	session.ExpiresAt = time.Now().Add(-time.Minute)
	store.loginSessions[hash] = session
	store.mu.Unlock()

	res, err := a.Authenticate(context.Background(), Credentials{RefreshToken: tokens.RefreshToken})
	require.NoError(t, err)

	assert.False(t, res.Authenticated)

	// Expired sessions are destroyed on detection.
	_, _, err = store.LoginSessionByTokenHash(context.Background(), hash)
	assert.Error(t, err)
}

func TestAuthenticate_ExpiredAccessTokenFallsBackToRefresh(t *testing.T) {
	a, store := newTestAuth(t)
	user := seedUser(t, store, testEmail, testPassword)

	tokens, err := a.Login(context.Background(), testEmail, testPassword, true, testAgent)
	require.NoError(t, err)

	expired, err := jwt.NewAccessToken(user.ID, user.Email, "test-secret", -time.Minute)
	require.NoError(t, err)

	res, err := a.Authenticate(context.Background(), Credentials{
		AccessToken:  expired,
		RefreshToken: tokens.RefreshToken,
	})
	require.NoError(t, err)

	require.True(t, res.Authenticated)
	assert.NotEmpty(t, res.NewAccessToken)
	assert.NotEmpty(t, res.NewRefreshToken)
}

func TestAuthenticate_TemporarySession(t *testing.T) {
	a, store := newTestAuth(t)
	user := seedUser(t, store, testEmail, testPassword)

	tokens, err := a.Login(context.Background(), testEmail, testPassword, false, testAgent)
	require.NoError(t, err)

	hash := cryptox.HashToken(tokens.TempSessionToken)

	before, _, err := store.TemporarySessionByTokenHash(context.Background(), hash)
	require.NoError(t, err)

	res, err := a.Authenticate(context.Background(), Credentials{TempSessionToken: tokens.TempSessionToken})
	require.NoError(t, err)

	require.True(t, res.Authenticated)
	assert.Equal(t, user.ID, res.User.ID)
	assert.NotEmpty(t, res.NewAccessToken)
	assert.Empty(t, res.NewRefreshToken, "temporary tokens are never rotated")

	// Same token still resolves, with last-accessed bumped.
	after, _, err := store.TemporarySessionByTokenHash(context.Background(), hash)
	require.NoError(t, err)
	assert.True(t, after.LastAccessedAt.After(before.LastAccessedAt) || after.LastAccessedAt.Equal(before.LastAccessedAt))
	assert.Equal(t, before.TokenHash, after.TokenHash)
}
