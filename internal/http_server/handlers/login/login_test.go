package login_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"account_service/internal/auth"
	"account_service/internal/config"
	"account_service/internal/http_server/cookies"
	"account_service/internal/http_server/handlers/login"
	resp "account_service/internal/lib/api/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLoginer struct {
	tokens auth.Tokens
	err    error

	gotEmail    string
	gotPassword string
	gotRemember bool
}

func (s *stubLoginer) Login(_ context.Context, email, password string, rememberMe bool, _ string) (auth.Tokens, error) {
	s.gotEmail = email
	s.gotPassword = password
	s.gotRemember = rememberMe
	return s.tokens, s.err
}

func perform(t *testing.T, stub *stubLoginer, body string) *httptest.ResponseRecorder {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := config.Tokens{
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 30 * 24 * time.Hour,
	}

	handler := login.New(log, stub, tokens)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) resp.Response {
	t.Helper()

	var body resp.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	return body
}

func TestLogin_RememberMeSetsRefreshCookie(t *testing.T) {
	stub := &stubLoginer{tokens: auth.Tokens{
		AccessToken:  "access",
		RefreshToken: "refresh",
	}}

	rec := perform(t, stub, `{"email":"user@example.com","password":"Str0ng!pass","remember_me":true}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, resp.StatusOK, decodeResponse(t, rec).Status)

	assert.Equal(t, "user@example.com", stub.gotEmail)
	assert.Equal(t, "Str0ng!pass", stub.gotPassword)
	assert.True(t, stub.gotRemember)

	byName := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		byName[c.Name] = c
	}

	require.Contains(t, byName, cookies.AccessToken)
	assert.Equal(t, "access", byName[cookies.AccessToken].Value)

	require.Contains(t, byName, cookies.RefreshToken)
	refresh := byName[cookies.RefreshToken]
	assert.Equal(t, "refresh", refresh.Value)
	assert.True(t, refresh.HttpOnly)
	assert.True(t, refresh.Secure)
	assert.Equal(t, http.SameSiteStrictMode, refresh.SameSite)
	assert.Positive(t, refresh.MaxAge)

	assert.NotContains(t, byName, cookies.TempSession)
}

func TestLogin_TemporarySessionCookieHasNoMaxAge(t *testing.T) {
	stub := &stubLoginer{tokens: auth.Tokens{
		AccessToken:      "access",
		TempSessionToken: "temp",
	}}

	rec := perform(t, stub, `{"email":"user@example.com","password":"Str0ng!pass"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	byName := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		byName[c.Name] = c
	}

	assert.NotContains(t, byName, cookies.RefreshToken)

	require.Contains(t, byName, cookies.TempSession)
	temp := byName[cookies.TempSession]
	assert.Equal(t, "temp", temp.Value)
	assert.Zero(t, temp.MaxAge)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	stub := &stubLoginer{err: auth.ErrInvalidCredentials}

	rec := perform(t, stub, `{"email":"user@example.com","password":"wrong"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, resp.StatusError, decodeResponse(t, rec).Status)
	assert.Empty(t, rec.Result().Cookies())
}

func TestLogin_AccountLocked(t *testing.T) {
	stub := &stubLoginer{err: auth.ErrAccountLocked}

	rec := perform(t, stub, `{"email":"user@example.com","password":"Str0ng!pass"}`)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestLogin_InternalError(t *testing.T) {
	stub := &stubLoginer{err: errors.New("storage down")}

	rec := perform(t, stub, `{"email":"user@example.com","password":"Str0ng!pass"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLogin_MalformedBody(t *testing.T) {
	stub := &stubLoginer{}

	rec := perform(t, stub, `{not json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_MissingEmail(t *testing.T) {
	stub := &stubLoginer{}

	rec := perform(t, stub, `{"password":"Str0ng!pass"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, stub.gotEmail)
}
