package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"account_service/internal/lib/cryptox"
	"account_service/internal/lib/jwt"
	sl "account_service/internal/lib/logger"
	"account_service/internal/models"
	"account_service/internal/storage"
)

// Identity is the authenticated principal of a request.
type Identity struct {
	ID    string
	Email string
}

// Credentials carries the opaque strings a request presented. Absent
// credentials are empty.
type Credentials struct {
	AccessToken      string
	RefreshToken     string
	TempSessionToken string
}

// Result is the terminal outcome of Authenticate. When a silent refresh
// happened, NewAccessToken and NewRefreshToken hold the replacement values
// for the transport layer to persist client-side; a temporary-session hit
// sets NewAccessToken only.
type Result struct {
	Authenticated   bool
	User            Identity
	NewAccessToken  string
	NewRefreshToken string
}

// Tokens is the credential set issued at login or signup completion.
// RefreshToken is set for persistent sessions, TempSessionToken for
// browser-session logins; never both.
type Tokens struct {
	AccessToken      string
	RefreshToken     string
	TempSessionToken string
}

// Authenticate resolves the request credentials into an identity or a
// definitive unauthenticated result, performing at most one storage
// read/write cycle. A valid access token short-circuits without storage; a
// refresh token is rotated on use; a temporary-session token is validated by
// hash and never replaced.
func (a *Auth) Authenticate(ctx context.Context, creds Credentials) (Result, error) {
	const op = "Auth.Authenticate"

	log := a.log.With(slog.String("op", op))

	if creds.AccessToken != "" {
		claims, err := jwt.ParseAccessToken(creds.AccessToken, a.tokens.JWTSecret)
		if err == nil {
			return Result{
				Authenticated: true,
				User:          Identity{ID: claims.UserID, Email: claims.Email},
			}, nil
		}
		// Expired or malformed access tokens are treated as absent.
	}

	if creds.RefreshToken != "" {
		return a.refreshSession(ctx, log, creds.RefreshToken)
	}

	if creds.TempSessionToken != "" {
		return a.resumeTemporarySession(ctx, log, creds.TempSessionToken)
	}

	return Result{}, nil
}

// refreshSession is the silent refresh path: look up the login session by
// the refresh-token hash, rotate the token, and re-issue both credentials.
// Any lookup or rotation miss fails closed to unauthenticated; a consumed
// refresh token is never accepted twice.
func (a *Auth) refreshSession(ctx context.Context, log *slog.Logger, refreshToken string) (Result, error) {
	const op = "Auth.refreshSession"

	now := time.Now()

	oldHash := cryptox.HashToken(refreshToken)

	session, user, err := a.sessions.LoginSessionByTokenHash(ctx, oldHash)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			log.Info("refresh token does not resolve")
			return Result{}, nil
		}

		log.Error("failed to get login session", sl.Err(err))
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	if session.IsExpired(now) {
		log.Info("login session expired")

		err := a.sessions.DeleteLoginSessionByTokenHash(ctx, oldHash)
		if err != nil && !errors.Is(err, storage.ErrSessionNotFound) {
			log.Error("failed to delete expired session", sl.Err(err))
			return Result{}, fmt.Errorf("%s: %w", op, err)
		}

		return Result{}, nil
	}

	newRefresh, err := cryptox.NewOpaqueToken(a.tokens.OpaqueTokenBytes)
	if err != nil {
		log.Error("failed to generate refresh token", sl.Err(err))
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	err = a.sessions.RotateRefreshToken(
		ctx,
		oldHash,
		cryptox.HashToken(newRefresh),
		now,
		now.Add(a.tokens.RefreshTokenTTL),
	)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			// A concurrent refresh consumed the token first; this caller
			// must log in again.
			log.Warn("refresh token already rotated")
			return Result{}, nil
		}

		log.Error("failed to rotate refresh token", sl.Err(err))
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	accessToken, err := jwt.NewAccessToken(user.ID, user.Email, a.tokens.JWTSecret, a.tokens.AccessTokenTTL)
	if err != nil {
		log.Error("failed to generate access token", sl.Err(err))
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("session refreshed", slog.String("uid", user.ID))

	return Result{
		Authenticated:   true,
		User:            Identity{ID: user.ID, Email: user.Email},
		NewAccessToken:  accessToken,
		NewRefreshToken: newRefresh,
	}, nil
}

// resumeTemporarySession validates a browser-session token by exact hash
// lookup, bumps last-accessed and issues a fresh access token. The opaque
// token itself stays unchanged for the life of the browser session.
func (a *Auth) resumeTemporarySession(ctx context.Context, log *slog.Logger, token string) (Result, error) {
	const op = "Auth.resumeTemporarySession"

	session, user, err := a.sessions.TemporarySessionByTokenHash(ctx, cryptox.HashToken(token))
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			log.Info("temporary session token does not resolve")
			return Result{}, nil
		}

		log.Error("failed to get temporary session", sl.Err(err))
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := a.sessions.TouchTemporarySession(ctx, session.ID, time.Now()); err != nil {
		log.Error("failed to touch temporary session", sl.Err(err))
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	accessToken, err := jwt.NewAccessToken(user.ID, user.Email, a.tokens.JWTSecret, a.tokens.AccessTokenTTL)
	if err != nil {
		log.Error("failed to generate access token", sl.Err(err))
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	return Result{
		Authenticated:  true,
		User:           Identity{ID: user.ID, Email: user.Email},
		NewAccessToken: accessToken,
	}, nil
}

// issueSession mints the credential set for a freshly authenticated user:
// a login session with a rotating refresh token when rememberMe is set,
// otherwise a temporary session bound to a single non-rotating token.
func (a *Auth) issueSession(
	ctx context.Context,
	user models.User,
	rememberMe bool,
	userAgent string,
	now time.Time,
) (Tokens, error) {
	const op = "Auth.issueSession"

	accessToken, err := jwt.NewAccessToken(user.ID, user.Email, a.tokens.JWTSecret, a.tokens.AccessTokenTTL)
	if err != nil {
		return Tokens{}, fmt.Errorf("%s: %w", op, err)
	}

	id, err := newID()
	if err != nil {
		return Tokens{}, fmt.Errorf("%s: %w", op, err)
	}

	opaque, err := cryptox.NewOpaqueToken(a.tokens.OpaqueTokenBytes)
	if err != nil {
		return Tokens{}, fmt.Errorf("%s: %w", op, err)
	}

	if rememberMe {
		session := models.LoginSession{
			ID:               id,
			UserID:           user.ID,
			RefreshTokenHash: cryptox.HashToken(opaque),
			UserAgent:        userAgent,
			CreatedAt:        now,
			LastAccessedAt:   now,
			ExpiresAt:        now.Add(a.tokens.RefreshTokenTTL),
		}

		if err := a.sessions.SaveLoginSession(ctx, session); err != nil {
			return Tokens{}, fmt.Errorf("%s: %w", op, err)
		}

		return Tokens{AccessToken: accessToken, RefreshToken: opaque}, nil
	}

	session := models.TemporarySession{
		ID:             id,
		UserID:         user.ID,
		TokenHash:      cryptox.HashToken(opaque),
		UserAgent:      userAgent,
		CreatedAt:      now,
		LastAccessedAt: now,
	}

	if err := a.sessions.SaveTemporarySession(ctx, session); err != nil {
		return Tokens{}, fmt.Errorf("%s: %w", op, err)
	}

	return Tokens{AccessToken: accessToken, TempSessionToken: opaque}, nil
}
