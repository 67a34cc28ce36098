// Package auth implements the account core: credential checks, session and
// token lifecycle, the login lockout state machine, and the signup and
// password-reset flows. All session state lives in external storage and is
// read fresh per request.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"account_service/internal/config"
	"account_service/internal/lib/cryptox"
	sl "account_service/internal/lib/logger"
	"account_service/internal/lib/passwordrules"
	"account_service/internal/models"
	"account_service/internal/storage"

	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrUserExists         = errors.New("user already exists")
	ErrSessionNotFound    = errors.New("session not found")
	ErrValidationFailed   = errors.New("validation failed")
)

type Auth struct {
	log           *slog.Logger
	users         UserStore
	sessions      SessionStore
	verifications VerificationStore
	rateLimits    RateLimitStore
	publisher     Publisher
	tokens        config.Tokens
	rateLimit     config.RateLimit
	password      config.Password
}

type UserStore interface {
	SaveUser(ctx context.Context, user models.User) error
	UserByEmail(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, id string) (models.User, error)
	UpdateUserCredentials(ctx context.Context, userID string, salt, passwordHash []byte) error
	DeleteUser(ctx context.Context, deleted models.DeletedUser) error
}

type SessionStore interface {
	SaveLoginSession(ctx context.Context, session models.LoginSession) error
	LoginSessionByTokenHash(ctx context.Context, tokenHash string) (models.LoginSession, models.User, error)
	RotateRefreshToken(ctx context.Context, oldTokenHash, newTokenHash string, lastAccessedAt, expiresAt time.Time) error
	DeleteLoginSessionByTokenHash(ctx context.Context, tokenHash string) error

	SaveTemporarySession(ctx context.Context, session models.TemporarySession) error
	TemporarySessionByTokenHash(ctx context.Context, tokenHash string) (models.TemporarySession, models.User, error)
	TouchTemporarySession(ctx context.Context, id string, at time.Time) error
	DeleteTemporarySessionByTokenHash(ctx context.Context, tokenHash string) error

	DeleteUserSessions(ctx context.Context, userID string) error
}

type VerificationStore interface {
	SaveVerificationSession(ctx context.Context, session models.VerificationSession) error
	VerificationSessionByTokenHash(ctx context.Context, purpose, tokenHash string) (models.VerificationSession, error)
	DeleteVerificationSession(ctx context.Context, id string) error
	DeleteVerificationSessionsByEmail(ctx context.Context, purpose, email string) error
}

type RateLimitStore interface {
	LoginRateLimit(ctx context.Context, email string) (models.LoginRateLimit, error)
	UpsertLoginRateLimit(ctx context.Context, rl models.LoginRateLimit) error
	DeleteLoginRateLimit(ctx context.Context, email string) error
}

type Publisher interface {
	SendMessage(ctx context.Context, msg models.Message) error
}

func New(
	log *slog.Logger,
	users UserStore,
	sessions SessionStore,
	verifications VerificationStore,
	rateLimits RateLimitStore,
	publisher Publisher,
	cfg *config.Config,
) *Auth {
	return &Auth{
		log:           log,
		users:         users,
		sessions:      sessions,
		verifications: verifications,
		rateLimits:    rateLimits,
		publisher:     publisher,
		tokens:        cfg.Tokens,
		rateLimit:     cfg.RateLimit,
		password:      cfg.Password,
	}
}

// Login verifies the credentials under the lockout policy and, on success,
// issues a session per the rememberMe flag. Unknown emails, passwordless
// accounts and wrong passwords all collapse to ErrInvalidCredentials.
func (a *Auth) Login(
	ctx context.Context,
	email, password string,
	rememberMe bool,
	userAgent string,
) (Tokens, error) {
	const op = "Auth.Login"

	log := a.log.With(slog.String("op", op))

	now := time.Now()

	if err := a.checkLocked(ctx, email, now); err != nil {
		if errors.Is(err, ErrAccountLocked) {
			log.Warn("login attempt while locked")
			return Tokens{}, ErrAccountLocked
		}

		log.Error("failed to check lockout state", sl.Err(err))
		return Tokens{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := a.users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Info("unknown email")
			return Tokens{}, a.failAttempt(ctx, email, now)
		}

		log.Error("failed to get user", sl.Err(err))
		return Tokens{}, fmt.Errorf("%s: %w", op, err)
	}

	if !user.HasPassword() || !cryptox.VerifyPassword(password, user.Salt, user.PasswordHash) {
		log.Info("invalid credentials")
		return Tokens{}, a.failAttempt(ctx, email, now)
	}

	if err := a.rateLimits.DeleteLoginRateLimit(ctx, email); err != nil && !errors.Is(err, storage.ErrRateLimitNotFound) {
		log.Error("failed to reset rate limit record", sl.Err(err))
		return Tokens{}, fmt.Errorf("%s: %w", op, err)
	}

	tokens, err := a.issueSession(ctx, user, rememberMe, userAgent, now)
	if err != nil {
		log.Error("failed to issue session", sl.Err(err))
		return Tokens{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in", slog.String("uid", user.ID))

	return tokens, nil
}

// Logout revokes whichever session tokens the request carried. Missing or
// already-revoked sessions are not an error.
func (a *Auth) Logout(ctx context.Context, refreshToken, tempSessionToken string) error {
	const op = "Auth.Logout"

	log := a.log.With(slog.String("op", op))

	if refreshToken != "" {
		err := a.sessions.DeleteLoginSessionByTokenHash(ctx, cryptox.HashToken(refreshToken))
		if err != nil && !errors.Is(err, storage.ErrSessionNotFound) {
			log.Error("failed to delete login session", sl.Err(err))
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if tempSessionToken != "" {
		err := a.sessions.DeleteTemporarySessionByTokenHash(ctx, cryptox.HashToken(tempSessionToken))
		if err != nil && !errors.Is(err, storage.ErrSessionNotFound) {
			log.Error("failed to delete temporary session", sl.Err(err))
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	log.Info("logout successful")

	return nil
}

// ChangePassword re-salts and re-hashes the credentials after verifying the
// current password and the policy.
func (a *Auth) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	const op = "Auth.ChangePassword"

	log := a.log.With(slog.String("op", op))

	user, err := a.users.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return ErrInvalidCredentials
		}

		log.Error("failed to get user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if !user.HasPassword() || !cryptox.VerifyPassword(currentPassword, user.Salt, user.PasswordHash) {
		log.Info("current password mismatch")
		return ErrInvalidCredentials
	}

	if !passwordrules.Validate(newPassword, user.Email, a.password.MinLength).Valid {
		return ErrValidationFailed
	}

	if err := a.updateCredentials(ctx, user.ID, newPassword); err != nil {
		log.Error("failed to update credentials", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("password changed", slog.String("uid", user.ID))

	return nil
}

// DeleteAccount verifies the password, revokes every session of the user,
// archives the identity and removes the account.
func (a *Auth) DeleteAccount(ctx context.Context, userID, password string) error {
	const op = "Auth.DeleteAccount"

	log := a.log.With(slog.String("op", op))

	user, err := a.users.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return ErrInvalidCredentials
		}

		log.Error("failed to get user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if !user.HasPassword() || !cryptox.VerifyPassword(password, user.Salt, user.PasswordHash) {
		log.Info("password mismatch")
		return ErrInvalidCredentials
	}

	if err := a.sessions.DeleteUserSessions(ctx, user.ID); err != nil {
		log.Error("failed to delete user sessions", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	deleted := models.DeletedUser{
		ID:        user.ID,
		Email:     user.Email,
		DeletedAt: time.Now(),
	}

	if err := a.users.DeleteUser(ctx, deleted); err != nil {
		log.Error("failed to delete user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("account deleted", slog.String("uid", user.ID))

	return nil
}

func (a *Auth) updateCredentials(ctx context.Context, userID, password string) error {
	salt, err := cryptox.GenerateSalt(a.tokens.SaltBytes)
	if err != nil {
		return err
	}

	return a.users.UpdateUserCredentials(ctx, userID, salt, cryptox.HashPassword(password, salt))
}

// newID returns a time-ordered UUIDv7.
func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	return id.String(), nil
}
