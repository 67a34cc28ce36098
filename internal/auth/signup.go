package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"account_service/internal/lib/cryptox"
	sl "account_service/internal/lib/logger"
	"account_service/internal/lib/passwordrules"
	"account_service/internal/models"
	"account_service/internal/storage"
)

// StartSignup creates a one-time signup verification session for the email
// and publishes the verification link. A pending session for the same email
// is replaced, so at most one signup token is live per address. A publish
// failure is surfaced so the client can retry; the session row stays, and
// the retry replaces it.
func (a *Auth) StartSignup(ctx context.Context, email, baseURL string) error {
	const op = "Auth.StartSignup"

	log := a.log.With(slog.String("op", op))

	_, err := a.users.UserByEmail(ctx, email)
	if err == nil {
		log.Info("email already registered")
		return ErrUserExists
	}
	if !errors.Is(err, storage.ErrUserNotFound) {
		log.Error("failed to check existing user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	token, err := a.createVerificationSession(ctx, models.PurposeSignup, email, a.tokens.SignupSessionTTL)
	if err != nil {
		log.Error("failed to create signup session", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := models.Message{
		Email:   email,
		Subject: "Confirm your email address",
		Link:    fmt.Sprintf("%s/signup/verify?token=%s", baseURL, token),
		Purpose: models.PurposeSignup,
	}

	if err := a.publisher.SendMessage(ctx, msg); err != nil {
		log.Error("failed to publish verification email", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("signup started")

	return nil
}

// CompleteSignup consumes the one-time token, enforces the password policy
// and creates the account plus its first session. Invalid and expired
// tokens are reported uniformly as ErrValidationFailed; expired rows are
// deleted on detection.
func (a *Auth) CompleteSignup(
	ctx context.Context,
	token, password string,
	rememberMe bool,
	userAgent string,
) (Tokens, error) {
	const op = "Auth.CompleteSignup"

	log := a.log.With(slog.String("op", op))

	now := time.Now()

	session, err := a.consumeableVerificationSession(ctx, models.PurposeSignup, token, now)
	if err != nil {
		if errors.Is(err, ErrValidationFailed) {
			log.Info("signup token invalid or expired")
			return Tokens{}, ErrValidationFailed
		}

		log.Error("failed to get signup session", sl.Err(err))
		return Tokens{}, fmt.Errorf("%s: %w", op, err)
	}

	if !passwordrules.Validate(password, session.Email, a.password.MinLength).Valid {
		log.Info("password policy rejected")
		return Tokens{}, ErrValidationFailed
	}

	if _, err := a.users.UserByEmail(ctx, session.Email); err == nil {
		log.Info("email already registered")
		return Tokens{}, ErrUserExists
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		log.Error("failed to check existing user", sl.Err(err))
		return Tokens{}, fmt.Errorf("%s: %w", op, err)
	}

	userID, err := newID()
	if err != nil {
		return Tokens{}, fmt.Errorf("%s: %w", op, err)
	}

	salt, err := cryptox.GenerateSalt(a.tokens.SaltBytes)
	if err != nil {
		return Tokens{}, fmt.Errorf("%s: %w", op, err)
	}

	user := models.User{
		ID:           userID,
		Email:        session.Email,
		Salt:         salt,
		PasswordHash: cryptox.HashPassword(password, salt),
		CreatedAt:    now,
	}

	if err := a.users.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			return Tokens{}, ErrUserExists
		}

		log.Error("failed to save user", sl.Err(err))
		return Tokens{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := a.verifications.DeleteVerificationSession(ctx, session.ID); err != nil &&
		!errors.Is(err, storage.ErrVerificationNotFound) {
		log.Error("failed to delete signup session", sl.Err(err))
		return Tokens{}, fmt.Errorf("%s: %w", op, err)
	}

	tokens, err := a.issueSession(ctx, user, rememberMe, userAgent, now)
	if err != nil {
		log.Error("failed to issue session", sl.Err(err))
		return Tokens{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered", slog.String("uid", user.ID))

	return tokens, nil
}

// createVerificationSession replaces any pending session for the email and
// returns the raw one-time token. Only the token hash is persisted.
func (a *Auth) createVerificationSession(
	ctx context.Context,
	purpose, email string,
	ttl time.Duration,
) (string, error) {
	err := a.verifications.DeleteVerificationSessionsByEmail(ctx, purpose, email)
	if err != nil && !errors.Is(err, storage.ErrVerificationNotFound) {
		return "", err
	}

	id, err := newID()
	if err != nil {
		return "", err
	}

	token, err := cryptox.NewOpaqueToken(a.tokens.OpaqueTokenBytes)
	if err != nil {
		return "", err
	}

	session := models.VerificationSession{
		ID:        id,
		Purpose:   purpose,
		Email:     email,
		TokenHash: cryptox.HashToken(token),
		ExpiresAt: time.Now().Add(ttl),
	}

	if err := a.verifications.SaveVerificationSession(ctx, session); err != nil {
		return "", err
	}

	return token, nil
}

// consumeableVerificationSession resolves a raw one-time token. Unknown
// tokens yield ErrValidationFailed; expired rows are deleted first.
func (a *Auth) consumeableVerificationSession(
	ctx context.Context,
	purpose, token string,
	now time.Time,
) (models.VerificationSession, error) {
	session, err := a.verifications.VerificationSessionByTokenHash(ctx, purpose, cryptox.HashToken(token))
	if err != nil {
		if errors.Is(err, storage.ErrVerificationNotFound) {
			return models.VerificationSession{}, ErrValidationFailed
		}

		return models.VerificationSession{}, err
	}

	if session.IsExpired(now) {
		err := a.verifications.DeleteVerificationSession(ctx, session.ID)
		if err != nil && !errors.Is(err, storage.ErrVerificationNotFound) {
			return models.VerificationSession{}, err
		}

		return models.VerificationSession{}, ErrValidationFailed
	}

	return session, nil
}
