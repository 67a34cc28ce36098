package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sl "account_service/internal/lib/logger"
	"account_service/internal/lib/passwordrules"
	"account_service/internal/models"
	"account_service/internal/storage"
)

// StartPasswordReset creates a one-time reset session for the email and
// publishes the reset link. Unknown emails return success without side
// effects so account existence cannot be probed. A pending reset session is
// replaced, keeping one live token per address.
func (a *Auth) StartPasswordReset(ctx context.Context, email, baseURL string) error {
	const op = "Auth.StartPasswordReset"

	log := a.log.With(slog.String("op", op))

	if _, err := a.users.UserByEmail(ctx, email); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Info("reset requested for unknown email")
			return nil
		}

		log.Error("failed to get user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	token, err := a.createVerificationSession(ctx, models.PurposePasswordReset, email, a.tokens.ResetSessionTTL)
	if err != nil {
		log.Error("failed to create reset session", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := models.Message{
		Email:   email,
		Subject: "Reset your password",
		Link:    fmt.Sprintf("%s/password-reset/verify?token=%s", baseURL, token),
		Purpose: models.PurposePasswordReset,
	}

	if err := a.publisher.SendMessage(ctx, msg); err != nil {
		log.Error("failed to publish reset email", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("password reset started")

	return nil
}

// CompletePasswordReset consumes the one-time token and installs fresh
// credentials for the account. Invalid and expired tokens are reported as
// ErrValidationFailed.
func (a *Auth) CompletePasswordReset(ctx context.Context, token, password string) error {
	const op = "Auth.CompletePasswordReset"

	log := a.log.With(slog.String("op", op))

	now := time.Now()

	session, err := a.consumeableVerificationSession(ctx, models.PurposePasswordReset, token, now)
	if err != nil {
		if errors.Is(err, ErrValidationFailed) {
			log.Info("reset token invalid or expired")
			return ErrValidationFailed
		}

		log.Error("failed to get reset session", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if !passwordrules.Validate(password, session.Email, a.password.MinLength).Valid {
		log.Info("password policy rejected")
		return ErrValidationFailed
	}

	user, err := a.users.UserByEmail(ctx, session.Email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			// Account removed between request and verification.
			if delErr := a.verifications.DeleteVerificationSession(ctx, session.ID); delErr != nil &&
				!errors.Is(delErr, storage.ErrVerificationNotFound) {
				log.Error("failed to delete reset session", sl.Err(delErr))
			}

			return ErrValidationFailed
		}

		log.Error("failed to get user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.updateCredentials(ctx, user.ID, password); err != nil {
		log.Error("failed to update credentials", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.verifications.DeleteVerificationSession(ctx, session.ID); err != nil &&
		!errors.Is(err, storage.ErrVerificationNotFound) {
		log.Error("failed to delete reset session", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("password reset completed", slog.String("uid", user.ID))

	return nil
}
