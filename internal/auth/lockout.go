package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"account_service/internal/models"
	"account_service/internal/storage"
)

// checkLocked rejects the attempt with ErrAccountLocked while the lock
// window is open. Runs before any credential work so a locked account does
// no password verification. Records whose window has passed are deleted
// lazily and treated as absent.
func (a *Auth) checkLocked(ctx context.Context, email string, now time.Time) error {
	const op = "Auth.checkLocked"

	rl, err := a.rateLimits.LoginRateLimit(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrRateLimitNotFound) {
			return nil
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if rl.IsExpired(now) {
		err := a.rateLimits.DeleteLoginRateLimit(ctx, email)
		if err != nil && !errors.Is(err, storage.ErrRateLimitNotFound) {
			return fmt.Errorf("%s: %w", op, err)
		}

		return nil
	}

	if rl.IsLocked(now) {
		return ErrAccountLocked
	}

	return nil
}

// failAttempt records a failed login for the email and returns
// ErrInvalidCredentials, or the storage error if recording failed. Reaching
// MaxAttempts sets the lock; an expired record restarts the count at one.
func (a *Auth) failAttempt(ctx context.Context, email string, now time.Time) error {
	const op = "Auth.failAttempt"

	rl, err := a.rateLimits.LoginRateLimit(ctx, email)
	switch {
	case errors.Is(err, storage.ErrRateLimitNotFound):
		rl = models.LoginRateLimit{Email: email}
	case err != nil:
		return fmt.Errorf("%s: %w", op, err)
	case rl.IsExpired(now):
		rl = models.LoginRateLimit{Email: email}
	}

	rl.FailedAttempts++
	rl.ExpiresAt = now.Add(a.rateLimit.Window)

	if rl.FailedAttempts >= a.rateLimit.MaxAttempts {
		lockedUntil := now.Add(a.rateLimit.LockDuration)
		rl.LockedUntil = &lockedUntil
	}

	if err := a.rateLimits.UpsertLoginRateLimit(ctx, rl); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return ErrInvalidCredentials
}
