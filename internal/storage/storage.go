// Package storage defines the errors shared by storage implementations.
package storage

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserExists           = errors.New("user already exists")
	ErrSessionNotFound      = errors.New("session not found")
	ErrVerificationNotFound = errors.New("verification session not found")
	ErrRateLimitNotFound    = errors.New("rate limit record not found")
)
