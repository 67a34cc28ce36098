package models

import "time"

type User struct {
	ID           string
	Email        string
	Salt         []byte
	PasswordHash []byte
	CreatedAt    time.Time
}

// HasPassword reports whether the account carries local credentials.
// Externally-authenticated accounts have neither salt nor hash.
func (u *User) HasPassword() bool {
	return len(u.Salt) > 0 && len(u.PasswordHash) > 0
}

// LoginSession is a persistent ("remember me") session. Exactly one live
// refresh-token hash exists per session; rotation replaces it atomically.
type LoginSession struct {
	ID               string
	UserID           string
	RefreshTokenHash string
	UserAgent        string
	CreatedAt        time.Time
	LastAccessedAt   time.Time
	ExpiresAt        time.Time
}

func (s *LoginSession) IsExpired(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}

// TemporarySession is scoped to one browser session. Its token is validated
// by exact hash lookup and never rotated; there is no fixed expiry.
type TemporarySession struct {
	ID             string
	UserID         string
	TokenHash      string
	UserAgent      string
	CreatedAt      time.Time
	LastAccessedAt time.Time
}

// LoginRateLimit tracks failed login attempts per email. One record per
// email, created on first failure, deleted on success or window expiry.
type LoginRateLimit struct {
	Email          string
	FailedAttempts int
	LockedUntil    *time.Time
	ExpiresAt      time.Time
}

func (rl *LoginRateLimit) IsExpired(now time.Time) bool {
	return rl.ExpiresAt.Before(now)
}

func (rl *LoginRateLimit) IsLocked(now time.Time) bool {
	return rl.LockedUntil != nil && rl.LockedUntil.After(now)
}

// Verification session purposes.
const (
	PurposeSignup        = "signup"
	PurposePasswordReset = "password_reset"
)

// VerificationSession is a single-use token proving control of an email
// address. Deleted on first consumption or lazily on expiry detection.
type VerificationSession struct {
	ID        string
	Purpose   string
	Email     string
	TokenHash string
	ExpiresAt time.Time
}

func (s *VerificationSession) IsExpired(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}

// DeletedUser archives the identity of a removed account.
type DeletedUser struct {
	ID        string
	Email     string
	DeletedAt time.Time
}

// Message is the payload published for the email sender.
type Message struct {
	Email   string `json:"to"`
	Subject string `json:"subject"`
	Link    string `json:"link"`
	Purpose string `json:"purpose"`
}
