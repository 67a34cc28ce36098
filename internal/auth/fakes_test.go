package auth

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"testing"
	"time"

	"account_service/internal/config"
	"account_service/internal/lib/cryptox"
	"account_service/internal/models"
	"account_service/internal/storage"

	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory implementation of every store interface plus the
// publisher, keyed the same way the real adapters are.
type fakeStore struct {
	mu sync.Mutex

	users         map[string]models.User                // by email
	loginSessions map[string]models.LoginSession        // by refresh token hash
	tempSessions  map[string]models.TemporarySession    // by token hash
	verifications map[string]models.VerificationSession // by id
	rateLimits    map[string]models.LoginRateLimit      // by email
	deleted       []models.DeletedUser
	messages      []models.Message

	publishErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:         make(map[string]models.User),
		loginSessions: make(map[string]models.LoginSession),
		tempSessions:  make(map[string]models.TemporarySession),
		verifications: make(map[string]models.VerificationSession),
		rateLimits:    make(map[string]models.LoginRateLimit),
	}
}

func (f *fakeStore) SaveUser(_ context.Context, user models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.users[user.Email]; ok {
		return storage.ErrUserExists
	}
	f.users[user.Email] = user
	return nil
}

func (f *fakeStore) UserByEmail(_ context.Context, email string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[email]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeStore) UserByID(_ context.Context, id string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, user := range f.users {
		if user.ID == id {
			return user, nil
		}
	}
	return models.User{}, storage.ErrUserNotFound
}

func (f *fakeStore) UpdateUserCredentials(_ context.Context, userID string, salt, passwordHash []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for email, user := range f.users {
		if user.ID == userID {
			user.Salt = salt
			user.PasswordHash = passwordHash
			f.users[email] = user
			return nil
		}
	}
	return storage.ErrUserNotFound
}

func (f *fakeStore) DeleteUser(_ context.Context, deleted models.DeletedUser) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for email, user := range f.users {
		if user.ID == deleted.ID {
			delete(f.users, email)
			f.deleted = append(f.deleted, deleted)
			return nil
		}
	}
	return storage.ErrUserNotFound
}

func (f *fakeStore) SaveLoginSession(_ context.Context, session models.LoginSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.loginSessions[session.RefreshTokenHash] = session
	return nil
}

func (f *fakeStore) LoginSessionByTokenHash(_ context.Context, tokenHash string) (models.LoginSession, models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	session, ok := f.loginSessions[tokenHash]
	if !ok {
		return models.LoginSession{}, models.User{}, storage.ErrSessionNotFound
	}
	for _, user := range f.users {
		if user.ID == session.UserID {
			return session, user, nil
		}
	}
	return models.LoginSession{}, models.User{}, storage.ErrSessionNotFound
}

func (f *fakeStore) RotateRefreshToken(_ context.Context, oldTokenHash, newTokenHash string, lastAccessedAt, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	session, ok := f.loginSessions[oldTokenHash]
	if !ok {
		return storage.ErrSessionNotFound
	}
	delete(f.loginSessions, oldTokenHash)
	session.RefreshTokenHash = newTokenHash
	session.LastAccessedAt = lastAccessedAt
	session.ExpiresAt = expiresAt
	f.loginSessions[newTokenHash] = session
	return nil
}

func (f *fakeStore) DeleteLoginSessionByTokenHash(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.loginSessions[tokenHash]; !ok {
		return storage.ErrSessionNotFound
	}
	delete(f.loginSessions, tokenHash)
	return nil
}

func (f *fakeStore) SaveTemporarySession(_ context.Context, session models.TemporarySession) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.tempSessions[session.TokenHash] = session
	return nil
}

func (f *fakeStore) TemporarySessionByTokenHash(_ context.Context, tokenHash string) (models.TemporarySession, models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	session, ok := f.tempSessions[tokenHash]
	if !ok {
		return models.TemporarySession{}, models.User{}, storage.ErrSessionNotFound
	}
	for _, user := range f.users {
		if user.ID == session.UserID {
			return session, user, nil
		}
	}
	return models.TemporarySession{}, models.User{}, storage.ErrSessionNotFound
}

func (f *fakeStore) TouchTemporarySession(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for hash, session := range f.tempSessions {
		if session.ID == id {
			session.LastAccessedAt = at
			f.tempSessions[hash] = session
			return nil
		}
	}
	return storage.ErrSessionNotFound
}

func (f *fakeStore) DeleteTemporarySessionByTokenHash(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.tempSessions[tokenHash]; !ok {
		return storage.ErrSessionNotFound
	}
	delete(f.tempSessions, tokenHash)
	return nil
}

func (f *fakeStore) DeleteUserSessions(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for hash, session := range f.loginSessions {
		if session.UserID == userID {
			delete(f.loginSessions, hash)
		}
	}
	for hash, session := range f.tempSessions {
		if session.UserID == userID {
			delete(f.tempSessions, hash)
		}
	}
	return nil
}

func (f *fakeStore) SaveVerificationSession(_ context.Context, session models.VerificationSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.verifications[session.ID] = session
	return nil
}

func (f *fakeStore) VerificationSessionByTokenHash(_ context.Context, purpose, tokenHash string) (models.VerificationSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, session := range f.verifications {
		if session.Purpose == purpose && session.TokenHash == tokenHash {
			return session, nil
		}
	}
	return models.VerificationSession{}, storage.ErrVerificationNotFound
}

func (f *fakeStore) DeleteVerificationSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.verifications[id]; !ok {
		return storage.ErrVerificationNotFound
	}
	delete(f.verifications, id)
	return nil
}

func (f *fakeStore) DeleteVerificationSessionsByEmail(_ context.Context, purpose, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, session := range f.verifications {
		if session.Purpose == purpose && session.Email == email {
			delete(f.verifications, id)
		}
	}
	return nil
}

func (f *fakeStore) LoginRateLimit(_ context.Context, email string) (models.LoginRateLimit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rl, ok := f.rateLimits[email]
	if !ok {
		return models.LoginRateLimit{}, storage.ErrRateLimitNotFound
	}
	return rl, nil
}

func (f *fakeStore) UpsertLoginRateLimit(_ context.Context, rl models.LoginRateLimit) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.rateLimits[rl.Email] = rl
	return nil
}

func (f *fakeStore) DeleteLoginRateLimit(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.rateLimits[email]; !ok {
		return storage.ErrRateLimitNotFound
	}
	delete(f.rateLimits, email)
	return nil
}

func (f *fakeStore) SendMessage(_ context.Context, msg models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.publishErr != nil {
		return f.publishErr
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeStore) verificationsForEmail(purpose, email string) []models.VerificationSession {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.VerificationSession
	for _, session := range f.verifications {
		if session.Purpose == purpose && session.Email == email {
			out = append(out, session)
		}
	}
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		Tokens: config.Tokens{
			JWTSecret:        "test-secret",
			AccessTokenTTL:   15 * time.Minute,
			RefreshTokenTTL:  30 * 24 * time.Hour,
			SignupSessionTTL: 24 * time.Hour,
			ResetSessionTTL:  time.Hour,
			OpaqueTokenBytes: 32,
			SaltBytes:        16,
		},
		Password: config.Password{MinLength: 8},
		RateLimit: config.RateLimit{
			MaxAttempts:  5,
			LockDuration: 15 * time.Minute,
			Window:       time.Hour,
		},
	}
}

func newTestAuth(t *testing.T) (*Auth, *fakeStore) {
	t.Helper()

	store := newFakeStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(log, store, store, store, store, store, testConfig()), store
}

func seedUser(t *testing.T, store *fakeStore, email, password string) models.User {
	t.Helper()

	id, err := newID()
	require.NoError(t, err)

	salt, err := cryptox.GenerateSalt(16)
	require.NoError(t, err)

	user := models.User{
		ID:           id,
		Email:        email,
		Salt:         salt,
		PasswordHash: cryptox.HashPassword(password, salt),
		CreatedAt:    time.Now(),
	}
	require.NoError(t, store.SaveUser(context.Background(), user))

	return user
}

// tokenFromLastMessage extracts the raw one-time token from the most
// recently published verification link.
func tokenFromLastMessage(t *testing.T, store *fakeStore) string {
	t.Helper()

	store.mu.Lock()
	defer store.mu.Unlock()

	require.NotEmpty(t, store.messages)

	link, err := url.Parse(store.messages[len(store.messages)-1].Link)
	require.NoError(t, err)

	token := link.Query().Get("token")
	require.NotEmpty(t, token)

	return token
}
