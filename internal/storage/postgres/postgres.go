package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"account_service/internal/config"
	"account_service/internal/models"
	"account_service/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg *config.Config) (*PostgresRepo, error) {
	const op = "storage.postgres.New"

	dsn := dsn(cfg)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return &PostgresRepo{pool: pool}, nil
}

func (r *PostgresRepo) SaveUser(ctx context.Context, user models.User) error {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users (id, email, salt, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5);
	`

	_, err := r.pool.Exec(ctx, query, user.ID, user.Email, user.Salt, user.PasswordHash, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return storage.ErrUserExists
		}

		return fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) UserByEmail(ctx context.Context, email string) (models.User, error) {
	query := `
		SELECT id, email, salt, password_hash, created_at
		FROM users
		WHERE email = $1;
	`

	return r.scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *PostgresRepo) UserByID(ctx context.Context, id string) (models.User, error) {
	query := `
		SELECT id, email, salt, password_hash, created_at
		FROM users
		WHERE id = $1;
	`

	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PostgresRepo) scanUser(row pgx.Row) (models.User, error) {
	var u models.User

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Salt,
		&u.PasswordHash,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, err
	}

	return u, nil
}

func (r *PostgresRepo) UpdateUserCredentials(ctx context.Context, userID string, salt, passwordHash []byte) error {
	const op = "storage.postgres.UpdateUserCredentials"

	query := `UPDATE users SET salt = $1, password_hash = $2 WHERE id = $3;`

	tag, err := r.pool.Exec(ctx, query, salt, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

// DeleteUser archives the identity and removes the account in one
// transaction, so a deleted user never vanishes without a trace.
func (r *PostgresRepo) DeleteUser(ctx context.Context, deleted models.DeletedUser) error {
	const op = "storage.postgres.DeleteUser"

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO deleted_users (id, email, deleted_at) VALUES ($1, $2, $3);`,
		deleted.ID, deleted.Email, deleted.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("%s: failed to archive user: %w", op, err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1;`, deleted.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) SaveLoginSession(ctx context.Context, session models.LoginSession) error {
	const op = "storage.postgres.SaveLoginSession"

	const query = `
		INSERT INTO login_sessions (id, user_id, refresh_token_hash, user_agent, created_at, last_accessed_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`

	_, err := r.pool.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.RefreshTokenHash,
		session.UserAgent,
		session.CreatedAt,
		session.LastAccessedAt,
		session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) LoginSessionByTokenHash(ctx context.Context, tokenHash string) (models.LoginSession, models.User, error) {
	const query = `
		SELECT s.id, s.user_id, s.refresh_token_hash, s.user_agent, s.created_at, s.last_accessed_at, s.expires_at,
		       u.id, u.email, u.salt, u.password_hash, u.created_at
		FROM login_sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.refresh_token_hash = $1;
	`

	var (
		s models.LoginSession
		u models.User
	)

	err := r.pool.QueryRow(ctx, query, tokenHash).Scan(
		&s.ID, &s.UserID, &s.RefreshTokenHash, &s.UserAgent, &s.CreatedAt, &s.LastAccessedAt, &s.ExpiresAt,
		&u.ID, &u.Email, &u.Salt, &u.PasswordHash, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.LoginSession{}, models.User{}, storage.ErrSessionNotFound
		}

		return models.LoginSession{}, models.User{}, err
	}

	return s, u, nil
}

// RotateRefreshToken swaps the stored hash conditionally on the old value.
// When a concurrent refresh already consumed the token no row matches and
// the caller gets ErrSessionNotFound, forcing a re-login instead of a
// double rotation.
func (r *PostgresRepo) RotateRefreshToken(
	ctx context.Context,
	oldTokenHash, newTokenHash string,
	lastAccessedAt, expiresAt time.Time,
) error {
	const op = "storage.postgres.RotateRefreshToken"

	const query = `
		UPDATE login_sessions
		SET refresh_token_hash = $1, last_accessed_at = $2, expires_at = $3
		WHERE refresh_token_hash = $4;
	`

	tag, err := r.pool.Exec(ctx, query, newTokenHash, lastAccessedAt, expiresAt, oldTokenHash)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrSessionNotFound
	}

	return nil
}

func (r *PostgresRepo) DeleteLoginSessionByTokenHash(ctx context.Context, tokenHash string) error {
	query := `DELETE FROM login_sessions WHERE refresh_token_hash = $1;`

	tag, err := r.pool.Exec(ctx, query, tokenHash)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrSessionNotFound
	}

	return nil
}

func (r *PostgresRepo) SaveTemporarySession(ctx context.Context, session models.TemporarySession) error {
	const op = "storage.postgres.SaveTemporarySession"

	const query = `
		INSERT INTO temporary_sessions (id, user_id, token_hash, user_agent, created_at, last_accessed_at)
		VALUES ($1, $2, $3, $4, $5, $6);
	`

	_, err := r.pool.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.TokenHash,
		session.UserAgent,
		session.CreatedAt,
		session.LastAccessedAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) TemporarySessionByTokenHash(ctx context.Context, tokenHash string) (models.TemporarySession, models.User, error) {
	const query = `
		SELECT s.id, s.user_id, s.token_hash, s.user_agent, s.created_at, s.last_accessed_at,
		       u.id, u.email, u.salt, u.password_hash, u.created_at
		FROM temporary_sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token_hash = $1;
	`

	var (
		s models.TemporarySession
		u models.User
	)

	err := r.pool.QueryRow(ctx, query, tokenHash).Scan(
		&s.ID, &s.UserID, &s.TokenHash, &s.UserAgent, &s.CreatedAt, &s.LastAccessedAt,
		&u.ID, &u.Email, &u.Salt, &u.PasswordHash, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.TemporarySession{}, models.User{}, storage.ErrSessionNotFound
		}

		return models.TemporarySession{}, models.User{}, err
	}

	return s, u, nil
}

func (r *PostgresRepo) TouchTemporarySession(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE temporary_sessions SET last_accessed_at = $1 WHERE id = $2;`

	tag, err := r.pool.Exec(ctx, query, at, id)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrSessionNotFound
	}

	return nil
}

func (r *PostgresRepo) DeleteTemporarySessionByTokenHash(ctx context.Context, tokenHash string) error {
	query := `DELETE FROM temporary_sessions WHERE token_hash = $1;`

	tag, err := r.pool.Exec(ctx, query, tokenHash)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrSessionNotFound
	}

	return nil
}

func (r *PostgresRepo) DeleteUserSessions(ctx context.Context, userID string) error {
	const op = "storage.postgres.DeleteUserSessions"

	if _, err := r.pool.Exec(ctx, `DELETE FROM login_sessions WHERE user_id = $1;`, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := r.pool.Exec(ctx, `DELETE FROM temporary_sessions WHERE user_id = $1;`, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) SaveVerificationSession(ctx context.Context, session models.VerificationSession) error {
	const op = "storage.postgres.SaveVerificationSession"

	const query = `
		INSERT INTO verification_sessions (id, purpose, email, token_hash, expires_at)
		VALUES ($1, $2, $3, $4, $5);
	`

	_, err := r.pool.Exec(ctx, query,
		session.ID,
		session.Purpose,
		session.Email,
		session.TokenHash,
		session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) VerificationSessionByTokenHash(ctx context.Context, purpose, tokenHash string) (models.VerificationSession, error) {
	const query = `
		SELECT id, purpose, email, token_hash, expires_at
		FROM verification_sessions
		WHERE purpose = $1 AND token_hash = $2;
	`

	var s models.VerificationSession

	err := r.pool.QueryRow(ctx, query, purpose, tokenHash).Scan(
		&s.ID, &s.Purpose, &s.Email, &s.TokenHash, &s.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.VerificationSession{}, storage.ErrVerificationNotFound
		}

		return models.VerificationSession{}, err
	}

	return s, nil
}

func (r *PostgresRepo) DeleteVerificationSession(ctx context.Context, id string) error {
	query := `DELETE FROM verification_sessions WHERE id = $1;`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrVerificationNotFound
	}

	return nil
}

func (r *PostgresRepo) DeleteVerificationSessionsByEmail(ctx context.Context, purpose, email string) error {
	query := `DELETE FROM verification_sessions WHERE purpose = $1 AND email = $2;`

	_, err := r.pool.Exec(ctx, query, purpose, email)

	return err
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

func dsn(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)
}
