package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"account_service/internal/config"
	"account_service/internal/models"
	"account_service/internal/storage"

	"github.com/redis/go-redis/v9"
)

type RedisRepo struct {
	client *redis.Client
}

func New(ctx context.Context, cfg *config.Config) (*RedisRepo, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisRepo{
		client: client,
	}, nil
}

func rateLimitKey(email string) string {
	return fmt.Sprintf("login_rl:%s", email)
}

func (r *RedisRepo) LoginRateLimit(ctx context.Context, email string) (models.LoginRateLimit, error) {
	const op = "storage.redis.LoginRateLimit"

	fields, err := r.client.HGetAll(ctx, rateLimitKey(email)).Result()
	if err != nil {
		return models.LoginRateLimit{}, fmt.Errorf("%s: %w", op, err)
	}

	if len(fields) == 0 {
		return models.LoginRateLimit{}, storage.ErrRateLimitNotFound
	}

	rl := models.LoginRateLimit{Email: email}

	rl.FailedAttempts, err = strconv.Atoi(fields["failed_attempts"])
	if err != nil {
		return models.LoginRateLimit{}, fmt.Errorf("%s: malformed record: %w", op, err)
	}

	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return models.LoginRateLimit{}, fmt.Errorf("%s: malformed record: %w", op, err)
	}
	rl.ExpiresAt = time.Unix(expiresAt, 0)

	if raw, ok := fields["locked_until"]; ok {
		lockedUntil, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return models.LoginRateLimit{}, fmt.Errorf("%s: malformed record: %w", op, err)
		}

		t := time.Unix(lockedUntil, 0)
		rl.LockedUntil = &t
	}

	return rl, nil
}

// UpsertLoginRateLimit stores the record and lets Redis expire it at the
// window boundary, so abandoned records clean themselves up.
func (r *RedisRepo) UpsertLoginRateLimit(ctx context.Context, rl models.LoginRateLimit) error {
	const op = "storage.redis.UpsertLoginRateLimit"

	key := rateLimitKey(rl.Email)

	data := map[string]interface{}{
		"failed_attempts": rl.FailedAttempts,
		"expires_at":      rl.ExpiresAt.Unix(),
	}
	if rl.LockedUntil != nil {
		data["locked_until"] = rl.LockedUntil.Unix()
	}

	expiry := rl.ExpiresAt
	if rl.LockedUntil != nil && rl.LockedUntil.After(expiry) {
		expiry = *rl.LockedUntil
	}

	pipe := r.client.Pipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, data)
	pipe.ExpireAt(ctx, key, expiry)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *RedisRepo) DeleteLoginRateLimit(ctx context.Context, email string) error {
	const op = "storage.redis.DeleteLoginRateLimit"

	err := r.client.Del(ctx, rateLimitKey(email)).Err()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *RedisRepo) Close() {
	r.client.Close()
}
