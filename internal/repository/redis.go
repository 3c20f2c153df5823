package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"staysync/internal/config"
)

var ErrRedisUnavailable = errors.New("redis client is nil")

// RedisStateRepository keeps small shared state in redis: rate limit counters
// for the on-demand sync trigger and per-source feed digests. Everything here
// is advisory; the engine works without redis.
type RedisStateRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient creates a redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisStateRepository(client *redis.Client, ttl time.Duration) *RedisStateRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStateRepository{
		client: client,
		ttl:    ttl,
	}
}

// CheckRateLimit reports whether another hit on key is allowed within the
// window. Fixed-window counter keyed by caller identity.
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, ErrRedisUnavailable
	}

	fullKey := "rate_limit:" + key
	count, err := r.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}
	if count == 1 {
		r.client.Expire(ctx, fullKey, window)
	}
	return count <= int64(limit), nil
}

// GetFeedDigest returns the last stored content hash for a source, or an
// empty string when none is recorded.
func (r *RedisStateRepository) GetFeedDigest(ctx context.Context, sourceID int64) (string, error) {
	if r.client == nil {
		return "", ErrRedisUnavailable
	}

	val, err := r.client.Get(ctx, feedDigestKey(sourceID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get feed digest: %w", err)
	}
	return val, nil
}

func (r *RedisStateRepository) SetFeedDigest(ctx context.Context, sourceID int64, digest string) error {
	if r.client == nil {
		return ErrRedisUnavailable
	}

	if err := r.client.Set(ctx, feedDigestKey(sourceID), digest, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set feed digest: %w", err)
	}
	return nil
}

func feedDigestKey(sourceID int64) string {
	return fmt.Sprintf("feed_digest:%d", sourceID)
}

// Ping verifies the redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// Close closes the redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
