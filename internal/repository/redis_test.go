package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*RedisStateRepository, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStateRepository(client, time.Hour), mr
}

func TestCheckRateLimit(t *testing.T) {
	repo, _ := setupRedis(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := repo.CheckRateLimit(ctx, "sync_trigger", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, err := repo.CheckRateLimit(ctx, "sync_trigger", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	// A different key has its own budget.
	allowed, err = repo.CheckRateLimit(ctx, "other", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCheckRateLimitWindowExpiry(t *testing.T) {
	repo, mr := setupRedis(t)
	ctx := context.Background()

	allowed, err := repo.CheckRateLimit(ctx, "sync_trigger", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = repo.CheckRateLimit(ctx, "sync_trigger", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	mr.FastForward(2 * time.Minute)

	allowed, err = repo.CheckRateLimit(ctx, "sync_trigger", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestFeedDigestRoundTrip(t *testing.T) {
	repo, _ := setupRedis(t)
	ctx := context.Background()

	digest, err := repo.GetFeedDigest(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, digest)

	require.NoError(t, repo.SetFeedDigest(ctx, 1, "abc123"))

	digest, err = repo.GetFeedDigest(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "abc123", digest)

	// Digests are per source.
	digest, err = repo.GetFeedDigest(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, digest)
}

func TestNilClientErrors(t *testing.T) {
	repo := NewRedisStateRepository(nil, time.Hour)
	ctx := context.Background()

	_, err := repo.CheckRateLimit(ctx, "k", 1, time.Minute)
	assert.ErrorIs(t, err, ErrRedisUnavailable)

	_, err = repo.GetFeedDigest(ctx, 1)
	assert.ErrorIs(t, err, ErrRedisUnavailable)

	assert.ErrorIs(t, repo.SetFeedDigest(ctx, 1, "x"), ErrRedisUnavailable)
}
