package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseLimiter(t *testing.T, l Limiter) {
	ctx := context.Background()
	key := "client-" + uuid.NewString()
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, key, 3, now)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
		assert.Equal(t, now.Add(time.Second).UTC(), res.Reset)
	}

	res, err := l.Allow(ctx, key, 3, now)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	res, err = l.Allow(ctx, "other-"+key, 3, now)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "keys are independent")

	res, err = l.Allow(ctx, key, 3, now.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, res.Allowed, "a new window starts every second")

	res, err = l.Allow(ctx, key, 0, now)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "a zero limit disables limiting")
}

func TestMemoryLimiter(t *testing.T) {
	exerciseLimiter(t, NewMemoryLimiter())
}

func TestMemoryLimiter_Prunes(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()
	old := time.Unix(100, 0)
	for i := 0; i <= pruneThreshold; i++ {
		_, _ = l.Allow(ctx, uuid.NewString(), 1, old)
	}
	_, _ = l.Allow(ctx, "fresh", 1, old.Add(time.Minute))

	assert.LessOrEqual(t, len(l.counters), 1)
}

func TestRedisLimiter(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("set TEST_REDIS_URL to run redis tests")
	}
	l, err := NewRedisLimiter(context.Background(), url, "taply-test")
	require.NoError(t, err)
	defer l.Close()

	exerciseLimiter(t, l)
}

func TestRedisLimiter_BuildKey(t *testing.T) {
	assert.Equal(t, "p:k:10", (&RedisLimiter{prefix: "p"}).buildKey("k", 10))
	assert.Equal(t, "k:10", (&RedisLimiter{}).buildKey("k", 10))
}
