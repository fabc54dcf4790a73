package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	r, err := New(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	require.NoError(t, r.Ping(context.Background()))
	return r
}

func TestRedisJSONRoundTrip(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	require.NoError(t, Set(ctx, r, "test:payload", payload{"a", 2}, time.Minute))
	got, err := Get[payload](ctx, r, "test:payload")
	require.NoError(t, err)
	assert.Equal(t, payload{"a", 2}, got)

	require.NoError(t, DelPattern(ctx, r, "test:*"))
	_, err = Get[payload](ctx, r, "test:payload")
	assert.ErrorIs(t, err, redis.Nil)
}

func TestRedisLocker(t *testing.T) {
	l := NewRedisLocker(newTestRedis(t))
	ctx := context.Background()

	unlock, err := l.TryLock(ctx, "test:lock", time.Minute)
	require.NoError(t, err)
	_, err = l.TryLock(ctx, "test:lock", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	unlock()
	again, err := l.TryLock(ctx, "test:lock", time.Minute)
	require.NoError(t, err)
	again()
}
