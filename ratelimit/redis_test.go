package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "test:rl:"), mr
}

func TestRedisStoreFixedWindow(t *testing.T) {
	store, _ := newRedisTestStore(t)
	clock := newFakeClock()
	l := newTestLimiter(t, store, clock, 5, 60*time.Second)
	ctx := context.Background()

	for want := 4; want >= 0; want-- {
		d, err := l.Check(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, want, d.Remaining)
	}
	d, err := l.Check(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, clock.Now().Add(60*time.Second).UnixMilli(), d.ResetAt.UnixMilli())

	clock.Advance(60 * time.Second)
	d, err = l.Check(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 4, d.Remaining)
}

func TestRedisStoreSetsExpiry(t *testing.T) {
	store, mr := newRedisTestStore(t)
	clock := newFakeClock()
	l := newTestLimiter(t, store, clock, 2, 10*time.Second)

	_, err := l.Check(context.Background(), "a")
	require.NoError(t, err)
	require.True(t, mr.Exists("test:rl:a"))

	mr.FastForward(11 * time.Second)
	assert.False(t, mr.Exists("test:rl:a"))

	removed, err := store.Sweep(context.Background(), clock.Now())
	require.NoError(t, err)
	assert.Zero(t, removed)
}
