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

func newTestRedisStore(t *testing.T, window time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), window)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStore_Incr(t *testing.T) {
	store, mr := newTestRedisStore(t, 10*time.Second)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		n, err := store.Incr(ctx, "192.0.2.1", time.Now())
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	assert.True(t, mr.Exists(DefaultRedisPrefix+"192.0.2.1"))
	ttl := mr.TTL(DefaultRedisPrefix + "192.0.2.1")
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, 10*time.Second)

	mr.FastForward(11 * time.Second)
	n, err := store.Incr(ctx, "192.0.2.1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n, "counter restarts after the key expires")
}

func TestRedisStore_WithLimiter(t *testing.T) {
	store, _ := newTestRedisStore(t, time.Minute)
	limiter := New(store, 2)
	ctx := context.Background()

	assert.True(t, limiter.Allow(ctx, "a").Allowed)
	assert.True(t, limiter.Allow(ctx, "a").Allowed)
	assert.False(t, limiter.Allow(ctx, "a").Allowed)
	assert.True(t, limiter.Allow(ctx, "b").Allowed)
}

func TestRedisStore_Ping(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Second)
	require.NoError(t, store.Ping(context.Background()))

	mr.Close()
	assert.Error(t, store.Ping(context.Background()))
}

func TestRedisStore_UnavailableFailsOpen(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Second)
	mr.Close()

	limiter := New(store, 1)
	assert.True(t, limiter.Allow(context.Background(), "a").Allowed)
	assert.True(t, limiter.Allow(context.Background(), "a").Allowed)
}

func TestNewRedisStoreFromURL(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := NewRedisStoreFromURL("redis://"+mr.Addr()+"/0", time.Second)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Ping(context.Background()))

	_, err = NewRedisStoreFromURL("http://nope", time.Second)
	assert.Error(t, err)
}
