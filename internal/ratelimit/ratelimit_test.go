package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestLimiter_FixedWindow(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(10 * time.Second)
	limiter := New(store, 3, WithClock(clock.Now))
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d := limiter.Allow(ctx, "192.0.2.1")
		require.True(t, d.Allowed, "hit %d should be allowed", i)
		assert.Equal(t, i, d.Count)
		assert.Equal(t, 3, d.Limit)
	}

	d := limiter.Allow(ctx, "192.0.2.1")
	assert.False(t, d.Allowed, "hit 4 should be rejected")
	assert.Equal(t, 4, d.Count)

	// A different client has its own budget.
	assert.True(t, limiter.Allow(ctx, "192.0.2.2").Allowed)

	// Exactly one window later the window has not yet been exceeded.
	clock.Advance(10 * time.Second)
	assert.False(t, limiter.Allow(ctx, "192.0.2.1").Allowed)

	// Past the window the count restarts.
	clock.Advance(time.Millisecond)
	d = limiter.Allow(ctx, "192.0.2.1")
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Count)
}

func TestLimiter_ReferenceValues(t *testing.T) {
	clock := newFakeClock()
	limiter := New(NewMemoryStore(10*time.Second), 100, WithClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		require.True(t, limiter.Allow(ctx, "client").Allowed)
		clock.Advance(50 * time.Millisecond)
	}
	assert.False(t, limiter.Allow(ctx, "client").Allowed)
	assert.Equal(t, 100, limiter.Max())
}

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Time) (int, error) {
	return 0, errors.New("connection refused")
}

func TestLimiter_FailsOpen(t *testing.T) {
	limiter := New(failingStore{}, 1)

	for i := 0; i < 3; i++ {
		d := limiter.Allow(context.Background(), "client")
		assert.True(t, d.Allowed)
	}
}

func TestMemoryStore_ConcurrentIncrements(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	now := time.Now()

	const workers, perWorker = 50, 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, err := store.Incr(context.Background(), "shared", now)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	n, err := store.Incr(context.Background(), "shared", now)
	require.NoError(t, err)
	assert.Equal(t, workers*perWorker+1, n)
}

func TestMemoryStore_Sweep(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(10 * time.Second)
	ctx := context.Background()

	_, _ = store.Incr(ctx, "old", clock.Now())
	clock.Advance(8 * time.Second)
	_, _ = store.Incr(ctx, "recent", clock.Now())
	require.Equal(t, 2, store.Len())

	clock.Advance(3 * time.Second)
	removed := store.Sweep(clock.Now())
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())

	// A swept client starts a fresh window.
	n, _ := store.Incr(ctx, "old", clock.Now())
	assert.Equal(t, 1, n)

	clock.Advance(time.Minute)
	assert.Equal(t, 2, store.Sweep(clock.Now()))
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_RunStopsOnCancel(t *testing.T) {
	store := NewMemoryStore(time.Millisecond)
	_, _ = store.Incr(context.Background(), "k", time.Now().Add(-time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.Run(ctx, 5*time.Millisecond) }()

	require.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
