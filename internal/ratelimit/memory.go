package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count int
	start time.Time
}

// MemoryStore is an in-process Store. It is safe for concurrent use;
// increments to the same key are serialized.
type MemoryStore struct {
	window  time.Duration
	mu      sync.Mutex
	entries map[string]*window
}

// NewMemoryStore creates a store with the given window length.
func NewMemoryStore(d time.Duration) *MemoryStore {
	return &MemoryStore{
		window:  d,
		entries: make(map[string]*window),
	}
}

// Incr implements Store.
func (s *MemoryStore) Incr(_ context.Context, key string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.entries[key]
	if !ok {
		w = &window{start: now}
		s.entries[key] = w
	}
	if now.Sub(w.start) > s.window {
		w.count = 0
		w.start = now
	}
	w.count++
	return w.count, nil
}

// Sweep removes entries whose window has elapsed and returns how many were
// removed. A removed entry behaves exactly like a reset one on its next hit.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, w := range s.entries {
		if now.Sub(w.start) > s.window {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Run sweeps every interval until ctx is done. An interval of zero uses
// twice the window.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 2 * s.window
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			s.Sweep(now)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
