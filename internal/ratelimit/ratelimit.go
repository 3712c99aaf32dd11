package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Store counts hits per key within fixed windows.
type Store interface {
	// Incr records one hit for key at now and returns the number of hits in
	// the key's current window, including this one.
	Incr(ctx context.Context, key string, now time.Time) (int, error)
}

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed bool
	Key     string
	Count   int
	Limit   int
}

// Limiter enforces a maximum number of hits per key per window.
type Limiter struct {
	store  Store
	max    int
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock sets the time source. Used by tests to control windows.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// WithLogger sets the logger used to report store failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// New creates a limiter allowing max hits per key per store window.
func New(store Store, max int, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		max:    max,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Max returns the per-window ceiling.
func (l *Limiter) Max() int {
	return l.max
}

// Allow records a hit for key and reports whether it is within budget.
// If the store fails the hit is allowed and the failure logged.
func (l *Limiter) Allow(ctx context.Context, key string) Decision {
	count, err := l.store.Incr(ctx, key, l.now())
	if err != nil {
		l.logger.Warn("rate limit store unavailable, allowing request", "key", key, "error", err)
		return Decision{Allowed: true, Key: key, Limit: l.max}
	}
	return Decision{
		Allowed: count <= l.max,
		Key:     key,
		Count:   count,
		Limit:   l.max,
	}
}
