// Package ratelimit bounds how often a single client may hit a guarded
// endpoint.
//
// The algorithm is a fixed window per client: the first hit opens a window,
// hits are counted until the window has elapsed, then the count restarts.
// Bursts straddling a window edge are accepted; only a hard ceiling per
// window per client is guaranteed.
//
// # Stores
//
// Counters live in a Store:
//
//   - MemoryStore keeps counters in process. Expired entries are evicted by
//     Sweep, which Run calls on a ticker, so memory is bounded by the number
//     of clients active within roughly one window.
//   - RedisStore keeps counters in Redis so several proxy replicas share one
//     budget per client. Keys expire with the window.
//
// # Usage
//
//	store := ratelimit.NewMemoryStore(10 * time.Second)
//	go store.Run(ctx, 20*time.Second)
//	limiter := ratelimit.New(store, 100)
//
//	if d := limiter.Allow(ctx, clientID); !d.Allowed {
//	    // reject with 429
//	}
package ratelimit
