package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces counter keys.
const DefaultRedisPrefix = "algod-proxy:tx:"

// incrWindow increments a counter and starts its expiry on the first hit,
// so the key lives for exactly one window.
var incrWindow = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// RedisStore is a Store shared between proxy replicas. Window boundaries
// follow the Redis server's clock; the now argument to Incr is ignored.
type RedisStore struct {
	client redis.UniversalClient
	window time.Duration
	prefix string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient, window time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		window: window,
		prefix: DefaultRedisPrefix,
	}
}

// NewRedisStoreFromURL connects using a redis:// or rediss:// URL.
func NewRedisStoreFromURL(rawURL string, window time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts), window), nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Incr implements Store.
func (s *RedisStore) Incr(ctx context.Context, key string, _ time.Time) (int, error) {
	n, err := incrWindow.Run(ctx, s.client, []string{s.prefix + key}, s.window.Milliseconds()).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	return n, nil
}

// Close releases the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
