package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Compile-time check: *RedisStore implements Store.
var _ Store = (*RedisStore)(nil)

// RedisStore reads secrets from Redis hashes: one hash per namespace, one
// field per key.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Lookup implements Store.
func (s *RedisStore) Lookup(ctx context.Context, namespace, key string) (string, bool, error) {
	val, err := s.rdb.HGet(ctx, namespace, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: redis %s: %v", ErrStoreUnavailable, s.rdb.Options().Addr, err) //nolint:errorlint // backend detail only
	}
	return val, true, nil
}

// Name implements Store.
func (s *RedisStore) Name() string { return "redis" }

// SetupHint implements Store.
func (s *RedisStore) SetupHint(namespace, key string) []string {
	return []string{fmt.Sprintf("redis-cli -h %s HSET %s %s <token>", s.rdb.Options().Addr, namespace, key)}
}
