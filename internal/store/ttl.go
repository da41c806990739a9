// Package store implements the redis-backed shared state the engine runs on:
// a generic TTL key-value store used for seat locks, and the per-schedule
// queue state (sequence counter, waiting zset, active set, ticket records).
// All mutations that must be atomic across concurrent callers use a single
// redis command or a Lua script.
package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// compareAndDelete removes the key only when it still holds the expected
// value. Returns 1 on deletion, 0 otherwise.
var compareAndDelete = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// compareAndExpire refreshes the key's TTL only when it still holds the
// expected value. Returns 1 on success, 0 otherwise.
var compareAndExpire = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)

// TTL is a thin wrapper around a redis client exposing the two atomic
// primitives the engine needs: set-if-absent-with-expiry and
// compare-and-delete (plus compare-and-expire for lock extension). Holder
// identity is carried in the value, so only the owner can delete or extend.
type TTL struct {
	rdb *redis.Client
}

// NewTTL returns a TTL store bound to the given redis client.
func NewTTL(rdb *redis.Client) *TTL {
	return &TTL{rdb: rdb}
}

// SetIfAbsent atomically creates key=value with the given expiry. It returns
// true when this caller won the key, false when it already existed.
func (s *TTL) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, value, ttl).Result()
}

// Value returns the current value of key, or "" when the key does not exist.
func (s *TTL) Value(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// CompareAndDelete deletes key only if it still holds value. It returns true
// when the key was deleted by this call.
func (s *TTL) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	n, err := compareAndDelete.Run(ctx, s.rdb, []string{key}, value).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CompareAndExpire resets the TTL of key only if it still holds value. It
// returns true when the expiry was refreshed.
func (s *TTL) CompareAndExpire(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	n, err := compareAndExpire.Run(ctx, s.rdb, []string{key}, value, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
