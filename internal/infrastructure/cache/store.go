package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hr-workforce-api/internal/config"
)

// ErrUnavailable wraps transport-level Redis failures so callers can tell
// them apart from a plain cache miss.
var ErrUnavailable = errors.New("ephemeral store unavailable")

// compareAndDeleteScript deletes the key only when it currently holds the
// expected value. GET, compare and DEL execute as one script, so two racing
// callers presenting the same value can never both observe a match.
const compareAndDeleteScript = `
local current = redis.call("GET", KEYS[1])
if current == false then
  return 0
end
if current ~= ARGV[1] then
  return -1
end
redis.call("DEL", KEYS[1])
return 1
`

var compareAndDeleteLua = redis.NewScript(compareAndDeleteScript)

// Store is the TTL-backed key-value store shared by pending registrations,
// OTP codes, session mirrors and refresh-token mirrors.
type Store struct {
	rdb *redis.Client
}

func NewClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Set writes value under key with the given TTL, overwriting any prior entry.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get returns the stored value and whether the key exists. An expired or
// absent key is not an error.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return v, true, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// DeleteExisting removes key and reports whether it existed. DEL's removed
// count is atomic, so of two racing callers exactly one observes true.
func (s *Store) DeleteExisting(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// CompareAndDelete removes key only if it currently holds expected.
// Returns true when this caller consumed the value. A mismatch or an
// absent key leaves the store untouched.
func (s *Store) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	n, err := compareAndDeleteLua.Run(ctx, s.rdb, []string{key}, expected).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n == 1, nil
}

// DeletePattern removes all keys matching the glob pattern. Iterates with
// SCAN to avoid blocking Redis.
func (s *Store) DeletePattern(ctx context.Context, pattern string) error {
	iter := s.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := s.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
