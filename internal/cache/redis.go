package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/simp-lee/hexa/internal/domain"
)

// DefaultPrefix is prepended to every key when no prefix is configured.
const DefaultPrefix = "hexa:"

// Special TTL results, as reported by Redis.
const (
	NoExpiry   time.Duration = -1
	KeyMissing time.Duration = -2
)

// scanCount is the COUNT hint passed to SCAN in Clear.
const scanCount = 100

// RedisCache is a domain.Cache on a Redis client. Every key is namespaced by
// a prefix so several caches can share one database.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

var _ domain.Cache = (*RedisCache)(nil)

// NewRedisCache creates a cache that stores keys under prefix.
// An empty prefix means DefaultPrefix.
func NewRedisCache(client redis.UniversalClient, prefix string) *RedisCache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisCache{client: client, prefix: prefix}
}

// Prefix returns the key namespace of c.
func (c *RedisCache) Prefix() string { return c.prefix }

func (c *RedisCache) key(k string) string { return c.prefix + k }

// Get returns the value stored under key. JSON values are decoded, anything
// that is not valid JSON is returned as the raw string, and a missing key
// yields (nil, nil).
func (c *RedisCache) Get(ctx context.Context, key string) (any, error) {
	raw, err := c.client.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %q: %w", key, err)
	}

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw, nil
	}
	return v, nil
}

// GetInto decodes the JSON value stored under key into dst. It reports false
// when the key does not exist.
func (c *RedisCache) GetInto(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %q: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("cache decode %q: %w", key, err)
	}
	return true, nil
}

// Set stores value under key. Strings are stored as-is and everything else is
// JSON-encoded. A positive ttl sets the value and its expiry atomically.
func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	var payload any
	switch v := value.(type) {
	case string:
		payload = v
	case []byte:
		payload = v
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("cache encode %q: %w", key, err)
		}
		payload = b
	}

	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, c.key(key), payload, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("cache delete %q: %w", key, err)
	}
	return nil
}

// Exists reports whether key is present.
func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("cache exists %q: %w", key, err)
	}
	return n > 0, nil
}

// Expire sets the expiry of key. It reports false when the key does not exist.
func (c *RedisCache) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.client.Expire(ctx, c.key(key), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cache expire %q: %w", key, err)
	}
	return ok, nil
}

// TTL returns the remaining lifetime of key, NoExpiry for a persistent key,
// or KeyMissing when the key does not exist.
func (c *RedisCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := c.client.TTL(ctx, c.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("cache ttl %q: %w", key, err)
	}
	return d, nil
}

// Incr atomically increments the integer stored under key and returns the new value.
func (c *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Incr(ctx, c.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("cache incr %q: %w", key, err)
	}
	return n, nil
}

// Decr atomically decrements the integer stored under key and returns the new value.
func (c *RedisCache) Decr(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Decr(ctx, c.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("cache decr %q: %w", key, err)
	}
	return n, nil
}

// Clear deletes every key under the cache prefix. Keys are walked with a SCAN
// cursor and deleted one batch at a time, so memory use stays bounded.
func (c *RedisCache) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", scanCount).Result()
		if err != nil {
			return fmt.Errorf("cache clear: scan: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("cache clear: delete: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
