package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	shardedcache "github.com/simp-lee/cache"

	"github.com/simp-lee/hexa/internal/pkg"
)

// Rate limit defaults.
const (
	DefaultRateLimitWindow  = time.Minute
	DefaultRateLimitMax     = 100
	DefaultRateLimitMessage = "Too many requests, please try again later"
)

// Headers set on every rate limited response.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
)

// RateLimitStore counts hits per key in fixed windows.
type RateLimitStore interface {
	// Hit records one hit for key and returns the hit count in the current
	// window together with the time the window ends.
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
}

// RateLimitConfig configures RateLimit.
type RateLimitConfig struct {
	Window  time.Duration
	Max     int64
	Message string
	Store   RateLimitStore

	// KeyFunc derives the bucket key. Defaults to the client IP.
	KeyFunc func(*gin.Context) string
	// Skip exempts matching requests.
	Skip   func(*gin.Context) bool
	Logger *slog.Logger
}

// RateLimit returns a fixed-window rate limiting middleware. Every counted
// response carries X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset; requests over the limit get 429. If the store fails the
// request is let through and the error is logged.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Window <= 0 {
		cfg.Window = DefaultRateLimitWindow
	}
	if cfg.Max <= 0 {
		cfg.Max = DefaultRateLimitMax
	}
	if cfg.Message == "" {
		cfg.Message = DefaultRateLimitMessage
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryRateLimitStore()
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	limit := strconv.FormatInt(cfg.Max, 10)

	return func(c *gin.Context) {
		if cfg.Skip != nil && cfg.Skip(c) {
			c.Next()
			return
		}

		key := cfg.KeyFunc(c)
		hits, reset, err := cfg.Store.Hit(c.Request.Context(), key, cfg.Window)
		if err != nil {
			cfg.Logger.WarnContext(c.Request.Context(), "rate limit store failed",
				slog.String("key", key),
				slog.Any("error", err),
			)
			c.Next()
			return
		}

		c.Header(HeaderRateLimitLimit, limit)
		c.Header(HeaderRateLimitRemaining, strconv.FormatInt(max(0, cfg.Max-hits), 10))
		c.Header(HeaderRateLimitReset, strconv.FormatInt(ceilUnix(reset), 10))

		if hits > cfg.Max {
			pkg.Abort(c, http.StatusTooManyRequests, cfg.Message,
				pkg.ErrorItem{Field: "rate_limit", Message: cfg.Message, Type: pkg.ErrorTypeRateLimited})
			return
		}
		c.Next()
	}
}

func ceilUnix(t time.Time) int64 {
	s := t.Unix()
	if t.Nanosecond() > 0 {
		s++
	}
	return s
}

// MemoryRateLimitStore keeps one bucket per key and window in a sharded
// in-memory cache. Buckets expire with their window.
type MemoryRateLimitStore struct {
	buckets shardedcache.CacheInterface

	mu        sync.Mutex
	lastSweep time.Time
}

type rateBucket struct {
	hits  atomic.Int64
	reset time.Time
}

// NewMemoryRateLimitStore creates an empty in-memory store.
func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	return &MemoryRateLimitStore{buckets: shardedcache.NewCache(shardedcache.Options{})}
}

// Hit implements RateLimitStore.
func (s *MemoryRateLimitStore) Hit(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	s.sweep(window)

	v := s.buckets.GetOrSetFuncWithExpiration(key, func() any {
		return &rateBucket{reset: time.Now().Add(window)}
	}, window)
	b := v.(*rateBucket)
	return b.hits.Add(1), b.reset, nil
}

// sweep drops expired buckets at most once per window. Reading a key
// through the cache evicts it when expired.
func (s *MemoryRateLimitStore) sweep(window time.Duration) {
	s.mu.Lock()
	now := time.Now()
	due := now.Sub(s.lastSweep) >= window
	if due {
		s.lastSweep = now
	}
	s.mu.Unlock()
	if !due {
		return
	}
	for _, k := range s.buckets.Keys() {
		s.buckets.Get(k)
	}
}

// Len returns the number of tracked keys.
func (s *MemoryRateLimitStore) Len() int {
	return s.buckets.Count()
}

// RedisRateLimitStore shares counters between instances through Redis.
// INCR and PTTL run in one MULTI; a key without expiry gets the window.
type RedisRateLimitStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRateLimitStore creates a store whose keys start with prefix + "ratelimit:".
func NewRedisRateLimitStore(client redis.UniversalClient, prefix string) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client, prefix: prefix + "ratelimit:"}
}

// Hit implements RateLimitStore.
func (s *RedisRateLimitStore) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	k := s.prefix + key
	var (
		incr *redis.IntCmd
		pttl *redis.DurationCmd
	)
	if _, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pttl = pipe.PTTL(ctx, k)
		return nil
	}); err != nil {
		return 0, time.Time{}, fmt.Errorf("rate limit incr: %w", err)
	}

	hits, ttl := incr.Val(), pttl.Val()
	if ttl < 0 {
		if err := s.client.PExpire(ctx, k, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("rate limit expire: %w", err)
		}
		ttl = window
	}
	return hits, time.Now().Add(ttl), nil
}
