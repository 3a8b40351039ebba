package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/simp-lee/hexa/internal/pkg"
)

func setupRateLimitRouter(cfg RateLimitConfig) *gin.Engine {
	r := gin.New()
	r.Use(RateLimit(cfg))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func hit(r *gin.Engine, path, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = ip + ":1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit_HeadersAndLimit(t *testing.T) {
	r := setupRateLimitRouter(RateLimitConfig{Max: 2, Window: time.Minute})

	w := hit(r, "/ping", "10.0.0.1")
	if w.Code != http.StatusOK {
		t.Fatalf("first request status = %d", w.Code)
	}
	if got := w.Header().Get("X-RateLimit-Limit"); got != "2" {
		t.Errorf("limit header = %q", got)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "1" {
		t.Errorf("remaining header = %q; want 1", got)
	}
	reset, err := strconv.ParseInt(w.Header().Get("X-RateLimit-Reset"), 10, 64)
	if err != nil || reset < time.Now().Unix() {
		t.Errorf("reset header = %q", w.Header().Get("X-RateLimit-Reset"))
	}

	if w = hit(r, "/ping", "10.0.0.1"); w.Code != http.StatusOK || w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("second request status = %d remaining = %q", w.Code, w.Header().Get("X-RateLimit-Remaining"))
	}

	w = hit(r, "/ping", "10.0.0.1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d; want 429", w.Code)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("remaining never goes negative, got %q", got)
	}
	body := decodeEnvelope(t, w)
	if body.Message != DefaultRateLimitMessage {
		t.Errorf("message = %q", body.Message)
	}
	if len(body.Errors) != 1 || body.Errors[0].Field != "rate_limit" || body.Errors[0].Type != pkg.ErrorTypeRateLimited {
		t.Errorf("errors = %+v", body.Errors)
	}

	if w = hit(r, "/ping", "10.0.0.2"); w.Code != http.StatusOK {
		t.Fatalf("other client status = %d; want 200", w.Code)
	}
}

func TestRateLimit_Skip(t *testing.T) {
	r := setupRateLimitRouter(RateLimitConfig{
		Max:  1,
		Skip: func(c *gin.Context) bool { return c.Request.URL.Path == "/health" },
	})
	for i := 0; i < 3; i++ {
		w := hit(r, "/health", "10.0.0.1")
		if w.Code != http.StatusOK || w.Header().Get("X-RateLimit-Limit") != "" {
			t.Fatalf("skipped request %d: status %d headers %v", i, w.Code, w.Header())
		}
	}
}

type failingStore struct{}

func (failingStore) Hit(context.Context, string, time.Duration) (int64, time.Time, error) {
	return 0, time.Time{}, errors.New("store down")
}

func TestRateLimit_StoreErrorLetsRequestThrough(t *testing.T) {
	r := setupRateLimitRouter(RateLimitConfig{Max: 1, Store: failingStore{}, Logger: newTestLogger(new(bytes.Buffer))})
	if w := hit(r, "/ping", "10.0.0.1"); w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", w.Code)
	}
}

func TestMemoryRateLimitStore_WindowReset(t *testing.T) {
	s := NewMemoryRateLimitStore()
	ctx := context.Background()
	window := 50 * time.Millisecond

	var firstReset time.Time
	for i := int64(1); i <= 3; i++ {
		n, reset, err := s.Hit(ctx, "k", window)
		if err != nil || n != i {
			t.Fatalf("hit %d = %d, %v", i, n, err)
		}
		if i == 1 {
			firstReset = reset
		} else if !reset.Equal(firstReset) {
			t.Fatalf("reset moved within a window: %v != %v", reset, firstReset)
		}
	}
	_, _, _ = s.Hit(ctx, "other", window)

	time.Sleep(2 * window)
	n, _, _ := s.Hit(ctx, "k", window)
	if n != 1 {
		t.Fatalf("count after window = %d; want 1", n)
	}
	if s.Len() != 1 {
		t.Fatalf("expired buckets not swept, len = %d", s.Len())
	}
}

func TestMemoryRateLimitStore_ConcurrentHits(t *testing.T) {
	s := NewMemoryRateLimitStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = s.Hit(ctx, "k", time.Minute)
		}()
	}
	wg.Wait()

	if n, _, _ := s.Hit(ctx, "k", time.Minute); n != 101 {
		t.Fatalf("hits = %d; want 101", n)
	}
}

func TestRedisRateLimitStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := NewRedisRateLimitStore(client, "hexa:")
	ctx := context.Background()

	n, reset, err := s.Hit(ctx, "10.0.0.1", time.Minute)
	if err != nil || n != 1 {
		t.Fatalf("first hit = %d, %v", n, err)
	}
	if time.Until(reset) <= 0 {
		t.Fatalf("reset %v is not in the future", reset)
	}
	if ttl := mr.TTL("hexa:ratelimit:10.0.0.1"); ttl != time.Minute {
		t.Fatalf("ttl = %v; want 1m", ttl)
	}

	if n, _, _ = s.Hit(ctx, "10.0.0.1", time.Minute); n != 2 {
		t.Fatalf("second hit = %d", n)
	}

	mr.FastForward(time.Minute)
	if n, _, _ = s.Hit(ctx, "10.0.0.1", time.Minute); n != 1 {
		t.Fatalf("hit after expiry = %d; want 1", n)
	}

	mr.Set("hexa:ratelimit:stuck", "5")
	if n, _, err = s.Hit(ctx, "stuck", time.Minute); err != nil || n != 6 {
		t.Fatalf("stuck hit = %d, %v", n, err)
	}
	if ttl := mr.TTL("hexa:ratelimit:stuck"); ttl != time.Minute {
		t.Fatalf("stuck key ttl = %v; want expiry restored", ttl)
	}
}

func TestRateLimit_RedisStoreEndToEnd(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := setupRateLimitRouter(RateLimitConfig{Max: 1, Store: NewRedisRateLimitStore(client, "")})
	if w := hit(r, "/ping", "10.0.0.9"); w.Code != http.StatusOK {
		t.Fatalf("first status = %d", w.Code)
	}
	if w := hit(r, "/ping", "10.0.0.9"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d; want 429", w.Code)
	}
}
