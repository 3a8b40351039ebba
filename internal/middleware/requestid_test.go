package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/simp-lee/logger"
)

func requestIDEcho(cfg RequestIDConfig) *gin.Engine {
	r := gin.New()
	r.Use(RequestIDWithConfig(cfg))
	r.GET("/api/v1/me", func(c *gin.Context) {
		var fromCtx string
		for _, a := range logger.FromContext(c.Request.Context()) {
			if a.Key == "request_id" {
				fromCtx = a.Value.String()
			}
		}
		c.JSON(http.StatusOK, gin.H{"gin": GetRequestID(c), "ctx": fromCtx})
	})
	return r
}

func TestRequestID_UpstreamHeader(t *testing.T) {
	tests := []struct {
		name     string
		trust    bool
		upstream string
		reused   bool
	}{
		{"generated when absent", true, "", false},
		{"ignored unless trusted", false, "edge-7f3a", false},
		{"trusted and well formed", true, "edge-7f3a", true},
		{"uuid from a gateway", true, "0b7c6a52-5f7e-4a43-9d6e-2b8f2c1d9e10", true},
		{"64 chars", true, strings.Repeat("a", 64), true},
		{"65 chars", true, strings.Repeat("a", 65), false},
		{"underscore", true, "edge_7f3a", false},
		{"header injection", true, "abc\r\nSet-Cookie: x", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
			if tt.upstream != "" {
				req.Header[requestIDHeader] = []string{tt.upstream}
			}
			w := httptest.NewRecorder()
			requestIDEcho(RequestIDConfig{TrustUpstream: tt.trust}).ServeHTTP(w, req)

			id := w.Header().Get(requestIDHeader)
			if tt.reused {
				if id != tt.upstream {
					t.Fatalf("id = %q; want upstream %q", id, tt.upstream)
				}
			} else if _, err := uuid.Parse(id); err != nil {
				t.Fatalf("id = %q; want a generated UUID", id)
			}
			want := `{"ctx":"` + id + `","gin":"` + id + `"}`
			if w.Body.String() != want {
				t.Errorf("body = %s; want %s", w.Body.String(), want)
			}
		})
	}
}

func TestRequestID_UniquePerRequest(t *testing.T) {
	r := requestIDEcho(RequestIDConfig{})
	seen := make(map[string]bool)
	for range 100 {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
		id := w.Header().Get(requestIDHeader)
		if seen[id] {
			t.Fatalf("duplicate request ID %q", id)
		}
		seen[id] = true
	}
}

// The global chain puts Recovery ahead of RequestID; the panic log must
// still carry the id the client received.
func TestRequestID_InRecoveredPanicLog(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.New(
		logger.WithConsoleWriter(&buf),
		logger.WithConsoleFormat(logger.FormatJSON),
		logger.WithConsoleColor(false),
		logger.WithMiddleware(logger.ContextMiddleware()),
	)
	if err != nil {
		t.Fatalf("logger.New error: %v", err)
	}
	defer log.Close()

	r := gin.New()
	r.Use(Recovery(log.Logger), RequestID())
	r.GET("/api/v1/products/:id", func(c *gin.Context) { panic("nil product") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/products/9", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d; want 500", w.Code)
	}
	id := w.Header().Get(requestIDHeader)
	if id == "" {
		t.Fatal("500 response lost the X-Request-ID header")
	}
	if out := buf.String(); !strings.Contains(out, "panic recovered") || !strings.Contains(out, `"request_id":"`+id+`"`) {
		t.Errorf("panic log missing request_id %s:\n%s", id, out)
	}
}

func TestRequestID_OnRateLimitedResponse(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), RateLimit(RateLimitConfig{Max: 1, Window: time.Minute, Logger: slog.New(slog.DiscardHandler)}))
	r.GET("/api/v1/products", func(c *gin.Context) { c.Status(http.StatusOK) })

	hit(r, "/api/v1/products", "10.1.1.1")
	w := hit(r, "/api/v1/products", "10.1.1.1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d; want 429", w.Code)
	}
	if _, err := uuid.Parse(w.Header().Get(requestIDHeader)); err != nil {
		t.Errorf("429 response X-Request-ID = %q", w.Header().Get(requestIDHeader))
	}
}

func TestGetRequestID_WithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if id := GetRequestID(c); id != "" {
		t.Errorf("GetRequestID = %q; want empty", id)
	}
}
