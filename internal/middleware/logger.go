package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// LoggerConfig configures the request logger.
type LoggerConfig struct {
	Logger *slog.Logger

	// SkipPaths are request paths that are never logged, such as health checks.
	SkipPaths []string
}

// Logger returns a gin middleware that logs each HTTP request using the provided
// slog.Logger. It records the method, path, matched route, status code,
// latency, and client IP.
//
// The log level is chosen based on the response status code:
//   - 2xx/3xx: Info
//   - 4xx: Warn
//   - 5xx: Error
//
// Context-aware logging is used so the request_id attached by RequestID
// appears on every line.
func Logger(logger *slog.Logger) gin.HandlerFunc {
	return LoggerWithConfig(LoggerConfig{Logger: logger})
}

// LoggerWithConfig returns the request logger configured by cfg.
func LoggerWithConfig(cfg LoggerConfig) gin.HandlerFunc {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		if _, ok := skip[path]; ok {
			return
		}

		status := c.Writer.Status()
		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("route", c.FullPath()),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate); len(errs) > 0 {
			attrs = append(attrs, slog.String("errors", errs.String()))
		}

		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}
		logger.LogAttrs(c.Request.Context(), level, "request", attrs...)
	}
}
