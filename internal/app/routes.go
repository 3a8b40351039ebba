package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/hexa/internal/middleware"
	"github.com/simp-lee/hexa/internal/pkg"
)

// APIPrefix is the group every module is mounted under.
const APIPrefix = "/api/v1"

const healthPingTimeout = time.Second

// HealthCheck is a backend the health endpoint pings.
type HealthCheck interface {
	Name() string
	Ping(ctx context.Context) error
}

// RouteDeps holds all dependencies needed to register routes.
type RouteDeps struct {
	Modules []Module
	Checks  []HealthCheck
	// Metrics, when set, is exposed at MetricsPath.
	Metrics     *middleware.Metrics
	MetricsPath string
}

// RegisterRoutes registers all application routes on the given gin.Engine.
func RegisterRoutes(r *gin.Engine, deps *RouteDeps) error {
	if r == nil {
		return errors.New("router is nil")
	}
	if deps == nil {
		return errors.New("route dependencies are nil")
	}
	if len(deps.Modules) == 0 {
		return errors.New("at least one module is required")
	}

	r.GET("/health", healthHandler(deps.Checks))

	if deps.Metrics != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(deps.Metrics.Handler()))
	}

	api := r.Group(APIPrefix)
	for i, m := range deps.Modules {
		if m == nil {
			return fmt.Errorf("module at index %d is nil", i)
		}
		m.RegisterRoutes(api)
	}

	r.HandleMethodNotAllowed = true
	r.NoRoute(notFoundHandler())
	r.NoMethod(methodNotAllowedHandler())

	return nil
}

// healthHandler pings every backend and reports each one as "ok" or
// "error". Any failure turns the overall status to "degraded" with a 503.
func healthHandler(checks []HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"
		code := http.StatusOK
		components := make(gin.H, len(checks))

		for _, check := range checks {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
			err := check.Ping(ctx)
			cancel()

			if err != nil {
				components[check.Name()] = "error"
				status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			components[check.Name()] = "ok"
		}

		if len(checks) == 0 {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":     status,
			"components": components,
		})
	}
}

func notFoundHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		pkg.Fail(c, http.StatusNotFound, "Route not found", pkg.ErrorItem{
			Field:   "path",
			Message: fmt.Sprintf("no route for %s %s", c.Request.Method, c.Request.URL.Path),
			Type:    pkg.ErrorTypeNotFound,
		})
	}
}

func methodNotAllowedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		pkg.Fail(c, http.StatusMethodNotAllowed, "Method not allowed", pkg.ErrorItem{
			Field:   "method",
			Message: fmt.Sprintf("%s is not allowed on %s", c.Request.Method, c.Request.URL.Path),
			Type:    pkg.ErrorTypeInvalid,
		})
	}
}
