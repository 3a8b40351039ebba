package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/hexa/internal/pkg"
)

// MsgOriginNotAllowed is the envelope message of a rejected preflight.
const MsgOriginNotAllowed = "Origin not allowed"

// CORSConfig holds the configuration for the CORS middleware.
type CORSConfig struct {
	// AllowOrigins lists origins allowed to make cross-origin requests.
	// "*" allows any origin. An empty list allows none.
	AllowOrigins []string

	// AllowMethods and AllowHeaders answer preflight requests.
	AllowMethods []string
	AllowHeaders []string

	// ExposeHeaders lists response headers browser scripts may read.
	ExposeHeaders []string

	// AllowCredentials lets browsers send cookies and auth headers. The
	// request origin is echoed instead of "*" when set.
	AllowCredentials bool

	// MaxAge is how long browsers may cache a preflight answer. Zero omits
	// the header.
	MaxAge time.Duration
}

// DefaultCORSConfig allows any origin and the headers this API reads and
// writes: Authorization, the session and request ID headers, and the rate
// limit counters.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", requestIDHeader, SessionHeader},
		ExposeHeaders: []string{
			requestIDHeader, SessionHeader,
			HeaderRateLimitLimit, HeaderRateLimitRemaining, HeaderRateLimitReset,
		},
		MaxAge: 24 * time.Hour,
	}
}

// CORSWithConfig returns a gin middleware for Cross-Origin Resource Sharing.
// Preflights from allowed origins end with 204; preflights from other
// origins get a 403 envelope. Simple requests from other origins pass
// through without CORS headers, so the browser blocks the response.
func CORSWithConfig(cfg CORSConfig) gin.HandlerFunc {
	allowAll := slices.Contains(cfg.AllowOrigins, "*")
	allowMethods := strings.Join(cfg.AllowMethods, ", ")
	allowHeaders := strings.Join(cfg.AllowHeaders, ", ")
	exposeHeaders := strings.Join(cfg.ExposeHeaders, ", ")
	maxAge := ""
	if secs := int64(cfg.MaxAge / time.Second); secs > 0 {
		maxAge = strconv.FormatInt(secs, 10)
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Add("Vary", "Origin")
		preflight := c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != ""

		if !allowAll && !slices.Contains(cfg.AllowOrigins, origin) {
			if preflight {
				pkg.Abort(c, http.StatusForbidden, MsgOriginNotAllowed,
					pkg.ErrorItem{Field: "origin", Message: "origin " + origin + " is not allowed", Type: pkg.ErrorTypeForbidden})
				return
			}
			c.Next()
			return
		}

		if allowAll && !cfg.AllowCredentials {
			h.Set("Access-Control-Allow-Origin", "*")
		} else {
			h.Set("Access-Control-Allow-Origin", origin)
		}
		if cfg.AllowCredentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}

		if !preflight {
			if exposeHeaders != "" {
				h.Set("Access-Control-Expose-Headers", exposeHeaders)
			}
			c.Next()
			return
		}

		h.Add("Vary", "Access-Control-Request-Method")
		h.Add("Vary", "Access-Control-Request-Headers")
		h.Set("Access-Control-Allow-Methods", allowMethods)
		h.Set("Access-Control-Allow-Headers", allowHeaders)
		if maxAge != "" {
			h.Set("Access-Control-Max-Age", maxAge)
		}
		c.AbortWithStatus(http.StatusNoContent)
	}
}
