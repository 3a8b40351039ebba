package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/hexa/internal/pkg"
)

// MsgInternalServerError is the envelope message sent after a recovered panic.
const MsgInternalServerError = "Internal server error"

// Recovery returns a gin middleware that recovers from panics, logs the panic
// value with its stack trace, and responds with the standard failure envelope:
//
//	{"status":"failed","message":"Internal server error","data":null,
//	 "errors":[{"field":"server","message":"...","type":"internal_error"}]}
//
// It replaces gin.Recovery() so panics go through structured logging.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.ErrorContext(c.Request.Context(), "panic recovered",
					slog.Any("panic", err),
					slog.String("method", c.Request.Method),
					slog.String("path", c.Request.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)

				if c.Writer.Written() {
					c.Abort()
					return
				}
				pkg.Abort(c, http.StatusInternalServerError, MsgInternalServerError, pkg.ErrorItem{
					Field:   "server",
					Message: fmt.Sprint(err),
					Type:    pkg.ErrorTypeInternal,
				})
			}
		}()
		c.Next()
	}
}
