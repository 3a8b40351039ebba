package auth

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/hexa/internal/middleware"
	"github.com/simp-lee/hexa/internal/module/user"
	"github.com/simp-lee/hexa/internal/pkg"
)

// Envelope messages.
const (
	MsgRegistered     = "Registration successful"
	MsgRegisterFailed = "Registration failed"
	MsgLoggedIn       = "Login successful"
	MsgLoginFailed    = "Login failed"
	MsgLoggedOut      = "Logout successful"
	MsgLogoutFailed   = "Logout failed"
	MsgCurrentUser    = "Current user retrieved successfully"
	MsgCurrentFailed  = "Failed to retrieve current user"
)

// Handler serves the /auth endpoints.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates a Handler. Panics if svc is nil.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	if svc == nil {
		panic("auth.NewHandler: service must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	req, ok := middleware.Validated[user.CreateUserRequest](c)
	if !ok {
		req = new(user.CreateUserRequest)
		if !pkg.BindAndValidate(c, req) {
			return
		}
	}

	u, err := h.svc.Register(c.Request.Context(), *req)
	if err != nil {
		pkg.Error(c, MsgRegisterFailed, err)
		return
	}
	pkg.Success(c, MsgRegistered, user.ToResponse(u))
}

// Login handles POST /auth/login. The session id, when issued, is also
// returned in the X-Session-ID header.
func (h *Handler) Login(c *gin.Context) {
	req, ok := middleware.Validated[LoginRequest](c)
	if !ok {
		req = new(LoginRequest)
		if !pkg.BindAndValidate(c, req) {
			return
		}
	}

	resp, err := h.svc.Login(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		h.logger.WarnContext(c.Request.Context(), "login failed",
			slog.String("login", req.Login),
			slog.Any("error", err),
		)
		pkg.Error(c, MsgLoginFailed, err)
		return
	}
	if resp.SessionID != "" {
		c.Header(middleware.SessionHeader, resp.SessionID)
	}
	pkg.Success(c, MsgLoggedIn, resp)
}

// Logout handles POST /auth/logout. The token itself stays valid until it
// expires; only the session is destroyed.
func (h *Handler) Logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context(), c.GetHeader(middleware.SessionHeader)); err != nil {
		pkg.Error(c, MsgLogoutFailed, err)
		return
	}
	pkg.Success(c, MsgLoggedOut, nil)
}

// Me handles GET /auth/me. A valid session id header has its expiry extended.
func (h *Handler) Me(c *gin.Context) {
	principal, ok := middleware.CurrentUser(c)
	if !ok {
		pkg.Fail(c, http.StatusUnauthorized, middleware.MsgNotAuthenticated, pkg.ErrorItem{
			Field:   "authorization",
			Message: middleware.MsgNotAuthenticated,
			Type:    pkg.ErrorTypeUnauthorized,
		})
		return
	}

	u, err := h.svc.Me(c.Request.Context(), principal)
	if err != nil {
		pkg.Error(c, MsgCurrentFailed, err)
		return
	}

	if id := c.GetHeader(middleware.SessionHeader); id != "" {
		if _, err := h.svc.Touch(c.Request.Context(), id); err != nil {
			h.logger.WarnContext(c.Request.Context(), "session touch failed", slog.Any("error", err))
		}
	}
	pkg.Success(c, MsgCurrentUser, user.ToResponse(u))
}
