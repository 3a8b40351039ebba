package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/simp-lee/hexa/internal/middleware"
	"github.com/simp-lee/hexa/internal/module/user"
)

// Module mounts the /auth endpoints.
type Module struct {
	handler *Handler
	guard   *middleware.Guard
}

// NewModule creates a Module. Panics if h or guard is nil, since logout
// and me need an authenticated user.
func NewModule(h *Handler, guard *middleware.Guard) *Module {
	if h == nil {
		panic("auth.NewModule: handler must not be nil")
	}
	if guard == nil {
		panic("auth.NewModule: guard must not be nil")
	}
	return &Module{handler: h, guard: guard}
}

// RegisterRoutes mounts /auth under api.
func (m *Module) RegisterRoutes(api *gin.RouterGroup) {
	g := api.Group("/auth")
	g.POST("/register", middleware.Validate[user.CreateUserRequest](middleware.SourceBody), m.handler.Register)
	g.POST("/login", middleware.Validate[LoginRequest](middleware.SourceBody), m.handler.Login)
	g.POST("/logout", middleware.Chain(m.guard.Authenticated(), m.handler.Logout)...)
	g.GET("/me", middleware.Chain(m.guard.Authenticated(), m.handler.Me)...)
}
