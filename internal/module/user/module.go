package user

import (
	"github.com/gin-gonic/gin"

	"github.com/simp-lee/hexa/internal/middleware"
)

// Permission codes guarding the user routes.
const (
	PermRead  = "user:read"
	PermWrite = "user:write"
)

// Module mounts the user resource.
type Module struct {
	handler *Handler
	guard   *middleware.Guard
}

// NewModule creates a Module. A nil guard leaves the routes open.
// Panics if h is nil.
func NewModule(h *Handler, guard *middleware.Guard) *Module {
	if h == nil {
		panic("user.NewModule: handler must not be nil")
	}
	return &Module{handler: h, guard: guard}
}

// RegisterRoutes mounts /users under api.
func (m *Module) RegisterRoutes(api *gin.RouterGroup) {
	read := m.guard.Require(PermRead)
	write := m.guard.Require(PermWrite)

	g := api.Group("/users")
	g.GET("", middleware.Chain(read, m.handler.FindAll)...)
	g.GET("/:id", middleware.Chain(read, m.handler.FindByID)...)
	g.POST("", middleware.Chain(write, middleware.Validate[CreateUserRequest](middleware.SourceBody), m.handler.Create)...)
	g.PUT("/:id", middleware.Chain(write, m.handler.Update)...)
	g.PATCH("/:id", middleware.Chain(write, m.handler.Update)...)
	g.DELETE("/:id", middleware.Chain(write, m.handler.Delete)...)
}
