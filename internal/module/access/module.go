package access

import (
	"github.com/gin-gonic/gin"

	"github.com/simp-lee/hexa/internal/middleware"
)

// Module mounts /access. Every route requires access:manage.
type Module struct {
	handler *Handler
	guard   *middleware.Guard
}

// NewModule creates a Module. Panics if h is nil.
func NewModule(h *Handler, guard *middleware.Guard) *Module {
	if h == nil {
		panic("access.NewModule: handler must not be nil")
	}
	return &Module{handler: h, guard: guard}
}

// RegisterRoutes mounts /access under api.
func (m *Module) RegisterRoutes(api *gin.RouterGroup) {
	manage := m.guard.Require(PermManage)
	validGrant := middleware.Validate[GrantRequest](middleware.SourceBody)

	g := api.Group("/access")
	g.POST("/reload", middleware.Chain(manage, m.handler.Reload)...)
	g.GET("/roles", middleware.Chain(manage, m.handler.Roles.FindAll)...)
	g.GET("/roles/:id", middleware.Chain(manage, m.handler.Roles.FindByID)...)
	g.GET("/permissions", middleware.Chain(manage, m.handler.Permissions.FindAll)...)
	g.POST("/grants", middleware.Chain(manage, validGrant, m.handler.Grant)...)
	g.DELETE("/grants", middleware.Chain(manage, validGrant, m.handler.Revoke)...)
}
