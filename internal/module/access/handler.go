package access

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/simp-lee/hexa/internal/core"
	"github.com/simp-lee/hexa/internal/domain"
	"github.com/simp-lee/hexa/internal/middleware"
	"github.com/simp-lee/hexa/internal/pkg"
	"github.com/simp-lee/hexa/internal/store"
	"github.com/simp-lee/hexa/internal/store/gormstore"
)

// Envelope messages.
const (
	MsgReloaded     = "Permissions reloaded"
	MsgGranted      = "Permission granted"
	MsgRevoked      = "Permission revoked"
	MsgGrantFailed  = "Failed to change permission"
	MsgReloadFailed = "Failed to reload permissions"
)

// GrantRequest names a role and a permission code.
type GrantRequest struct {
	Role string `json:"role" binding:"required,max=50"`
	Code string `json:"code" binding:"required,max=100"`
}

// Handler serves the access endpoints.
type Handler struct {
	db          *gorm.DB
	authorizer  *middleware.Authorizer
	Roles       *core.Controller[domain.Role, *domain.Role]
	Permissions *core.Controller[domain.Permission, *domain.Permission]
}

// NewHandler creates a Handler. authorizer may be nil, in which case
// changes take effect when the permission cache expires.
func NewHandler(db *gorm.DB, authorizer *middleware.Authorizer, logger *slog.Logger) *Handler {
	roles := gormstore.NewRepository[domain.Role](db, store.WithAllowedFields("name", "description"))
	perms := gormstore.NewRepository[domain.Permission](db, store.WithAllowedFields("code", "name"))
	return &Handler{
		db:         db,
		authorizer: authorizer,
		Roles: core.NewController[domain.Role, *domain.Role](
			core.NewService[domain.Role](roles), core.Identity[domain.Role], core.WithLogger(logger)),
		Permissions: core.NewController[domain.Permission, *domain.Permission](
			core.NewService[domain.Permission](perms), core.Identity[domain.Permission], core.WithLogger(logger)),
	}
}

// Reload handles POST /access/reload.
func (h *Handler) Reload(c *gin.Context) {
	if h.authorizer != nil {
		h.authorizer.Reload()
	}
	pkg.Success(c, MsgReloaded, nil)
}

// Grant handles POST /access/grants.
func (h *Handler) Grant(c *gin.Context) {
	req, ok := h.grantRequest(c)
	if !ok {
		return
	}
	if err := GrantPermission(c.Request.Context(), h.db, req.Role, req.Code); err != nil {
		pkg.Error(c, MsgGrantFailed, domain.NewAppError(domain.CodeInternal, "grant permission", err))
		return
	}
	h.reload()
	pkg.Success(c, MsgGranted, req)
}

// Revoke handles DELETE /access/grants.
func (h *Handler) Revoke(c *gin.Context) {
	req, ok := h.grantRequest(c)
	if !ok {
		return
	}
	if err := RevokePermission(c.Request.Context(), h.db, req.Role, req.Code); err != nil {
		pkg.Error(c, MsgGrantFailed, domain.NewAppError(domain.CodeInternal, "revoke permission", err))
		return
	}
	h.reload()
	pkg.Success(c, MsgRevoked, req)
}

func (h *Handler) grantRequest(c *gin.Context) (*GrantRequest, bool) {
	if req, ok := middleware.Validated[GrantRequest](c); ok {
		return req, true
	}
	req := new(GrantRequest)
	return req, pkg.BindAndValidate(c, req)
}

func (h *Handler) reload() {
	if h.authorizer != nil {
		h.authorizer.Reload()
	}
}
