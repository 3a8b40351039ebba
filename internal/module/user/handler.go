package user

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/hexa/internal/core"
	"github.com/simp-lee/hexa/internal/domain"
	"github.com/simp-lee/hexa/internal/middleware"
	"github.com/simp-lee/hexa/internal/pkg"
)

// Handler serves the user resource. Reads, updates, and deletes come from
// the generic controller; Create registers the account with a hashed password.
type Handler struct {
	*core.Controller[domain.User, *Response]
	svc *Service
}

var _ core.Handlers = (*Handler)(nil)

// NewHandler creates a Handler. Panics if svc is nil.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	if svc == nil {
		panic("user.NewHandler: service must not be nil")
	}
	return &Handler{
		Controller: core.NewController[domain.User, *Response](svc, ToResponse, core.WithLogger(logger)),
		svc:        svc,
	}
}

// Create handles POST /users. The body is normally checked by
// middleware.Validate[CreateUserRequest]; without it the body is bound here.
func (h *Handler) Create(c *gin.Context) {
	req, ok := middleware.Validated[CreateUserRequest](c)
	if !ok {
		req = new(CreateUserRequest)
		if !pkg.BindAndValidate(c, req) {
			return
		}
	}

	u, err := h.svc.Register(c.Request.Context(), *req)
	if err != nil {
		pkg.Error(c, core.MsgCreateFailed, err)
		return
	}
	pkg.Success(c, core.MsgCreated, ToResponse(u))
}
