package core

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/hexa/internal/domain"
	"github.com/simp-lee/hexa/internal/pkg"
)

// Envelope messages used by Controller.
const (
	MsgRetrieved      = "Data retrieved successfully"
	MsgCreated        = "Data created successfully"
	MsgUpdated        = "Data updated successfully"
	MsgDeleted        = "Data deleted successfully"
	MsgRetrieveFailed = "Failed to retrieve data"
	MsgCreateFailed   = "Failed to create data"
	MsgUpdateFailed   = "Failed to update data"
	MsgDeleteFailed   = "Failed to delete data"
	MsgNotFound       = "Data not found"
)

// writeProtected lists body keys a client may never set on create.
var writeProtected = []string{"id", "_id", "isActive", "createdAt", "updatedAt", "deletedAt"}

// ControllerOption configures a Controller.
type ControllerOption func(*controllerConfig)

type controllerConfig struct {
	logger  *slog.Logger
	idParam string
}

// WithLogger sets the logger used for handler failures.
func WithLogger(l *slog.Logger) ControllerOption {
	return func(c *controllerConfig) { c.logger = l }
}

// WithIDParam sets the route parameter holding the entity id. Default "id".
func WithIDParam(name string) ControllerOption {
	return func(c *controllerConfig) { c.idParam = name }
}

// Handlers is the handler set a resource module mounts.
type Handlers interface {
	FindAll(c *gin.Context)
	FindByID(c *gin.Context)
	Create(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

var _ Handlers = (*Controller[struct{}, struct{}])(nil)

// Controller provides gin handlers for a CRUD resource. Entities of type T
// are turned into response values of type M by the mapper.
type Controller[T any, M any] struct {
	svc     CRUDService[T]
	mapper  func(*T) M
	logger  *slog.Logger
	idParam string
}

// NewController creates a Controller. Panics if svc or mapper is nil.
func NewController[T any, M any](svc CRUDService[T], mapper func(*T) M, opts ...ControllerOption) *Controller[T, M] {
	if svc == nil {
		panic("core.NewController: service must not be nil")
	}
	if mapper == nil {
		panic("core.NewController: mapper must not be nil")
	}
	cfg := controllerConfig{idParam: "id"}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return &Controller[T, M]{svc: svc, mapper: mapper, logger: cfg.logger, idParam: cfg.idParam}
}

// Identity is a mapper that returns the entity itself.
func Identity[T any](item *T) *T { return item }

// FindAll handles GET /<resource>.
func (ctl *Controller[T, M]) FindAll(c *gin.Context) {
	opts := pkg.ParseQueryOptions(c)

	result, err := ctl.svc.FindAll(c.Request.Context(), opts)
	if err != nil {
		ctl.fail(c, MsgRetrieveFailed, err)
		return
	}

	data := make([]M, 0, len(result.Data))
	for i := range result.Data {
		data = append(data, ctl.mapper(&result.Data[i]))
	}
	pkg.List(c, MsgRetrieved, data, pkg.Metadata{
		Page:         result.Page,
		Limit:        result.Limit,
		TotalRecords: result.Total,
		TotalPages:   result.TotalPages,
	})
}

// FindByID handles GET /<resource>/:id. A missing entity yields data null.
func (ctl *Controller[T, M]) FindByID(c *gin.Context) {
	item, err := ctl.svc.FindByID(c.Request.Context(), c.Param(ctl.idParam))
	if err != nil {
		ctl.fail(c, MsgRetrieveFailed, err)
		return
	}
	if item == nil {
		pkg.Success(c, MsgRetrieved, nil)
		return
	}
	pkg.Success(c, MsgRetrieved, ctl.mapper(item))
}

// Create handles POST /<resource>. Body keys are converted to camelCase
// before the body is decoded into T.
func (ctl *Controller[T, M]) Create(c *gin.Context) {
	fields, ok := bindFields(c)
	if !ok {
		return
	}
	for _, k := range writeProtected {
		delete(fields, k)
	}

	item := new(T)
	if err := decodeInto(fields, item); err != nil {
		pkg.ValidationFailed(c, []pkg.ErrorItem{pkg.DecodeErrorItem(err)})
		return
	}

	created, err := ctl.svc.Create(c.Request.Context(), item)
	if err != nil {
		ctl.fail(c, MsgCreateFailed, err)
		return
	}
	pkg.Success(c, MsgCreated, ctl.mapper(created))
}

// Update handles PUT/PATCH /<resource>/:id with a partial body.
func (ctl *Controller[T, M]) Update(c *gin.Context) {
	fields, ok := bindFields(c)
	if !ok {
		return
	}

	updated, err := ctl.svc.Update(c.Request.Context(), c.Param(ctl.idParam), fields)
	if err == nil && updated == nil {
		err = domain.ErrNotFound
	}
	if err != nil {
		ctl.fail(c, MsgUpdateFailed, err)
		return
	}
	pkg.Success(c, MsgUpdated, ctl.mapper(updated))
}

// Delete handles DELETE /<resource>/:id as a soft delete.
func (ctl *Controller[T, M]) Delete(c *gin.Context) {
	if err := ctl.svc.Delete(c.Request.Context(), c.Param(ctl.idParam)); err != nil {
		ctl.fail(c, MsgDeleteFailed, err)
		return
	}
	pkg.Success(c, MsgDeleted, nil)
}

// fail logs err and writes the failure envelope. Not-found errors always
// carry the fixed id item.
func (ctl *Controller[T, M]) fail(c *gin.Context, message string, err error) {
	ctl.logger.ErrorContext(c.Request.Context(), "handler failed",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.Any("error", err),
	)

	if domain.IsNotFound(err) {
		pkg.Fail(c, http.StatusNotFound, message, pkg.ErrorItem{
			Field:   "id",
			Message: MsgNotFound,
			Type:    pkg.ErrorTypeNotFound,
		})
		return
	}
	pkg.Error(c, message, err)
}

// bindFields decodes the JSON object body and camelCases its keys.
func bindFields(c *gin.Context) (map[string]any, bool) {
	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil {
		pkg.ValidationFailed(c, []pkg.ErrorItem{{Field: "body", Message: err.Error(), Type: pkg.ErrorTypeValidation}})
		return nil, false
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return pkg.CamelizeKeys(raw).(map[string]any), true
}

func decodeInto(fields map[string]any, dst any) error {
	b, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}
