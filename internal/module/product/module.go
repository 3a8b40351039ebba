package product

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"github.com/simp-lee/hexa/internal/core"
	"github.com/simp-lee/hexa/internal/domain"
	"github.com/simp-lee/hexa/internal/middleware"
	"github.com/simp-lee/hexa/internal/store"
	"github.com/simp-lee/hexa/internal/store/gormstore"
	"github.com/simp-lee/hexa/internal/store/mongostore"
)

// Module mounts /products over whichever store backs it.
type Module struct {
	handlers core.Handlers
	guard    *middleware.Guard
}

// NewModule creates a Module from a handler set. Panics if h is nil.
func NewModule(h core.Handlers, guard *middleware.Guard) *Module {
	if h == nil {
		panic("product.NewModule: handlers must not be nil")
	}
	return &Module{handlers: h, guard: guard}
}

// NewSQLRepository returns the product repository over db.
func NewSQLRepository(db *gorm.DB) domain.Repository[Product] {
	return gormstore.NewRepository[Product](db, store.WithAllowedFields(fields...))
}

// NewMongoRepository returns the product repository over the products
// collection of database.
func NewMongoRepository(database *mongo.Database) domain.Repository[Document] {
	return mongostore.NewRepository[Document](database.Collection(CollectionName), store.WithAllowedFields(fields...))
}

// NewSQLModule builds the module on the SQL store.
func NewSQLModule(db *gorm.DB, guard *middleware.Guard, logger *slog.Logger) *Module {
	svc := core.NewService(NewSQLRepository(db))
	return NewModule(core.NewController[Product, *Product](svc, core.Identity[Product], core.WithLogger(logger)), guard)
}

// NewMongoModule builds the module on MongoDB.
func NewMongoModule(database *mongo.Database, guard *middleware.Guard, logger *slog.Logger) *Module {
	svc := core.NewService(NewMongoRepository(database))
	return NewModule(core.NewController[Document, *Document](svc, core.Identity[Document], core.WithLogger(logger)), guard)
}

// RegisterRoutes mounts /products under api.
func (m *Module) RegisterRoutes(api *gin.RouterGroup) {
	read := m.guard.Require(PermRead)
	write := m.guard.Require(PermWrite)
	validCreate := middleware.Validate[CreateRequest](middleware.SourceBody)
	validUpdate := middleware.Validate[UpdateRequest](middleware.SourceBody)

	g := api.Group("/products")
	g.GET("", middleware.Chain(read, m.handlers.FindAll)...)
	g.GET("/:id", middleware.Chain(read, m.handlers.FindByID)...)
	g.POST("", middleware.Chain(write, validCreate, m.handlers.Create)...)
	g.PUT("/:id", middleware.Chain(write, validUpdate, m.handlers.Update)...)
	g.PATCH("/:id", middleware.Chain(write, validUpdate, m.handlers.Update)...)
	g.DELETE("/:id", middleware.Chain(write, m.handlers.Delete)...)
}
