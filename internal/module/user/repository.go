package user

import (
	"gorm.io/gorm"

	"github.com/simp-lee/hexa/internal/domain"
	"github.com/simp-lee/hexa/internal/store"
	"github.com/simp-lee/hexa/internal/store/gormstore"
)

// Fields users can be filtered, searched, sorted, or updated by.
var allowedFields = []string{"name", "username", "email", "role", fieldPasswordHash}

// NewRepository creates the user repository backed by the given GORM database.
func NewRepository(db *gorm.DB) domain.Repository[domain.User] {
	return gormstore.NewRepository[domain.User](db, store.WithAllowedFields(allowedFields...))
}
