// Package access stores roles and permissions in the SQL database and
// serves them to the authorizer.
package access

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/simp-lee/hexa/internal/domain"
	"github.com/simp-lee/hexa/internal/middleware"
)

// Models lists the tables owned by this package, for AutoMigrate.
func Models() []any {
	return []any{&domain.Role{}, &domain.Permission{}, &domain.RolePermission{}}
}

// Loader reads the permission dataset from the access tables. Inactive roles
// and permissions are left out.
type Loader struct {
	db *gorm.DB
}

var _ middleware.DatasetSource = (*Loader)(nil)

// NewLoader creates a Loader over db.
func NewLoader(db *gorm.DB) *Loader {
	return &Loader{db: db}
}

// Dataset loads the full role to permission mapping.
func (l *Loader) Dataset(ctx context.Context) (*domain.PermissionDataset, error) {
	db := l.db.WithContext(ctx)
	ds := &domain.PermissionDataset{
		Roles:           []domain.DatasetRole{},
		Permissions:     []domain.DatasetPermission{},
		RolePermissions: []domain.RolePermission{},
	}

	if err := db.Model(&domain.Role{}).
		Where("is_active = ? AND deleted_at IS NULL", true).
		Order("id").
		Find(&ds.Roles).Error; err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	if err := db.Model(&domain.Permission{}).
		Where("is_active = ? AND deleted_at IS NULL", true).
		Order("id").
		Find(&ds.Permissions).Error; err != nil {
		return nil, fmt.Errorf("load permissions: %w", err)
	}
	if err := db.Order("role_id, permission_id").Find(&ds.RolePermissions).Error; err != nil {
		return nil, fmt.Errorf("load role permissions: %w", err)
	}
	return ds, nil
}
