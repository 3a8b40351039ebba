package access

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/simp-lee/hexa/internal/domain"
	"github.com/simp-lee/hexa/internal/pkg"
)

// Permission codes managed by this package.
const (
	PermManage = "access:manage"
)

// Grant maps a role name to the permission codes it holds.
type Grant struct {
	Role        string
	Description string
	Permissions []string
}

// DefaultPermissions are the codes seeded on first start.
var DefaultPermissions = map[string]string{
	"product:read":  "Read products",
	"product:write": "Create, update and delete products",
	"user:read":     "Read users",
	"user:write":    "Create, update and delete users",
	PermManage:      "Manage roles and permissions",
}

// DefaultGrants give the admin role every default permission and the user
// role read access to products.
var DefaultGrants = []Grant{
	{
		Role:        domain.RoleAdmin,
		Description: "Full access",
		Permissions: []string{"product:read", "product:write", "user:read", "user:write", PermManage},
	},
	{
		Role:        domain.RoleUser,
		Description: "Regular account",
		Permissions: []string{"product:read"},
	},
}

// Seed creates the default permissions, roles, and grants. Existing rows
// are kept, so it is safe to run on every start.
func Seed(ctx context.Context, db *gorm.DB) error {
	return pkg.WithTx(ctx, db, func(tx *gorm.DB) error {
		for code, name := range DefaultPermissions {
			if _, err := ensurePermission(tx, code, name); err != nil {
				return err
			}
		}
		for _, g := range DefaultGrants {
			if err := applyGrant(tx, g); err != nil {
				return err
			}
		}
		return nil
	})
}

// GrantPermission gives role the permission code, creating either when
// missing.
func GrantPermission(ctx context.Context, db *gorm.DB, role, code string) error {
	return pkg.WithTx(ctx, db, func(tx *gorm.DB) error {
		return applyGrant(tx, Grant{Role: role, Permissions: []string{code}})
	})
}

// RevokePermission removes the permission code from role. Unknown roles or
// codes are not an error.
func RevokePermission(ctx context.Context, db *gorm.DB, role, code string) error {
	return pkg.WithTx(ctx, db, func(tx *gorm.DB) error {
		var r domain.Role
		if err := tx.Where("name = ?", role).Limit(1).Find(&r).Error; err != nil {
			return err
		}
		var p domain.Permission
		if err := tx.Where("code = ?", code).Limit(1).Find(&p).Error; err != nil {
			return err
		}
		if r.ID == 0 || p.ID == 0 {
			return nil
		}
		return tx.Where("role_id = ? AND permission_id = ?", r.ID, p.ID).
			Delete(&domain.RolePermission{}).Error
	})
}

func applyGrant(tx *gorm.DB, g Grant) error {
	role, err := ensureRole(tx, g.Role, g.Description)
	if err != nil {
		return err
	}
	for _, code := range g.Permissions {
		perm, err := ensurePermission(tx, code, DefaultPermissions[code])
		if err != nil {
			return err
		}
		rp := domain.RolePermission{RoleID: role.ID, PermissionID: perm.ID}
		if err := tx.Where(&rp).FirstOrCreate(&rp).Error; err != nil {
			return fmt.Errorf("grant %s to %s: %w", code, g.Role, err)
		}
	}
	return nil
}

func ensureRole(tx *gorm.DB, name, description string) (*domain.Role, error) {
	var r domain.Role
	if err := tx.Where("name = ?", name).Limit(1).Find(&r).Error; err != nil {
		return nil, fmt.Errorf("find role %s: %w", name, err)
	}
	if r.ID != 0 {
		return &r, nil
	}
	r = domain.Role{Name: name, Description: description}
	r.MarkCreated(tx.NowFunc())
	if err := tx.Create(&r).Error; err != nil {
		return nil, fmt.Errorf("create role %s: %w", name, err)
	}
	return &r, nil
}

func ensurePermission(tx *gorm.DB, code, name string) (*domain.Permission, error) {
	var p domain.Permission
	if err := tx.Where("code = ?", code).Limit(1).Find(&p).Error; err != nil {
		return nil, fmt.Errorf("find permission %s: %w", code, err)
	}
	if p.ID != 0 {
		return &p, nil
	}
	if name == "" {
		name = code
	}
	p = domain.Permission{Code: code, Name: name}
	p.MarkCreated(tx.NowFunc())
	if err := tx.Create(&p).Error; err != nil {
		return nil, fmt.Errorf("create permission %s: %w", code, err)
	}
	return &p, nil
}
