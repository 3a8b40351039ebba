package domain

// Role is a named group of permissions.
type Role struct {
	BaseModel
	Name        string `gorm:"size:50;uniqueIndex;not null" json:"name"`
	Description string `gorm:"size:255" json:"description"`
}

// Permission is a grantable capability identified by Code, e.g. "product:read".
type Permission struct {
	BaseModel
	Code string `gorm:"size:100;uniqueIndex;not null" json:"code"`
	Name string `gorm:"size:100" json:"name"`
}

// RolePermission joins roles to permissions.
type RolePermission struct {
	RoleID       uint `gorm:"primaryKey;autoIncrement:false" json:"role_id"`
	PermissionID uint `gorm:"primaryKey;autoIncrement:false" json:"permission_id"`
}

// DatasetRole is a role row inside a PermissionDataset.
type DatasetRole struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// DatasetPermission is a permission row inside a PermissionDataset.
type DatasetPermission struct {
	ID   uint   `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// PermissionDataset is the role to permission mapping used for authorization checks.
type PermissionDataset struct {
	Roles           []DatasetRole       `json:"roles"`
	RolePermissions []RolePermission    `json:"role_permissions"`
	Permissions     []DatasetPermission `json:"permissions"`
}

// PermissionsFor returns the set of permission codes granted to the named role.
// It scans the dataset once per call.
func (d *PermissionDataset) PermissionsFor(role string) map[string]struct{} {
	codes := make(map[string]struct{})
	if d == nil {
		return codes
	}

	roleIDs := make(map[uint]struct{})
	for _, r := range d.Roles {
		if r.Name == role {
			roleIDs[r.ID] = struct{}{}
		}
	}
	if len(roleIDs) == 0 {
		return codes
	}

	permIDs := make(map[uint]struct{})
	for _, rp := range d.RolePermissions {
		if _, ok := roleIDs[rp.RoleID]; ok {
			permIDs[rp.PermissionID] = struct{}{}
		}
	}

	for _, p := range d.Permissions {
		if _, ok := permIDs[p.ID]; ok {
			codes[p.Code] = struct{}{}
		}
	}
	return codes
}
