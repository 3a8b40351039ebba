// Package product is the sample CRUD resource. It runs unchanged on either
// storage adapter.
package product

import (
	"strings"

	"github.com/simp-lee/hexa/internal/domain"
)

// Permission codes guarding the product routes.
const (
	PermRead  = "product:read"
	PermWrite = "product:write"
)

// DefaultCategory is used when a product is created without one.
const DefaultCategory = "general"

// CollectionName is the MongoDB collection holding product documents.
const CollectionName = "products"

// fields products can be filtered, searched, sorted, or updated by.
var fields = []string{"name", "category", "unitPrice", "stock"}

// Product is the SQL model.
type Product struct {
	domain.BaseModel
	Name      string  `gorm:"size:100;not null;index" json:"name"`
	Category  string  `gorm:"size:50;not null;index" json:"category"`
	UnitPrice float64 `gorm:"not null;default:0" json:"unitPrice"`
	Stock     int     `gorm:"not null;default:0" json:"stock"`
}

// Document is the MongoDB model.
type Document struct {
	domain.DocumentModel `bson:",inline"`
	Name                 string  `bson:"name" json:"name"`
	Category             string  `bson:"category" json:"category"`
	UnitPrice            float64 `bson:"unitPrice" json:"unitPrice"`
	Stock                int     `bson:"stock" json:"stock"`
}

// CreateRequest is the validated body of POST /products.
type CreateRequest struct {
	Name      string  `json:"name" binding:"required,min=2,max=100"`
	Category  string  `json:"category" binding:"required,max=50"`
	UnitPrice float64 `json:"unitPrice" binding:"gte=0"`
	Stock     int     `json:"stock" binding:"gte=0"`
}

// ApplyDefaults trims text fields and defaults the category.
func (r *CreateRequest) ApplyDefaults() {
	r.Name = strings.TrimSpace(r.Name)
	r.Category = strings.ToLower(strings.TrimSpace(r.Category))
	if r.Category == "" {
		r.Category = DefaultCategory
	}
}

// UpdateRequest is the validated body of PUT and PATCH /products/:id. Absent
// fields are left unchanged.
type UpdateRequest struct {
	Name      *string  `json:"name,omitempty" binding:"omitempty,min=2,max=100"`
	Category  *string  `json:"category,omitempty" binding:"omitempty,min=1,max=50"`
	UnitPrice *float64 `json:"unitPrice,omitempty" binding:"omitempty,gte=0"`
	Stock     *int     `json:"stock,omitempty" binding:"omitempty,gte=0"`
}

// ApplyDefaults trims the text fields that are present.
func (r *UpdateRequest) ApplyDefaults() {
	if r.Name != nil {
		*r.Name = strings.TrimSpace(*r.Name)
	}
	if r.Category != nil {
		*r.Category = strings.ToLower(strings.TrimSpace(*r.Category))
	}
}
