package domain

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BaseModel is the common base struct for SQL-backed models.
// DeletedAt is a plain pointer instead of gorm.DeletedAt so that soft delete
// stays an explicit flag convention and hard delete remains physical.
type BaseModel struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	IsActive  bool       `gorm:"not null;default:true;index" json:"isActive"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `gorm:"index" json:"deletedAt"`
}

// MarkCreated stamps a new row as active with both timestamps set to now.
func (m *BaseModel) MarkCreated(now time.Time) {
	m.IsActive = true
	m.CreatedAt = now
	m.UpdatedAt = now
	m.DeletedAt = nil
}

// DocumentModel is the common base struct for MongoDB-backed documents.
// Embed it with a `bson:",inline"` tag.
type DocumentModel struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	IsActive  bool               `bson:"isActive" json:"isActive"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
	DeletedAt *time.Time         `bson:"deletedAt" json:"deletedAt"`
}

// MarkCreated stamps a new document as active with both timestamps set to now.
func (m *DocumentModel) MarkCreated(now time.Time) {
	m.IsActive = true
	m.CreatedAt = now
	m.UpdatedAt = now
	m.DeletedAt = nil
}

// EnsureID assigns a fresh ObjectID when the document has none and returns it.
func (m *DocumentModel) EnsureID() primitive.ObjectID {
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	return m.ID
}

// Entity is implemented by pointers to models embedding BaseModel or DocumentModel.
type Entity interface {
	MarkCreated(now time.Time)
}

// Search operators. The zero value behaves as SearchContains.
const (
	SearchContains   = "contains"
	SearchEquals     = "equals"
	SearchStartsWith = "startsWith"
	SearchEndsWith   = "endsWith"
)

// SearchTerm is one OR-combined, case-insensitive search condition.
type SearchTerm struct {
	Field    string
	Value    string
	Operator string
}

// Sort directions.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Order is a single ORDER BY clause.
type Order struct {
	Field     string
	Direction string
}

// QueryOptions holds pagination, search, filter, and ordering parameters.
//
// Filters are AND-combined exact matches; nil and empty-string values are ignored.
// Search terms are OR-combined. OrderBy defaults to createdAt desc.
type QueryOptions struct {
	Page    int
	Limit   int
	Search  []SearchTerm
	Filters map[string]any
	OrderBy []Order
}

// PaginationResult is a single page of results together with its totals.
type PaginationResult[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

// NewPaginationResult creates a PaginationResult with computed TotalPages.
func NewPaginationResult[T any](data []T, total int64, page, limit int) *PaginationResult[T] {
	totalPages := 0
	if limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(limit)))
	}
	if data == nil {
		data = []T{}
	}
	return &PaginationResult[T]{
		Data:       data,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}
}
