// Package store implements the storage-agnostic half of the repository
// contract. Timestamp stamping, the active/not-deleted convention, field
// validation, and pagination math live here once; storage adapters only
// provide a Driver.
package store

import (
	"context"

	"github.com/simp-lee/hexa/internal/domain"
)

// Well-known field names, in the camelCase form used across the API.
const (
	FieldID        = "id"
	FieldIsActive  = "isActive"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
	FieldDeletedAt = "deletedAt"
)

// Query is a fully resolved read request handed to a Driver.
//
// Filters are exact matches that are AND-combined. Search terms are
// OR-combined and case-insensitive. When ActiveOnly is set the driver must
// also require isActive = true and deletedAt = null. A zero Limit means no limit.
type Query struct {
	Filters    map[string]any
	Search     []domain.SearchTerm
	OrderBy    []domain.Order
	ActiveOnly bool
	Offset     int
	Limit      int
}

// Driver is the minimal storage interface a backend implements.
type Driver[T any] interface {
	// Find returns the rows matching q.
	Find(ctx context.Context, q Query) ([]T, error)
	// Count returns the number of rows matching q, ignoring Offset, Limit and OrderBy.
	Count(ctx context.Context, q Query) (int64, error)
	// Insert persists items and fills in their generated IDs.
	Insert(ctx context.Context, items []*T) error
	// Update applies fields to the active row with the given id and returns it.
	// It returns an error matching domain.IsNotFound when no active row matches.
	Update(ctx context.Context, id any, fields map[string]any) (*T, error)
	// Delete physically removes the row with the given id and reports how many rows were removed.
	Delete(ctx context.Context, id any) (int64, error)
}
