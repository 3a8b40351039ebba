// Package core provides the generic service and HTTP controller that every
// CRUD resource is built from.
package core

import (
	"context"

	"github.com/simp-lee/hexa/internal/domain"
	"github.com/simp-lee/hexa/internal/pkg"
)

// CRUDService is the service surface a Controller needs. Service implements
// it; resource services that add business rules embed Service and override
// the methods they change.
type CRUDService[T any] interface {
	FindByID(ctx context.Context, id any) (*T, error)
	FindAll(ctx context.Context, opts domain.QueryOptions) (*domain.PaginationResult[T], error)
	Create(ctx context.Context, item *T) (*T, error)
	Update(ctx context.Context, id any, fields map[string]any) (*T, error)
	Delete(ctx context.Context, id any) error
}

// Service is a thin pass-through over a domain.Repository.
type Service[T any] struct {
	repo domain.Repository[T]
}

var _ CRUDService[struct{}] = (*Service[struct{}])(nil)

// NewService creates a Service backed by repo.
func NewService[T any](repo domain.Repository[T]) *Service[T] {
	return &Service[T]{repo: repo}
}

// Repository returns the underlying repository.
func (s *Service[T]) Repository() domain.Repository[T] { return s.repo }

// FindByID returns the active entity with the given id, or nil when there is none.
func (s *Service[T]) FindByID(ctx context.Context, id any) (*T, error) {
	return s.repo.GetByID(ctx, id)
}

// FindAll returns one page of active entities. Page and limit default to 1 and 10.
func (s *Service[T]) FindAll(ctx context.Context, opts domain.QueryOptions) (*domain.PaginationResult[T], error) {
	if opts.Page < 1 {
		opts.Page = pkg.DefaultPage
	}
	if opts.Limit < 1 {
		opts.Limit = pkg.DefaultLimit
	}
	return s.repo.GetAll(ctx, opts)
}

// Create persists a new entity.
func (s *Service[T]) Create(ctx context.Context, item *T) (*T, error) {
	return s.repo.Create(ctx, item)
}

// CreateMany persists several entities in one batch.
func (s *Service[T]) CreateMany(ctx context.Context, items []*T) ([]*T, error) {
	return s.repo.CreateMany(ctx, items)
}

// Update applies a partial update to an active entity.
func (s *Service[T]) Update(ctx context.Context, id any, fields map[string]any) (*T, error) {
	return s.repo.Update(ctx, id, fields)
}

// Delete soft-deletes an entity.
func (s *Service[T]) Delete(ctx context.Context, id any) error {
	return s.repo.SoftDelete(ctx, id)
}

// HardDelete physically removes an entity.
func (s *Service[T]) HardDelete(ctx context.Context, id any) error {
	return s.repo.HardDelete(ctx, id)
}

// Count returns the number of active entities matching filters.
func (s *Service[T]) Count(ctx context.Context, filters map[string]any) (int64, error) {
	return s.repo.Count(ctx, filters)
}

// Exists reports whether an active entity with the given id exists. It uses
// the repository's own check when available and falls back to FindByID.
func (s *Service[T]) Exists(ctx context.Context, id any) (bool, error) {
	if ex, ok := s.repo.(domain.Exister); ok {
		return ex.Exists(ctx, id)
	}
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return item != nil, nil
}
