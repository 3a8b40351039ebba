package store

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/simp-lee/hexa/internal/domain"
	"github.com/simp-lee/hexa/internal/pkg"
)

// protectedFields can never be set through Update.
var protectedFields = map[string]bool{
	FieldID:        true,
	"_id":          true,
	FieldIsActive:  true,
	FieldCreatedAt: true,
	FieldDeletedAt: true,
	FieldUpdatedAt: true,
}

// Option configures a Repository.
type Option func(*config)

type config struct {
	allowed map[string]bool
	now     func() time.Time
}

// WithAllowedFields restricts filter, search, order, and update fields to the
// given camelCase names. The bookkeeping fields are always allowed for reads.
func WithAllowedFields(fields ...string) Option {
	return func(c *config) {
		c.allowed = make(map[string]bool, len(fields)+5)
		for _, f := range fields {
			c.allowed[f] = true
		}
		for _, f := range []string{FieldID, FieldIsActive, FieldCreatedAt, FieldUpdatedAt, FieldDeletedAt} {
			c.allowed[f] = true
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// Repository implements domain.Repository on top of a Driver.
// PT is the pointer type of T, which must implement domain.Entity.
type Repository[T any, PT interface {
	*T
	domain.Entity
}] struct {
	driver  Driver[T]
	allowed map[string]bool
	now     func() time.Time
}

// New creates a Repository backed by driver.
func New[T any, PT interface {
	*T
	domain.Entity
}](driver Driver[T], opts ...Option) *Repository[T, PT] {
	cfg := config{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Repository[T, PT]{
		driver:  driver,
		allowed: cfg.allowed,
		now:     cfg.now,
	}
}

// GetByID returns the active row with the given id, or nil when there is none.
func (r *Repository[T, PT]) GetByID(ctx context.Context, id any) (*T, error) {
	rows, err := r.driver.Find(ctx, Query{
		Filters:    map[string]any{FieldID: id},
		ActiveOnly: true,
		Limit:      1,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// GetAll returns one page of active rows. The count and the page fetch run
// concurrently against the same filter.
func (r *Repository[T, PT]) GetAll(ctx context.Context, opts domain.QueryOptions) (*domain.PaginationResult[T], error) {
	page := opts.Page
	if page < 1 {
		page = pkg.DefaultPage
	}
	limit := opts.Limit
	if limit < 1 {
		limit = pkg.DefaultLimit
	}

	q := Query{
		Filters:    r.cleanFilters(opts.Filters),
		Search:     r.cleanSearch(opts.Search),
		OrderBy:    r.cleanOrder(opts.OrderBy),
		ActiveOnly: true,
		Offset:     (page - 1) * limit,
		Limit:      limit,
	}

	var (
		rows  []T
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = r.driver.Count(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		rows, err = r.driver.Find(gctx, q)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return domain.NewPaginationResult(rows, total, page, limit), nil
}

// Create stamps item as active with fresh timestamps and persists it.
func (r *Repository[T, PT]) Create(ctx context.Context, item *T) (*T, error) {
	if item == nil {
		return nil, domain.NewAppError(domain.CodeValidation, "item is required", nil)
	}
	PT(item).MarkCreated(r.now())
	if err := r.driver.Insert(ctx, []*T{item}); err != nil {
		return nil, err
	}
	return item, nil
}

// CreateMany stamps and persists items in a single driver call.
func (r *Repository[T, PT]) CreateMany(ctx context.Context, items []*T) ([]*T, error) {
	if len(items) == 0 {
		return items, nil
	}
	now := r.now()
	for i, item := range items {
		if item == nil {
			return nil, domain.NewAppError(domain.CodeValidation, fmt.Sprintf("item %d is nil", i), nil)
		}
		PT(item).MarkCreated(now)
	}
	if err := r.driver.Insert(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// Update applies a partial update to the active row with the given id.
// Bookkeeping fields in fields are ignored; updatedAt is always refreshed.
func (r *Repository[T, PT]) Update(ctx context.Context, id any, fields map[string]any) (*T, error) {
	changes := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		if protectedFields[k] {
			continue
		}
		if !r.fieldAllowed(k) {
			return nil, domain.NewFieldError(domain.CodeValidation, k, fmt.Sprintf("unknown field %q", k))
		}
		changes[k] = v
	}
	changes[FieldUpdatedAt] = r.now()
	return r.driver.Update(ctx, id, changes)
}

// SoftDelete marks the active row with the given id as deleted.
func (r *Repository[T, PT]) SoftDelete(ctx context.Context, id any) error {
	now := r.now()
	_, err := r.driver.Update(ctx, id, map[string]any{
		FieldIsActive:  false,
		FieldDeletedAt: now,
		FieldUpdatedAt: now,
	})
	return err
}

// HardDelete physically removes the row with the given id, active or not.
func (r *Repository[T, PT]) HardDelete(ctx context.Context, id any) error {
	n, err := r.driver.Delete(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Count returns the number of active rows matching filters.
func (r *Repository[T, PT]) Count(ctx context.Context, filters map[string]any) (int64, error) {
	return r.driver.Count(ctx, Query{
		Filters:    r.cleanFilters(filters),
		ActiveOnly: true,
	})
}

// Exists reports whether an active row with the given id exists.
func (r *Repository[T, PT]) Exists(ctx context.Context, id any) (bool, error) {
	n, err := r.Count(ctx, map[string]any{FieldID: id})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// cleanFilters drops nil and empty-string values and fields that are not
// valid or not allowed.
func (r *Repository[T, PT]) cleanFilters(filters map[string]any) map[string]any {
	if len(filters) == 0 {
		return nil
	}
	out := make(map[string]any, len(filters))
	for k, v := range filters {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		if !r.fieldAllowed(k) {
			continue
		}
		out[k] = v
	}
	return out
}

func (r *Repository[T, PT]) cleanSearch(terms []domain.SearchTerm) []domain.SearchTerm {
	var out []domain.SearchTerm
	for _, t := range terms {
		if t.Value == "" || !r.fieldAllowed(t.Field) {
			continue
		}
		switch t.Operator {
		case "":
			t.Operator = domain.SearchContains
		case domain.SearchContains, domain.SearchEquals, domain.SearchStartsWith, domain.SearchEndsWith:
		default:
			continue
		}
		out = append(out, t)
	}
	return out
}

func (r *Repository[T, PT]) cleanOrder(orders []domain.Order) []domain.Order {
	var out []domain.Order
	for _, o := range orders {
		if o.Direction != domain.SortAsc && o.Direction != domain.SortDesc {
			continue
		}
		if !r.fieldAllowed(o.Field) {
			continue
		}
		out = append(out, o)
	}
	if len(out) == 0 {
		return []domain.Order{{Field: FieldCreatedAt, Direction: domain.SortDesc}}
	}
	return out
}

func (r *Repository[T, PT]) fieldAllowed(field string) bool {
	if !pkg.ValidFieldName(field) {
		return false
	}
	if r.allowed == nil {
		return true
	}
	return r.allowed[field]
}
