// Package gormstore implements store.Driver on top of gorm for SQL databases.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/simp-lee/hexa/internal/domain"
	"github.com/simp-lee/hexa/internal/pkg"
	"github.com/simp-lee/hexa/internal/store"
)

// batchSize bounds the number of rows per INSERT statement in Insert.
const batchSize = 100

// Driver is a gorm-backed store.Driver for models embedding domain.BaseModel.
// Field names are resolved against the parsed model schema, so filters on
// unknown columns are dropped instead of reaching the database.
type Driver[T any] struct {
	db *gorm.DB

	schemaOnce  sync.Once
	schemaCache sync.Map
	schema      *schema.Schema
}

// NewDriver creates a Driver for T using db.
func NewDriver[T any](db *gorm.DB) *Driver[T] {
	return &Driver[T]{db: db}
}

// NewRepository is a shorthand for store.New over a gorm Driver.
func NewRepository[T any, PT interface {
	*T
	domain.Entity
}](db *gorm.DB, opts ...store.Option) *store.Repository[T, PT] {
	return store.New[T, PT](NewDriver[T](db), opts...)
}

// Find returns the rows matching q.
func (d *Driver[T]) Find(ctx context.Context, q store.Query) ([]T, error) {
	rows := make([]T, 0)
	scope, ok := d.scope(q)
	if !ok {
		return rows, nil
	}

	tx := d.db.WithContext(ctx).Model(new(T)).Scopes(scope)
	for _, o := range q.OrderBy {
		col, ok := d.column(o.Field)
		if !ok {
			continue
		}
		tx = tx.Order(clause.OrderByColumn{
			Column: clause.Column{Name: col},
			Desc:   o.Direction == domain.SortDesc,
		})
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	if err := tx.Find(&rows).Error; err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

// Count returns the number of rows matching q.
func (d *Driver[T]) Count(ctx context.Context, q store.Query) (int64, error) {
	scope, ok := d.scope(q)
	if !ok {
		return 0, nil
	}
	var total int64
	if err := d.db.WithContext(ctx).Model(new(T)).Scopes(scope).Count(&total).Error; err != nil {
		return 0, mapError(err)
	}
	return total, nil
}

// Insert creates items. More than one item is inserted inside a transaction.
func (d *Driver[T]) Insert(ctx context.Context, items []*T) error {
	switch len(items) {
	case 0:
		return nil
	case 1:
		return mapError(d.db.WithContext(ctx).Create(items[0]).Error)
	}
	err := pkg.WithTx(ctx, d.db, func(tx *gorm.DB) error {
		return tx.CreateInBatches(items, batchSize).Error
	})
	return mapError(err)
}

// Update applies fields to the active row with the given id and returns the
// row as stored afterwards.
func (d *Driver[T]) Update(ctx context.Context, id any, fields map[string]any) (*T, error) {
	pk, ok := normalizeID(id)
	if !ok {
		return nil, domain.ErrNotFound
	}

	changes := make(map[string]any, len(fields))
	for k, v := range fields {
		col, ok := d.column(k)
		if !ok {
			return nil, domain.NewFieldError(domain.CodeValidation, k, fmt.Sprintf("unknown field %q", k))
		}
		changes[col] = v
	}

	result := d.db.WithContext(ctx).Model(new(T)).
		Where("id = ?", pk).
		Scopes(activeOnly).
		Updates(changes)
	if result.Error != nil {
		return nil, mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, domain.ErrNotFound
	}

	var out T
	if err := d.db.WithContext(ctx).Where("id = ?", pk).First(&out).Error; err != nil {
		return nil, mapError(err)
	}
	return &out, nil
}

// Delete physically removes the row with the given id.
func (d *Driver[T]) Delete(ctx context.Context, id any) (int64, error) {
	pk, ok := normalizeID(id)
	if !ok {
		return 0, nil
	}
	result := d.db.WithContext(ctx).Where("id = ?", pk).Delete(new(T))
	if result.Error != nil {
		return 0, mapError(result.Error)
	}
	return result.RowsAffected, nil
}

// scope builds the WHERE part of q. It reports false when q can never match,
// for example when the id filter is not a valid numeric id.
func (d *Driver[T]) scope(q store.Query) (func(*gorm.DB) *gorm.DB, bool) {
	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var exprs []clause.Expression
	for _, k := range keys {
		v := q.Filters[k]
		if k == store.FieldID {
			pk, ok := normalizeID(v)
			if !ok {
				return nil, false
			}
			v = pk
		}
		col, ok := d.column(k)
		if !ok {
			continue
		}
		exprs = append(exprs, clause.Eq{Column: clause.Column{Name: col}, Value: v})
	}

	var (
		ors  []string
		args []any
	)
	for _, t := range q.Search {
		col, ok := d.column(t.Field)
		if !ok {
			continue
		}
		value := strings.ToLower(t.Value)
		if t.Operator == domain.SearchEquals {
			ors = append(ors, "LOWER("+col+") = ?")
			args = append(args, value)
			continue
		}
		ors = append(ors, "LOWER("+col+`) LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(value, t.Operator))
	}

	return func(db *gorm.DB) *gorm.DB {
		if len(exprs) > 0 {
			db = db.Where(clause.And(exprs...))
		}
		if len(ors) > 0 {
			db = db.Where("("+strings.Join(ors, " OR ")+")", args...)
		}
		if q.ActiveOnly {
			db = activeOnly(db)
		}
		return db
	}, true
}

func activeOnly(db *gorm.DB) *gorm.DB {
	return db.Where("is_active = ? AND deleted_at IS NULL", true)
}

// column maps a camelCase field name to its snake_case column. Dotted
// (nested) names have no SQL equivalent and are rejected, as are names that
// are not columns of T.
func (d *Driver[T]) column(field string) (string, bool) {
	if !pkg.ValidFieldName(field) || strings.Contains(field, ".") {
		return "", false
	}
	col := pkg.ToSnake(field)

	d.schemaOnce.Do(func() {
		s, err := schema.Parse(new(T), &d.schemaCache, d.db.NamingStrategy)
		if err == nil {
			d.schema = s
		}
	})
	if d.schema == nil {
		return col, true
	}
	f := d.schema.LookUpField(col)
	if f == nil || f.DBName == "" {
		return "", false
	}
	return f.DBName, true
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(value, operator string) string {
	v := likeEscaper.Replace(value)
	switch operator {
	case domain.SearchStartsWith:
		return v + "%"
	case domain.SearchEndsWith:
		return "%" + v
	default:
		return "%" + v + "%"
	}
}

// normalizeID converts id to an unsigned integer key. Numeric strings are
// parsed; anything else that is not an integer cannot match a row.
func normalizeID(id any) (uint64, bool) {
	switch v := id.(type) {
	case uint:
		return uint64(v), true
	case uint32:
		return uint64(v), true
	case uint64:
		return v, true
	case int:
		return uint64(v), v >= 0
	case int32:
		return uint64(v), v >= 0
	case int64:
		return uint64(v), v >= 0
	case float64:
		return uint64(v), v >= 0 && v == float64(uint64(v))
	case string:
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// mapError converts gorm errors to domain errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicateKeyError(err) {
		return domain.NewAppError(domain.CodeAlreadyExists, "already exists", err)
	}
	return domain.NewAppError(domain.CodeInternal, "database error", err)
}

// isDuplicateKeyError detects unique constraint violations by examining the
// error message. Not every dialector translates driver errors to
// gorm.ErrDuplicatedKey (the pure-Go SQLite driver does not).
func isDuplicateKeyError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
