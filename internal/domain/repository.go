package domain

import (
	"context"
	"time"
)

// Repository is the storage-agnostic CRUD contract shared by every adapter.
//
// Read operations only see active, non-deleted rows. GetByID returns (nil, nil)
// when no such row exists. Update, SoftDelete, and HardDelete return an error
// matching IsNotFound when nothing was affected.
type Repository[T any] interface {
	GetByID(ctx context.Context, id any) (*T, error)
	GetAll(ctx context.Context, opts QueryOptions) (*PaginationResult[T], error)
	Create(ctx context.Context, item *T) (*T, error)
	CreateMany(ctx context.Context, items []*T) ([]*T, error)
	Update(ctx context.Context, id any, fields map[string]any) (*T, error)
	SoftDelete(ctx context.Context, id any) error
	HardDelete(ctx context.Context, id any) error
	Count(ctx context.Context, filters map[string]any) (int64, error)
}

// Exister is implemented by repositories with a direct existence check.
type Exister interface {
	Exists(ctx context.Context, id any) (bool, error)
}

// Adapter manages the lifecycle of a storage client.
type Adapter[C any] interface {
	Name() string
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Client() C
	IsConnected() bool
}

// Cache is a key-value cache with optional per-key expiry.
// Get returns (nil, nil) for a missing key. A ttl of zero means no expiry.
type Cache interface {
	Get(ctx context.Context, key string) (any, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Exists(ctx context.Context, key string) (bool, error)
}
