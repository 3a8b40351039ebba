package gormstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/simp-lee/hexa/internal/domain"
)

// ConnectFunc opens a database connection.
type ConnectFunc func(ctx context.Context) (*gorm.DB, error)

// Adapter manages the lifecycle of a gorm connection.
type Adapter struct {
	name    string
	connect ConnectFunc

	mu sync.RWMutex
	db *gorm.DB
}

var _ domain.Adapter[*gorm.DB] = (*Adapter)(nil)

// NewAdapter creates an Adapter that opens its connection with connect.
func NewAdapter(name string, connect ConnectFunc) *Adapter {
	return &Adapter{name: name, connect: connect}
}

// FromDB wraps an already open connection.
func FromDB(name string, db *gorm.DB) *Adapter {
	return &Adapter{name: name, db: db}
}

// Name returns the adapter name.
func (a *Adapter) Name() string { return a.name }

// Connect opens the connection. Calling it again while connected is a no-op.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db != nil {
		return nil
	}
	if a.connect == nil {
		return errors.New("gormstore: no connect function")
	}
	db, err := a.connect(ctx)
	if err != nil {
		return fmt.Errorf("%s: connect: %w", a.name, err)
	}
	a.db = db
	return nil
}

// Disconnect closes the underlying sql.DB.
func (a *Adapter) Disconnect(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return fmt.Errorf("%s: get sql.DB: %w", a.name, err)
	}
	a.db = nil
	return sqlDB.Close()
}

// Client returns the open connection, or nil before Connect.
func (a *Adapter) Client() *gorm.DB {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.db
}

// IsConnected reports whether Connect has succeeded and Disconnect has not been called.
func (a *Adapter) IsConnected() bool {
	return a.Client() != nil
}

// Ping checks that the database is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	db := a.Client()
	if db == nil {
		return fmt.Errorf("%s: not connected", a.name)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
