package mongostore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/simp-lee/hexa/internal/domain"
	"github.com/simp-lee/hexa/internal/pkg"
)

// Config holds the connection settings for an Adapter.
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	// ConnectRetries is the number of extra connection attempts. Zero disables retrying.
	ConnectRetries int
	RetryDelay     time.Duration
}

// Adapter manages the lifecycle of a MongoDB client.
type Adapter struct {
	cfg Config

	mu     sync.RWMutex
	client *mongo.Client
}

var _ domain.Adapter[*mongo.Client] = (*Adapter)(nil)

// NewAdapter creates a disconnected Adapter.
func NewAdapter(cfg Config) *Adapter {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	return &Adapter{cfg: cfg}
}

// Name returns "mongo".
func (a *Adapter) Name() string { return "mongo" }

// Connect creates the client and pings the primary.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client != nil {
		return nil
	}

	connect := func() error {
		cctx, cancel := context.WithTimeout(ctx, a.cfg.ConnectTimeout)
		defer cancel()

		client, err := mongo.Connect(cctx, options.Client().ApplyURI(a.cfg.URI))
		if err != nil {
			return err
		}
		if err := client.Ping(cctx, readpref.Primary()); err != nil {
			_ = client.Disconnect(context.Background())
			return err
		}
		a.client = client
		return nil
	}

	var err error
	if a.cfg.ConnectRetries > 0 {
		err = pkg.Retry(ctx, connect, a.cfg.ConnectRetries, a.cfg.RetryDelay)
	} else {
		err = connect()
	}
	if err != nil {
		return fmt.Errorf("mongo: connect: %w", err)
	}
	return nil
}

// Disconnect closes the client.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client == nil {
		return nil
	}
	err := a.client.Disconnect(ctx)
	a.client = nil
	return err
}

// Client returns the connected client, or nil before Connect.
func (a *Adapter) Client() *mongo.Client {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.client
}

// IsConnected reports whether the adapter holds a client.
func (a *Adapter) IsConnected() bool {
	return a.Client() != nil
}

// Ping checks that the primary is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	client := a.Client()
	if client == nil {
		return errors.New("mongo: not connected")
	}
	return client.Ping(ctx, readpref.Primary())
}

// Database returns the configured database handle.
func (a *Adapter) Database() *mongo.Database {
	client := a.Client()
	if client == nil {
		return nil
	}
	return client.Database(a.cfg.Database)
}
