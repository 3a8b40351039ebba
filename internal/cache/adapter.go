// Package cache provides a Redis-backed key-value cache, a session store on
// top of it, and the adapter that owns the Redis connection.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/simp-lee/hexa/internal/domain"
	"github.com/simp-lee/hexa/internal/pkg"
)

// Config holds the connection settings for an Adapter.
type Config struct {
	Addr     string
	Password string
	DB       int
	// ConnectRetries is the number of extra ping attempts. Zero disables retrying.
	ConnectRetries int
	RetryDelay     time.Duration
}

// Adapter manages the lifecycle of a go-redis client.
type Adapter struct {
	cfg Config

	mu     sync.RWMutex
	client *redis.Client
}

var _ domain.Adapter[*redis.Client] = (*Adapter)(nil)

// NewAdapter creates a disconnected Adapter.
func NewAdapter(cfg Config) *Adapter {
	return &Adapter{cfg: cfg}
}

// Name returns "redis".
func (a *Adapter) Name() string { return "redis" }

// Connect creates the client and pings the server.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client != nil {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         a.cfg.Addr,
		Password:     a.cfg.Password,
		DB:           a.cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ping := func() error { return client.Ping(ctx).Err() }
	var err error
	if a.cfg.ConnectRetries > 0 {
		err = pkg.Retry(ctx, ping, a.cfg.ConnectRetries, a.cfg.RetryDelay)
	} else {
		err = ping()
	}
	if err != nil {
		client.Close()
		return fmt.Errorf("redis: ping %s: %w", a.cfg.Addr, err)
	}

	a.client = client
	return nil
}

// Disconnect closes the client.
func (a *Adapter) Disconnect(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client == nil {
		return nil
	}
	err := a.client.Close()
	a.client = nil
	return err
}

// Client returns the connected client, or nil before Connect.
func (a *Adapter) Client() *redis.Client {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.client
}

// IsConnected reports whether the adapter holds a client.
func (a *Adapter) IsConnected() bool {
	return a.Client() != nil
}

// Ping checks that the server is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	client := a.Client()
	if client == nil {
		return errors.New("redis: not connected")
	}
	return client.Ping(ctx).Err()
}
