package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultSessionTTL is used when a SessionStore is created with a zero TTL.
const DefaultSessionTTL = 24 * time.Hour

// Session is the data stored for one session id.
type Session map[string]any

// SessionStore keeps sessions in Redis under a "session:" namespace, each
// with a sliding expiry.
type SessionStore struct {
	cache *RedisCache
	ttl   time.Duration
}

// NewSessionStore creates a store whose keys live under prefix + "session:".
func NewSessionStore(client redis.UniversalClient, prefix string, ttl time.Duration) *SessionStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		cache: NewRedisCache(client, prefix+"session:"),
		ttl:   ttl,
	}
}

// TTL returns the lifetime given to sessions on every write and touch.
func (s *SessionStore) TTL() time.Duration { return s.ttl }

// Create stores data under a new random session id and returns the id.
func (s *SessionStore) Create(ctx context.Context, data Session) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, id, data); err != nil {
		return "", err
	}
	return id, nil
}

// Get returns the session data, or nil when the session does not exist or has expired.
func (s *SessionStore) Get(ctx context.Context, id string) (Session, error) {
	var data Session
	ok, err := s.cache.GetInto(ctx, id, &data)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	if !ok {
		return nil, nil
	}
	if data == nil {
		data = Session{}
	}
	return data, nil
}

// Set replaces the session data and resets its expiry.
func (s *SessionStore) Set(ctx context.Context, id string, data Session) error {
	if data == nil {
		data = Session{}
	}
	return s.cache.Set(ctx, id, data, s.ttl)
}

// Destroy removes the session.
func (s *SessionStore) Destroy(ctx context.Context, id string) error {
	return s.cache.Delete(ctx, id)
}

// Touch resets the session expiry without reading or writing its data.
// It reports false when the session does not exist.
func (s *SessionStore) Touch(ctx context.Context, id string) (bool, error) {
	return s.cache.Expire(ctx, id, s.ttl)
}
