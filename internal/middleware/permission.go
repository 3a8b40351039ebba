package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	shardedcache "github.com/simp-lee/cache"

	"github.com/simp-lee/hexa/internal/domain"
	"github.com/simp-lee/hexa/internal/pkg"
)

// DefaultPermissionCacheTTL is how long a role's permission set is reused.
const DefaultPermissionCacheTTL = 5 * time.Minute

// Permission failure messages.
const (
	MsgNotAuthenticated        = "User not authenticated"
	MsgInsufficientPermissions = "Insufficient permissions"
	MsgPermissionCheckFailed   = "Permission check failed"
)

// PermissionCache holds permission sets per role name on a sharded
// in-memory cache. Entries older than the TTL are evicted on read.
type PermissionCache struct {
	ttl   time.Duration
	store shardedcache.CacheInterface

	// mu orders Clear against SetAt so a set built before a Clear is dropped.
	mu  sync.Mutex
	gen uint64
}

// NewPermissionCache creates a cache with the given TTL. A non-positive ttl
// uses DefaultPermissionCacheTTL.
func NewPermissionCache(ttl time.Duration) *PermissionCache {
	if ttl <= 0 {
		ttl = DefaultPermissionCacheTTL
	}
	return &PermissionCache{ttl: ttl, store: shardedcache.NewCache(shardedcache.Options{})}
}

// Get returns the cached set for role. An entry past its TTL is removed and
// reported as missing.
func (pc *PermissionCache) Get(role string) (map[string]struct{}, bool) {
	return shardedcache.GetTyped[map[string]struct{}](pc.store, role)
}

// Generation returns the current generation. It advances on every Clear.
func (pc *PermissionCache) Generation() uint64 {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.gen
}

// Set stores codes for role.
func (pc *PermissionCache) Set(role string, codes map[string]struct{}) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.store.SetWithExpiration(role, codes, pc.ttl)
}

// SetAt stores codes for role only if no Clear happened since gen was read.
// It reports whether the entry was stored.
func (pc *PermissionCache) SetAt(gen uint64, role string, codes map[string]struct{}) bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if gen != pc.gen {
		return false
	}
	pc.store.SetWithExpiration(role, codes, pc.ttl)
	return true
}

// Clear removes every entry.
func (pc *PermissionCache) Clear() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.gen++
	pc.store.Clear()
}

// Len returns the number of stored entries, expired or not.
func (pc *PermissionCache) Len() int {
	return pc.store.Count()
}

// DatasetSource provides the role to permission mapping.
type DatasetSource interface {
	Dataset(ctx context.Context) (*domain.PermissionDataset, error)
}

// StaticDataset is a DatasetSource over a fixed dataset.
type StaticDataset domain.PermissionDataset

// Dataset returns the dataset itself.
func (s *StaticDataset) Dataset(context.Context) (*domain.PermissionDataset, error) {
	return (*domain.PermissionDataset)(s), nil
}

// Authorizer checks the current user's role against a permission dataset.
type Authorizer struct {
	source DatasetSource
	cache  *PermissionCache
	logger *slog.Logger
}

// AuthorizerOption configures an Authorizer.
type AuthorizerOption func(*Authorizer)

// WithPermissionCache sets the cache used to memoize role lookups. A nil
// cache disables caching.
func WithPermissionCache(cache *PermissionCache) AuthorizerOption {
	return func(a *Authorizer) { a.cache = cache }
}

// WithAuthorizerLogger sets the logger used for dataset failures.
func WithAuthorizerLogger(l *slog.Logger) AuthorizerOption {
	return func(a *Authorizer) { a.logger = l }
}

// NewAuthorizer creates an Authorizer. Without options it uses a cache with
// the default TTL.
func NewAuthorizer(source DatasetSource, opts ...AuthorizerOption) *Authorizer {
	a := &Authorizer{source: source, cache: NewPermissionCache(DefaultPermissionCacheTTL)}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Permissions returns the permission codes granted to role.
func (a *Authorizer) Permissions(ctx context.Context, role string) (map[string]struct{}, error) {
	var gen uint64
	if a.cache != nil {
		if codes, ok := a.cache.Get(role); ok {
			return codes, nil
		}
		gen = a.cache.Generation()
	}
	ds, err := a.source.Dataset(ctx)
	if err != nil {
		return nil, fmt.Errorf("load permission dataset: %w", err)
	}
	codes := ds.PermissionsFor(role)
	if a.cache != nil {
		a.cache.SetAt(gen, role, codes)
	}
	return codes, nil
}

// Has reports whether role has the permission code.
func (a *Authorizer) Has(ctx context.Context, role, code string) (bool, error) {
	codes, err := a.Permissions(ctx, role)
	if err != nil {
		return false, err
	}
	_, ok := codes[code]
	return ok, nil
}

// Reload drops cached permission sets so the next check reads the dataset.
func (a *Authorizer) Reload() {
	if a.cache != nil {
		a.cache.Clear()
	}
}

// Require returns a gin middleware that lets the request through only when
// the current user's role grants code. It must run after Auth.
func (a *Authorizer) Require(code string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			pkg.Abort(c, http.StatusUnauthorized, MsgNotAuthenticated,
				pkg.ErrorItem{Field: "authorization", Message: MsgNotAuthenticated, Type: pkg.ErrorTypeUnauthorized})
			return
		}

		allowed, err := a.Has(c.Request.Context(), user.Role, code)
		if err != nil {
			a.logger.ErrorContext(c.Request.Context(), "permission check failed",
				slog.String("role", user.Role),
				slog.String("permission", code),
				slog.Any("error", err),
			)
			pkg.Abort(c, http.StatusInternalServerError, MsgPermissionCheckFailed,
				pkg.ErrorItem{Field: "server", Message: MsgPermissionCheckFailed, Type: pkg.ErrorTypeServerError})
			return
		}
		if !allowed {
			pkg.Abort(c, http.StatusForbidden, MsgInsufficientPermissions,
				pkg.ErrorItem{Field: "permission", Message: fmt.Sprintf("Permission '%s' required", code), Type: pkg.ErrorTypeForbidden})
			return
		}
		c.Next()
	}
}
