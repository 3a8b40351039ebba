package access

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/simp-lee/hexa/internal/domain"
	"github.com/simp-lee/hexa/internal/middleware"
	"github.com/simp-lee/hexa/internal/pkg"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := db.AutoMigrate(Models()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seededDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := setupDB(t)
	if err := Seed(context.Background(), db); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	return db
}

func TestSeed_DefaultGrants(t *testing.T) {
	db := seededDB(t)
	ds, err := NewLoader(db).Dataset(context.Background())
	if err != nil {
		t.Fatalf("Dataset: %v", err)
	}

	admin := ds.PermissionsFor(domain.RoleAdmin)
	if len(admin) != len(DefaultPermissions) {
		t.Errorf("admin has %d permissions; want %d", len(admin), len(DefaultPermissions))
	}
	user := ds.PermissionsFor(domain.RoleUser)
	if _, ok := user["product:read"]; !ok || len(user) != 1 {
		t.Errorf("user permissions = %v; want only product:read", user)
	}
}

func TestSeed_Idempotent(t *testing.T) {
	db := seededDB(t)
	if err := Seed(context.Background(), db); err != nil {
		t.Fatalf("second Seed: %v", err)
	}

	var roles, perms, grants int64
	db.Model(&domain.Role{}).Count(&roles)
	db.Model(&domain.Permission{}).Count(&perms)
	db.Model(&domain.RolePermission{}).Count(&grants)
	if roles != 2 || perms != int64(len(DefaultPermissions)) || grants != 6 {
		t.Errorf("counts roles=%d perms=%d grants=%d; want 2 %d 6", roles, perms, grants, len(DefaultPermissions))
	}
}

func TestLoader_SkipsInactiveRoles(t *testing.T) {
	db := seededDB(t)
	now := time.Now()
	if err := db.Model(&domain.Role{}).Where("name = ?", domain.RoleUser).
		Updates(map[string]any{"is_active": false, "deleted_at": now}).Error; err != nil {
		t.Fatal(err)
	}
	ds, err := NewLoader(db).Dataset(context.Background())
	if err != nil {
		t.Fatalf("Dataset: %v", err)
	}
	if got := ds.PermissionsFor(domain.RoleUser); len(got) != 0 {
		t.Errorf("inactive role still grants %v", got)
	}
}

func TestGrantAndRevoke(t *testing.T) {
	db := seededDB(t)
	ctx := context.Background()
	loader := NewLoader(db)

	if err := GrantPermission(ctx, db, "editor", "product:write"); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	ds, _ := loader.Dataset(ctx)
	if _, ok := ds.PermissionsFor("editor")["product:write"]; !ok {
		t.Fatal("grant not visible")
	}

	if err := RevokePermission(ctx, db, "editor", "product:write"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	ds, _ = loader.Dataset(ctx)
	if len(ds.PermissionsFor("editor")) != 0 {
		t.Fatal("revoke not visible")
	}
	if err := RevokePermission(ctx, db, "ghost", "nothing"); err != nil {
		t.Errorf("revoking unknown grant: %v", err)
	}
}

func setupRouter(t *testing.T) (*gin.Engine, *middleware.PermissionCache) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := seededDB(t)
	cache := middleware.NewPermissionCache(time.Minute)
	authz := middleware.NewAuthorizer(NewLoader(db), middleware.WithPermissionCache(cache))
	guard := middleware.NewGuard(middleware.Auth(middleware.AuthConfig{Secret: testSecret}), authz)
	h := NewHandler(db, authz, slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := gin.New()
	NewModule(h, guard).RegisterRoutes(r.Group("/api/v1"))
	r.GET("/reports", middleware.Chain(guard.Require("report:read"), func(c *gin.Context) { c.Status(http.StatusOK) })...)
	return r, cache
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	tok, _, err := middleware.IssueToken(testSecret, domain.AuthUser{ID: "1", Username: role, Role: role}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return "Bearer " + tok
}

func serve(r *gin.Engine, method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestModule_RequiresManage(t *testing.T) {
	r, _ := setupRouter(t)

	if w := serve(r, http.MethodGet, "/api/v1/access/roles", bearer(t, domain.RoleUser), ""); w.Code != http.StatusForbidden {
		t.Errorf("user status = %d; want 403", w.Code)
	}

	w := serve(r, http.MethodGet, "/api/v1/access/roles", bearer(t, domain.RoleAdmin), "")
	if w.Code != http.StatusOK {
		t.Fatalf("admin status = %d", w.Code)
	}
	var env pkg.Response
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.Metadata == nil || env.Metadata.TotalRecords != 2 {
		t.Errorf("metadata = %+v", env.Metadata)
	}
}

func TestModule_GrantTakesEffectImmediately(t *testing.T) {
	r, _ := setupRouter(t)
	admin, user := bearer(t, domain.RoleAdmin), bearer(t, domain.RoleUser)

	// Fill the cache with the user's current permissions.
	if w := serve(r, http.MethodGet, "/reports", user, ""); w.Code != http.StatusForbidden {
		t.Fatalf("reports before grant = %d; want 403", w.Code)
	}

	w := serve(r, http.MethodPost, "/api/v1/access/grants", admin, `{"role":"user","code":"report:read"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("grant status = %d; body %s", w.Code, w.Body.String())
	}
	if w := serve(r, http.MethodGet, "/reports", user, ""); w.Code != http.StatusOK {
		t.Fatalf("reports after grant = %d; want 200", w.Code)
	}

	w = serve(r, http.MethodDelete, "/api/v1/access/grants", admin, `{"role":"user","code":"report:read"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("revoke status = %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/reports", user, ""); w.Code != http.StatusForbidden {
		t.Fatalf("reports after revoke = %d; want 403", w.Code)
	}
}

func TestModule_GrantValidation(t *testing.T) {
	r, _ := setupRouter(t)
	w := serve(r, http.MethodPost, "/api/v1/access/grants", bearer(t, domain.RoleAdmin), `{"role":"user"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", w.Code)
	}
}

func TestModule_Reload(t *testing.T) {
	r, cache := setupRouter(t)

	w := serve(r, http.MethodPost, "/api/v1/access/reload", bearer(t, domain.RoleAdmin), "")
	if w.Code != http.StatusOK {
		t.Fatalf("reload status = %d", w.Code)
	}
	if n := cache.Len(); n != 0 {
		t.Errorf("cache holds %d roles after reload; want 0", n)
	}
}
