package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/simp-lee/hexa/internal/domain"
	"github.com/simp-lee/hexa/internal/pkg"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setupAuthRouter(cfg AuthConfig) *gin.Engine {
	r := gin.New()
	r.Use(Auth(cfg))
	r.GET("/me", func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		if fromCtx, ok := UserFromContext(c.Request.Context()); !ok || fromCtx != user {
			c.Status(http.StatusConflict)
			return
		}
		c.JSON(http.StatusOK, user)
	})
	return r
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) pkg.Response {
	t.Helper()
	var body pkg.Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode envelope %q: %v", w.Body.String(), err)
	}
	return body
}

func mustToken(t *testing.T, user domain.AuthUser, ttl time.Duration) string {
	t.Helper()
	tok, _, err := IssueToken(testSecret, user, ttl)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return tok
}

func TestAuth_Rejections(t *testing.T) {
	valid := domain.AuthUser{ID: "7", Username: "ann", Role: "admin"}
	otherSecret, _, _ := IssueToken("another-secret-another-secret-xx", valid, time.Hour)
	expired := mustToken(t, valid, -time.Minute)
	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{ID: "7"})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name     string
		header   string
		message  string
		itemType string
	}{
		{"missing header", "", MsgNoAuthHeader, pkg.ErrorTypeRequired},
		{"bearer without token", "Bearer ", MsgNoToken, pkg.ErrorTypeRequired},
		{"malformed token", "Bearer not-a-jwt", MsgInvalidToken, pkg.ErrorTypeInvalid},
		{"wrong signature", "Bearer " + otherSecret, MsgInvalidToken, pkg.ErrorTypeInvalid},
		{"alg none", "Bearer " + unsigned, MsgInvalidToken, pkg.ErrorTypeInvalid},
		{"expired", "Bearer " + expired, MsgTokenExpired, pkg.ErrorTypeExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setupAuthRouter(AuthConfig{Secret: testSecret})
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d; want 401", w.Code)
			}
			body := decodeEnvelope(t, w)
			if body.Status != pkg.StatusFailed || body.Message != tt.message {
				t.Fatalf("envelope = %+v; want message %q", body, tt.message)
			}
			if len(body.Errors) != 1 || body.Errors[0].Type != tt.itemType {
				t.Fatalf("errors = %+v; want type %q", body.Errors, tt.itemType)
			}
		})
	}
}

func TestAuth_ValidToken(t *testing.T) {
	r := setupAuthRouter(AuthConfig{Secret: testSecret})
	tok := mustToken(t, domain.AuthUser{ID: "7", Username: "ann", Role: "admin"}, time.Hour)

	for _, header := range []string{"Bearer " + tok, tok} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", header)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d; body %s", w.Code, w.Body.String())
		}
		var user domain.AuthUser
		if err := json.Unmarshal(w.Body.Bytes(), &user); err != nil {
			t.Fatal(err)
		}
		if user.ID != "7" || user.Username != "ann" || user.Role != "admin" {
			t.Fatalf("user = %+v", user)
		}
	}
}

func TestAuth_UserDetailsMerged(t *testing.T) {
	var gotClaims *Claims
	r := setupAuthRouter(AuthConfig{
		Secret: testSecret,
		UserDetails: func(_ context.Context, claims *Claims) (map[string]any, error) {
			gotClaims = claims
			return map[string]any{"role": "editor", "outlet_id": "o-1"}, nil
		},
	})
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+mustToken(t, domain.AuthUser{ID: "7", Username: "ann", Role: "user"}, time.Hour))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if gotClaims == nil || gotClaims.Username != "ann" {
		t.Fatalf("hook claims = %+v", gotClaims)
	}
	var user domain.AuthUser
	_ = json.Unmarshal(w.Body.Bytes(), &user)
	if user.Role != "editor" || user.Extra["outlet_id"] != "o-1" || user.ID != "7" {
		t.Fatalf("merged user = %+v", user)
	}
}

func TestAuth_UserDetailsError(t *testing.T) {
	var logBuf bytes.Buffer
	r := setupAuthRouter(AuthConfig{
		Secret: testSecret,
		Logger: newTestLogger(&logBuf),
		UserDetails: func(context.Context, *Claims) (map[string]any, error) {
			return nil, errors.New("db down")
		},
	})
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+mustToken(t, domain.AuthUser{ID: "7"}, time.Hour))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d; want 500", w.Code)
	}
	body := decodeEnvelope(t, w)
	if body.Message != MsgAuthenticationFailed || body.Errors[0].Type != pkg.ErrorTypeServerError {
		t.Fatalf("envelope = %+v", body)
	}
	if !bytes.Contains(logBuf.Bytes(), []byte("db down")) {
		t.Errorf("expected hook error to be logged, got:\n%s", logBuf.String())
	}
}

func TestParseToken_Claims(t *testing.T) {
	tok, expires, err := IssueToken(testSecret, domain.AuthUser{ID: "3", Username: "bob", Role: "user"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ParseToken(testSecret, tok)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.ID != "3" || claims.Subject != "3" || claims.IssuedAt == nil {
		t.Fatalf("claims = %+v", claims)
	}
	if !claims.ExpiresAt.Time.Equal(expires.Truncate(time.Second)) {
		t.Errorf("exp = %v; want %v", claims.ExpiresAt.Time, expires.Truncate(time.Second))
	}
}

func TestCurrentUser_Absent(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := CurrentUser(c); ok {
		t.Fatal("expected no user")
	}
	if _, ok := UserFromContext(c.Request.Context()); ok {
		t.Fatal("expected no user in context")
	}
}
