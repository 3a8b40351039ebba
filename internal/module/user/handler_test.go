package user

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/hexa/internal/pkg"
)

func setupRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := newTestService(t)
	h := NewHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := gin.New()
	NewModule(h, nil).RegisterRoutes(r.Group("/api"))
	return r, svc
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	pkg.Response
	Data json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return env
}

func TestHandler_Create(t *testing.T) {
	r, _ := setupRouter(t)

	w := doJSON(r, http.MethodPost, "/api/users",
		`{"name":"Alice","username":"alice","email":"Alice@Example.com","password":"s3cret-pass"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", w.Code, w.Body.String())
	}
	env := decode(t, w)
	if env.Status != pkg.StatusSuccess || env.Message != "Data created successfully" {
		t.Errorf("envelope = %+v", env.Response)
	}
	if strings.Contains(string(env.Data), "password") {
		t.Errorf("response leaks password data: %s", env.Data)
	}
	var got Response
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.ID == 0 || got.Email != "alice@example.com" || got.Role != "user" {
		t.Errorf("data = %+v", got)
	}
}

func TestHandler_Create_Validation(t *testing.T) {
	r, _ := setupRouter(t)

	w := doJSON(r, http.MethodPost, "/api/users", `{"name":"A","username":"al ice","email":"bad","password":"short"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	env := decode(t, w)
	fields := map[string]bool{}
	for _, e := range env.Errors {
		fields[e.Field] = true
	}
	for _, f := range []string{"name", "username", "email", "password"} {
		if !fields[f] {
			t.Errorf("missing error for %q in %+v", f, env.Errors)
		}
	}
}

func TestHandler_Create_Conflict(t *testing.T) {
	r, _ := setupRouter(t)
	body := `{"name":"Alice","username":"alice","email":"alice@example.com","password":"s3cret-pass"}`
	doJSON(r, http.MethodPost, "/api/users", body)

	w := doJSON(r, http.MethodPost, "/api/users", body)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d; want 409", w.Code)
	}
	env := decode(t, w)
	if len(env.Errors) != 1 || env.Errors[0].Field != "username" || env.Errors[0].Type != pkg.ErrorTypeConflict {
		t.Errorf("errors = %+v", env.Errors)
	}
}

func TestHandler_ReadUpdateDelete(t *testing.T) {
	r, svc := setupRouter(t)
	u := register(t, svc, "alice", "alice@example.com")
	register(t, svc, "bob", "bob@example.com")
	path := "/api/users/" + jsonNumber(u.ID)

	w := doJSON(r, http.MethodGet, "/api/users?sort=username:asc", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	env := decode(t, w)
	if env.Metadata == nil || env.Metadata.TotalRecords != 2 {
		t.Errorf("metadata = %+v", env.Metadata)
	}

	w = doJSON(r, http.MethodPatch, path, `{"name":"Alice Liddell","password":"changed-pass"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d; body %s", w.Code, w.Body.String())
	}
	if _, err := svc.Authenticate(t.Context(), "alice", "changed-pass"); err != nil {
		t.Errorf("password not changed through PATCH: %v", err)
	}

	w = doJSON(r, http.MethodGet, path, "")
	var got Response
	if err := json.Unmarshal(decode(t, w).Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Name != "Alice Liddell" {
		t.Errorf("name = %q", got.Name)
	}

	if w = doJSON(r, http.MethodDelete, path, ""); w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w = doJSON(r, http.MethodGet, path, ""); string(decode(t, w).Data) != "null" {
		t.Errorf("deleted user still readable: %s", w.Body.String())
	}
	if w = doJSON(r, http.MethodPut, path, `{"name":"x"}`); w.Code != http.StatusNotFound {
		t.Errorf("update deleted status = %d; want 404", w.Code)
	}
}

func jsonNumber(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
