package auth

import (
	"context"
	"strconv"
	"time"

	"github.com/simp-lee/hexa/internal/cache"
	"github.com/simp-lee/hexa/internal/domain"
	"github.com/simp-lee/hexa/internal/middleware"
	"github.com/simp-lee/hexa/internal/module/user"
)

// DefaultTokenExpiry is used when Config.TokenExpiry is zero.
const DefaultTokenExpiry = 24 * time.Hour

// Config configures the auth Service.
type Config struct {
	Secret      string
	TokenExpiry time.Duration
	// Sessions is optional. When set, every login also opens a session.
	Sessions *cache.SessionStore
}

// Service issues tokens for registered users.
type Service struct {
	users    *user.Service
	secret   string
	expiry   time.Duration
	sessions *cache.SessionStore
	now      func() time.Time
}

// NewService creates an auth Service. Panics if users is nil.
func NewService(users *user.Service, cfg Config) *Service {
	if users == nil {
		panic("auth.NewService: user service must not be nil")
	}
	if cfg.TokenExpiry <= 0 {
		cfg.TokenExpiry = DefaultTokenExpiry
	}
	return &Service{
		users:    users,
		secret:   cfg.Secret,
		expiry:   cfg.TokenExpiry,
		sessions: cfg.Sessions,
		now:      time.Now,
	}
}

// Register creates an account with the default role. The requested role is
// ignored; roles are granted by administrators through the user resource.
func (s *Service) Register(ctx context.Context, req user.CreateUserRequest) (*domain.User, error) {
	req.Role = ""
	return s.users.Register(ctx, req)
}

// Login checks the credentials and issues a signed token.
func (s *Service) Login(ctx context.Context, login, password string) (*TokenResponse, error) {
	u, err := s.users.Authenticate(ctx, login, password)
	if err != nil {
		return nil, err
	}

	principal := domain.AuthUser{
		ID:       strconv.FormatUint(uint64(u.ID), 10),
		Username: u.Username,
		Role:     u.Role,
	}
	token, expiresAt, err := middleware.IssueToken(s.secret, principal, s.expiry)
	if err != nil {
		return nil, domain.NewAppError(domain.CodeInternal, "failed to generate token", err)
	}

	resp := &TokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: expiresAt,
		User:      user.ToResponse(u),
	}
	if s.sessions != nil {
		id, err := s.sessions.Create(ctx, cache.Session{
			"userId":   principal.ID,
			"username": principal.Username,
			"role":     principal.Role,
			"loginAt":  s.now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return nil, domain.NewAppError(domain.CodeInternal, "failed to create session", err)
		}
		resp.SessionID = id
	}
	return resp, nil
}

// Logout destroys the session with the given id. It is a no-op without a
// session store or id.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if s.sessions == nil || sessionID == "" {
		return nil
	}
	if err := s.sessions.Destroy(ctx, sessionID); err != nil {
		return domain.NewAppError(domain.CodeInternal, "failed to destroy session", err)
	}
	return nil
}

// Touch extends the session with the given id. It reports false when the
// session is unknown, or when there is no session store.
func (s *Service) Touch(ctx context.Context, sessionID string) (bool, error) {
	if s.sessions == nil || sessionID == "" {
		return false, nil
	}
	return s.sessions.Touch(ctx, sessionID)
}

// Me returns the account behind an authenticated principal.
func (s *Service) Me(ctx context.Context, principal *domain.AuthUser) (*domain.User, error) {
	u, err := s.users.FindByID(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.NewFieldError(domain.CodeNotFound, "id", "user not found")
	}
	return u, nil
}

// UserDetails loads the current role of the token's user on every request,
// so role changes and deactivations apply before the token expires. It is
// meant for middleware.AuthConfig.UserDetails.
func (s *Service) UserDetails(ctx context.Context, claims *middleware.Claims) (map[string]any, error) {
	u, err := s.users.FindByID(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return map[string]any{"role": ""}, nil
	}
	return map[string]any{
		"username": u.Username,
		"role":     u.Role,
		"email":    u.Email,
		"name":     u.Name,
	}, nil
}
