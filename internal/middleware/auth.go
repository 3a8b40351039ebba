package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/simp-lee/hexa/internal/domain"
	"github.com/simp-lee/hexa/internal/pkg"
)

// SessionHeader carries the session id issued at login.
const SessionHeader = "X-Session-ID"

const (
	authUserContextKey = "auth_user"
	bearerPrefix       = "Bearer "
)

// Auth failure messages.
const (
	MsgNoAuthHeader         = "No authorization header provided"
	MsgNoToken              = "No token provided"
	MsgInvalidToken         = "Invalid token"
	MsgTokenExpired         = "Token has expired"
	MsgAuthenticationFailed = "Authentication failed"
)

// Claims is the JWT payload issued by IssueToken.
type Claims struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// UserDetailsFunc loads extra attributes for an authenticated user. The
// returned values are merged onto the user built from the claims; the keys
// "id", "username" and "role" replace the claim values.
type UserDetailsFunc func(ctx context.Context, claims *Claims) (map[string]any, error)

// AuthConfig configures the Auth middleware.
type AuthConfig struct {
	Secret      string
	UserDetails UserDetailsFunc
	Logger      *slog.Logger
}

type userKey struct{}

// IssueToken signs an HS256 token for user that expires after ttl.
func IssueToken(secret string, user domain.AuthUser, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(ttl)
	claims := Claims{
		ID:       user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// ParseToken verifies token against secret and returns its claims.
func ParseToken(secret, token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Auth returns a gin middleware that requires a valid Bearer token. On
// success the user is available through CurrentUser and UserFromContext.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			pkg.Abort(c, http.StatusUnauthorized, MsgNoAuthHeader,
				pkg.ErrorItem{Field: "authorization", Message: MsgNoAuthHeader, Type: pkg.ErrorTypeRequired})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
		if token == "" {
			pkg.Abort(c, http.StatusUnauthorized, MsgNoToken,
				pkg.ErrorItem{Field: "token", Message: MsgNoToken, Type: pkg.ErrorTypeRequired})
			return
		}

		claims, err := ParseToken(cfg.Secret, token)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				pkg.Abort(c, http.StatusUnauthorized, MsgTokenExpired,
					pkg.ErrorItem{Field: "token", Message: MsgTokenExpired, Type: pkg.ErrorTypeExpired})
				return
			}
			pkg.Abort(c, http.StatusUnauthorized, MsgInvalidToken,
				pkg.ErrorItem{Field: "token", Message: MsgInvalidToken, Type: pkg.ErrorTypeInvalid})
			return
		}

		user := &domain.AuthUser{ID: claims.ID, Username: claims.Username, Role: claims.Role}
		if cfg.UserDetails != nil {
			details, err := cfg.UserDetails(c.Request.Context(), claims)
			if err != nil {
				logger.ErrorContext(c.Request.Context(), "load user details failed",
					slog.String("user_id", claims.ID),
					slog.Any("error", err),
				)
				pkg.Abort(c, http.StatusInternalServerError, MsgAuthenticationFailed,
					pkg.ErrorItem{Field: "server", Message: MsgAuthenticationFailed, Type: pkg.ErrorTypeServerError})
				return
			}
			mergeDetails(user, details)
		}

		SetCurrentUser(c, user)
		c.Next()
	}
}

func mergeDetails(user *domain.AuthUser, details map[string]any) {
	for k, v := range details {
		switch k {
		case "id":
			user.ID = fmt.Sprint(v)
		case "username":
			user.Username = fmt.Sprint(v)
		case "role":
			user.Role = fmt.Sprint(v)
		default:
			if user.Extra == nil {
				user.Extra = make(map[string]any, len(details))
			}
			user.Extra[k] = v
		}
	}
}

// SetCurrentUser attaches user to the gin and request contexts.
func SetCurrentUser(c *gin.Context, user *domain.AuthUser) {
	c.Set(authUserContextKey, user)
	c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), userKey{}, user))
}

// CurrentUser returns the user set by Auth.
func CurrentUser(c *gin.Context) (*domain.AuthUser, bool) {
	v, ok := c.Get(authUserContextKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*domain.AuthUser)
	return user, ok && user != nil
}

// UserFromContext returns the user attached to ctx by Auth.
func UserFromContext(ctx context.Context) (*domain.AuthUser, bool) {
	user, ok := ctx.Value(userKey{}).(*domain.AuthUser)
	return user, ok && user != nil
}
