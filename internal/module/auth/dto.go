package auth

import (
	"strings"
	"time"

	"github.com/simp-lee/hexa/internal/module/user"
)

// LoginRequest is the login body. Login is a username or an email address.
type LoginRequest struct {
	Login    string `json:"login" binding:"required,max=255"`
	Password string `json:"password" binding:"required,max=72"`
}

// ApplyDefaults trims the login.
func (r *LoginRequest) ApplyDefaults() {
	r.Login = strings.TrimSpace(r.Login)
}

// TokenResponse is returned after a successful login. SessionID is only set
// when a session store is configured.
type TokenResponse struct {
	Token     string         `json:"token"`
	TokenType string         `json:"tokenType"`
	ExpiresAt time.Time      `json:"expiresAt"`
	SessionID string         `json:"sessionId,omitempty"`
	User      *user.Response `json:"user"`
}
