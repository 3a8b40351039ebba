package user

import (
	"strings"
	"time"

	"github.com/simp-lee/hexa/internal/domain"
)

// CreateUserRequest represents the input for creating a new user.
type CreateUserRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Username string `json:"username" binding:"required,min=3,max=50,alphanum"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Role     string `json:"role" binding:"omitempty,max=50"`
}

// ApplyDefaults trims input and defaults the role.
func (r *CreateUserRequest) ApplyDefaults() {
	r.Name = strings.TrimSpace(r.Name)
	r.Username = strings.TrimSpace(r.Username)
	r.Email = normalizeEmail(r.Email)
	r.Role = strings.TrimSpace(r.Role)
	if r.Role == "" {
		r.Role = domain.RoleUser
	}
}

// Response is the public representation of a user. It never carries the
// password hash.
type Response struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ToResponse maps a user to its public representation.
func ToResponse(u *domain.User) *Response {
	return &Response{
		ID:        u.ID,
		Name:      u.Name,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
