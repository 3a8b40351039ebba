package domain

// Default role names.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User represents an account that can authenticate against the API.
type User struct {
	BaseModel
	Name         string `gorm:"size:100;not null" json:"name"`
	Username     string `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email        string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Role         string `gorm:"size:50;not null;default:user" json:"role"`
	PasswordHash string `gorm:"size:255" json:"-"`
}

// AuthUser is the authenticated principal attached to a request.
type AuthUser struct {
	ID       string         `json:"id"`
	Username string         `json:"username"`
	Role     string         `json:"role"`
	Extra    map[string]any `json:"extra,omitempty"`
}
