package user

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/simp-lee/hexa/internal/core"
	"github.com/simp-lee/hexa/internal/domain"
)

const (
	fieldPassword     = "password"
	fieldPasswordHash = "passwordHash"

	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt input limit
)

// ErrInvalidCredentials is returned by Authenticate for any login failure.
var ErrInvalidCredentials = domain.NewFieldError(domain.CodeUnauthorized, "credentials", "invalid credentials")

// Service adds account rules on top of the generic CRUD service: unique
// usernames and emails, and bcrypt-hashed passwords.
type Service struct {
	*core.Service[domain.User]
}

var _ core.CRUDService[domain.User] = (*Service)(nil)

// NewService creates a user Service backed by repo.
func NewService(repo domain.Repository[domain.User]) *Service {
	return &Service{Service: core.NewService(repo)}
}

// Register validates req, hashes the password, and creates the user.
func (s *Service) Register(ctx context.Context, req CreateUserRequest) (*domain.User, error) {
	req.ApplyDefaults()
	if err := validatePassword(req.Password); err != nil {
		return nil, err
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	return s.Create(ctx, &domain.User{
		Name:         req.Name,
		Username:     req.Username,
		Email:        req.Email,
		Role:         req.Role,
		PasswordHash: hash,
	})
}

// Create persists u after checking that its username and email are free.
func (s *Service) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	u.Name = strings.TrimSpace(u.Name)
	u.Username = strings.TrimSpace(u.Username)
	u.Email = normalizeEmail(u.Email)
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	if u.Username == "" {
		return nil, domain.NewFieldError(domain.CodeValidation, "username", "username is required")
	}
	if u.Email == "" {
		return nil, domain.NewFieldError(domain.CodeValidation, "email", "email is required")
	}
	if u.PasswordHash == "" {
		return nil, domain.NewFieldError(domain.CodeValidation, fieldPassword, "password is required")
	}
	if err := s.ensureFree(ctx, "username", u.Username, nil); err != nil {
		return nil, err
	}
	if err := s.ensureFree(ctx, "email", u.Email, nil); err != nil {
		return nil, err
	}
	return s.Service.Create(ctx, u)
}

// Update applies a partial update. A "password" field is hashed; the hash
// itself can never be set directly. Changed usernames and emails must be free.
func (s *Service) Update(ctx context.Context, id any, fields map[string]any) (*domain.User, error) {
	fields = maps.Clone(fields)
	delete(fields, fieldPasswordHash)

	if raw, ok := fields[fieldPassword]; ok {
		delete(fields, fieldPassword)
		pw, ok := raw.(string)
		if !ok {
			return nil, domain.NewFieldError(domain.CodeValidation, fieldPassword, "password must be a string")
		}
		if err := validatePassword(pw); err != nil {
			return nil, err
		}
		hash, err := hashPassword(pw)
		if err != nil {
			return nil, err
		}
		fields[fieldPasswordHash] = hash
	}

	for _, f := range []string{"username", "email"} {
		raw, ok := fields[f]
		if !ok {
			continue
		}
		v, ok := raw.(string)
		if !ok || strings.TrimSpace(v) == "" {
			return nil, domain.NewFieldError(domain.CodeValidation, f, f+" must be a non-empty string")
		}
		v = strings.TrimSpace(v)
		if f == "email" {
			v = normalizeEmail(v)
		}
		fields[f] = v
		if err := s.ensureFree(ctx, f, v, id); err != nil {
			return nil, err
		}
	}

	return s.Service.Update(ctx, id, fields)
}

// FindAll lists users. The password hash is never usable as a filter,
// search, or sort field.
func (s *Service) FindAll(ctx context.Context, opts domain.QueryOptions) (*domain.PaginationResult[domain.User], error) {
	if _, ok := opts.Filters[fieldPasswordHash]; ok {
		opts.Filters = maps.Clone(opts.Filters)
		delete(opts.Filters, fieldPasswordHash)
	}
	search := opts.Search[:0:0]
	for _, t := range opts.Search {
		if t.Field != fieldPasswordHash {
			search = append(search, t)
		}
	}
	opts.Search = search
	order := opts.OrderBy[:0:0]
	for _, o := range opts.OrderBy {
		if o.Field != fieldPasswordHash {
			order = append(order, o)
		}
	}
	opts.OrderBy = order
	return s.Service.FindAll(ctx, opts)
}

// FindByLogin returns the active user whose email or username is login, or
// nil when there is none.
func (s *Service) FindByLogin(ctx context.Context, login string) (*domain.User, error) {
	field, value := "username", strings.TrimSpace(login)
	if strings.Contains(value, "@") {
		field, value = "email", normalizeEmail(value)
	}
	return s.findOne(ctx, field, value)
}

// Authenticate checks the password of the user identified by login.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*domain.User, error) {
	u, err := s.FindByLogin(ctx, login)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) findOne(ctx context.Context, field, value string) (*domain.User, error) {
	res, err := s.Repository().GetAll(ctx, domain.QueryOptions{
		Page:    1,
		Limit:   1,
		Filters: map[string]any{field: value},
	})
	if err != nil {
		return nil, err
	}
	if len(res.Data) == 0 {
		return nil, nil
	}
	return &res.Data[0], nil
}

// ensureFree fails with AlreadyExists when another active user holds value
// in field. except, when non-nil, is the id of the user being updated.
func (s *Service) ensureFree(ctx context.Context, field, value string, except any) error {
	u, err := s.findOne(ctx, field, value)
	if err != nil {
		return err
	}
	if u == nil || (except != nil && fmt.Sprint(u.ID) == fmt.Sprint(except)) {
		return nil
	}
	return &domain.AppError{
		Code:    domain.CodeAlreadyExists,
		Field:   field,
		Message: fmt.Sprintf("%s already exists", field),
	}
}

func validatePassword(pw string) error {
	n := len(pw)
	if n < minPasswordLen {
		return domain.NewFieldError(domain.CodeValidation, fieldPassword, fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}
	if n > maxPasswordLen {
		return domain.NewFieldError(domain.CodeValidation, fieldPassword, fmt.Sprintf("password must not exceed %d bytes", maxPasswordLen))
	}
	if !utf8.ValidString(pw) {
		return domain.NewFieldError(domain.CodeValidation, fieldPassword, "password must be valid UTF-8")
	}
	return nil
}

func hashPassword(pw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", domain.NewAppError(domain.CodeInternal, "failed to hash password", err)
	}
	return string(hash), nil
}
