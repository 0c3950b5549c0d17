package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"StorefrontAPI/internal/model"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLen = 8

	RoleAdmin    = "admin"
	RoleCustomer = "user"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// UserStore is the userauth persistence. Lookups return (nil, nil) when the
// user does not exist.
type UserStore interface {
	CreateUser(ctx context.Context, email, passwordhash, role string) (int64, error)
	GetByEmail(ctx context.Context, email string) (*model.Auth, error)
	GetByID(ctx context.Context, id int64) (*model.Auth, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

type AuthService struct {
	Users UserStore
}

func NewAuthService(u UserStore) *AuthService {
	return &AuthService{Users: u}
}

func (s *AuthService) validateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	if !emailRegex.MatchString(email) {
		return errors.New("invalid email format")
	}
	return nil
}

func (s *AuthService) validatePassword(pw string) error {
	if len(pw) < MinPasswordLen {
		return fmt.Errorf("password too short: must be at least %d characters", MinPasswordLen)
	}
	return nil
}

// CreateAdmin provisions an operator account able to issue refunds.
func (s *AuthService) CreateAdmin(ctx context.Context, email, password string) (int64, error) {
	if err := s.validateEmail(email); err != nil {
		return 0, err
	}
	if err := s.validatePassword(password); err != nil {
		return 0, err
	}
	exists, err := s.Users.EmailExists(ctx, email)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, errors.New("email already registered")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, err
	}
	return s.Users.CreateUser(ctx, email, string(hash), RoleAdmin)
}

// Login authenticates using email + password and returns the user (without passwordhash).
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.Auth, error) {
	u, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	// do not reveal whether email exists
	if u == nil || u.DeletedAt != nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	u.PasswordHash = ""
	return u, nil
}

func (s *AuthService) Me(ctx context.Context, authID int64) (*model.Auth, error) {
	u, err := s.Users.GetByID(ctx, authID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}
