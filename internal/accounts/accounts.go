// Package accounts signs users up and logs them in.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"expense-ledger/internal/auth"
	"expense-ledger/internal/models"

	"github.com/google/uuid"
)

// ErrInvalidPassword is returned by Login when the password does not match.
var ErrInvalidPassword = errors.New("invalid password")

const (
	minNameLength     = 3
	minUsernameLength = 5
	minPasswordLength = 8
	bcryptHashLength  = 60
)

// Directory stores user accounts.
type Directory interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// SignupRequest is the input of Signup.
type SignupRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate reports every invalid field of r.
func (r SignupRequest) Validate() error {
	var verr models.ValidationError
	if utf8.RuneCountInString(strings.TrimSpace(r.Name)) < minNameLength {
		verr.Add("name", fmt.Sprintf("must be at least %d characters", minNameLength))
	}
	if utf8.RuneCountInString(strings.TrimSpace(r.Username)) < minUsernameLength {
		verr.Add("username", fmt.Sprintf("must be at least %d characters", minUsernameLength))
	}
	if !validEmail(r.Email) {
		verr.Add("email", "must be a valid email address")
	}
	if utf8.RuneCountInString(r.Password) < minPasswordLength {
		verr.Add("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	return verr.Err()
}

// LoginRequest is the input of Login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate reports every invalid field of r.
func (r LoginRequest) Validate() error {
	var verr models.ValidationError
	if !validEmail(r.Email) {
		verr.Add("email", "must be a valid email address")
	}
	if utf8.RuneCountInString(r.Password) < minPasswordLength {
		verr.Add("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	return verr.Err()
}

// validEmail accepts a bare address such as "a@b.com" and nothing else.
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && addr.Name == ""
}

// Session is the result of a successful login.
type Session struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

// Service implements signup and login.
type Service struct {
	users Directory
	creds *auth.Credentials
	now   func() time.Time
}

// New creates a Service.
func New(users Directory, creds *auth.Credentials) *Service {
	return &Service{users: users, creds: creds, now: time.Now}
}

// Signup validates req, hashes the password and creates the user. A taken
// email or username yields models.ErrConflict.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*models.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.creds.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if len(hash) < bcryptHashLength {
		return nil, fmt.Errorf("hash password: unexpected hash length %d", len(hash))
	}

	u := &models.User{
		ID:           uuid.New(),
		Name:         req.Name,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, models.ErrConflict) {
			slog.WarnContext(ctx, "Signup conflict", "username", req.Username)
		}
		return nil, err
	}

	slog.InfoContext(ctx, "User signed up", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// Login checks the credentials in req and issues a session token. An
// unknown email yields models.ErrNotFound, a wrong password
// ErrInvalidPassword.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	u, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}

	if !s.creds.CheckPassword(req.Password, u.PasswordHash) {
		slog.WarnContext(ctx, "Login failed", "user_id", u.ID, "reason", "password")
		return nil, ErrInvalidPassword
	}

	token, expiresAt, err := s.creds.IssueToken(models.Claims{ID: u.ID, Name: u.Name, Username: u.Username})
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	slog.InfoContext(ctx, "User logged in", "user_id", u.ID)
	return &Session{User: u, Token: token, ExpiresAt: expiresAt}, nil
}
