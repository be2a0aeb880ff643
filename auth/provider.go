package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidCredentials is returned for unknown users and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned by UserLookup implementations for unknown names.
	ErrUserNotFound = errors.New("user not found")
)

// Credentials is a login attempt.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Principal identifies an authenticated user.
type Principal struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Provider verifies credentials. It never touches sessions.
type Provider interface {
	Authenticate(ctx context.Context, creds Credentials) (Principal, error)
}

// User is the record a Provider verifies against.
type User struct {
	ID           string
	Username     string
	PasswordHash string
}

// UserLookup finds users by name.
type UserLookup interface {
	UserByName(ctx context.Context, username string) (User, error)
}

// UserLookupFunc adapts a function to UserLookup.
type UserLookupFunc func(ctx context.Context, username string) (User, error)

// UserByName calls f.
func (f UserLookupFunc) UserByName(ctx context.Context, username string) (User, error) {
	return f(ctx, username)
}

// LocalProvider checks bcrypt password hashes of locally stored users.
type LocalProvider struct {
	users UserLookup
}

// NewLocalProvider creates a provider backed by users.
func NewLocalProvider(users UserLookup) *LocalProvider {
	return &LocalProvider{users: users}
}

// Authenticate verifies creds against the stored hash.
func (p *LocalProvider) Authenticate(ctx context.Context, creds Credentials) (Principal, error) {
	username := strings.TrimSpace(creds.Username)
	if username == "" || creds.Password == "" {
		return Principal{}, ErrInvalidCredentials
	}

	user, err := p.users.UserByName(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		// Hash anyway so unknown users cost the same as wrong passwords.
		_ = ComparePassword(dummyHash(), creds.Password)
		return Principal{}, ErrInvalidCredentials
	}
	if err != nil {
		return Principal{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := ComparePassword(user.PasswordHash, creds.Password); err != nil {
		return Principal{}, ErrInvalidCredentials
	}
	return Principal{ID: user.ID, Username: user.Username}, nil
}
