// Package auth validates trainer credentials against a YAML users
// file, mirroring what all three upstream servers do before acting on
// a request.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownUser        = errors.New("unknown user")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type contextKey string

const userContextKey contextKey = "user"

// User is one trainer entry from the users file.
type User struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name,omitempty"`
	PasswordHash string `yaml:"password_hash,omitempty"`
}

type usersFile struct {
	Users []User `yaml:"users"`
}

// Users is the parsed trainer database.
type Users struct {
	byID map[string]User
}

// LoadUsers reads the users YAML file.
func LoadUsers(path string) (*Users, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}
	return ParseUsers(data)
}

// ParseUsers decodes users YAML.
func ParseUsers(data []byte) (*Users, error) {
	var file usersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse users file: %w", err)
	}
	u := &Users{byID: make(map[string]User)}
	for _, user := range file.Users {
		if user.ID == "" {
			return nil, fmt.Errorf("parse users file: user with empty id")
		}
		u.byID[user.ID] = user
	}
	return u, nil
}

// Lookup returns the user with the given id.
func (u *Users) Lookup(id string) (User, bool) {
	user, ok := u.byID[id]
	return user, ok
}

// Verify checks the user's password against its bcrypt hash. When
// requirePassword is false only the user's existence is checked, the
// upstream servers' default mode.
func (u *Users) Verify(id, password string, requirePassword bool) error {
	user, ok := u.byID[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownUser, id)
	}
	if !requirePassword {
		return nil
	}
	if user.PasswordHash == "" {
		return fmt.Errorf("%w: no password on record for %q", ErrInvalidCredentials, id)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// Middleware authenticates requests via HTTP Basic credentials and
// stores the trainer id in the request context.
func Middleware(users *Users, requirePassword bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, password, ok := r.BasicAuth()
			if !ok {
				http.Error(w, "credentials required", http.StatusUnauthorized)
				return
			}
			if err := users.Verify(id, password, requirePassword); err != nil {
				http.Error(w, "invalid credentials", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), userContextKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFrom returns the authenticated trainer id, if any.
func UserFrom(ctx context.Context) string {
	id, _ := ctx.Value(userContextKey).(string)
	return id
}
