// Package auth is the station's identity provider: email/password accounts
// and signed session tokens.
package auth

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrAccountExists = errors.New("an account with this email already exists")
	ErrRoleMismatch  = errors.New("selected role does not match the account's role")
	ErrNotFound      = errors.New("account not found")
)

type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is the result of a successful sign-in or account creation.
type Session struct {
	Token     string    `json:"access_token"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
