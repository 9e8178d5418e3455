// Package profile stores the role and display fields attached to each account.
package profile

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleLibrarian Role = "librarian"
	RoleMember    Role = "member"
)

// CanScan reports whether the role may drive the scan station.
func (r Role) CanScan() bool {
	return r == RoleAdmin || r == RoleLibrarian
}

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleLibrarian, RoleMember:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

var (
	ErrNotFound     = errors.New("profile not found")
	ErrInvalidRole  = errors.New("invalid role")
	ErrRoleMismatch = errors.New("role mismatch")
	ErrRoleChange   = errors.New("only an admin can change a role")
)

type DisplayFields struct {
	Name        string `json:"name" validate:"required,max=120"`
	Email       string `json:"email" validate:"omitempty,email"`
	DateOfBirth string `json:"dob,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type Profile struct {
	UserID    string        `json:"user_id" validate:"required"`
	Role      Role          `json:"role" validate:"required,oneof=admin librarian member"`
	Display   DisplayFields `json:"display"`
	UpdatedAt time.Time     `json:"updated_at"`
}
