// Package domain contains entity without logic, just meta-data
package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const MaxUsernameLen = 36

type Role string

const (
	RoleEmployee Role = "Employee"
	RoleHR       Role = "HR"
	RoleSystem   Role = "system"
)

// User is self-declared by the client; nothing here proves identity.
type User struct {
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(name string, role Role) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidUser)
	}
	if utf8.RuneCountInString(name) > MaxUsernameLen {
		return nil, fmt.Errorf("%w: name must be at most %d characters", ErrInvalidUser, MaxUsernameLen)
	}
	switch role {
	case RoleEmployee, RoleHR:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidUser, role)
	}
	return &User{Name: name, Role: role}, nil
}

func (u *User) IsHR() bool { return u != nil && u.Role == RoleHR }
