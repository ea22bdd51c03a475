package models

import (
	"fmt"
	"strings"
)

// Role is the product role attached to an authenticated identity.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleInitiator Role = "INITIATOR"
	RoleManager   Role = "MANAGER"
	RoleFinance   Role = "FINANCE"
	RoleAuditor   Role = "AUDITOR"
)

// Roles lists every known role in display order.
var Roles = []Role{RoleAdmin, RoleInitiator, RoleManager, RoleFinance, RoleAuditor}

// ParseRole resolves a role name case-insensitively.
func ParseRole(value string) (Role, error) {
	normalized := Role(strings.ToUpper(strings.TrimSpace(value)))
	for _, role := range Roles {
		if role == normalized {
			return role, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, value)
}

// IsApprover reports whether the role acts on requests at an approval level.
func (r Role) IsApprover() bool {
	return r == RoleManager || r == RoleFinance
}

// Matches compares a role against a workflow level role, which the backend
// stores in display case ("Manager", "Finance").
func (r Role) Matches(levelRole string) bool {
	return strings.EqualFold(string(r), strings.TrimSpace(levelRole))
}

// UserStatus is the account status returned by the backend.
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusPending   UserStatus = "PENDING"
	UserStatusSuspended UserStatus = "SUSPENDED"
	UserStatusRejected  UserStatus = "REJECTED"
)

// Identity is the authenticated user as returned by POST /auth/login.
type Identity struct {
	ID     int64      `json:"id"`
	Name   string     `json:"name"`
	Email  string     `json:"email,omitempty"`
	Role   Role       `json:"role"`
	Status UserStatus `json:"status"`
}

// IsActive reports whether the identity may use gated screens.
func (i *Identity) IsActive() bool {
	return i != nil && i.Status == UserStatusActive
}

// Signup is the self-service registration form.
type Signup struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

// Validate checks required fields and refuses privileged roles, which are
// never granted through self-service.
func (s *Signup) Validate() error {
	validation := &ValidationErrors{}
	if strings.TrimSpace(s.Name) == "" {
		validation.Add("name", ErrRequired)
	}
	if strings.TrimSpace(s.Email) == "" {
		validation.Add("email", ErrRequired)
	}
	if s.Password == "" {
		validation.Add("password", ErrRequired)
	}
	switch {
	case s.Role == "":
		validation.Add("role", ErrRequired)
	case s.Role == RoleAdmin:
		validation.Add("role", ErrPrivilegedRole)
	default:
		if _, err := ParseRole(string(s.Role)); err != nil {
			validation.Add("role", ErrInvalidRole)
		}
	}
	return validation.Err()
}
