package models

import "errors"

// Validation causes shared across forms.
var (
	ErrRequired         = errors.New("is required")
	ErrNotNumeric       = errors.New("must be a number")
	ErrNotPositive      = errors.New("must be greater than zero")
	ErrInvalidRole      = errors.New("invalid role")
	ErrInvalidOperator  = errors.New("operator must be one of >, <, ==")
	ErrPrivilegedRole   = errors.New("admin role cannot be assigned here")
	ErrCeilingExceeded  = errors.New("exceeds the workflow ceiling")
	ErrRemarksRequired  = errors.New("remarks required")
	ErrIdentityInactive = errors.New("account is not active")
)
