package models

import (
	"errors"
	"strings"
)

// FieldProblem is one rejected form field. Path uses dotted notation for
// nested values such as approvalLevels[1].role.
type FieldProblem struct {
	Path   string `json:"field"`
	Reason string `json:"message"`
	cause  error
}

func (p FieldProblem) Error() string {
	if p.Path != "" {
		return p.Path + ": " + p.Reason
	}
	return p.Reason
}

func (p FieldProblem) Unwrap() error { return p.cause }

// ValidationErrors collects every problem found in a workflow or request
// form. Nothing is sent to the backend while it is non-empty.
type ValidationErrors struct {
	Errors []FieldProblem `json:"errors"`
}

// Add records err against field. A nested *ValidationErrors is flattened
// with field as the path prefix.
func (v *ValidationErrors) Add(field string, err error) {
	if err == nil {
		return
	}
	var inner *ValidationErrors
	if !errors.As(err, &inner) {
		v.Errors = append(v.Errors, FieldProblem{Path: field, Reason: err.Error(), cause: err})
		return
	}
	for _, p := range inner.Errors {
		path := p.Path
		if field != "" && path != "" {
			path = field + "." + path
		} else if path == "" {
			path = field
		}
		p.Path = path
		v.Errors = append(v.Errors, p)
	}
}

func (v *ValidationErrors) AddMessage(field, message string) {
	if message != "" {
		v.Errors = append(v.Errors, FieldProblem{Path: field, Reason: message})
	}
}

// Fields lists the rejected fields once each, first occurrence wins.
func (v *ValidationErrors) Fields() []string {
	if v == nil {
		return nil
	}
	out := make([]string, 0, len(v.Errors))
	for _, p := range v.Errors {
		if !containsString(out, p.Path) {
			out = append(out, p.Path)
		}
	}
	return out
}

func (v *ValidationErrors) Has(field string) bool {
	return v != nil && containsString(v.Fields(), field)
}

// Err is nil when no problem was recorded.
func (v *ValidationErrors) Err() error {
	if v != nil && len(v.Errors) > 0 {
		return v
	}
	return nil
}

func (v *ValidationErrors) Error() string {
	if v == nil || len(v.Errors) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(v.Errors))
	for i, p := range v.Errors {
		parts[i] = p.Error()
	}
	return strings.Join(parts, "; ")
}

// Is matches the sentinel behind any recorded problem, so callers can test
// errors.Is(err, ErrRemarksRequired) on the whole form.
func (v *ValidationErrors) Is(target error) bool {
	if v == nil {
		return false
	}
	for _, p := range v.Errors {
		if p.cause != nil && errors.Is(p.cause, target) {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
