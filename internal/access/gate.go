// Package access decides whether a session may reach a role-scoped screen.
package access

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tOgg1/approvalctl/internal/models"
	"github.com/tOgg1/approvalctl/internal/session"
)

// LoginRoute is the single redirect target for every denial.
const LoginRoute = "/login"

// Reason records which rule denied access. It is kept for debug logs and
// is never shown to the user.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonNoSession    Reason = "no_session"
	ReasonRoleMismatch Reason = "role_mismatch"
	ReasonInactive     Reason = "inactive"
)

// Decision is the binary gate outcome.
type Decision struct {
	Allowed  bool
	Redirect string
	Reason   Reason
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason Reason) Decision {
	return Decision{Redirect: LoginRoute, Reason: reason}
}

// Decide applies, in order: no session, role mismatch, inactive status.
// A nil required role admits any active session.
func Decide(required *models.Role, s *session.Session) Decision {
	if s == nil {
		return deny(ReasonNoSession)
	}
	if required != nil && s.Role() != *required {
		return deny(ReasonRoleMismatch)
	}
	if !s.Active() {
		return deny(ReasonInactive)
	}
	return allow()
}

// DecideAny admits a session whose role is any of roles.
func DecideAny(roles []models.Role, s *session.Session) Decision {
	if len(roles) == 0 {
		return Decide(nil, s)
	}
	last := Decision{}
	for i := range roles {
		last = Decide(&roles[i], s)
		if last.Allowed || last.Reason != ReasonRoleMismatch {
			return last
		}
	}
	return last
}

// Route is a role-scoped screen.
type Route struct {
	Path  string
	Roles []models.Role
}

// Routes maps dashboard screens to the roles that may open them.
var Routes = []Route{
	{Path: "/admin", Roles: []models.Role{models.RoleAdmin}},
	{Path: "/initiator", Roles: []models.Role{models.RoleInitiator}},
	{Path: "/manager", Roles: []models.Role{models.RoleManager}},
	{Path: "/finance", Roles: []models.Role{models.RoleFinance}},
	{Path: "/auditor", Roles: []models.Role{models.RoleAuditor}},
}

// ErrUnknownRoute is returned for paths not in Routes.
var ErrUnknownRoute = errors.New("unknown route")

// Lookup finds a route by path.
func Lookup(path string) (Route, error) {
	normalized := "/" + strings.Trim(strings.ToLower(strings.TrimSpace(path)), "/")
	for _, route := range Routes {
		if route.Path == normalized {
			return route, nil
		}
	}
	return Route{}, fmt.Errorf("%w: %s", ErrUnknownRoute, path)
}

// Open decides access to a route.
func Open(path string, s *session.Session) (Decision, error) {
	route, err := Lookup(path)
	if err != nil {
		return Decision{}, err
	}
	return DecideAny(route.Roles, s), nil
}

// HomeRoute returns the dashboard path for a role.
func HomeRoute(role models.Role) string {
	for _, route := range Routes {
		for _, r := range route.Roles {
			if r == role {
				return route.Path
			}
		}
	}
	return LoginRoute
}
