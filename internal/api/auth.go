package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/tOgg1/approvalctl/internal/models"
)

// Credentials is the body of POST /auth/login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates and returns the identity the backend reports.
func (c *Client) Login(ctx context.Context, creds Credentials) (*models.Identity, error) {
	var identity models.Identity
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, creds, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// Signup registers a new account for admin review and returns the
// backend's confirmation text.
func (c *Client) Signup(ctx context.Context, signup models.Signup) (string, error) {
	raw, err := c.doRaw(ctx, http.MethodPost, "/auth/signup", nil, signup)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

// Logout notifies the backend. Backends without the endpoint answer 404,
// which is not an error for the caller.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
	if IsStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}
