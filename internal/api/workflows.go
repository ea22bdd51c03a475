package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tOgg1/approvalctl/internal/models"
)

// ErrWorkflowNotFound is returned by GetWorkflow for unknown ids.
var ErrWorkflowNotFound = errors.New("workflow not found")

// ListWorkflows returns every workflow definition.
func (c *Client) ListWorkflows(ctx context.Context) ([]models.WorkflowDefinition, error) {
	var defs []models.WorkflowDefinition
	if err := c.do(ctx, http.MethodGet, "/workflows", nil, nil, &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// GetWorkflow finds one workflow. The backend has no single-workflow
// endpoint, so this filters the list.
func (c *Client) GetWorkflow(ctx context.Context, id int64) (*models.WorkflowDefinition, error) {
	defs, err := c.ListWorkflows(ctx)
	if err != nil {
		return nil, err
	}
	for i := range defs {
		if defs[i].ID == id {
			return &defs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrWorkflowNotFound, id)
}

// CreateWorkflow stores a new workflow.
func (c *Client) CreateWorkflow(ctx context.Context, def *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	var created models.WorkflowDefinition
	if err := c.do(ctx, http.MethodPost, "/workflows", nil, def, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateWorkflow replaces a workflow.
func (c *Client) UpdateWorkflow(ctx context.Context, id int64, def *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	var updated models.WorkflowDefinition
	if err := c.do(ctx, http.MethodPut, idPath("/workflows/%d", id), nil, def, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteWorkflow removes a workflow.
func (c *Client) DeleteWorkflow(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, idPath("/workflows/%d", id), nil, nil, nil)
}
