package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tOgg1/approvalctl/internal/models"
)

// Queue names an approver queue on the backend.
type Queue string

const (
	QueueManager Queue = "manager"
	QueueFinance Queue = "finance"
)

// QueueFor returns the queue served by an approver role.
func QueueFor(role models.Role) (Queue, error) {
	switch role {
	case models.RoleManager:
		return QueueManager, nil
	case models.RoleFinance:
		return QueueFinance, nil
	default:
		return "", fmt.Errorf("%w: %s has no approval queue", models.ErrInvalidRole, role)
	}
}

// SubmitRequest creates a request.
func (c *Client) SubmitRequest(ctx context.Context, payload *models.SubmitPayload) (*models.ApprovalRequest, error) {
	var created models.ApprovalRequest
	if err := c.do(ctx, http.MethodPost, "/requests", nil, payload, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetRequest fetches one request.
func (c *Client) GetRequest(ctx context.Context, id int64) (*models.ApprovalRequest, error) {
	var req models.ApprovalRequest
	if err := c.do(ctx, http.MethodGet, idPath("/requests/%d", id), nil, nil, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// ListInitiatorRequests returns the requests an initiator submitted.
func (c *Client) ListInitiatorRequests(ctx context.Context, initiatorID int64) ([]models.ApprovalRequest, error) {
	var reqs []models.ApprovalRequest
	if err := c.do(ctx, http.MethodGet, idPath("/requests/initiator/%d", initiatorID), nil, nil, &reqs); err != nil {
		return nil, err
	}
	return reqs, nil
}

// ListPending returns an approver's queue with initiator names.
func (c *Client) ListPending(ctx context.Context, queue Queue, approverID int64) ([]models.PendingItem, error) {
	path := fmt.Sprintf("/requests/pending/%s/%d/view", queue, approverID)
	var items []models.PendingItem
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteRequest removes a request.
func (c *Client) DeleteRequest(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, idPath("/requests/%d", id), nil, nil, nil)
}

type approveBody struct {
	ApproverID int64 `json:"approverId"`
}

type rejectBody struct {
	ApproverID int64  `json:"approverId"`
	Remarks    string `json:"remarks"`
}

// Approve approves a request at its current level.
func (c *Client) Approve(ctx context.Context, id, approverID int64) (*models.ApprovalRequest, error) {
	var updated models.ApprovalRequest
	body := approveBody{ApproverID: approverID}
	if err := c.do(ctx, http.MethodPut, idPath("/requests/%d/approve", id), nil, body, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Reject rejects a request. Remarks must already be validated.
func (c *Client) Reject(ctx context.Context, id, approverID int64, remarks string) (*models.ApprovalRequest, error) {
	var updated models.ApprovalRequest
	body := rejectBody{ApproverID: approverID, Remarks: remarks}
	if err := c.do(ctx, http.MethodPut, idPath("/requests/%d/reject", id), nil, body, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Summary returns one zero-based page of the auditor summary.
func (c *Client) Summary(ctx context.Context, page, size int) (*models.SummaryPage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("size", strconv.Itoa(size))

	var summary models.SummaryPage
	if err := c.do(ctx, http.MethodGet, "/summary", query, nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// RequestLog returns the audit trail of one request, oldest first.
func (c *Client) RequestLog(ctx context.Context, requestID int64) ([]models.ApprovalLogEntry, error) {
	var entries []models.ApprovalLogEntry
	if err := c.do(ctx, http.MethodGet, idPath("/audit/request/%d", requestID), nil, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
