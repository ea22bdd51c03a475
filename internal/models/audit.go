package models

import (
	"strconv"
	"strings"
)

// LogAction is the action recorded by an approval log entry.
type LogAction string

const (
	LogActionApprove  LogAction = "APPROVE"
	LogActionReject   LogAction = "REJECT"
	LogActionEscalate LogAction = "ESCALATE"
)

// NormalizeLogAction maps the backend's past-tense spellings
// (APPROVED, REJECTED, ESCALATED, AUTO_REJECTED) onto LogAction.
func NormalizeLogAction(value string) LogAction {
	upper := strings.ToUpper(strings.TrimSpace(value))
	switch {
	case strings.HasPrefix(upper, "APPROVE"):
		return LogActionApprove
	case strings.Contains(upper, "REJECT"):
		return LogActionReject
	case strings.HasPrefix(upper, "ESCALATE"):
		return LogActionEscalate
	default:
		return LogAction(upper)
	}
}

// ApprovalLogEntry is an append-only audit record. The client never
// mutates or deletes entries.
type ApprovalLogEntry struct {
	ID             int64     `json:"id"`
	RequestID      int64     `json:"requestId"`
	WorkflowID     int64     `json:"workflowId,omitempty"`
	LevelNo        int       `json:"levelNo"`
	Role           string    `json:"role"`
	ApproverID     *int64    `json:"approverId"`
	Action         string    `json:"action"`
	PreviousStatus string    `json:"previousStatus"`
	NewStatus      string    `json:"newStatus"`
	Remarks        string    `json:"remarks"`
	ActionAt       Timestamp `json:"actionAt"`
}

// IsSystem reports whether the entry was generated by the backend rather
// than an approver (escalations).
func (e *ApprovalLogEntry) IsSystem() bool {
	return e.ApproverID == nil
}

// NormalizedAction returns the entry's action as a LogAction.
func (e *ApprovalLogEntry) NormalizedAction() LogAction {
	return NormalizeLogAction(e.Action)
}

// SummaryRow is one row of the auditor summary.
type SummaryRow struct {
	Request       ApprovalRequest   `json:"request"`
	InitiatorName string            `json:"initiatorName"`
	LastAction    *ApprovalLogEntry `json:"lastAction"`
}

// SummaryPage is a page of the auditor summary.
type SummaryPage struct {
	Data          []SummaryRow `json:"data"`
	CurrentPage   int          `json:"currentPage"`
	TotalPages    int          `json:"totalPages"`
	TotalElements int64        `json:"totalElements"`
}

// MatchesUser reports whether needle appears in the initiator id or the
// last approver id, as the auditor search box filters.
func (r *SummaryRow) MatchesUser(needle string) bool {
	needle = strings.TrimSpace(needle)
	if needle == "" {
		return true
	}
	if strings.Contains(strconv.FormatInt(r.Request.InitiatorID, 10), needle) {
		return true
	}
	if r.LastAction != nil && r.LastAction.ApproverID != nil {
		return strings.Contains(strconv.FormatInt(*r.LastAction.ApproverID, 10), needle)
	}
	return false
}

// FilterSummary keeps the rows matching needle.
func FilterSummary(rows []SummaryRow, needle string) []SummaryRow {
	out := make([]SummaryRow, 0, len(rows))
	for i := range rows {
		if rows[i].MatchesUser(needle) {
			out = append(out, rows[i])
		}
	}
	return out
}
