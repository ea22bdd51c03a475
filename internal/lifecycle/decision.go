package lifecycle

import (
	"errors"
	"strings"

	"github.com/tOgg1/approvalctl/internal/models"
)

var (
	// ErrRejectNotToggled is returned by ConfirmReject before ToggleReject.
	ErrRejectNotToggled = errors.New("reject must be toggled before confirming")
	// ErrRejectPending is returned by Approve while the remarks box is open.
	ErrRejectPending = errors.New("close the rejection before approving")
)

// Outcome is a confirmed approver decision, ready to send.
type Outcome struct {
	Action    Action
	RequestID int64
	Remarks   string
}

// Decision is the approver modal for one request. Approval is one step;
// rejection takes ToggleReject followed by ConfirmReject with remarks.
type Decision struct {
	requestID int64
	rejecting bool
	remarks   string
}

func NewDecision(requestID int64) *Decision {
	return &Decision{requestID: requestID}
}

func (d *Decision) RequestID() int64 { return d.requestID }

// Rejecting reports whether the remarks box is open.
func (d *Decision) Rejecting() bool { return d.rejecting }

// Remarks returns the draft remarks typed so far.
func (d *Decision) Remarks() string { return d.remarks }

// SetRemarks updates the draft remarks.
func (d *Decision) SetRemarks(remarks string) { d.remarks = remarks }

// ToggleReject opens or closes the remarks box.
func (d *Decision) ToggleReject() {
	d.rejecting = !d.rejecting
}

// Approve confirms an approval.
func (d *Decision) Approve() (Outcome, error) {
	if d.rejecting {
		return Outcome{}, ErrRejectPending
	}
	return Outcome{Action: ActionApprove, RequestID: d.requestID}, nil
}

// ConfirmReject confirms a rejection. Blank remarks are refused and nothing
// is produced to send.
func (d *Decision) ConfirmReject(remarks string) (Outcome, error) {
	if !d.rejecting {
		return Outcome{}, ErrRejectNotToggled
	}
	d.remarks = remarks
	trimmed := strings.TrimSpace(remarks)
	if trimmed == "" {
		return Outcome{}, models.ErrRemarksRequired
	}
	return Outcome{Action: ActionReject, RequestID: d.requestID, Remarks: trimmed}, nil
}
