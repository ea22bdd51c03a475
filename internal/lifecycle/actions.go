package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tOgg1/approvalctl/internal/models"
)

// Action is something a dashboard may offer on a request.
type Action string

const (
	ActionDelete      Action = "DELETE"
	ActionViewRemarks Action = "VIEW_REMARKS"
	ActionApprove     Action = "APPROVE"
	ActionReject      Action = "REJECT"
	ActionViewLog     Action = "VIEW_LOG"
)

// ErrTerminal is returned when predicting a transition out of a terminal state.
var ErrTerminal = errors.New("request is already in a terminal state")

// Viewer identifies who is looking at a request.
type Viewer struct {
	UserID int64
	Role   models.Role
}

// Snapshot is a request as last fetched, with the workflow it runs under
// when known.
type Snapshot struct {
	Request  models.ApprovalRequest
	Workflow *models.WorkflowDefinition
	LastLog  *models.ApprovalLogEntry
}

// Status returns the parsed request status.
func (s Snapshot) Status() Status {
	return ParseStatus(s.Request.Status)
}

// Remarks returns the rejection remarks, falling back to the latest log
// entry when the request itself carries none.
func (s Snapshot) Remarks() string {
	if remarks := strings.TrimSpace(s.Request.Remarks); remarks != "" {
		return remarks
	}
	if s.LastLog != nil {
		return strings.TrimSpace(s.LastLog.Remarks)
	}
	return ""
}

// AtViewerLevel reports whether the current level belongs to the viewer's
// role. Without the workflow the approver queue is already scoped by the
// backend, so any approver role is accepted.
func (s Snapshot) AtViewerLevel(role models.Role) bool {
	if !role.IsApprover() {
		return false
	}
	if s.Workflow == nil {
		return true
	}
	level, ok := s.Workflow.Level(s.Request.CurrentLevel)
	if !ok {
		return false
	}
	return role.Matches(level.Role)
}

// Actions returns the action surface for viewer on snapshot, in display order.
func Actions(viewer Viewer, snap Snapshot) []Action {
	status := snap.Status()
	var actions []Action

	switch {
	case viewer.Role == models.RoleInitiator:
		if snap.Request.InitiatorID != viewer.UserID {
			return nil
		}
		if status != StatusApproved {
			actions = append(actions, ActionDelete)
		}
		if status == StatusRejected && snap.Remarks() != "" {
			actions = append(actions, ActionViewRemarks)
		}
	case viewer.Role.IsApprover():
		if !status.Terminal() && snap.AtViewerLevel(viewer.Role) {
			actions = append(actions, ActionApprove, ActionReject)
		}
	case viewer.Role == models.RoleAuditor:
		actions = append(actions, ActionViewLog)
	}

	return actions
}

// Has reports whether action is in actions.
func Has(actions []Action, action Action) bool {
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}

// Prediction is the state the backend is expected to produce after an approval.
type Prediction struct {
	Status       Status
	CurrentLevel int
}

func (p Prediction) String() string {
	if p.Status == StatusApproved {
		return string(StatusApproved)
	}
	return fmt.Sprintf("%s at level %d", p.Status, p.CurrentLevel)
}

// PredictApprove computes the expected outcome of approving req at its
// current level: the next configured level, or APPROVED after the last one.
func PredictApprove(req models.ApprovalRequest, def *models.WorkflowDefinition) (Prediction, error) {
	if ParseStatus(req.Status).Terminal() {
		return Prediction{}, fmt.Errorf("%w: %s", ErrTerminal, req.Status)
	}
	if def == nil {
		return Prediction{}, errors.New("workflow is required to predict the next level")
	}

	for _, level := range def.SortedLevels() {
		if level.LevelNo > req.CurrentLevel {
			return Prediction{Status: StatusPending, CurrentLevel: level.LevelNo}, nil
		}
	}
	return Prediction{Status: StatusApproved, CurrentLevel: req.CurrentLevel}, nil
}
