package events

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tOgg1/approvalctl/internal/models"
)

func newEvent(eventType models.EventType, entityType models.EntityType, entityID string, payload any) *models.Event {
	event := &models.Event{
		ID:         uuid.New().String(),
		Timestamp:  time.Now().UTC(),
		Type:       eventType,
		EntityType: entityType,
		EntityID:   entityID,
	}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			event.Payload = data
		}
	}
	return event
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}

// SessionStarted records a login.
func SessionStarted(identity models.Identity) *models.Event {
	return newEvent(models.EventTypeSessionStarted, models.EntityTypeSession, idString(identity.ID), map[string]any{
		"name": identity.Name,
		"role": identity.Role,
	})
}

// SessionEnded records a logout.
func SessionEnded(userID int64) *models.Event {
	return newEvent(models.EventTypeSessionEnded, models.EntityTypeSession, idString(userID), nil)
}

// AccessDenied records a gate refusal with its internal reason.
func AccessDenied(route, reason string) *models.Event {
	return newEvent(models.EventTypeAccessDenied, models.EntityTypeSession, route, map[string]any{
		"reason": reason,
	})
}

// WorkflowChanged records a create, update or delete.
func WorkflowChanged(eventType models.EventType, def *models.WorkflowDefinition) *models.Event {
	return newEvent(eventType, models.EntityTypeWorkflow, idString(def.ID), map[string]any{
		"name":      def.Name,
		"condition": def.Condition(),
		"levels":    len(def.ApprovalLevels),
	})
}

// WorkflowDeleted records a workflow removal by id.
func WorkflowDeleted(id int64) *models.Event {
	return newEvent(models.EventTypeWorkflowDeleted, models.EntityTypeWorkflow, idString(id), nil)
}

// RequestAction records a submit, approve, reject or delete.
func RequestAction(eventType models.EventType, requestID int64, payload models.RequestActionPayload) *models.Event {
	return newEvent(eventType, models.EntityTypeRequest, idString(requestID), payload)
}

// Failure records a failed remote action.
func Failure(action string, err error) *models.Event {
	return newEvent(models.EventTypeError, models.EntityTypeSystem, action, models.ErrorPayload{
		Message: err.Error(),
		Action:  action,
	})
}
