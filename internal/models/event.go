package models

import (
	"encoding/json"
	"time"
)

// EventType categorizes entries of the local activity journal.
type EventType string

const (
	// Session events
	EventTypeSessionStarted EventType = "session.started"
	EventTypeSessionEnded   EventType = "session.ended"
	EventTypeAccessDenied   EventType = "access.denied"

	// Workflow events
	EventTypeWorkflowCreated EventType = "workflow.created"
	EventTypeWorkflowUpdated EventType = "workflow.updated"
	EventTypeWorkflowDeleted EventType = "workflow.deleted"

	// Request events
	EventTypeRequestSubmitted EventType = "request.submitted"
	EventTypeRequestApproved  EventType = "request.approved"
	EventTypeRequestRejected  EventType = "request.rejected"
	EventTypeRequestDeleted   EventType = "request.deleted"

	// System events
	EventTypeError EventType = "error"
)

// EntityType identifies what an event relates to.
type EntityType string

const (
	EntityTypeSession  EntityType = "session"
	EntityTypeWorkflow EntityType = "workflow"
	EntityTypeRequest  EntityType = "request"
	EntityTypeSystem   EntityType = "system"
)

// Event is an append-only local journal entry.
type Event struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	Type       EventType         `json:"type"`
	EntityType EntityType        `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	Payload    json.RawMessage   `json:"payload,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// RequestActionPayload is the payload for request.* events.
type RequestActionPayload struct {
	ActorID      int64  `json:"actor_id"`
	Role         Role   `json:"role"`
	LevelNo      int    `json:"level_no,omitempty"`
	Remarks      string `json:"remarks,omitempty"`
	WorkflowID   int64  `json:"workflow_id,omitempty"`
	PredictedEnd string `json:"predicted_status,omitempty"`
}

// ErrorPayload is the payload for error events.
type ErrorPayload struct {
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
}
