package models

import (
	"bytes"
	"encoding/json"
)

// RequestData is the opaque key/value payload of a request. The backend
// stores it as a JSON string; it is kept as the decoded document bytes.
type RequestData []byte

// UnmarshalJSON accepts either a JSON string holding a document or an inline
// object. Anything else is kept verbatim and later decodes to an empty map.
func (d *RequestData) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*d = nil
		return nil
	}
	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			*d = nil
			return nil
		}
		*d = RequestData(inner)
		return nil
	}
	*d = append(RequestData(nil), data...)
	return nil
}

// MarshalJSON writes the payload as a JSON string, matching the backend.
func (d RequestData) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	return json.Marshal(string(d))
}

// Map decodes the payload. Malformed payloads yield an empty map so a
// single bad record never breaks a list view.
func (d RequestData) Map() map[string]any {
	out := map[string]any{}
	if len(d) == 0 {
		return out
	}
	if err := json.Unmarshal(d, &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}

// ApprovalRequest is a request snapshot as returned by the backend.
type ApprovalRequest struct {
	ID           int64       `json:"id"`
	WorkflowID   int64       `json:"workflowId"`
	InitiatorID  int64       `json:"initiatorId"`
	RequestData  RequestData `json:"requestData"`
	Status       string      `json:"status"`
	CurrentLevel int         `json:"currentLevel"`
	Remarks      string      `json:"remarks,omitempty"`
	ApprovedBy   *int64      `json:"approvedBy,omitempty"`
	CreatedAt    Timestamp   `json:"createdAt"`
	LastActionAt Timestamp   `json:"lastActionAt"`
}

// PendingItem is one row of an approver queue.
type PendingItem struct {
	Request       ApprovalRequest `json:"request"`
	InitiatorName string          `json:"initiatorName"`
}

// SubmitPayload is the body of POST /requests.
type SubmitPayload struct {
	WorkflowID  int64          `json:"workflowId"`
	InitiatorID int64          `json:"initiatorId"`
	Data        map[string]any `json:"data"`
}
