package models

import (
	"fmt"
	"sort"
	"strconv"
)

// ConditionOperator compares a request value against a workflow's condition value.
type ConditionOperator string

const (
	OperatorGreater ConditionOperator = ">"
	OperatorLess    ConditionOperator = "<"
	OperatorEqual   ConditionOperator = "=="
)

// Valid reports whether the operator is one the backend understands.
func (o ConditionOperator) Valid() bool {
	switch o {
	case OperatorGreater, OperatorLess, OperatorEqual:
		return true
	default:
		return false
	}
}

// ApprovalLevel is one ordered stage of a workflow.
type ApprovalLevel struct {
	ID      int64  `json:"id,omitempty" yaml:"-"`
	LevelNo int    `json:"levelNo" yaml:"level"`
	Role    string `json:"role" yaml:"role"`
}

// WorkflowDefinition is an admin-authored approval workflow.
type WorkflowDefinition struct {
	ID                int64             `json:"id,omitempty"`
	Name              string            `json:"name"`
	Description       string            `json:"description"`
	ConditionField    string            `json:"conditionField"`
	ConditionOperator ConditionOperator `json:"conditionOperator"`
	ConditionValue    float64           `json:"conditionValue"`
	EscalationHours   int               `json:"escalationHours"`
	ApprovalLevels    []ApprovalLevel   `json:"approvalLevels"`
	Status            string            `json:"status,omitempty"`
	CreatedBy         string            `json:"createdBy,omitempty"`
}

// SortedLevels returns a copy of the approval levels ordered by level number.
func (w *WorkflowDefinition) SortedLevels() []ApprovalLevel {
	levels := make([]ApprovalLevel, len(w.ApprovalLevels))
	copy(levels, w.ApprovalLevels)
	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].LevelNo < levels[j].LevelNo
	})
	return levels
}

// Level returns the approval level with the given number.
func (w *WorkflowDefinition) Level(levelNo int) (ApprovalLevel, bool) {
	for _, level := range w.ApprovalLevels {
		if level.LevelNo == levelNo {
			return level, true
		}
	}
	return ApprovalLevel{}, false
}

// LastLevel returns the highest configured level number, or 0 when none.
func (w *WorkflowDefinition) LastLevel() int {
	last := 0
	for _, level := range w.ApprovalLevels {
		if level.LevelNo > last {
			last = level.LevelNo
		}
	}
	return last
}

// Condition renders the display-only condition string. It is never parsed
// back; the three condition fields stay authoritative.
func (w *WorkflowDefinition) Condition() string {
	return ConditionString(w.ConditionField, w.ConditionOperator, w.ConditionValue)
}

// ConditionString composes "<field> <operator> <value>".
func ConditionString(field string, op ConditionOperator, value float64) string {
	if field == "" {
		return ""
	}
	return fmt.Sprintf("%s %s %s", field, op, strconv.FormatFloat(value, 'f', -1, 64))
}
