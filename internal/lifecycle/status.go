// Package lifecycle interprets request snapshots for role dashboards:
// which status to show, which actions to offer and what an approval leads to.
// Transitions themselves are performed by the backend.
package lifecycle

import (
	"strconv"
	"strings"
)

// Status is the client-side reading of a request's wire status.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusEscalated Status = "ESCALATED"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
)

const (
	escalatedPrefix = "ESCALATED"
	// autoRejected is written by the backend when the last level lapses.
	autoRejected = "ZREJECTED"
)

// ParseStatus maps a wire status onto Status. Unknown values read as
// pending so a list never fails on a new backend state.
func ParseStatus(raw string) Status {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case upper == string(StatusApproved):
		return StatusApproved
	case upper == string(StatusRejected), upper == autoRejected:
		return StatusRejected
	case strings.HasPrefix(upper, escalatedPrefix):
		return StatusEscalated
	default:
		return StatusPending
	}
}

// Terminal reports whether no further level transitions can happen.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// EscalatedLevel extracts n from "ESCALATED_n", the level whose allowance
// lapsed.
func EscalatedLevel(raw string) (int, bool) {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	if !strings.HasPrefix(upper, escalatedPrefix) {
		return 0, false
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(upper, escalatedPrefix), "_")
	level, err := strconv.Atoi(rest)
	if err != nil || level <= 0 {
		return 0, false
	}
	return level, true
}

// AutoRejected reports whether the backend rejected the request on its own.
func AutoRejected(raw string) bool {
	return strings.EqualFold(strings.TrimSpace(raw), autoRejected)
}

// Badge is the label dashboards render for a wire status.
func Badge(raw string) string {
	status := ParseStatus(raw)
	if status == StatusEscalated {
		if level, ok := EscalatedLevel(raw); ok {
			return escalatedPrefix + "_" + strconv.Itoa(level)
		}
	}
	if AutoRejected(raw) {
		return "REJECTED (auto)"
	}
	return string(status)
}
