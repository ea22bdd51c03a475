package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tOgg1/approvalctl/internal/logging"
)

// timestampLayouts covers RFC3339 and the zone-less local date-times the
// backend emits.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

var errShortDateArray = errors.New("date array needs year, month and day")

// Timestamp is a time.Time that tolerates the backend's date-time formats.
type Timestamp struct {
	time.Time
}

// ParseTimestamp parses a backend date-time string.
func ParseTimestamp(value string) (Timestamp, error) {
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return Timestamp{Time: parsed}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// UnmarshalJSON accepts null, strings in any supported layout, and
// Jackson-style [y,m,d,h,m,s,nanos] arrays. A value it cannot read becomes
// the zero time so one bad record never fails the list around it.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	t.Time = time.Time{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '[' {
		var parts []int
		if err := json.Unmarshal(data, &parts); err != nil {
			malformedTimestamp(data, err)
			return nil
		}
		if len(parts) < 3 {
			malformedTimestamp(data, errShortDateArray)
			return nil
		}
		for len(parts) < 7 {
			parts = append(parts, 0)
		}
		t.Time = time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], parts[6], time.UTC)
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		malformedTimestamp(data, err)
		return nil
	}
	if raw == "" {
		return nil
	}
	parsed, err := ParseTimestamp(raw)
	if err != nil {
		malformedTimestamp(data, err)
		return nil
	}
	*t = parsed
	return nil
}

func malformedTimestamp(data []byte, err error) {
	log := logging.Component("models")
	log.Debug().Err(err).Str("raw", string(data)).Msg("ignoring malformed timestamp")
}

// MarshalJSON writes RFC3339, or null for the zero time.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}
