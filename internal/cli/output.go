package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/tOgg1/approvalctl/internal/models"
)

// WriteOutput writes v as indented JSON.
func WriteOutput(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// printf writes human output unless --quiet or --json is set.
func printf(w io.Writer, format string, args ...any) {
	if IsQuiet() || IsJSONOutput() {
		return
	}
	fmt.Fprintf(w, format, args...)
}

func formatTimestamp(ts models.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

// formatData renders request data as sorted key=value pairs.
func formatData(data map[string]any) string {
	if len(data) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", key, data[key]))
	}
	return strings.Join(parts, " ")
}

func formatOptionalID(id *int64) string {
	if id == nil {
		return "system"
	}
	return fmt.Sprintf("%d", *id)
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
