package logging

import (
	"encoding/json"
	"regexp"
)

// sensitiveKey matches JSON keys whose values never reach the log, such as
// the login password or an Authorization header.
var sensitiveKey = regexp.MustCompile(`(?i)pass(word|wd)|secret|token|authorization|cookie|credential|api_?key`)

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._~+/=-]{8,}`),
	regexp.MustCompile(`(?i)basic\s+[a-zA-Z0-9+/=]{8,}`),
	// "password":"..." fragments of JSON bodies that failed to decode.
	regexp.MustCompile(`(?i)"(password|passwd|token|secret)"\s*:\s*"[^"]*"`),
	regexp.MustCompile(`(?i)(password|passwd|token|secret)=[^&\s]+`),
}

// RedactedValue is the replacement for sensitive values.
const RedactedValue = "[REDACTED]"

// Redact replaces secret-looking substrings.
func Redact(s string) string {
	for _, pattern := range secretPatterns {
		s = pattern.ReplaceAllString(s, RedactedValue)
	}
	return s
}

// RedactMap returns a copy of m with sensitive fields masked, recursing into
// nested objects and arrays.
func RedactMap(m map[string]any) map[string]any {
	result := make(map[string]any, len(m))
	for k, v := range m {
		if IsSensitiveField(k) {
			result[k] = RedactedValue
			continue
		}
		result[k] = redactValue(v)
	}
	return result
}

func redactValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return RedactMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = redactValue(item)
		}
		return out
	case string:
		return Redact(typed)
	default:
		return v
	}
}

// RedactJSON masks sensitive fields of a JSON document for debug logging.
// Bodies that are not JSON objects fall back to pattern redaction.
func RedactJSON(body []byte) string {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil || doc == nil {
		return Redact(string(body))
	}
	out, err := json.Marshal(RedactMap(doc))
	if err != nil {
		return RedactedValue
	}
	return string(out)
}

// IsSensitiveField reports whether a key such as "newPassword" is masked.
func IsSensitiveField(name string) bool {
	return sensitiveKey.MatchString(name)
}
