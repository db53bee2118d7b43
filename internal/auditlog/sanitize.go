package auditlog

import (
	"bytes"
	"encoding/json"
	"strings"
)

const redacted = "<redacted>"

var sensitiveFields = map[string]struct{}{
	"password":  {},
	"token":     {},
	"user_data": {},
}

// maxRequest caps the stored request body.
const maxRequest = 4096

// SanitizeRequest returns body with sensitive top-level fields redacted.
// A body that is not a JSON object is stored truncated as-is.
func SanitizeRequest(body []byte) string {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return truncate(strings.TrimSpace(string(body)))
	}

	for key := range fields {
		if _, ok := sensitiveFields[strings.ToLower(key)]; ok {
			fields[key] = redacted
		}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(fields); err != nil {
		return ""
	}
	return truncate(strings.TrimSpace(buf.String()))
}

func truncate(s string) string {
	if len(s) <= maxRequest {
		return s
	}
	return s[:maxRequest] + "..."
}
