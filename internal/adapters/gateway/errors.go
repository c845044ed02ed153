package gateway

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// APIError is a non-2xx backend response with the human-readable message
// extracted from its body.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// ParseAPIError extracts a message from a structured error body. It prefers
// a detail/error/message field, falls back to a bare string body, and
// otherwise joins per-field error arrays as "field: msg1, msg2" with fields
// separated by "; ". An unparsable body yields a generic status message.
func ParseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{
		Status:  status,
		Message: fmt.Sprintf("HTTP error! status: %d", status),
	}
	if len(body) == 0 {
		return apiErr
	}

	var bare string
	if err := json.Unmarshal(body, &bare); err == nil && bare != "" {
		apiErr.Message = bare
		return apiErr
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return apiErr
	}

	for _, key := range []string{"detail", "error", "message"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var msg string
		if err := json.Unmarshal(raw, &msg); err == nil && msg != "" {
			apiErr.Message = msg
			return apiErr
		}
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var parts []string
	for _, name := range names {
		var msgs []string
		if err := json.Unmarshal(fields[name], &msgs); err == nil {
			parts = append(parts, fmt.Sprintf("%s: %s", name, strings.Join(msgs, ", ")))
			continue
		}
		var msg string
		if err := json.Unmarshal(fields[name], &msg); err == nil {
			parts = append(parts, fmt.Sprintf("%s: %s", name, msg))
		}
	}
	if len(parts) > 0 {
		apiErr.Message = strings.Join(parts, "; ")
	}
	return apiErr
}
