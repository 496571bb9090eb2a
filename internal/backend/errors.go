package backend

import (
	"encoding/json"
	"fmt"
)

// TerminalServiceError is a resource-state failure (404 missing resource,
// 500 from malformed input, and similar). Retrying the same request cannot
// succeed, so the original status and body are preserved for the caller.
type TerminalServiceError struct {
	Operation  string
	StatusCode int
	Title      string          `json:"title,omitempty"`
	Detail     string          `json:"detail,omitempty"`
	Errors     json.RawMessage `json:"errors,omitempty"`
	Body       []byte          `json:"-"`
}

func (e *TerminalServiceError) Error() string {
	if e.Title != "" {
		return fmt.Sprintf("backend: %s: %s (status=%d)", e.Operation, e.Title, e.StatusCode)
	}
	if e.Detail != "" {
		return fmt.Sprintf("backend: %s: %s (status=%d)", e.Operation, e.Detail, e.StatusCode)
	}
	return fmt.Sprintf("backend: %s: http status %d", e.Operation, e.StatusCode)
}

// ExhaustedError is returned when a retryable failure persists through the
// policy's whole attempt budget.
type ExhaustedError struct {
	Operation string
	Attempts  int
	LastErr   error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("backend: %s: retry budget exhausted after %d attempts: %v", e.Operation, e.Attempts, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }

func decodeTerminalError(operation string, status int, body []byte) error {
	parsed := &TerminalServiceError{Operation: operation, StatusCode: status, Body: body}
	if err := json.Unmarshal(body, parsed); err != nil {
		parsed.Detail = string(body)
	}
	return parsed
}
