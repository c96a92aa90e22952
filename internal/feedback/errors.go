package feedback

import (
	"errors"
	"fmt"
	"strings"

	"github.com/feedbackd/feedbackd/internal/ratelimit"
)

// ErrNotConfigured means the tracker credentials are missing or unusable.
var ErrNotConfigured = errors.New("feedback is not configured on this instance")

// RateLimitError means the reporter has used their quota.
type RateLimitError struct {
	Decision ratelimit.Decision
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many feedback submissions, retry in %ds", e.Decision.RetryAfterSeconds)
}

// FieldError is one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every problem found in a request body.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid feedback: " + strings.Join(parts, "; ")
}

// FieldMap returns the first message for each field.
func (e *ValidationError) FieldMap() map[string]string {
	out := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		if _, exists := out[f.Field]; !exists {
			out[f.Field] = f.Message
		}
	}
	return out
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// UpstreamError wraps a tracker failure. Its message is generic; the cause
// is available through Unwrap for logging.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return "failed to create issue"
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
