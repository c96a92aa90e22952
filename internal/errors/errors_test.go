package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedbackd/feedbackd/internal/server/middleware"
)

func TestHTTPStatusFromCode(t *testing.T) {
	cases := map[string]int{
		CodeUnauthorized:         http.StatusUnauthorized,
		CodeValidationFailed:     http.StatusBadRequest,
		CodeRateLimited:          http.StatusTooManyRequests,
		CodeServiceNotConfigured: http.StatusServiceUnavailable,
		CodeExternalService:      http.StatusBadGateway,
		CodeInternal:             http.StatusInternalServerError,
		"SOMETHING_ELSE":         http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, HTTPStatusFromCode(code), code)
	}
}

func TestResponseDetailsHidesWrappedCause(t *testing.T) {
	env := WrapExternalService(context.Background(), stderrors.New("token rejected by upstream"), "Failed to create issue")

	details := ResponseDetails(env)
	assert.Nil(t, details)
	assert.Equal(t, "token rejected by upstream", env.Context["wrapped_error"])
}

func TestRespondWithEnvelopeWritesValidationFields(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/feedback", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDContextKey, "req-123"))

	RespondWithEnvelope(rec, req, NewValidationError("Invalid feedback", map[string]string{
		"title": "Title must be at least 5 characters",
	}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Error struct {
			Code      string `json:"code"`
			RequestID string `json:"request_id"`
			Details   struct {
				Fields map[string]string `json:"fields"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeValidationFailed, body.Error.Code)
	assert.Equal(t, "req-123", body.Error.RequestID)
	assert.Equal(t, "Title must be at least 5 characters", body.Error.Details.Fields["title"])
}

func TestEnsureEnvelope(t *testing.T) {
	env := EnsureEnvelope(stderrors.New("boom"))
	assert.Equal(t, CodeInternal, env.Code)
	assert.Nil(t, ResponseDetails(env))

	original := NewUnauthorizedError("Unauthorized")
	assert.Same(t, original, EnsureEnvelope(original))

	assert.Equal(t, CodeInternal, EnsureEnvelope(nil).Code)
}

func TestEnsureCorrelationIDFallback(t *testing.T) {
	env := EnsureCorrelationID(NewInternalError("x"), nil)
	assert.Contains(t, env.CorrelationID, "fallback-")
}
