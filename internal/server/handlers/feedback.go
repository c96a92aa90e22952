package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/feedbackd/feedbackd/internal/auth"
	"github.com/feedbackd/feedbackd/internal/feedback"
	"github.com/feedbackd/feedbackd/internal/metrics"
	"github.com/feedbackd/feedbackd/internal/observability"
	"github.com/feedbackd/feedbackd/internal/server/middleware"
)

// DefaultMaxBodyBytes caps a feedback request body.
const DefaultMaxBodyBytes int64 = 64 * 1024

// FeedbackHandler serves the feedback endpoints.
type FeedbackHandler struct {
	Service      *feedback.Service
	Auth         auth.Resolver
	MaxBodyBytes int64
}

// Submit serves POST /feedback.
func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	session, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes())

	reporter := feedback.Reporter{
		ID:    session.User.ID,
		Name:  session.User.Name,
		Email: session.User.Email,
	}
	result, err := h.Service.Submit(r.Context(), reporter, r.Body)
	if err != nil {
		respondFeedbackError(w, r, err)
		return
	}

	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Feedback issue created",
			zap.String("user_id", reporter.ID),
			zap.String("issue_url", result.IssueURL),
			zap.String("request_id", middleware.GetRequestID(r.Context())))
	}
	writeJSON(w, http.StatusCreated, result)
}

// Config serves GET /feedback/config. It requires a session but is not
// rate limited.
func (h *FeedbackHandler) Config(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authenticate(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.Service.Status())
}

// authenticate resolves the caller or writes a 401. Every resolver failure
// is reported as unauthorized; unexpected causes are logged.
func (h *FeedbackHandler) authenticate(w http.ResponseWriter, r *http.Request) (*auth.Session, bool) {
	if h.Auth == nil {
		respondWithError(w, r, envelopeFor(r, auth.ErrUnauthenticated))
		return nil, false
	}

	session, err := h.Auth.ResolveSession(r)
	if err == nil && session != nil && session.User.ID != "" {
		return session, true
	}
	if err == nil {
		err = auth.ErrUnauthenticated
	}

	if !errors.Is(err, auth.ErrUnauthenticated) && observability.ServerLogger != nil {
		observability.ServerLogger.Warn("Session resolution failed",
			zap.String("endpoint", middleware.EndpointPattern(r)),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
	}
	if r.Method == http.MethodPost {
		metrics.RecordSubmission(metrics.OutcomeUnauthorized)
	}
	respondWithError(w, r, envelopeFor(r, auth.ErrUnauthenticated))
	return nil, false
}

func (h *FeedbackHandler) maxBodyBytes() int64 {
	if h.MaxBodyBytes > 0 {
		return h.MaxBodyBytes
	}
	return DefaultMaxBodyBytes
}
