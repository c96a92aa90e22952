package handlers

import (
	"errors"
	"net/http"
	"strconv"

	gferrors "github.com/fulmenhq/gofulmen/errors"

	"github.com/feedbackd/feedbackd/internal/auth"
	apperrors "github.com/feedbackd/feedbackd/internal/errors"
	"github.com/feedbackd/feedbackd/internal/feedback"
)

// Client-facing messages.
const (
	msgUnauthorized   = "Unauthorized"
	msgNotConfigured  = "Feedback is not configured on this instance"
	msgRateLimited    = "Too many feedback submissions. Please try again later."
	msgInvalidRequest = "Invalid feedback submission"
	msgUpstream       = "Failed to submit feedback. Please try again later."
	msgInternal       = "Internal server error"
)

var defaultHTTPErrorResponder = func(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}

var httpErrorResponder = defaultHTTPErrorResponder

// SetHTTPErrorResponder lets the server package inject its error handler.
func SetHTTPErrorResponder(responder func(http.ResponseWriter, *http.Request, error)) {
	if responder == nil {
		httpErrorResponder = defaultHTTPErrorResponder
		return
	}
	httpErrorResponder = responder
}

// ResetHTTPErrorResponder restores the default responder.
func ResetHTTPErrorResponder() {
	httpErrorResponder = defaultHTTPErrorResponder
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	httpErrorResponder(w, r, err)
}

// envelopeFor maps a feedback pipeline error to its HTTP envelope. Causes of
// upstream and internal failures are attached as private context only.
func envelopeFor(r *http.Request, err error) *gferrors.ErrorEnvelope {
	ctx := r.Context()

	var (
		rateErr       *feedback.RateLimitError
		validationErr *feedback.ValidationError
		upstreamErr   *feedback.UpstreamError
		envelope      *gferrors.ErrorEnvelope
	)
	switch {
	case errors.As(err, &envelope):
		return envelope
	case errors.Is(err, auth.ErrUnauthenticated):
		return apperrors.WrapUnauthorized(ctx, err, msgUnauthorized)
	case errors.Is(err, feedback.ErrNotConfigured):
		return apperrors.NewNotConfiguredError(msgNotConfigured)
	case errors.As(err, &rateErr):
		d := rateErr.Decision
		return apperrors.NewRateLimitedError(msgRateLimited, d.Limit, d.ResetSeconds, d.RetryAfterSeconds)
	case errors.As(err, &validationErr):
		return apperrors.NewValidationError(msgInvalidRequest, validationErr.FieldMap())
	case errors.As(err, &upstreamErr):
		return apperrors.WrapExternalService(ctx, upstreamErr.Unwrap(), msgUpstream)
	default:
		return apperrors.WrapInternal(ctx, err, msgInternal)
	}
}

// respondFeedbackError writes err as an envelope. Rate-limit rejections also
// carry the X-RateLimit-* and Retry-After headers.
func respondFeedbackError(w http.ResponseWriter, r *http.Request, err error) {
	var rateErr *feedback.RateLimitError
	if errors.As(err, &rateErr) {
		setRateLimitHeaders(w.Header(), rateErr)
	}
	respondWithError(w, r, envelopeFor(r, err))
}

func setRateLimitHeaders(h http.Header, rateErr *feedback.RateLimitError) {
	d := rateErr.Decision
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", "0")
	h.Set("X-RateLimit-Reset", strconv.Itoa(d.ResetSeconds))
	h.Set("Retry-After", strconv.Itoa(d.RetryAfterSeconds))
}
