package metrics

import (
	"time"

	"github.com/feedbackd/feedbackd/internal/observability"
)

// Feedback pipeline metrics.
const (
	SubmissionsTotal       = "feedback_submissions_total"
	RateLimitedTotal       = "feedback_rate_limited_total"
	UpstreamDuration       = "feedback_upstream_duration_ms"
	UpstreamTotal          = "feedback_upstream_requests_total"
	SweepEvictedUsers      = "feedback_sweep_evicted_users"
	SweepRemovedTimestamps = "feedback_sweep_removed_timestamps"
	TrackedUsers           = "feedback_tracked_users"
)

// Health and lifecycle metrics.
const (
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"
	ServerStartTime     = "app_server_start_time_seconds"
)

// Submission outcomes used as the "outcome" label.
const (
	OutcomeCreated       = "created"
	OutcomeUnauthorized  = "unauthorized"
	OutcomeNotConfigured = "not_configured"
	OutcomeRateLimited   = "rate_limited"
	OutcomeInvalid       = "invalid"
	OutcomeUpstreamError = "upstream_error"
	OutcomeInternalError = "internal_error"
)

// RecordSubmission counts a finished submission attempt by outcome.
func RecordSubmission(outcome string) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(SubmissionsTotal, 1, map[string]string{
		"outcome": outcome,
	})
	if outcome == OutcomeRateLimited {
		_ = observability.TelemetrySystem.Counter(RateLimitedTotal, 1, nil)
	}
}

// RecordUpstream records one call to the issue tracker.
func RecordUpstream(tracker string, success bool, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	status := "success"
	if !success {
		status = "failure"
	}
	_ = observability.TelemetrySystem.Counter(UpstreamTotal, 1, map[string]string{
		"tracker": tracker,
		"status":  status,
	})
	_ = observability.TelemetrySystem.Histogram(UpstreamDuration, duration, map[string]string{
		"tracker": tracker,
	})
}

// RecordSweep reports one pass of the rate window sweeper.
func RecordSweep(users, removed, evicted int) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Gauge(TrackedUsers, float64(users), nil)
	_ = observability.TelemetrySystem.Gauge(SweepRemovedTimestamps, float64(removed), nil)
	_ = observability.TelemetrySystem.Gauge(SweepEvictedUsers, float64(evicted), nil)
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	_ = observability.TelemetrySystem.Counter(HealthCheckTotal, 1, map[string]string{
		"check":  checkName,
		"status": status,
	})
	_ = observability.TelemetrySystem.Histogram(HealthCheckDuration, duration, map[string]string{
		"check": checkName,
	})
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ServerStartTime, float64(timestamp), nil)
	}
}
