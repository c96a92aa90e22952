package metrics

import (
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedbackd/feedbackd/internal/observability"
)

func withCollector(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()

	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: collector})
	require.NoError(t, err)

	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() { observability.TelemetrySystem = original })
	return collector
}

func TestRecordSubmission(t *testing.T) {
	collector := withCollector(t)

	RecordSubmission(OutcomeCreated)
	RecordSubmission(OutcomeRateLimited)

	assert.Greater(t, collector.CountMetricsByName(SubmissionsTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(RateLimitedTotal), 0)
}

func TestRecordUpstreamAndSweep(t *testing.T) {
	collector := withCollector(t)

	RecordUpstream("github", false, 25*time.Millisecond)
	RecordSweep(3, 7, 2)

	assert.Greater(t, collector.CountMetricsByName(UpstreamTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(UpstreamDuration), 0)
	assert.Greater(t, collector.CountMetricsByName(SweepEvictedUsers), 0)
	assert.Greater(t, collector.CountMetricsByName(SweepRemovedTimestamps), 0)
	assert.Greater(t, collector.CountMetricsByName(TrackedUsers), 0)
}

func TestRecordersAreSafeWithoutTelemetry(t *testing.T) {
	original := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = original })

	RecordSubmission(OutcomeInvalid)
	RecordUpstream("github", true, time.Millisecond)
	RecordSweep(0, 0, 0)
	RecordHealthCheck("store", true, time.Millisecond)
	RecordError("INTERNAL_ERROR", 500)
	RecordPanic()
}
