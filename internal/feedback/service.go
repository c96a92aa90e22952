package feedback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/feedbackd/feedbackd/internal/metrics"
	"github.com/feedbackd/feedbackd/internal/observability"
	"github.com/feedbackd/feedbackd/internal/ratelimit"
)

// DefaultTimeout bounds a single tracker call.
const DefaultTimeout = 10 * time.Second

// Result is returned for a created issue.
type Result struct {
	IssueURL string `json:"issueUrl"`
}

// Status reports whether submissions are accepted.
type Status struct {
	Enabled bool `json:"enabled"`
}

// Service runs the submission pipeline.
type Service struct {
	Settings SettingsSource
	Limiter  *ratelimit.Limiter
	Tracker  IssueTracker
	Clock    func() time.Time
	Timeout  time.Duration
}

// NewService wires a Service with the default timeout.
func NewService(settings SettingsSource, limiter *ratelimit.Limiter, tracker IssueTracker) *Service {
	return &Service{
		Settings: settings,
		Limiter:  limiter,
		Tracker:  tracker,
		Timeout:  DefaultTimeout,
	}
}

// Status reports whether the integration is configured.
func (s *Service) Status() Status {
	return Status{Enabled: s.settings().Enabled()}
}

// Submit files feedback from an authenticated reporter.
//
// Checks run in a fixed order: configuration, quota, body validation, then
// the tracker call. Quota is consumed only once the issue exists.
func (s *Service) Submit(ctx context.Context, reporter Reporter, body io.Reader) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	settings := s.settings()
	if !settings.Enabled() {
		metrics.RecordSubmission(metrics.OutcomeNotConfigured)
		return nil, ErrNotConfigured
	}
	owner, repo, ok := settings.Target()
	if !ok {
		if observability.ServerLogger != nil {
			observability.ServerLogger.Warn("Feedback repository is not in owner/repo form",
				zap.String("repository", settings.Repository))
		}
		metrics.RecordSubmission(metrics.OutcomeNotConfigured)
		return nil, ErrNotConfigured
	}

	decision, reservation, err := s.Limiter.Check(ctx, reporter.ID)
	if err != nil {
		metrics.RecordSubmission(metrics.OutcomeInternalError)
		return nil, fmt.Errorf("check feedback quota: %w", err)
	}
	if !decision.Allowed {
		if observability.ServerLogger != nil {
			observability.ServerLogger.Info("Feedback submission rate limited",
				zap.String("user_id", reporter.ID),
				zap.Int("retry_after_seconds", decision.RetryAfterSeconds))
		}
		metrics.RecordSubmission(metrics.OutcomeRateLimited)
		return nil, &RateLimitError{Decision: decision}
	}
	// No-op once committed.
	defer reservation.Release()

	sub, err := DecodeSubmission(body)
	if err != nil {
		metrics.RecordSubmission(metrics.OutcomeInvalid)
		return nil, err
	}

	draft := BuildIssueDraft(sub, reporter, s.now())

	issueURL, err := s.createIssue(ctx, settings.Token, owner, repo, draft)
	if err != nil {
		if observability.ServerLogger != nil {
			observability.ServerLogger.Error("Failed to create feedback issue",
				zap.String("user_id", reporter.ID),
				zap.String("repository", owner+"/"+repo),
				zap.String("feedback_type", string(sub.Type)),
				zap.Error(err))
		}
		metrics.RecordSubmission(metrics.OutcomeUpstreamError)
		return nil, &UpstreamError{Err: err}
	}

	// The issue exists now, so the quota is recorded even if the caller
	// has gone away.
	if err := reservation.Commit(context.WithoutCancel(ctx)); err != nil && observability.ServerLogger != nil {
		observability.ServerLogger.Warn("Failed to record feedback submission",
			zap.String("user_id", reporter.ID),
			zap.String("issue_url", issueURL),
			zap.Error(err))
	}

	metrics.RecordSubmission(metrics.OutcomeCreated)
	return &Result{IssueURL: issueURL}, nil
}

func (s *Service) createIssue(ctx context.Context, token, owner, repo string, draft IssueDraft) (string, error) {
	if s.Tracker == nil {
		return "", errors.New("issue tracker is not configured")
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	start := time.Now()
	issueURL, err := s.Tracker.CreateIssue(callCtx, token, owner, repo, draft)
	if err == nil && issueURL == "" {
		err = errors.New("tracker returned an empty issue url")
	}
	metrics.RecordUpstream(s.trackerName(), err == nil, time.Since(start))
	return issueURL, err
}

func (s *Service) settings() Settings {
	if s.Settings == nil {
		return Settings{}
	}
	return s.Settings.FeedbackSettings()
}

func (s *Service) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultTimeout
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now().UTC()
}

func (s *Service) trackerName() string {
	if named, ok := s.Tracker.(namedTracker); ok {
		return named.Name()
	}
	return "unknown"
}
