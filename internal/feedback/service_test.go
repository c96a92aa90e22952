package feedback

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedbackd/feedbackd/internal/ratelimit"
)

const validBody = `{"type":"bug","title":"Broken link","description":"The docs link in the footer returns 404."}`

type stubTracker struct {
	mu     sync.Mutex
	calls  []stubCall
	url    string
	err    error
	block  bool
	called chan struct{}
}

type stubCall struct {
	token, owner, repo string
	draft              IssueDraft
}

func (s *stubTracker) Name() string { return "stub" }

func (s *stubTracker) CreateIssue(ctx context.Context, token, owner, repo string, draft IssueDraft) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, stubCall{token: token, owner: owner, repo: repo, draft: draft})
	s.mu.Unlock()

	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if s.err != nil {
		return "", s.err
	}
	return s.url, nil
}

func (s *stubTracker) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type fixture struct {
	service *Service
	tracker *stubTracker
	store   *ratelimit.MemoryStore
	limiter *ratelimit.Limiter
	now     time.Time
}

func newFixture(t *testing.T, settings Settings) *fixture {
	t.Helper()

	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	store := ratelimit.NewMemoryStore()
	limiter := ratelimit.NewLimiter(store, 5, time.Hour)
	limiter.Clock = func() time.Time { return now }
	tracker := &stubTracker{url: "https://github.com/acme/app/issues/7"}

	service := NewService(SettingsFunc(func() Settings { return settings }), limiter, tracker)
	service.Clock = func() time.Time { return now }

	return &fixture{service: service, tracker: tracker, store: store, limiter: limiter, now: now}
}

func configured() Settings {
	return Settings{Token: "ghp_test", Repository: "acme/app"}
}

func (f *fixture) stored(t *testing.T, userID string) int {
	t.Helper()
	window, err := f.store.Window(context.Background(), userID)
	require.NoError(t, err)
	return len(window)
}

var reporter = Reporter{ID: "user-1", Name: "Ada", Email: "ada@example.com"}

func TestSubmitCreatesIssue(t *testing.T) {
	f := newFixture(t, configured())

	result, err := f.service.Submit(context.Background(), reporter, strings.NewReader(validBody))
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/acme/app/issues/7", result.IssueURL)

	require.Equal(t, 1, f.tracker.callCount())
	call := f.tracker.calls[0]
	assert.Equal(t, "ghp_test", call.token)
	assert.Equal(t, "acme", call.owner)
	assert.Equal(t, "app", call.repo)
	assert.Equal(t, "[Bug Report] Broken link", call.draft.Title)
	assert.Contains(t, call.draft.Body, "| **Submitted** | 2025-01-02T03:04:05.000Z |")

	assert.Equal(t, 1, f.stored(t, "user-1"))
	assert.Zero(t, f.limiter.Pending("user-1"))
}

func TestSubmitNotConfiguredTakesPrecedence(t *testing.T) {
	f := newFixture(t, Settings{Token: "ghp_test"})

	_, err := f.service.Submit(context.Background(), reporter, strings.NewReader("not json"))
	require.ErrorIs(t, err, ErrNotConfigured)
	assert.Zero(t, f.tracker.callCount())
}

func TestSubmitMalformedRepositoryIsNotConfigured(t *testing.T) {
	f := newFixture(t, Settings{Token: "ghp_test", Repository: "acme"})

	_, err := f.service.Submit(context.Background(), reporter, strings.NewReader(validBody))
	require.ErrorIs(t, err, ErrNotConfigured)
	assert.True(t, f.service.Status().Enabled)
}

func TestSubmitRateLimitPrecedesValidation(t *testing.T) {
	f := newFixture(t, configured())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.service.Submit(ctx, reporter, strings.NewReader(validBody))
		require.NoError(t, err)
	}

	_, err := f.service.Submit(ctx, reporter, strings.NewReader("{}"))
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.False(t, rle.Decision.Allowed)
	assert.Equal(t, 5, rle.Decision.Limit)
	assert.Equal(t, 3600, rle.Decision.RetryAfterSeconds)

	assert.Equal(t, 5, f.tracker.callCount())
	assert.Equal(t, 5, f.stored(t, "user-1"))
}

func TestSubmitValidationDoesNotConsumeQuota(t *testing.T) {
	f := newFixture(t, configured())

	_, err := f.service.Submit(context.Background(), reporter, strings.NewReader(`{"type":"bug","title":"Hi","description":"short"}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Title must be at least 5 characters", verr.FieldMap()["title"])
	assert.Equal(t, "Description must be at least 10 characters", verr.FieldMap()["description"])

	assert.Zero(t, f.tracker.callCount())
	assert.Zero(t, f.stored(t, "user-1"))
	assert.Zero(t, f.limiter.Pending("user-1"))
}

func TestSubmitUpstreamFailureDoesNotConsumeQuota(t *testing.T) {
	f := newFixture(t, configured())
	cause := errors.New("github: Bad credentials (401)")
	f.tracker.err = cause

	_, err := f.service.Submit(context.Background(), reporter, strings.NewReader(validBody))
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.ErrorIs(t, err, cause)
	assert.NotContains(t, upstream.Error(), "Bad credentials")

	assert.Zero(t, f.stored(t, "user-1"))
	assert.Zero(t, f.limiter.Pending("user-1"))
}

func TestSubmitTrackerTimeout(t *testing.T) {
	f := newFixture(t, configured())
	f.tracker.block = true
	f.service.Timeout = 20 * time.Millisecond

	_, err := f.service.Submit(context.Background(), reporter, strings.NewReader(validBody))
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, f.stored(t, "user-1"))
}

func TestSubmitEmptyIssueURLIsUpstreamError(t *testing.T) {
	f := newFixture(t, configured())
	f.tracker.url = ""

	_, err := f.service.Submit(context.Background(), reporter, strings.NewReader(validBody))
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
}

type brokenStore struct {
	*ratelimit.MemoryStore
}

func (brokenStore) Window(context.Context, string) ([]time.Time, error) {
	return nil, errors.New("connection refused")
}

func TestSubmitStoreFailureIsInternal(t *testing.T) {
	f := newFixture(t, configured())
	f.service.Limiter = ratelimit.NewLimiter(brokenStore{ratelimit.NewMemoryStore()}, 5, time.Hour)

	_, err := f.service.Submit(context.Background(), reporter, strings.NewReader(validBody))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotConfigured)
	var rle *RateLimitError
	assert.False(t, errors.As(err, &rle))
	assert.Zero(t, f.tracker.callCount())
}

func TestSubmitConcurrentRequestsRespectQuota(t *testing.T) {
	f := newFixture(t, configured())

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		limited int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Submit(context.Background(), reporter, strings.NewReader(validBody))
			mu.Lock()
			defer mu.Unlock()
			var rle *RateLimitError
			switch {
			case err == nil:
				created++
			case errors.As(err, &rle):
				limited++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, created)
	assert.Equal(t, 15, limited)
	assert.Equal(t, 5, f.stored(t, "user-1"))
}

func TestStatus(t *testing.T) {
	assert.False(t, newFixture(t, Settings{}).service.Status().Enabled)
	assert.True(t, newFixture(t, configured()).service.Status().Enabled)
}
