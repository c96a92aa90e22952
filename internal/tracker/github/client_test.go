package github

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedbackd/feedbackd/internal/feedback"
)

func TestCreateIssueSendsExpectedRequest(t *testing.T) {
	var (
		gotPath    string
		gotHeaders http.Header
		gotBody    IssueRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeaders = r.Header.Clone()
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"number":42,"html_url":"https://github.com/acme/app/issues/42"}`))
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL, HTTPClient: server.Client(), UserAgent: "feedbackd/test"}
	issue, err := client.CreateIssue(context.Background(), "ghp_token", "acme", "app", IssueRequest{
		Title:  "[Bug Report] Broken",
		Body:   "body",
		Labels: []string{"bug"},
	})
	require.NoError(t, err)
	assert.Equal(t, 42, issue.Number)
	assert.Equal(t, "https://github.com/acme/app/issues/42", issue.HTMLURL)

	assert.Equal(t, "/repos/acme/app/issues", gotPath)
	assert.Equal(t, "Bearer ghp_token", gotHeaders.Get("Authorization"))
	assert.Equal(t, "application/vnd.github+json", gotHeaders.Get("Accept"))
	assert.Equal(t, "2022-11-28", gotHeaders.Get("X-GitHub-Api-Version"))
	assert.Equal(t, "feedbackd/test", gotHeaders.Get("User-Agent"))
	assert.Equal(t, []string{"bug"}, gotBody.Labels)
	assert.Equal(t, "[Bug Report] Broken", gotBody.Title)
}

func TestCreateIssueAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Resource not accessible by integration"}`))
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL, HTTPClient: server.Client()}
	_, err := client.CreateIssue(context.Background(), "ghp_token", "acme", "app", IssueRequest{Title: "t"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "Resource not accessible by integration", apiErr.Message)
	assert.Equal(t, time.Minute, apiErr.RetryAfter)
	assert.Contains(t, err.Error(), "403")
}

func TestCreateIssueMissingHTMLURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"number":1}`))
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL, HTTPClient: server.Client()}
	_, err := client.CreateIssue(context.Background(), "ghp_token", "acme", "app", IssueRequest{Title: "t"})
	require.ErrorContains(t, err, "html_url")
}

func TestCreateIssueRequiresToken(t *testing.T) {
	client := &Client{}
	_, err := client.CreateIssue(context.Background(), " ", "acme", "app", IssueRequest{})
	require.Error(t, err)
}

func TestCreateIssueHonoursContext(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	client := &Client{BaseURL: server.URL, HTTPClient: server.Client()}
	_, err := client.CreateIssue(ctx, "ghp_token", "acme", "app", IssueRequest{Title: "t"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCreateIssuePacingRespectsContext(t *testing.T) {
	client := &Client{BaseURL: "http://127.0.0.1:1", Limiter: NewRateLimiter(1)}
	require.True(t, client.Limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := client.CreateIssue(ctx, "ghp_token", "acme", "app", IssueRequest{Title: "t"})
	require.ErrorContains(t, err, "github pacing")
}

func TestNewRateLimiterDisabled(t *testing.T) {
	assert.Nil(t, NewRateLimiter(0))
}

func TestTrackerReturnsIssueURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body IssueRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"enhancement"}, body.Labels)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"html_url":"https://github.com/acme/app/issues/9"}`))
	}))
	defer server.Close()

	tracker := NewTracker(&Client{BaseURL: server.URL + "/", HTTPClient: server.Client()})
	url, err := tracker.CreateIssue(context.Background(), "ghp_token", "acme", "app", feedback.IssueDraft{
		Title:  "[Feature Request] Dark mode",
		Body:   "body",
		Labels: []string{"enhancement"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/acme/app/issues/9", url)
	assert.Equal(t, "github", tracker.Name())
}
