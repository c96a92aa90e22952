// Package github files feedback issues through the GitHub REST API.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public GitHub API.
	DefaultBaseURL = "https://api.github.com"

	// APIVersion pins the REST API version sent with every request.
	APIVersion = "2022-11-28"

	mediaType    = "application/vnd.github+json"
	maxErrorBody = 64 * 1024
)

// IssueRequest is the body of POST /repos/{owner}/{repo}/issues.
type IssueRequest struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels,omitempty"`
}

// Issue is the subset of the created issue we use.
type Issue struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
}

// APIError is a non-2xx response from GitHub.
type APIError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("github api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("github api: status %d: %s", e.StatusCode, e.Message)
}

// Client talks to the GitHub issues API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	// Limiter paces outbound requests; nil disables pacing.
	Limiter   *rate.Limiter
	UserAgent string
}

// NewRateLimiter allows perMinute requests per minute with a burst of the
// same size. Zero or less disables pacing.
func NewRateLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
}

// CreateIssue opens an issue in owner/repo using token as bearer credentials.
func (c *Client) CreateIssue(ctx context.Context, token, owner, repo string, issue IssueRequest) (*Issue, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("github token is required")
	}
	if owner == "" || repo == "" {
		return nil, errors.New("github owner and repo are required")
	}

	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("github pacing: %w", err)
		}
	}

	payload, err := json.Marshal(issue)
	if err != nil {
		return nil, fmt.Errorf("encode issue: %w", err)
	}

	endpoint, err := c.issuesURL(owner, repo)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", mediaType)
	req.Header.Set("X-GitHub-Api-Version", APIVersion)
	req.Header.Set("Content-Type", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("github request: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apiError(resp)
	}

	var created Issue
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decode github response: %w", err)
	}
	if created.HTMLURL == "" {
		return nil, errors.New("github response is missing html_url")
	}
	return &created, nil
}

func (c *Client) issuesURL(owner, repo string) (string, error) {
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid github base url: %w", err)
	}
	return parsed.JoinPath("repos", owner, repo, "issues").String(), nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func apiError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var payload struct {
		Message string `json:"message"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Message = payload.Message
	}

	if value := strings.TrimSpace(resp.Header.Get("Retry-After")); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
			apiErr.RetryAfter = time.Duration(seconds) * time.Second
		}
	}
	return apiErr
}
