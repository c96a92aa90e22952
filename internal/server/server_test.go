package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedbackd/feedbackd/internal/auth"
	apperrors "github.com/feedbackd/feedbackd/internal/errors"
	"github.com/feedbackd/feedbackd/internal/feedback"
	"github.com/feedbackd/feedbackd/internal/ratelimit"
	"github.com/feedbackd/feedbackd/internal/server/handlers"
)

type staticTracker struct{ url string }

func (s staticTracker) CreateIssue(ctx context.Context, token, owner, repo string, draft feedback.IssueDraft) (string, error) {
	return s.url, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	t.Cleanup(handlers.ResetHTTPErrorResponder)

	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), 5, time.Hour)
	settings := feedback.SettingsFunc(func() feedback.Settings {
		return feedback.Settings{Token: "ghp_test", Repository: "acme/app"}
	})
	service := feedback.NewService(settings, limiter, staticTracker{url: "https://github.com/acme/app/issues/3"})

	health := handlers.NewHealthManager("test")
	health.RegisterChecker("feedback", handlers.FeedbackChecker(settings))

	return New(Options{
		Host:     "127.0.0.1",
		Port:     0,
		Feedback: &handlers.FeedbackHandler{Service: service, Auth: &auth.HeaderResolver{}},
		Health:   health,
	})
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
	assert.NotEmpty(t, body.Error.RequestID)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/feedback", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "METHOD_NOT_ALLOWED", body.Error.Code)
}

func TestServerFeedbackRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/feedback",
		strings.NewReader(`{"type":"bug","title":"Broken link","description":"The footer link is a 404."}`))
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{"issueUrl":"https://github.com/acme/app/issues/3"}`, rec.Body.String())
}

func TestServerUnauthorizedCarriesRequestID(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/feedback/config", nil)
	req.Header.Set("X-Request-ID", "req-401")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "UNAUTHORIZED", body.Error.Code)
	assert.Equal(t, "req-401", body.Error.RequestID)
}

func TestServerHealthAndVersionRoutes(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/health", "/health/live", "/health/ready", "/health/startup", "/version"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestServerAdminEndpointRequiresToken(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/signal", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeAndConcurrentShutdown(t *testing.T) {
	srv := newTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health/live")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}

func TestShutdownBeforeServe(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.Shutdown(context.Background()))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	assert.NoError(t, srv.Serve(ln))
}
