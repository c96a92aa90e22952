package auth

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultSessionTimeout bounds a session lookup.
const DefaultSessionTimeout = 5 * time.Second

const maxSessionBody = 64 * 1024

// SessionResolver asks an auth server who the caller is. The caller's
// Cookie and Authorization headers are forwarded to URL, which must answer
// with {"user": {"id", "name", "email"}}.
type SessionResolver struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

// ResolveSession implements Resolver.
func (s *SessionResolver) ResolveSession(r *http.Request) (*Session, error) {
	if r == nil {
		return nil, ErrUnauthenticated
	}
	if strings.TrimSpace(s.URL) == "" {
		return nil, fmt.Errorf("session url is not configured")
	}

	cookie := r.Header.Get("Cookie")
	authorization := r.Header.Get("Authorization")
	if cookie == "" && authorization == "" {
		return nil, ErrUnauthenticated
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build session request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := s.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("session lookup: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return nil, ErrUnauthenticated
	default:
		return nil, fmt.Errorf("session lookup: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		User *User `json:"user"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSessionBody)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if payload.User == nil || strings.TrimSpace(payload.User.ID) == "" {
		return nil, ErrUnauthenticated
	}
	return &Session{User: *payload.User}, nil
}

func (s *SessionResolver) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	return &http.Client{Timeout: timeout}
}
