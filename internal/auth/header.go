package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Default identity headers set by a trusted reverse proxy.
const (
	DefaultUserIDHeader = "X-User-ID"
	DefaultNameHeader   = "X-User-Name"
	DefaultEmailHeader  = "X-User-Email"
	DefaultSecretHeader = "X-Auth-Secret"
)

// HeaderResolver trusts identity headers injected by a proxy. When Secret is
// set the proxy must also present it in SecretHeader.
type HeaderResolver struct {
	UserIDHeader string
	NameHeader   string
	EmailHeader  string
	SecretHeader string
	Secret       string
}

// ResolveSession implements Resolver.
func (h *HeaderResolver) ResolveSession(r *http.Request) (*Session, error) {
	if r == nil {
		return nil, ErrUnauthenticated
	}

	if h.Secret != "" {
		presented := r.Header.Get(headerOr(h.SecretHeader, DefaultSecretHeader))
		if subtle.ConstantTimeCompare([]byte(presented), []byte(h.Secret)) != 1 {
			return nil, ErrUnauthenticated
		}
	}

	id := strings.TrimSpace(r.Header.Get(headerOr(h.UserIDHeader, DefaultUserIDHeader)))
	if id == "" {
		return nil, ErrUnauthenticated
	}

	return &Session{User: User{
		ID:    id,
		Name:  strings.TrimSpace(r.Header.Get(headerOr(h.NameHeader, DefaultNameHeader))),
		Email: strings.TrimSpace(r.Header.Get(headerOr(h.EmailHeader, DefaultEmailHeader))),
	}}, nil
}

func headerOr(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}
