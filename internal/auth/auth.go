// Package auth resolves the user behind an incoming request.
//
// Session issuance is owned by an external auth server or a trusted proxy;
// this package only reads what they hand us.
package auth

import (
	"errors"
	"net/http"
)

// ErrUnauthenticated means the request carries no valid session.
var ErrUnauthenticated = errors.New("unauthenticated")

// User is the authenticated principal.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Session wraps the resolved user.
type Session struct {
	User User `json:"user"`
}

// Resolver returns the session for r or an error. ErrUnauthenticated is
// returned when the caller simply is not signed in.
type Resolver interface {
	ResolveSession(r *http.Request) (*Session, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(r *http.Request) (*Session, error)

func (f ResolverFunc) ResolveSession(r *http.Request) (*Session, error) { return f(r) }
