// Package store persists rate windows in libsql so quota survives restarts.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/feedbackd/feedbackd/internal/config"
)

const (
	libsqlDriver = "libsql"
	memoryDSN    = ":memory:"
)

var errNotInitialized = errors.New("store is not initialized")

// Store is a libsql-backed ratelimit.WindowStore.
type Store struct {
	DB *sql.DB
}

// Open connects to the database named by cfg.URL (remote, with optional
// auth token) or cfg.Path (local file, created on demand).
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	dsn, err := buildLibsqlDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(libsqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open libsql store: %w", err)
	}
	if dsn == memoryDSN {
		// each pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping libsql store: %w", err)
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// Ping satisfies ratelimit.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errNotInitialized
	}
	return s.DB.PingContext(ctx)
}

func buildLibsqlDSN(cfg config.StoreConfig) (string, error) {
	if remote := strings.TrimSpace(cfg.URL); remote != "" {
		return withAuthToken(remote, strings.TrimSpace(cfg.AuthToken))
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return "", errors.New("store path or url is required")
	}
	if path == memoryDSN || strings.HasPrefix(path, "libsql:") {
		return path, nil
	}

	dsn := path
	if strings.HasPrefix(path, "file:") {
		u, err := url.Parse(path)
		if err != nil {
			return "", fmt.Errorf("invalid store path: %w", err)
		}
		path = u.Path
		if path == "" {
			path = u.Opaque
		}
		path = strings.TrimPrefix(path, "//")
	} else {
		dsn = "file:" + filepath.Clean(path)
	}

	if dir := filepath.Dir(filepath.Clean(path)); dir != "." && dir != string(filepath.Separator) {
		// #nosec G301 -- shared data directory
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create store directory: %w", err)
		}
	}
	return dsn, nil
}

// withAuthToken adds token as the authToken query parameter unless the URL
// already carries one.
func withAuthToken(remote, token string) (string, error) {
	if token == "" {
		return remote, nil
	}
	u, err := url.Parse(remote)
	if err != nil {
		return "", fmt.Errorf("invalid store url: %w", err)
	}
	q := u.Query()
	if q.Get("authToken") != "" {
		return remote, nil
	}
	q.Set("authToken", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
