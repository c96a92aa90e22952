package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/feedbackd/feedbackd/internal/ratelimit"
)

// WindowQuery selects stored windows for admin commands.
type WindowQuery struct {
	All    bool
	UserID string
	Prefix string
}

func (q WindowQuery) Validate() error {
	if q.All || strings.TrimSpace(q.UserID) != "" || strings.TrimSpace(q.Prefix) != "" {
		return nil
	}
	return errors.New("must specify --all, --user, or --prefix")
}

// Matches reports whether userID is selected by q.
func (q WindowQuery) Matches(userID string) bool {
	switch {
	case q.All:
		return true
	case strings.TrimSpace(q.UserID) != "":
		return userID == strings.TrimSpace(q.UserID)
	case strings.TrimSpace(q.Prefix) != "":
		return strings.HasPrefix(userID, strings.TrimSpace(q.Prefix))
	}
	return false
}

func (q WindowQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	if q.All {
		return "", nil, nil
	}
	if userID := strings.TrimSpace(q.UserID); userID != "" {
		return "WHERE user_id = ?", []any{userID}, nil
	}
	return "WHERE user_id LIKE ?", []any{strings.TrimSpace(q.Prefix) + "%"}, nil
}

// ListWindows returns stored windows matching q ordered by user id.
func (s *Store) ListWindows(ctx context.Context, q WindowQuery) ([]ratelimit.WindowEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errNotInitialized
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT user_id, submitted_at_ms
		FROM rate_windows
		%s
		ORDER BY user_id, submitted_at_ms
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list rate windows: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	entries := []ratelimit.WindowEntry{}
	for rows.Next() {
		var (
			userID string
			ms     int64
		)
		if err := rows.Scan(&userID, &ms); err != nil {
			return nil, fmt.Errorf("scan rate windows: %w", err)
		}
		at := time.UnixMilli(ms).UTC()
		if n := len(entries); n > 0 && entries[n-1].UserID == userID {
			entries[n-1].Timestamps = append(entries[n-1].Timestamps, at)
			continue
		}
		entries = append(entries, ratelimit.WindowEntry{UserID: userID, Timestamps: []time.Time{at}})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rate windows: %w", err)
	}
	return entries, nil
}

// ResetWindows deletes rows matching q and returns the number of users cleared.
func (s *Store) ResetWindows(ctx context.Context, q WindowQuery) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errNotInitialized
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	var users int
	row := s.DB.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(DISTINCT user_id)
		FROM rate_windows
		%s
	`, where), args...)
	if err := row.Scan(&users); err != nil {
		return 0, fmt.Errorf("count rate windows: %w", err)
	}

	if _, err := s.DB.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM rate_windows
		%s
	`, where), args...); err != nil {
		return 0, fmt.Errorf("reset rate windows: %w", err)
	}
	return users, nil
}

// Windows lists every stored window.
func (s *Store) Windows(ctx context.Context) ([]ratelimit.WindowEntry, error) {
	return s.ListWindows(ctx, WindowQuery{All: true})
}

// Reset clears one user's window, or all windows when userID is empty.
func (s *Store) Reset(ctx context.Context, userID string) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return s.ResetWindows(ctx, WindowQuery{All: true})
	}
	return s.ResetWindows(ctx, WindowQuery{UserID: userID})
}
