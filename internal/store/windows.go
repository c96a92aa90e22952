package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/feedbackd/feedbackd/internal/ratelimit"
)

var (
	_ ratelimit.WindowStore = (*Store)(nil)
	_ ratelimit.WindowAdmin = (*Store)(nil)
	_ ratelimit.Pinger      = (*Store)(nil)
)

// Window returns the user's stored submission times in ascending order.
func (s *Store) Window(ctx context.Context, userID string) ([]time.Time, error) {
	if s == nil || s.DB == nil {
		return nil, errNotInitialized
	}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("user id is required")
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT submitted_at_ms
		FROM rate_windows
		WHERE user_id = ?
		ORDER BY submitted_at_ms
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch rate window: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var out []time.Time
	for rows.Next() {
		var ms int64
		if err := rows.Scan(&ms); err != nil {
			return nil, fmt.Errorf("scan rate window: %w", err)
		}
		out = append(out, time.UnixMilli(ms).UTC())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch rate window: %w", err)
	}
	return out, nil
}

// Append records a submission at and drops the user's rows at or before cutoff.
func (s *Store) Append(ctx context.Context, userID string, at time.Time, cutoff time.Time) error {
	if s == nil || s.DB == nil {
		return errNotInitialized
	}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("user id is required")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rate window update: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM rate_windows
		WHERE user_id = ? AND submitted_at_ms <= ?
	`, userID, cutoff.UnixMilli()); err != nil {
		return fmt.Errorf("prune rate window: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO rate_windows (user_id, submitted_at_ms)
		VALUES (?, ?)
	`, userID, at.UnixMilli()); err != nil {
		return fmt.Errorf("store rate window: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rate window: %w", err)
	}
	return nil
}

// Sweep removes every row at or before cutoff.
func (s *Store) Sweep(ctx context.Context, cutoff time.Time) (ratelimit.SweepStats, error) {
	var stats ratelimit.SweepStats
	if s == nil || s.DB == nil {
		return stats, errNotInitialized
	}

	before, err := s.countUsers(ctx)
	if err != nil {
		return stats, err
	}

	result, err := s.DB.ExecContext(ctx, `
		DELETE FROM rate_windows
		WHERE submitted_at_ms <= ?
	`, cutoff.UnixMilli())
	if err != nil {
		return stats, fmt.Errorf("sweep rate windows: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return stats, fmt.Errorf("sweep rate windows: %w", err)
	}

	after, err := s.countUsers(ctx)
	if err != nil {
		return stats, err
	}

	stats.Removed = int(removed)
	stats.Users = after
	stats.Evicted = before - after
	return stats, nil
}

func (s *Store) countUsers(ctx context.Context) (int, error) {
	var count int
	row := s.DB.QueryRowContext(ctx, `SELECT COUNT(DISTINCT user_id) FROM rate_windows`)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count rate windows: %w", err)
	}
	return count, nil
}
