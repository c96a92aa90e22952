package store

import (
	"context"
	"fmt"
)

// One row per recorded submission. Expired rows are deleted on append and
// by the sweeper.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS rate_windows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		submitted_at_ms INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_rate_windows_user ON rate_windows(user_id, submitted_at_ms);`,
	`CREATE INDEX IF NOT EXISTS idx_rate_windows_time ON rate_windows(submitted_at_ms);`,
}

// Migrate creates the rate window table and its indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for i, stmt := range schema {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
