package ratelimit

import (
	"context"
	"time"
)

// WindowStore persists per-user submission timestamps.
//
// Implementations must be safe for concurrent use. The limiter treats the
// store as the committed quota; pending reservations live in the limiter.
type WindowStore interface {
	// Window returns the stored timestamps for a user, oldest first.
	// It must not mutate stored state.
	Window(ctx context.Context, userID string) ([]time.Time, error)

	// Append records a committed submission and drops the user's
	// timestamps at or before cutoff.
	Append(ctx context.Context, userID string, at time.Time, cutoff time.Time) error

	// Sweep keeps only timestamps after cutoff and removes users left empty.
	Sweep(ctx context.Context, cutoff time.Time) (SweepStats, error)
}

// WindowAdmin is implemented by stores that support inspection and reset.
type WindowAdmin interface {
	Windows(ctx context.Context) ([]WindowEntry, error)
	// Reset deletes the window for userID, or every window when userID is empty.
	Reset(ctx context.Context, userID string) (int, error)
}

// Pinger is implemented by stores backed by a remote connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WindowEntry is a stored window as reported by WindowAdmin.
type WindowEntry struct {
	UserID     string      `json:"user_id"`
	Timestamps []time.Time `json:"timestamps"`
}

// SweepStats summarizes a sweep pass.
type SweepStats struct {
	Users   int `json:"users"`
	Removed int `json:"removed"`
	Evicted int `json:"evicted"`
}

// activeSince returns the timestamps strictly after cutoff, preserving order.
func activeSince(timestamps []time.Time, cutoff time.Time) []time.Time {
	active := make([]time.Time, 0, len(timestamps))
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			active = append(active, ts)
		}
	}
	return active
}
