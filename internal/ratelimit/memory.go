package ratelimit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps windows in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string][]time.Time)}
}

// Window returns a copy of the user's stored timestamps.
func (m *MemoryStore) Window(ctx context.Context, userID string) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := m.windows[userID]
	if len(stored) == 0 {
		return nil, nil
	}
	out := make([]time.Time, len(stored))
	copy(out, stored)
	return out, nil
}

// Append records at and prunes the user's timestamps at or before cutoff.
func (m *MemoryStore) Append(ctx context.Context, userID string, at time.Time, cutoff time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.windows == nil {
		m.windows = make(map[string][]time.Time)
	}

	active := activeSince(m.windows[userID], cutoff)
	active = append(active, at)
	sort.SliceStable(active, func(i, j int) bool { return active[i].Before(active[j]) })
	m.windows[userID] = active
	return nil
}

// Sweep keeps only timestamps after cutoff and deletes empty users.
func (m *MemoryStore) Sweep(ctx context.Context, cutoff time.Time) (SweepStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats SweepStats
	for userID, timestamps := range m.windows {
		active := activeSince(timestamps, cutoff)
		stats.Removed += len(timestamps) - len(active)
		if len(active) == 0 {
			delete(m.windows, userID)
			stats.Evicted++
			continue
		}
		m.windows[userID] = active
	}
	stats.Users = len(m.windows)
	return stats, nil
}

// Windows lists every stored window ordered by user id.
func (m *MemoryStore) Windows(ctx context.Context) ([]WindowEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]WindowEntry, 0, len(m.windows))
	for userID, timestamps := range m.windows {
		copied := make([]time.Time, len(timestamps))
		copy(copied, timestamps)
		entries = append(entries, WindowEntry{UserID: userID, Timestamps: copied})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].UserID < entries[j].UserID })
	return entries, nil
}

// Reset deletes one user's window, or all windows when userID is empty.
func (m *MemoryStore) Reset(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if userID == "" {
		count := len(m.windows)
		m.windows = make(map[string][]time.Time)
		return count, nil
	}
	if _, ok := m.windows[userID]; !ok {
		return 0, nil
	}
	delete(m.windows, userID)
	return 1, nil
}

// Len reports the number of tracked users.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}
