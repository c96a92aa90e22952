package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultLimit is the number of submissions allowed per window.
	DefaultLimit = 5
	// DefaultWindow is the sliding window length.
	DefaultWindow = time.Hour
)

// Decision is the outcome of a rate check.
type Decision struct {
	Allowed           bool
	Limit             int
	Remaining         int
	ResetSeconds      int
	RetryAfterSeconds int
}

// Limiter enforces a per-user sliding window over a WindowStore.
//
// Check never records anything. Quota is consumed only when the returned
// Reservation is committed, so callers commit after the guarded action
// succeeds. Pending reservations count against capacity until they are
// committed or released.
type Limiter struct {
	Store  WindowStore
	Limit  int
	Window time.Duration
	Clock  func() time.Time

	mu      sync.Mutex
	pending map[string]int
	locks   map[string]*userLock
}

type userLock struct {
	sync.Mutex
	refs int
}

// NewLimiter builds a limiter with the given store, capacity and window.
// Zero values fall back to DefaultLimit and DefaultWindow.
func NewLimiter(store WindowStore, limit int, window time.Duration) *Limiter {
	return &Limiter{
		Store:  store,
		Limit:  limit,
		Window: window,
	}
}

// Check decides whether userID may perform another submission now.
//
// When allowed, the returned Reservation holds a slot that must be either
// committed or released. A rejected decision leaves stored state untouched.
func (l *Limiter) Check(ctx context.Context, userID string) (Decision, *Reservation, error) {
	if l == nil || l.Store == nil {
		return Decision{}, nil, fmt.Errorf("rate limiter is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	limit := l.limit()
	window := l.window()

	unlock := l.lockUser(userID)
	defer unlock()

	now := l.now()
	cutoff := now.Add(-window)

	stored, err := l.Store.Window(ctx, userID)
	if err != nil {
		return Decision{}, nil, fmt.Errorf("load rate window: %w", err)
	}
	active := activeSince(stored, cutoff)

	l.mu.Lock()
	pending := l.pending[userID]
	used := len(active) + pending
	if used >= limit {
		l.mu.Unlock()
		retry := retryAfterSeconds(active, window, now)
		return Decision{
			Allowed:           false,
			Limit:             limit,
			Remaining:         0,
			ResetSeconds:      retry,
			RetryAfterSeconds: retry,
		}, nil, nil
	}
	if l.pending == nil {
		l.pending = make(map[string]int)
	}
	l.pending[userID] = pending + 1
	l.mu.Unlock()

	decision := Decision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - used - 1,
	}
	return decision, &Reservation{limiter: l, userID: userID, at: now}, nil
}

// Sweep drops inactive timestamps from the store.
func (l *Limiter) Sweep(ctx context.Context) (SweepStats, error) {
	if l == nil || l.Store == nil {
		return SweepStats{}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return l.Store.Sweep(ctx, l.now().Add(-l.window()))
}

// Pending reports the number of outstanding reservations for userID.
func (l *Limiter) Pending(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending[userID]
}

func (l *Limiter) release(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := l.pending[userID] - 1
	if count <= 0 {
		delete(l.pending, userID)
		return
	}
	l.pending[userID] = count
}

// lockUser serializes check-then-reserve for a single user.
func (l *Limiter) lockUser(userID string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*userLock)
	}
	lock, ok := l.locks[userID]
	if !ok {
		lock = &userLock{}
		l.locks[userID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.Lock()
	return func() {
		lock.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

func (l *Limiter) limit() int {
	if l.Limit <= 0 {
		return DefaultLimit
	}
	return l.Limit
}

func (l *Limiter) window() time.Duration {
	if l.Window <= 0 {
		return DefaultWindow
	}
	return l.Window
}

func (l *Limiter) now() time.Time {
	if l.Clock != nil {
		return l.Clock()
	}
	return time.Now().UTC()
}

// retryAfterSeconds rounds the time until the oldest active entry expires up
// to whole seconds. If every slot is held by a pending reservation there is
// nothing to expire yet, so callers are told to retry shortly.
func retryAfterSeconds(active []time.Time, window time.Duration, now time.Time) int {
	if len(active) == 0 {
		return 1
	}
	wait := active[0].Add(window).Sub(now)
	seconds := int((wait + time.Second - 1) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}

// Reservation is a tentatively held slot in a user's window.
type Reservation struct {
	limiter *Limiter
	userID  string
	at      time.Time

	once sync.Once
}

// At returns the time the slot was reserved; Commit records this time.
func (r *Reservation) At() time.Time {
	if r == nil {
		return time.Time{}
	}
	return r.at
}

// Commit records the reservation in the store and frees the pending slot.
// Subsequent calls to Commit or Release are no-ops.
func (r *Reservation) Commit(ctx context.Context) error {
	if r == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var err error
	r.once.Do(func() {
		l := r.limiter
		cutoff := r.at.Add(-l.window())
		// The pending slot is held until the append lands so a concurrent
		// Check never sees the slot as free.
		err = l.Store.Append(ctx, r.userID, r.at, cutoff)
		l.release(r.userID)
	})
	return err
}

// Release gives the slot back without consuming quota.
func (r *Reservation) Release() {
	if r == nil {
		return
	}
	r.once.Do(func() {
		r.limiter.release(r.userID)
	})
}
