package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(clock *manualClock) (*Limiter, *MemoryStore) {
	store := NewMemoryStore()
	limiter := NewLimiter(store, 5, time.Hour)
	limiter.Clock = clock.Now
	return limiter, store
}

func TestLimiterAllowsUpToCapacity(t *testing.T) {
	ctx := context.Background()
	clock := newManualClock()
	limiter, store := newTestLimiter(clock)

	for i := 0; i < 5; i++ {
		decision, reservation, err := limiter.Check(ctx, "user-1")
		require.NoError(t, err)
		require.True(t, decision.Allowed, "submission %d should be allowed", i+1)
		require.Equal(t, 5-i-1, decision.Remaining)
		require.NoError(t, reservation.Commit(ctx))

		window, err := store.Window(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, window, i+1)

		clock.Advance(time.Minute)
	}

	before, err := store.Window(ctx, "user-1")
	require.NoError(t, err)

	decision, reservation, err := limiter.Check(ctx, "user-1")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Nil(t, reservation)
	require.Equal(t, 5, decision.Limit)
	require.Equal(t, 0, decision.Remaining)
	// Oldest entry is 5 minutes old, so it expires in 55 minutes.
	require.Equal(t, 55*60, decision.RetryAfterSeconds)
	require.Equal(t, decision.RetryAfterSeconds, decision.ResetSeconds)

	after, err := store.Window(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestLimiterReleaseDoesNotConsumeQuota(t *testing.T) {
	ctx := context.Background()
	limiter, store := newTestLimiter(newManualClock())

	for i := 0; i < 10; i++ {
		decision, reservation, err := limiter.Check(ctx, "user-1")
		require.NoError(t, err)
		require.True(t, decision.Allowed)
		reservation.Release()
	}

	window, err := store.Window(ctx, "user-1")
	require.NoError(t, err)
	require.Empty(t, window)
	require.Zero(t, limiter.Pending("user-1"))
}

func TestLimiterPendingReservationsCountAgainstCapacity(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(newManualClock())

	held := make([]*Reservation, 0, 5)
	for i := 0; i < 5; i++ {
		decision, reservation, err := limiter.Check(ctx, "user-1")
		require.NoError(t, err)
		require.True(t, decision.Allowed)
		held = append(held, reservation)
	}

	decision, _, err := limiter.Check(ctx, "user-1")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, 1, decision.RetryAfterSeconds)

	held[0].Release()
	decision, reservation, err := limiter.Check(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	reservation.Release()

	for _, r := range held[1:] {
		r.Release()
	}
	require.Zero(t, limiter.Pending("user-1"))
}

func TestLimiterSlidingWindowBoundary(t *testing.T) {
	ctx := context.Background()
	clock := newManualClock()
	limiter, _ := newTestLimiter(clock)

	for i := 0; i < 5; i++ {
		_, reservation, err := limiter.Check(ctx, "user-1")
		require.NoError(t, err)
		require.NoError(t, reservation.Commit(ctx))
	}

	clock.Advance(time.Hour - time.Millisecond)
	decision, _, err := limiter.Check(ctx, "user-1")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, 1, decision.RetryAfterSeconds)

	// An entry exactly one window old is no longer active.
	clock.Advance(time.Millisecond)
	decision, reservation, err := limiter.Check(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	reservation.Release()
}

func TestLimiterUsersAreIndependent(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(newManualClock())

	for i := 0; i < 5; i++ {
		_, reservation, err := limiter.Check(ctx, "user-1")
		require.NoError(t, err)
		require.NoError(t, reservation.Commit(ctx))
	}

	decision, reservation, err := limiter.Check(ctx, "user-2")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Equal(t, 4, decision.Remaining)
	reservation.Release()
}

func TestReservationIsIdempotent(t *testing.T) {
	ctx := context.Background()
	limiter, store := newTestLimiter(newManualClock())

	_, reservation, err := limiter.Check(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, reservation.Commit(ctx))
	require.NoError(t, reservation.Commit(ctx))
	reservation.Release()

	window, err := store.Window(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, window, 1)
	require.Equal(t, reservation.At(), window[0])
	require.Zero(t, limiter.Pending("user-1"))
}

func TestLimiterConcurrentSubmissionsNeverExceedCapacity(t *testing.T) {
	ctx := context.Background()
	limiter, store := newTestLimiter(newManualClock())

	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, reservation, err := limiter.Check(ctx, "user-1")
			if err != nil || !decision.Allowed {
				return
			}
			allowed.Add(1)
			time.Sleep(time.Millisecond)
			_ = reservation.Commit(ctx)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(5), allowed.Load())
	window, err := store.Window(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, window, 5)
}

type failingStore struct {
	MemoryStore
	err error
}

func (f *failingStore) Window(ctx context.Context, userID string) ([]time.Time, error) {
	return nil, f.err
}

func TestLimiterPropagatesStoreErrors(t *testing.T) {
	storeErr := errors.New("store offline")
	limiter := NewLimiter(&failingStore{err: storeErr}, 5, time.Hour)

	_, reservation, err := limiter.Check(context.Background(), "user-1")
	require.ErrorIs(t, err, storeErr)
	require.Nil(t, reservation)
	require.Zero(t, limiter.Pending("user-1"))
}

func TestLimiterDefaults(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore(), 0, 0)
	require.Equal(t, DefaultLimit, limiter.limit())
	require.Equal(t, DefaultWindow, limiter.window())
}

func TestRetryAfterSecondsRoundsUp(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	active := []time.Time{now.Add(-time.Hour + 1500*time.Millisecond)}
	require.Equal(t, 2, retryAfterSeconds(active, time.Hour, now))
	require.Equal(t, 1, retryAfterSeconds(nil, time.Hour, now))
}
