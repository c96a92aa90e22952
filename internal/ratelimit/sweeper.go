package ratelimit

import (
	"context"
	"sync"
	"time"
)

// SweepFunc receives the outcome of each sweep pass.
type SweepFunc func(stats SweepStats, err error)

// Sweeper periodically prunes inactive windows. It is advisory: Check
// filters on every read, so a missed sweep only delays memory reclamation.
type Sweeper struct {
	Limiter  *Limiter
	Interval time.Duration
	OnSweep  SweepFunc

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper returns a sweeper running every interval, or every two
// windows when interval is zero.
func NewSweeper(limiter *Limiter, interval time.Duration, onSweep SweepFunc) *Sweeper {
	return &Sweeper{
		Limiter:  limiter,
		Interval: interval,
		OnSweep:  onSweep,
	}
}

// Start launches the sweep loop. It stops when ctx is cancelled or Stop is
// called. Calling Start on a running sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	if s == nil || s.Limiter == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	ticker := time.NewTicker(s.interval())
	go func(done chan struct{}) {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				s.RunOnce(loopCtx)
			}
		}
	}(s.done)
}

// Stop cancels the loop and waits for it to exit.
func (s *Sweeper) Stop() {
	if s == nil {
		return
	}

	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// RunOnce performs a single sweep and reports it to OnSweep.
func (s *Sweeper) RunOnce(ctx context.Context) {
	stats, err := s.Limiter.Sweep(ctx)
	if s.OnSweep != nil {
		s.OnSweep(stats, err)
	}
}

func (s *Sweeper) interval() time.Duration {
	if s.Interval > 0 {
		return s.Interval
	}
	return 2 * s.Limiter.window()
}
