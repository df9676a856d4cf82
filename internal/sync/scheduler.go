package sync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Scheduler fires engine cycles at a configurable interval. It is a
// two-state machine, stopped or running; Start and Stop are both
// idempotent. Scheduled fires go through the engine's single-flight
// guard, so the scheduler can never overlap with a manual trigger: a
// fire that loses the race is dropped, not queued.
type Scheduler struct {
	engine *Engine

	mu       sync.Mutex
	cancel   context.CancelFunc
	interval time.Duration
	nextRun  time.Time
}

// NewScheduler creates a stopped scheduler over the given engine.
func NewScheduler(engine *Engine) *Scheduler {
	return &Scheduler{engine: engine}
}

// Start begins firing cycles every interval. Calling Start while already
// running is a no-op.
func (s *Scheduler) Start(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	s.interval = interval
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.loop(ctx)

	slog.Info("scheduler started", "interval", interval)
}

// Stop cancels the pending fire and stops the scheduler. An in-flight
// cycle is not cancelled, only future fires. Calling Stop while stopped
// is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	s.nextRun = time.Time{}

	slog.Info("scheduler stopped")
}

// Running reports whether the scheduler is in the running state.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// SetInterval changes the firing interval. While running, the change
// takes effect on the next fire; the pending timer is not rebased.
func (s *Scheduler) SetInterval(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = interval
}

// NextRunAt returns the time of the next scheduled fire. ok is false
// when the scheduler is stopped.
func (s *Scheduler) NextRunAt() (next time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return time.Time{}, false
	}
	return s.nextRun, true
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		s.mu.Lock()
		d := s.interval
		s.nextRun = time.Now().Add(d)
		s.mu.Unlock()

		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		// Stop only prevents future fires. The cycle itself runs detached
		// so a Stop racing a fire never aborts provider calls mid-cycle.
		if _, err := s.engine.RunCycle(context.WithoutCancel(ctx)); errors.Is(err, ErrAlreadyRunning) {
			slog.Debug("scheduled fire dropped: cycle already in flight")
		}
	}
}
