package regen

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultDebounce is how long the scheduler waits for further triggers
// before running.
const DefaultDebounce = 500 * time.Millisecond

// runTimeout bounds a single regeneration.
const runTimeout = 30 * time.Second

// Scheduler coalesces regeneration requests. Runs happen on a background
// goroutine, one at a time; callers never wait for them.
type Scheduler struct {
	run    func(context.Context) error
	delay  time.Duration
	logger log.FieldLogger

	mu      sync.Mutex
	timer   *time.Timer
	reasons []string
	closed  bool

	runMu sync.Mutex
	wg    sync.WaitGroup
}

// NewScheduler returns a scheduler that calls run at most once per burst of
// triggers separated by less than delay.
func NewScheduler(run func(context.Context) error, delay time.Duration, logger log.FieldLogger) *Scheduler {
	if logger == nil {
		logger = log.StandardLogger()
	}

	return &Scheduler{run: run, delay: delay, logger: logger}
}

// Trigger requests a regeneration. The reason is only logged.
func (s *Scheduler) Trigger(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.reasons = append(s.reasons, reason)

	if s.timer == nil {
		s.timer = time.AfterFunc(s.delay, s.fire)

		return
	}

	s.timer.Reset(s.delay)
}

func (s *Scheduler) fire() {
	reasons, ok := s.take()
	if !ok {
		return
	}

	defer s.wg.Done()

	s.execute(reasons)
}

// Flush runs a pending regeneration now instead of waiting for the delay.
// It returns once that run is done. Without pending triggers it does nothing.
func (s *Scheduler) Flush() {
	reasons, ok := s.take()
	if !ok {
		return
	}

	defer s.wg.Done()

	s.execute(reasons)
}

// take claims the pending reasons. On success the caller owns one wg slot.
func (s *Scheduler) take() ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || len(s.reasons) == 0 {
		return nil, false
	}

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	reasons := s.reasons
	s.reasons = nil
	s.wg.Add(1)

	return reasons, true
}

func (s *Scheduler) execute(reasons []string) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	start := time.Now()

	if err := s.run(ctx); err != nil {
		s.logger.WithError(err).WithField("reasons", reasons).Warn("regenerate views failed")

		return
	}

	s.logger.WithFields(log.Fields{
		"reasons":  reasons,
		"duration": time.Since(start),
	}).Debug("regenerated views")
}

// Close drops pending triggers and waits for an in-flight run to finish.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	s.reasons = nil
	s.mu.Unlock()

	s.wg.Wait()
}
