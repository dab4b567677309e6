// Package scheduler drives a poll function at a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Stats describes the ticks run since the scheduler was created.
type Stats struct {
	Running      bool          `json:"running"`
	Interval     time.Duration `json:"interval"`
	Ticks        int64         `json:"ticks"`
	Panics       int64         `json:"panics"`
	LastTickAt   *time.Time    `json:"last_tick_at,omitempty"`
	LastDuration time.Duration `json:"last_duration"`
}

// Scheduler calls a poll function once on Start and then every interval until
// Stop. Polls never overlap.
type Scheduler struct {
	name     string
	interval time.Duration
	poll     func(context.Context)
	log      *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	statsMu sync.Mutex
	stats   Stats
}

func New(name string, interval time.Duration, poll func(context.Context), log *zap.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if poll == nil {
		return nil, errors.New("poll func is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		name:     name,
		interval: interval,
		poll:     poll,
		log:      log.With(zap.String("scheduler", name)),
		now:      time.Now,
		stats:    Stats{Interval: interval},
	}, nil
}

// Start launches the poll loop. It reports false when the loop is already
// running.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.log.Info("scheduler already running")
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	s.setRunning(true)

	go s.loop(ctx, done)

	s.log.Info("scheduler started", zap.Duration("interval", s.interval))
	return true
}

// Stop cancels future polls and waits for an in-flight poll to return. It
// reports false when the loop was not running.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return false
	}

	s.cancel()
	<-s.done
	s.cancel, s.done = nil, nil
	s.setRunning(false)

	s.log.Info("scheduler stopped")
	return true
}

func (s *Scheduler) IsRunning() bool {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats.Running
}

func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

func (s *Scheduler) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	out := s.stats
	if out.LastTickAt != nil {
		at := *out.LastTickAt
		out.LastTickAt = &at
	}
	return out
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runPoll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runPoll(ctx)
		}
	}
}

func (s *Scheduler) runPoll(ctx context.Context) {
	start := s.now()
	panicked := false

	func() {
		defer func() {
			if r := recover(); r != nil {
				panicked = true
				s.log.Error("poll panic recovered", zap.Any("panic", r))
			}
		}()
		s.poll(ctx)
	}()

	elapsed := s.now().Sub(start)

	s.statsMu.Lock()
	s.stats.Ticks++
	if panicked {
		s.stats.Panics++
	}
	s.stats.LastTickAt = &start
	s.stats.LastDuration = elapsed
	s.statsMu.Unlock()

	s.log.Debug("poll completed", zap.Duration("duration", elapsed))
}

func (s *Scheduler) setRunning(v bool) {
	s.statsMu.Lock()
	s.stats.Running = v
	s.statsMu.Unlock()
}
