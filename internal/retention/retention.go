// Package retention removes old terminal mailbox rows on a cron schedule.
package retention

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"go.uber.org/zap"

	"github.com/LeventeLantos/turn-relay/internal/metrics"
	"github.com/LeventeLantos/turn-relay/internal/model"
)

type Purger interface {
	PurgeTerminal(ctx context.Context, q model.Queue, before time.Time) (int64, error)
}

type Config struct {
	Cron string
	// MaxAge is how long terminal rows are kept.
	MaxAge time.Duration
}

type Sweeper struct {
	store Purger
	cfg   Config
	log   *zap.Logger
	now   func() time.Time

	mu      sync.Mutex
	running bool
}

func New(store Purger, cfg Config, log *zap.Logger) (*Sweeper, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.MaxAge <= 0 {
		return nil, errors.New("max age must be > 0")
	}
	if !gronx.IsValid(cfg.Cron) {
		return nil, fmt.Errorf("invalid retention cron %q", cfg.Cron)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{
		store: store,
		cfg:   cfg,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// Run sweeps at every cron tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	s.log.Info("retention enabled", zap.String("cron", s.cfg.Cron), zap.Duration("max_age", s.cfg.MaxAge))

	for {
		next, err := gronx.NextTickAfter(s.cfg.Cron, s.now(), false)
		if err != nil {
			s.log.Error("retention next tick failed", zap.String("cron", s.cfg.Cron), zap.Error(err))
			next = s.now().Add(30 * time.Second)
		}

		wait := time.Until(next)
		if wait < time.Second {
			wait = time.Second
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
			s.runJob(ctx)
		}
	}
}

func (s *Sweeper) runJob(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if _, err := s.RunOnce(ctx); err != nil {
		s.log.Error("retention run failed", zap.Error(err))
	}
}

// RunOnce purges both queues and returns the number of rows removed.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	before := s.now().Add(-s.cfg.MaxAge)

	var (
		total int64
		errs  []error
	)
	for _, q := range []model.Queue{model.TurnQueue, model.CommandQueue} {
		n, err := s.store.PurgeTerminal(ctx, q, before)
		if err != nil {
			errs = append(errs, fmt.Errorf("purge %s queue: %w", q, err))
			continue
		}
		metrics.AddRowsPurged(string(q), n)
		total += n
	}

	s.log.Info("retention run done", zap.Int64("purged", total), zap.Time("before", before))
	return total, errors.Join(errs...)
}
