package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/q962/tab-stash/internal/kvs"
	"github.com/q962/tab-stash/internal/logger"
)

const (
	// DefaultRetention is how long a deletion is kept when no retention is
	// configured.
	DefaultRetention = 30 * 24 * time.Hour // 30 days
)

// Pruner drops mirrored deletions older than a cutoff.
type Pruner interface {
	WaitReady(ctx context.Context) error
	DropOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// Sweeper periodically removes deletions older than the retention period.
// A sweep can also be requested through Trigger.
type Sweeper struct {
	pruner    Pruner
	compactor kvs.Compactor // nil when the store has nothing to reclaim
	logger    logger.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time

	trigger chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
	stop    sync.Once
}

// NewSweeper creates a sweeper. store is only used to reclaim space after a
// sweep, when it implements kvs.Compactor.
func NewSweeper(
	pruner Pruner,
	store kvs.Store,
	log logger.Logger,
	interval time.Duration,
	retention time.Duration,
) *Sweeper {
	if retention == 0 {
		retention = DefaultRetention
	}
	compactor, _ := store.(kvs.Compactor)

	return &Sweeper{
		pruner:    pruner,
		compactor: compactor,
		logger:    log,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		trigger:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// Trigger returns the channel that requests a sweep. It holds at most one
// pending request.
func (s *Sweeper) Trigger() chan struct{} {
	return s.trigger
}

// Start runs a first sweep once the deletions are loaded, then one every
// interval and one per trigger, until Stop or ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		defer close(s.done)

		if err := s.pruner.WaitReady(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			// Sweep what was loaded anyway.
			s.logger.Warn("sweeping a partially loaded stash", logger.Error(err))
		}
		s.run(ctx, "startup")

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.run(ctx, "interval")
			case <-s.trigger:
				s.run(ctx, "manual")
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the sweep loop and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.stop.Do(func() {
		if s.cancel == nil {
			close(s.done)
			return
		}
		s.cancel()
	})
	<-s.done
}

func (s *Sweeper) run(ctx context.Context, reason string) {
	if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("retention sweep failed",
			logger.String("reason", reason),
			logger.Error(err))
	}
}

// Sweep drops deletions older than the retention period and returns how
// many it asked the store to remove.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.retention)

	dropped, err := s.pruner.DropOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if dropped == 0 {
		s.logger.Debug("no deletions past retention", logger.Time("cutoff", cutoff))
		return 0, nil
	}

	s.logger.Info("retention sweep completed",
		logger.Int("dropped", dropped),
		logger.Duration("retention", s.retention),
		logger.Time("cutoff", cutoff))

	if s.compactor != nil {
		if err := s.compactor.Compact(); err != nil {
			s.logger.Warn("store compaction failed", logger.Error(err))
		}
	}
	return dropped, nil
}
