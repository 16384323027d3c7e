package stash

import (
	"context"
	"fmt"
	"time"

	"github.com/q962/tab-stash/internal/logger"
)

// hydrate reads the whole store once. It does not retry: on failure the
// stash keeps what it read and never becomes ready.
func (s *Stash) hydrate(ctx context.Context) {
	defer close(s.hydrationDone)

	start := time.Now()
	read := 0

	err := func() error {
		for e, err := range s.store.List(ctx) {
			if err != nil {
				return err
			}
			s.mu.Lock()
			applyErr := s.applySetLocked(e)
			if applyErr == nil {
				s.version++
			}
			s.mu.Unlock()
			if applyErr != nil {
				return applyErr
			}
			read++
		}
		return ctx.Err()
	}()

	s.mu.Lock()
	if err == nil {
		s.ready = true
		s.version++
	} else {
		s.hydrationError = fmt.Errorf("failed to load deleted items: %w", err)
	}
	count := len(s.entries)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("hydration failed",
			logger.Int("read", read),
			logger.Duration("elapsed", time.Since(start)),
			logger.Error(err))
	} else {
		s.logger.Info("deleted items loaded",
			logger.Int("read", read),
			logger.Int("count", count),
			logger.Duration("elapsed", time.Since(start)))
	}
	s.publish(snap)
}

// HydrationError returns why the initial load failed, or nil if it has not
// failed (yet).
func (s *Stash) HydrationError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hydrationError
}

// WaitReady blocks until the initial load has finished or ctx is done. It
// returns the load error, if any.
func (s *Stash) WaitReady(ctx context.Context) error {
	select {
	case <-s.hydrationDone:
		return s.HydrationError()
	case <-ctx.Done():
		return ctx.Err()
	}
}
