package stash

import (
	"github.com/q962/tab-stash/internal/domain"
	"github.com/q962/tab-stash/internal/kvs"
	"github.com/q962/tab-stash/internal/logger"
)

// handleSet applies a set notification. A record that cannot be decoded
// stops the rest of the batch; entries before it stay applied.
func (s *Stash) handleSet(entries []kvs.Entry) {
	s.mu.Lock()
	applied := 0
	var failed error
	for _, e := range entries {
		if err := s.applySetLocked(e); err != nil {
			failed = err
			break
		}
		applied++
	}
	var snap State
	if applied > 0 {
		s.version++
		snap = s.snapshotLocked()
	}
	s.mu.Unlock()

	if failed != nil {
		s.logger.Error("failed to apply set notification",
			logger.Int("applied", applied),
			logger.Int("batch", len(entries)),
			logger.Error(failed))
	}
	if applied > 0 {
		s.publish(snap)
	}
}

// applySetLocked upserts one record. The initial load goes through here too,
// so a key seen by both paths is updated in place rather than appended twice.
func (s *Stash) applySetLocked(e kvs.Entry) error {
	d, err := domain.NewDeletion(e.Key, e.Value, s.folderTitle)
	if err != nil {
		return err
	}

	if cur, ok := s.cache[e.Key]; ok {
		cur.DeletedAt = d.DeletedAt
		cur.Item = d.Item
		return nil
	}

	s.entries = append(s.entries, d)
	s.cache[e.Key] = d
	return nil
}

// handleDelete applies a delete notification. Unknown keys are ignored.
func (s *Stash) handleDelete(keys []string) {
	s.mu.Lock()
	removed := 0
	for _, k := range keys {
		if _, ok := s.cache[k]; ok {
			delete(s.cache, k)
			removed++
		}
	}
	if removed == 0 {
		s.mu.Unlock()
		return
	}

	kept := s.entries[:0]
	for _, d := range s.entries {
		if _, ok := s.cache[d.Key]; ok {
			kept = append(kept, d)
		}
	}
	clear(s.entries[len(kept):])
	s.entries = kept
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Debug("deletions removed", logger.Int("count", removed))
	s.publish(snap)
}
