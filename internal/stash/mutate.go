package stash

import (
	"context"
	"fmt"
	"time"

	"github.com/q962/tab-stash/internal/domain"
	"github.com/q962/tab-stash/internal/kvs"
)

// Add records item as deleted now and writes it to the store. The returned
// record is what was written; it shows up in State only once the store
// notifies the write.
func (s *Stash) Add(ctx context.Context, item domain.DeletedItem) (domain.Record, error) {
	if item == nil {
		return domain.Record{}, fmt.Errorf("%w: nil item", domain.ErrMalformedRecord)
	}

	key, at := s.keys.Next()
	rec := domain.Record{
		Key: key,
		Value: domain.DeletionRecord{
			DeletedAt: domain.FormatTimestamp(at),
			Item:      item,
		},
	}

	value, err := domain.EncodeRecord(rec.Value)
	if err != nil {
		return domain.Record{}, err
	}
	if err := s.store.Set(ctx, kvs.Entry{Key: key, Value: value}); err != nil {
		return domain.Record{}, fmt.Errorf("failed to save deletion %s: %w", key, err)
	}
	return rec, nil
}

// Drop removes key from the store. Dropping an unknown key is not an error.
func (s *Stash) Drop(ctx context.Context, key string) error {
	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to drop deletion %s: %w", key, err)
	}
	return nil
}

// DropOlderThan removes every mirrored deletion older than cutoff in a
// single store call and returns how many keys it asked to remove.
func (s *Stash) DropOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.RLock()
	var keys []string
	for _, d := range s.entries {
		if d.DeletedAt.Before(cutoff) {
			keys = append(keys, d.Key)
		}
	}
	s.mu.RUnlock()

	if len(keys) == 0 {
		return 0, nil
	}
	if err := s.store.Delete(ctx, keys...); err != nil {
		return 0, fmt.Errorf("failed to drop %d old deletions: %w", len(keys), err)
	}
	return len(keys), nil
}
