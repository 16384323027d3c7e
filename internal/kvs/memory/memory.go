// Package memory is an in-process kvs.Store. It is the single-process
// backend and the reference the other backends are tested against.
package memory

import (
	"context"
	"iter"
	"slices"
	"sync"

	"github.com/q962/tab-stash/internal/kvs"
)

// Store keeps entries in a map and notifies through a kvs.Emitter.
type Store struct {
	*kvs.Emitter

	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// New returns an empty store.
func New() *Store {
	return &Store{
		Emitter: kvs.NewEmitter(nil),
		data:    make(map[string][]byte),
	}
}

// List yields entries in key order. Keys are snapshotted when iteration
// starts; entries deleted meanwhile are skipped.
func (s *Store) List(ctx context.Context) iter.Seq2[kvs.Entry, error] {
	return func(yield func(kvs.Entry, error) bool) {
		s.mu.RLock()
		if s.closed {
			s.mu.RUnlock()
			yield(kvs.Entry{}, kvs.ErrClosed)
			return
		}
		keys := make([]string, 0, len(s.data))
		for k := range s.data {
			keys = append(keys, k)
		}
		s.mu.RUnlock()
		slices.Sort(keys)

		for _, k := range keys {
			if err := ctx.Err(); err != nil {
				yield(kvs.Entry{}, err)
				return
			}
			s.mu.RLock()
			v, ok := s.data[k]
			s.mu.RUnlock()
			if !ok {
				continue
			}
			if !yield(kvs.Entry{Key: k, Value: slices.Clone(v)}, nil) {
				return
			}
		}
	}
}

// Set upserts entries and emits one set batch.
func (s *Store) Set(ctx context.Context, entries ...kvs.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := kvs.ValidateEntries(entries); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return kvs.ErrClosed
	}
	for _, e := range entries {
		s.data[e.Key] = slices.Clone(e.Value)
	}
	s.EmitSet(entries)
	return nil
}

// Delete removes keys and emits one delete batch with every requested key.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return kvs.ErrClosed
	}
	for _, k := range keys {
		delete(s.data, k)
	}
	s.EmitDelete(keys)
	return nil
}

// Ping reports whether the store is open.
func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return kvs.ErrClosed
	}
	return nil
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Close delivers pending notifications and rejects further writes.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.Emitter.Close()
	return nil
}
