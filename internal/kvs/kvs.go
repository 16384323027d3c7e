// Package kvs defines the key/value store contract the deleted-items mirror
// is built on, plus the listener plumbing shared by every backend.
//
// Like a plain storage layer, kvs deals only in opaque bytes: it does not
// know what a deletion record is. Backends live in sub-packages.
package kvs

import (
	"context"
	"errors"
	"iter"
)

var (
	// ErrEmptyValue is returned by Set for an entry without a value.
	// Some change feeds encode deletions as empty values.
	ErrEmptyValue = errors.New("kvs: empty value")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("kvs: store closed")
)

// Entry is what is written to and read from a Store.
type Entry struct {
	Key   string
	Value []byte
}

// Events lets callers observe every committed mutation, whoever made it.
//
// Handlers run on a single dispatcher goroutine, one batch at a time, in
// commit order. A handler sees the commits made after it was registered.
// The cancel func unregisters the handler; batches not yet delivered to it
// are skipped.
type Events interface {
	OnSet(fn func([]Entry)) (cancel func())
	OnDelete(fn func([]string)) (cancel func())
}

// Store is a durable key/value store with change notifications.
type Store interface {
	Events

	// List yields every current entry. Each call starts a fresh listing.
	// A listing error is yielded once, as the last element.
	List(ctx context.Context) iter.Seq2[Entry, error]

	// Set upserts entries atomically.
	Set(ctx context.Context, entries ...Entry) error

	// Delete removes keys atomically. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Close stops notifications and releases the backend.
	Close() error
}

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Compactor is implemented by stores that reclaim space after deletes.
type Compactor interface {
	Compact() error
}

// ValidateEntries checks entries before a Set.
func ValidateEntries(entries []Entry) error {
	for _, e := range entries {
		if e.Key == "" {
			return errors.New("kvs: empty key")
		}
		if len(e.Value) == 0 {
			return ErrEmptyValue
		}
	}
	return nil
}
