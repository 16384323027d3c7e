// Package stash keeps an in-memory mirror of the deleted-items log held in a
// kvs.Store.
//
// A Stash hydrates itself from the store in the background and then follows
// the store's change notifications. Its own Add and Drop only write to the
// store: the mirror changes exclusively when the store reports a committed
// mutation, whether it came from this process or another one.
package stash

import (
	"context"
	"sync"
	"time"

	"github.com/q962/tab-stash/internal/domain"
	"github.com/q962/tab-stash/internal/kvs"
	"github.com/q962/tab-stash/internal/logger"
)

// State is a snapshot of the mirror.
type State struct {
	// Ready turns true once, after the initial load completed without error.
	Ready bool `json:"ready"`
	// Version increases with every applied change.
	Version uint64 `json:"version"`
	// Entries are in arrival order: store order for the initial load, then
	// notification order.
	Entries []domain.Deletion `json:"entries"`
}

// Stash is the in-memory mirror. The zero value is not usable; call New.
type Stash struct {
	store       kvs.Store
	logger      logger.Logger
	keys        *domain.KeyGenerator
	folderTitle func(string) string

	mu      sync.RWMutex
	ready   bool
	version uint64
	entries []*domain.Deletion
	// cache holds the same pointers as entries, by key.
	cache map[string]*domain.Deletion

	watchMu     sync.Mutex
	watchers    map[int]chan State
	nextWatcher int
	published   uint64
	closed      bool

	unsubscribe    []func()
	stopHydration  context.CancelFunc
	hydrationDone  chan struct{}
	hydrationError error
}

type options struct {
	now         func() time.Time
	suffix      func() string
	folderTitle func(string) string
}

// Option configures a Stash.
type Option func(*options)

// WithClock sets the clock used for new keys and deleted_at timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithSuffix sets the generator for the random part of new keys.
func WithSuffix(suffix func() string) Option {
	return func(o *options) { o.suffix = suffix }
}

// WithFolderTitle sets how top-level folder titles are displayed. Nil keeps
// stored titles.
func WithFolderTitle(format func(string) string) Option {
	return func(o *options) { o.folderTitle = format }
}

// New returns a Stash mirroring store and starts loading it in the
// background. The Stash is usable right away; State().Ready reports when the
// initial load is complete. ctx bounds the initial load only.
func New(ctx context.Context, store kvs.Store, log logger.Logger, opts ...Option) *Stash {
	o := options{folderTitle: domain.FriendlyFolderName}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Stash{
		store:         store,
		logger:        log,
		keys:          domain.NewKeyGenerator(o.now, o.suffix),
		folderTitle:   o.folderTitle,
		cache:         make(map[string]*domain.Deletion),
		watchers:      make(map[int]chan State),
		hydrationDone: make(chan struct{}),
	}

	// Listen first, so nothing committed while listing is missed.
	s.unsubscribe = append(s.unsubscribe,
		store.OnSet(s.handleSet),
		store.OnDelete(s.handleDelete),
	)

	hctx, cancel := context.WithCancel(ctx)
	s.stopHydration = cancel
	go s.hydrate(hctx)

	return s
}

// State returns a consistent snapshot. The snapshot shares no memory with the
// mirror except the immutable item trees.
func (s *Stash) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Stash) snapshotLocked() State {
	entries := make([]domain.Deletion, len(s.entries))
	for i, d := range s.entries {
		entries[i] = *d
	}
	return State{Ready: s.ready, Version: s.version, Entries: entries}
}

// Ready reports whether the initial load has completed.
func (s *Stash) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Len returns the number of mirrored deletions.
func (s *Stash) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Get returns the deletion stored under key.
func (s *Stash) Get(key string) (domain.Deletion, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.cache[key]
	if !ok {
		return domain.Deletion{}, false
	}
	return *d, true
}

// Filter returns the deletions matching query, in State order. An empty
// query matches everything.
func (s *Stash) Filter(query string) []domain.Deletion {
	return FilterEntries(s.State().Entries, query)
}

// FilterEntries keeps the entries whose item matches query.
func FilterEntries(entries []domain.Deletion, query string) []domain.Deletion {
	q := domain.ParseQuery(query)
	out := make([]domain.Deletion, 0, len(entries))
	for _, d := range entries {
		if q.MatchItem(d.Item) {
			out = append(out, d)
		}
	}
	return out
}

// Close stops following the store and closes every watcher channel. It
// waits for the initial load to stop. The store itself is not closed.
func (s *Stash) Close() {
	for _, cancel := range s.unsubscribe {
		cancel()
	}
	s.stopHydration()
	<-s.hydrationDone

	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.watchers {
		close(ch)
		delete(s.watchers, id)
	}
}
