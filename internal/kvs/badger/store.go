// Package badger is a kvs.Store on top of an embedded BadgerDB. Change
// notifications come from Badger's own subscription feed, so every writer
// sharing the DB handle is observed.
package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/pb"
	"github.com/google/uuid"

	"github.com/q962/tab-stash/internal/kvs"
	"github.com/q962/tab-stash/internal/logger"
)

// Config contains settings specific to the Badger backend.
type Config struct {
	// Dir is where Badger keeps its files. Ignored when InMemory is set.
	Dir string
	// InMemory runs Badger without touching disk (tests, throwaway runs).
	InMemory bool
	// Namespace prefixes every key, so one DB can hold several stores.
	Namespace string
	// SubscribeTimeout bounds the wait for the change feed to come up.
	SubscribeTimeout time.Duration
}

// discardRatio is the value-log GC threshold recommended by Badger.
const discardRatio = 0.5

// Store implements kvs.Store on a Badger database it owns.
type Store struct {
	*kvs.Emitter

	db     *badger.DB
	prefix []byte
	logger logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Open opens the database and starts the change feed. It is up to the
// caller to Close the store.
func Open(conf Config, log logger.Logger) (*Store, error) {
	opts := badger.DefaultOptions(conf.Dir).WithLogger(badgerLogger{log})
	if conf.InMemory {
		opts = opts.WithDir("").WithValueDir("").WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("can't open the db connection: %w", err)
	}

	s := &Store{
		Emitter: kvs.NewEmitter(func(err error) {
			log.Error("store listener failed", logger.Error(err))
		}),
		db:     db,
		prefix: []byte(conf.Namespace + "/"),
		logger: log,
	}

	timeout := conf.SubscribeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if err := s.subscribe(timeout); err != nil {
		s.Emitter.Close()
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) key(k string) []byte {
	return append(append([]byte(nil), s.prefix...), k...)
}

// sentinelPrefix marks private keys used to confirm the change feed.
// '\x00' sorts before any printable key and is filtered from listings.
func (s *Store) sentinelPrefix() []byte {
	return append(append([]byte(nil), s.prefix...), 0)
}

// subscribe starts the change feed and waits until it provably receives
// writes: Badger gives no other signal that a subscriber is registered.
func (s *Store) subscribe(timeout time.Duration) error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	sentinel := append(s.sentinelPrefix(), uuid.NewString()...)
	ready := make(chan struct{})
	var once sync.Once

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.db.Subscribe(ctx, func(list *badger.KVList) error {
			s.dispatch(list, sentinel, func() { once.Do(func() { close(ready) }) })
			return nil
		}, []pb.Match{{Prefix: s.prefix}})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("badger change feed stopped", logger.Error(err))
		}
	}()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()

	for {
		if err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Set(sentinel, []byte{1})
		}); err != nil {
			cancel()
			s.wg.Wait()
			return fmt.Errorf("failed to write subscription sentinel: %w", err)
		}

		select {
		case <-ready:
			if err := s.db.Update(func(txn *badger.Txn) error { return txn.Delete(sentinel) }); err != nil {
				s.logger.Warn("failed to remove subscription sentinel", logger.Error(err))
			}
			return nil
		case <-deadline.C:
			cancel()
			s.wg.Wait()
			return errors.New("badger change feed did not start in time")
		case <-tick.C:
		}
	}
}

// dispatch turns one feed batch into set/delete batches, keeping order.
// Badger reports deletions as entries without a value.
func (s *Store) dispatch(list *badger.KVList, sentinel []byte, onSentinel func()) {
	sentinels := s.sentinelPrefix()

	var sets []kvs.Entry
	var dels []string
	flush := func() {
		if len(sets) > 0 {
			s.EmitSet(sets)
			sets = nil
		}
		if len(dels) > 0 {
			s.EmitDelete(dels)
			dels = nil
		}
	}

	for _, kv := range list.Kv {
		if bytes.HasPrefix(kv.Key, sentinels) {
			if bytes.Equal(kv.Key, sentinel) {
				onSentinel()
			}
			continue
		}
		key := string(kv.Key[len(s.prefix):])
		if len(kv.Value) == 0 {
			if len(sets) > 0 {
				flush()
			}
			dels = append(dels, key)
			continue
		}
		if len(dels) > 0 {
			flush()
		}
		sets = append(sets, kvs.Entry{Key: key, Value: kv.Value})
	}
	flush()
}

// List iterates the namespace in key order inside one read transaction.
func (s *Store) List(ctx context.Context) iter.Seq2[kvs.Entry, error] {
	return func(yield func(kvs.Entry, error) bool) {
		sentinels := s.sentinelPrefix()
		stopped := false

		// See: https://dgraph.io/docs/badger/get-started/#prefix-scans
		err := s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = s.prefix
			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Rewind(); it.Valid(); it.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}
				item := it.Item()
				if bytes.HasPrefix(item.Key(), sentinels) {
					continue
				}
				// Values are copied: item.Value is only valid inside the txn.
				value, err := item.ValueCopy(nil)
				if err != nil {
					return fmt.Errorf("can't copy the value from the database: %w", err)
				}
				key := string(item.Key()[len(s.prefix):])
				if !yield(kvs.Entry{Key: key, Value: value}, nil) {
					stopped = true
					return nil
				}
			}
			return nil
		})
		if err != nil && !stopped {
			yield(kvs.Entry{}, fmt.Errorf("failed to list entries: %w", err))
		}
	}
}

// Set upserts entries in one transaction.
func (s *Store) Set(ctx context.Context, entries ...kvs.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := kvs.ValidateEntries(entries); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, e := range entries {
			if err := txn.Set(s.key(e.Key), e.Value); err != nil {
				return fmt.Errorf("could not set %s: %w", e.Key, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}
	return nil
}

// Delete removes keys in one transaction.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete(s.key(k)); err != nil {
				return fmt.Errorf("could not delete %s: %w", k, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}
	return nil
}

// Ping reports whether the database is open.
func (s *Store) Ping(context.Context) error {
	if s.db.IsClosed() {
		return kvs.ErrClosed
	}
	return nil
}

// Compact runs Badger's value-log garbage collection. This is the only time
// deleted records actually leave the disk.
func (s *Store) Compact() error {
	err := s.db.RunValueLogGC(discardRatio)
	// Nothing to rewrite is not a failure.
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}

// Close stops the change feed, delivers pending notifications and closes
// the database.
func (s *Store) Close() error {
	s.cancel()
	s.wg.Wait()
	s.Emitter.Close()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("could not close the database: %w", err)
	}
	return nil
}

// badgerLogger routes Badger's internal logging through the app logger.
type badgerLogger struct {
	log logger.Logger
}

func (l badgerLogger) Errorf(f string, args ...interface{})   { l.log.Errorf("badger: "+f, args...) }
func (l badgerLogger) Warningf(f string, args ...interface{}) { l.log.Warnf("badger: "+f, args...) }
func (l badgerLogger) Infof(f string, args ...interface{})    { l.log.Debugf("badger: "+f, args...) }
func (l badgerLogger) Debugf(f string, args ...interface{})   { l.log.Debugf("badger: "+f, args...) }
