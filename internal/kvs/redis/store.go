// Package redis is a kvs.Store on top of Redis. Every write runs in a
// MULTI/EXEC block that also PUBLISHes the change, so all processes sharing
// the namespace see the same mutations in the same order.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/q962/tab-stash/internal/kvs"
	"github.com/q962/tab-stash/internal/logger"
)

// DefaultPageSize is the number of keys fetched per round trip by List.
const DefaultPageSize = 256

const (
	opSet    = "set"
	opDelete = "delete"
)

// event is the pub/sub payload.
type event struct {
	Op      string       `json:"op"`
	Entries []eventEntry `json:"entries,omitempty"`
	Keys    []string     `json:"keys,omitempty"`
}

type eventEntry struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// Store handles Redis operations for one namespace.
type Store struct {
	*kvs.Emitter

	client   *goredis.Client
	keys     keySet
	sub      *goredis.PubSub
	logger   logger.Logger
	pageSize int64
	wg       sync.WaitGroup
}

// NewStore subscribes to the namespace's change channel and returns once
// Redis confirmed the subscription. The client stays owned by the caller.
func NewStore(ctx context.Context, client *goredis.Client, namespace string, log logger.Logger) (*Store, error) {
	keys := newKeySet(namespace)

	sub := client.Subscribe(ctx, keys.events)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", keys.events, err)
	}

	s := &Store{
		Emitter: kvs.NewEmitter(func(err error) {
			log.Error("store listener failed", logger.Error(err))
		}),
		client:   client,
		keys:     keys,
		sub:      sub,
		logger:   log,
		pageSize: DefaultPageSize,
	}

	s.wg.Add(1)
	go s.listen(sub.Channel())

	return s, nil
}

func (s *Store) listen(ch <-chan *goredis.Message) {
	defer s.wg.Done()

	for msg := range ch {
		var ev event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			s.logger.Warn("ignoring malformed change notification",
				logger.String("channel", msg.Channel),
				logger.Error(err))
			continue
		}

		switch ev.Op {
		case opSet:
			entries := make([]kvs.Entry, 0, len(ev.Entries))
			for _, e := range ev.Entries {
				entries = append(entries, kvs.Entry{Key: e.Key, Value: e.Value})
			}
			s.EmitSet(entries)
		case opDelete:
			s.EmitDelete(ev.Keys)
		default:
			s.logger.Warn("ignoring unknown change notification",
				logger.String("op", ev.Op))
		}
	}
}

// List pages through the index in key order, fetching values per page.
func (s *Store) List(ctx context.Context) iter.Seq2[kvs.Entry, error] {
	return func(yield func(kvs.Entry, error) bool) {
		from := "-"
		for {
			keys, err := s.client.ZRangeByLex(ctx, s.keys.index, &goredis.ZRangeBy{
				Min:   from,
				Max:   "+",
				Count: s.pageSize,
			}).Result()
			if err != nil {
				yield(kvs.Entry{}, fmt.Errorf("failed to list keys: %w", err))
				return
			}
			if len(keys) == 0 {
				return
			}

			values, err := s.client.HMGet(ctx, s.keys.values, keys...).Result()
			if err != nil {
				yield(kvs.Entry{}, fmt.Errorf("failed to get values: %w", err))
				return
			}

			for i, key := range keys {
				v, ok := values[i].(string)
				if !ok {
					// Deleted between the two reads.
					continue
				}
				if !yield(kvs.Entry{Key: key, Value: []byte(v)}, nil) {
					return
				}
			}

			if int64(len(keys)) < s.pageSize {
				return
			}
			from = "(" + keys[len(keys)-1]
		}
	}
}

// Set stores entries and publishes them in one transaction.
func (s *Store) Set(ctx context.Context, entries ...kvs.Entry) error {
	if err := kvs.ValidateEntries(entries); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	ev := event{Op: opSet, Entries: make([]eventEntry, 0, len(entries))}
	for _, e := range entries {
		ev.Entries = append(ev.Entries, eventEntry{Key: e.Key, Value: e.Value})
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal set notification: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, e := range entries {
			pipe.ZAdd(ctx, s.keys.index, goredis.Z{Score: 0, Member: e.Key})
			pipe.HSet(ctx, s.keys.values, e.Key, e.Value)
		}
		pipe.Publish(ctx, s.keys.events, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save entries: %w", err)
	}
	return nil
}

// Delete removes keys and publishes the removal in one transaction.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	payload, err := json.Marshal(event{Op: opDelete, Keys: keys})
	if err != nil {
		return fmt.Errorf("failed to marshal delete notification: %w", err)
	}

	members := make([]interface{}, len(keys))
	for i, k := range keys {
		members[i] = k
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.ZRem(ctx, s.keys.index, members...)
		pipe.HDel(ctx, s.keys.values, keys...)
		pipe.Publish(ctx, s.keys.events, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete entries: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close unsubscribes and stops notifications. The client is not closed.
func (s *Store) Close() error {
	err := s.sub.Close()
	s.wg.Wait()
	s.Emitter.Close()
	if err != nil {
		return fmt.Errorf("failed to close subscription: %w", err)
	}
	return nil
}
