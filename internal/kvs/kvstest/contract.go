// Package kvstest holds the behaviour every kvs.Store backend must show.
package kvstest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/q962/tab-stash/internal/kvs"
)

// Opener returns a fresh, empty store. The store is closed by the suite.
type Opener func(t *testing.T) kvs.Store

// Feed records notifications from a store.
type Feed struct {
	mu     sync.Mutex
	events []string
}

// Attach registers the feed on s.
func (f *Feed) Attach(s kvs.Events) {
	s.OnSet(func(entries []kvs.Entry) {
		f.mu.Lock()
		defer f.mu.Unlock()
		for _, e := range entries {
			f.events = append(f.events, "set "+e.Key+"="+string(e.Value))
		}
	})
	s.OnDelete(func(keys []string) {
		f.mu.Lock()
		defer f.mu.Unlock()
		for _, k := range keys {
			f.events = append(f.events, "del "+k)
		}
	})
}

// Events returns what was received so far.
func (f *Feed) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

// WaitFor blocks until n events arrived.
func (f *Feed) WaitFor(t *testing.T, n int) []string {
	t.Helper()
	require.Eventually(t, func() bool { return len(f.Events()) >= n }, 5*time.Second, 5*time.Millisecond,
		"waiting for %d notifications", n)
	return f.Events()
}

// Collect drains a listing.
func Collect(t *testing.T, s kvs.Store) map[string]string {
	t.Helper()
	out := make(map[string]string)
	for e, err := range s.List(context.Background()) {
		require.NoError(t, err)
		out[e.Key] = string(e.Value)
	}
	return out
}

// RunContract runs the shared backend suite.
func RunContract(t *testing.T, open Opener) {
	t.Run("set then list", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, kvs.Entry{Key: "b", Value: []byte("2")}, kvs.Entry{Key: "a", Value: []byte("1")}))
		require.NoError(t, s.Set(ctx, kvs.Entry{Key: "a", Value: []byte("1b")}))

		assert.Equal(t, map[string]string{"a": "1b", "b": "2"}, Collect(t, s))
	})

	t.Run("list is restartable", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()

		for _, k := range []string{"k1", "k2", "k3"} {
			require.NoError(t, s.Set(ctx, kvs.Entry{Key: k, Value: []byte(k)}))
		}

		seq := s.List(ctx)
		first := 0
		for _, err := range seq {
			require.NoError(t, err)
			first++
			break
		}
		second := 0
		for _, err := range seq {
			require.NoError(t, err)
			second++
		}
		assert.Equal(t, 1, first)
		assert.Equal(t, 3, second)
	})

	t.Run("delete", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, kvs.Entry{Key: "a", Value: []byte("1")}, kvs.Entry{Key: "b", Value: []byte("2")}))
		require.NoError(t, s.Delete(ctx, "a", "missing"))

		assert.Equal(t, map[string]string{"b": "2"}, Collect(t, s))
	})

	t.Run("empty value rejected", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		err := s.Set(context.Background(), kvs.Entry{Key: "a"})
		assert.ErrorIs(t, err, kvs.ErrEmptyValue)
	})

	t.Run("notifications in commit order", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()

		feed := &Feed{}
		feed.Attach(s)

		require.NoError(t, s.Set(ctx, kvs.Entry{Key: "a", Value: []byte("1")}, kvs.Entry{Key: "b", Value: []byte("2")}))
		require.NoError(t, s.Delete(ctx, "a"))
		require.NoError(t, s.Set(ctx, kvs.Entry{Key: "b", Value: []byte("3")}))

		got := feed.WaitFor(t, 4)
		assert.Equal(t, []string{"set a=1", "set b=2", "del a", "set b=3"}, got)
	})

	t.Run("cancelled listener", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()

		var mu sync.Mutex
		calls := 0
		cancel := s.OnSet(func([]kvs.Entry) {
			mu.Lock()
			calls++
			mu.Unlock()
		})
		cancel()

		feed := &Feed{}
		feed.Attach(s)
		require.NoError(t, s.Set(ctx, kvs.Entry{Key: "a", Value: []byte("1")}))
		feed.WaitFor(t, 1)

		mu.Lock()
		defer mu.Unlock()
		assert.Zero(t, calls)
	})
}
