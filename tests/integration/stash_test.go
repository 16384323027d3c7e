package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/q962/tab-stash/internal/domain"
	"github.com/q962/tab-stash/internal/httpserver"
	"github.com/q962/tab-stash/internal/httpserver/deps"
	"github.com/q962/tab-stash/internal/kvs/badger"
	kvsredis "github.com/q962/tab-stash/internal/kvs/redis"
	"github.com/q962/tab-stash/internal/logger"
	"github.com/q962/tab-stash/internal/stash"
)

const waitFor = 3 * time.Second

func waitReady(t *testing.T, st *stash.Stash) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, st.WaitReady(ctx))
}

// instance is one tab-stash process sharing a Redis server with others.
type instance struct {
	store *kvsredis.Store
	stash *stash.Stash
	api   *httptest.Server
}

func startInstance(t *testing.T, addr string) *instance {
	t.Helper()
	log := logger.Nop()

	client := goredis.NewClient(&goredis.Options{Addr: addr})
	store, err := kvsredis.NewStore(context.Background(), client, "deleted_items", log)
	require.NoError(t, err)

	st := stash.New(context.Background(), store, log)
	api := httptest.NewServer(httpserver.NewRouter(log, deps.Deps{
		Logger:       log,
		StartTime:    time.Now(),
		TimeNow:      time.Now,
		Stash:        st,
		Store:        store,
		StoreBackend: "redis",
	}))

	t.Cleanup(func() {
		api.Close()
		st.Close()
		_ = store.Close()
		_ = client.Close()
	})
	waitReady(t, st)
	return &instance{store: store, stash: st, api: api}
}

func (in *instance) list(t *testing.T) stash.State {
	t.Helper()
	resp, err := http.Get(in.api.URL + "/api/deleted")
	require.NoError(t, err)
	defer resp.Body.Close()

	var st stash.State
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	return st
}

func TestDeletionsPropagateBetweenInstances(t *testing.T) {
	srv := miniredis.RunT(t)
	a := startInstance(t, srv.Addr())
	b := startInstance(t, srv.Addr())

	resp, err := http.Post(a.api.URL+"/api/deleted", "application/json",
		strings.NewReader(`{"title":"saved-2024-03-01T10:20:30.123Z","children":[{"title":"Go","url":"https://go.dev"}]}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var rec struct {
		Key string `json:"key"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	resp.Body.Close()

	// Both mirrors converge on the write, whoever made it.
	for _, in := range []*instance{a, b} {
		require.Eventually(t, func() bool {
			_, ok := in.stash.Get(rec.Key)
			return ok
		}, waitFor, 10*time.Millisecond)
	}

	st := b.list(t)
	require.Len(t, st.Entries, 1)
	folder, ok := st.Entries[0].Item.(domain.DeletedFolder)
	require.True(t, ok)
	assert.Equal(t, domain.FriendlyFolderName("saved-2024-03-01T10:20:30.123Z"), folder.Title)
	assert.Equal(t, "Go", folder.Children[0].ItemTitle())

	// A third instance started later loads it from the store.
	c := startInstance(t, srv.Addr())
	_, ok = c.stash.Get(rec.Key)
	assert.True(t, ok)

	req, err := http.NewRequest(http.MethodDelete, b.api.URL+"/api/deleted/"+rec.Key, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	for _, in := range []*instance{a, b, c} {
		require.Eventually(t, func() bool { return in.stash.Len() == 0 }, waitFor, 10*time.Millisecond)
	}
}

func TestBadgerStashSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	log := logger.Nop()

	open := func() (*badger.Store, *stash.Stash) {
		store, err := badger.Open(badger.Config{Dir: dir, Namespace: "deleted_items"}, log)
		require.NoError(t, err)
		st := stash.New(context.Background(), store, log)
		waitReady(t, st)
		return store, st
	}

	store, st := open()
	var keys []string
	for _, title := range []string{"first", "second", "third"} {
		rec, err := st.Add(context.Background(), domain.DeletedBookmark{Title: title, URL: "https://" + title})
		require.NoError(t, err)
		keys = append(keys, rec.Key)
	}
	require.NoError(t, st.Drop(context.Background(), keys[1]))
	require.Eventually(t, func() bool {
		_, dropped := st.Get(keys[1])
		return st.Len() == 2 && !dropped
	}, waitFor, 10*time.Millisecond)
	st.Close()
	require.NoError(t, store.Close())

	store, st = open()
	defer func() {
		st.Close()
		_ = store.Close()
	}()

	got := st.State()
	assert.True(t, got.Ready)
	require.Len(t, got.Entries, 2)
	assert.Equal(t, keys[0], got.Entries[0].Key)
	assert.Equal(t, keys[2], got.Entries[1].Key)
	assert.Equal(t, "third", got.Entries[1].Item.ItemTitle())
}
