package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/q962/tab-stash/internal/domain"
	"github.com/q962/tab-stash/internal/httpserver/deps"
	"github.com/q962/tab-stash/internal/logger"
	"github.com/q962/tab-stash/internal/stash"
)

// maxItemBytes bounds the body of POST /api/deleted. Folders can be large.
const maxItemBytes = 4 << 20

// ListDeleted returns the current state, optionally filtered with ?q=.
func ListDeleted(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := d.Stash.State()
		if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
			st.Entries = stash.FilterEntries(st.Entries, q)
		}
		writeJSON(w, d.Logger, http.StatusOK, st)
	}
}

// AddDeleted records the DeletedItem in the body.
func AddDeleted(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxItemBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, d.Logger, http.StatusRequestEntityTooLarge, "item too large")
				return
			}
			writeError(w, d.Logger, http.StatusBadRequest, "failed to read body")
			return
		}

		item, err := domain.DecodeItem(body)
		if err != nil {
			writeError(w, d.Logger, http.StatusBadRequest, err.Error())
			return
		}

		rec, err := d.Stash.Add(r.Context(), item)
		if err != nil {
			d.Logger.Error("failed to add deleted item", logger.Error(err))
			writeError(w, d.Logger, http.StatusBadGateway, "store unavailable")
			return
		}

		d.Logger.Debug("deleted item added",
			logger.String("key", rec.Key),
			logger.String("title", item.ItemTitle()))
		writeJSON(w, d.Logger, http.StatusCreated, rec)
	}
}

// DropDeleted removes one record by key.
func DropDeleted(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		if key == "" {
			writeError(w, d.Logger, http.StatusBadRequest, "key is required")
			return
		}

		if err := d.Stash.Drop(r.Context(), key); err != nil {
			d.Logger.Error("failed to drop deleted item",
				logger.String("key", key),
				logger.Error(err))
			writeError(w, d.Logger, http.StatusBadGateway, "store unavailable")
			return
		}

		d.Logger.Debug("deleted item dropped", logger.String("key", key))
		w.WriteHeader(http.StatusNoContent)
	}
}
