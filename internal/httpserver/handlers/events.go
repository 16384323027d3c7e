package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/q962/tab-stash/internal/httpserver/deps"
	"github.com/q962/tab-stash/internal/logger"
	"github.com/q962/tab-stash/internal/stash"
)

// DefaultHeartbeat is used when deps.Deps.Heartbeat is not set.
const DefaultHeartbeat = 25 * time.Second

func heartbeat(d deps.Deps) time.Duration {
	if d.Heartbeat > 0 {
		return d.Heartbeat
	}
	return DefaultHeartbeat
}

// Events streams State snapshots as Server-Sent Events ("event: state"),
// starting with the current one. ?q= filters the entries of every snapshot.
func Events(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, d.Logger, http.StatusInternalServerError, "streaming unsupported")
			return
		}
		// The stream outlives the server's write timeout.
		_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

		query := strings.TrimSpace(r.URL.Query().Get("q"))
		states, cancel := d.Stash.Watch()
		defer cancel()

		setupSSEHeaders(w)
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		ticker := time.NewTicker(heartbeat(d))
		defer ticker.Stop()

		d.Logger.Debug("sse client connected", logger.String("remote_ip", r.RemoteAddr))
		defer d.Logger.Debug("sse client disconnected", logger.String("remote_ip", r.RemoteAddr))

		for {
			select {
			case <-r.Context().Done():
				return
			case st, ok := <-states:
				if !ok {
					return
				}
				if query != "" {
					st.Entries = stash.FilterEntries(st.Entries, query)
				}
				if err := sendSSEEvent(w, flusher, "state", st); err != nil {
					d.Logger.Debug("sse write failed", logger.Error(err))
					return
				}
			case <-ticker.C:
				if err := sendSSEComment(w, flusher, "keepalive"); err != nil {
					d.Logger.Debug("sse write failed", logger.Error(err))
					return
				}
			}
		}
	}
}
