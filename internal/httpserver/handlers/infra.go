package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/q962/tab-stash/internal/httpserver/deps"
	"github.com/q962/tab-stash/internal/kvs"
)

type componentStatus struct {
	OK      bool   `json:"ok"`
	Backend string `json:"backend,omitempty"`
	Entries *int   `json:"entries,omitempty"`
	Version uint64 `json:"version,omitempty"`
	Mode    string `json:"mode,omitempty"`
	Error   string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]componentStatus{
			"store": checkStore(r.Context(), d),
			"stash": stashStatus(d),
		}

		writeJSON(w, d.Logger, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

func determineMode(components map[string]componentStatus) string {
	// Store down = nothing can be written
	if store, exists := components["store"]; exists && !store.OK {
		return "critical"
	}

	if st, exists := components["stash"]; exists && !st.OK {
		if st.Error != "" {
			return "degraded" // loading failed, serving what was read
		}
		return "loading"
	}

	return "ready"
}

func stashStatus(d deps.Deps) componentStatus {
	st := d.Stash.State()
	count := len(st.Entries)
	status := componentStatus{
		OK:      st.Ready,
		Entries: &count,
		Version: st.Version,
		Mode:    "loading",
	}
	if st.Ready {
		status.Mode = "live"
	}
	if err := d.Stash.HydrationError(); err != nil {
		status.Mode = "partial"
		status.Error = err.Error()
	}
	return status
}

func checkStore(ctx context.Context, d deps.Deps) componentStatus {
	status := componentStatus{Backend: d.StoreBackend}

	pinger, ok := d.Store.(kvs.Pinger)
	if !ok {
		// Nothing to check: the store lives in this process.
		status.OK = d.Store != nil
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := pinger.Ping(ctx); err != nil {
		status.Error = err.Error()
		return status
	}
	status.OK = true
	return status
}
