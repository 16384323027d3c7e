package handlers

import (
	"net/http"

	"github.com/q962/tab-stash/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready   bool   `json:"ready"`
	Entries int    `json:"entries"`
	Error   string `json:"error,omitempty"`
}

// Readyz reports 200 once the deleted items are loaded, 503 before that or
// when loading failed.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := readyzResponse{
			Ready:   d.Stash.Ready(),
			Entries: d.Stash.Len(),
		}
		if err := d.Stash.HydrationError(); err != nil {
			resp.Error = err.Error()
		}

		status := http.StatusOK
		if !resp.Ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, d.Logger, status, resp)
	}
}
