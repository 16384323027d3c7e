package routes

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/q962/tab-stash/internal/httpserver/deps"
	"github.com/q962/tab-stash/internal/httpserver/handlers"
	"github.com/q962/tab-stash/internal/httpserver/mw"
)

func init() {
	Register("deleted", registerDeleted, middleware.Timeout(10*time.Second))
	Register("streams", registerDeletedStreams)
}

func registerDeleted(r chi.Router, d deps.Deps) {
	restricted := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
	if d.WriteBurst > 0 {
		restricted = restricted.With(mw.RateLimit(mw.RateLimitConfig{
			Burst:             d.WriteBurst,
			RefillPerIPPerMin: d.WriteRefill,
			MaxEntries:        10000,
			TrustProxy:        d.TrustProxy,
		}))
	}

	r.Get("/api/deleted", handlers.ListDeleted(d))
	restricted.Post("/api/deleted", handlers.AddDeleted(d))
	restricted.Post("/api/deleted/sweep", handlers.Sweep(d))
	restricted.Delete("/api/deleted/{key}", handlers.DropDeleted(d))
}

// Streams stay open, so they get no request timeout.
func registerDeletedStreams(r chi.Router, d deps.Deps) {
	r.Get("/api/deleted/events", handlers.Events(d))
	r.Get("/api/deleted/ws", handlers.WebSocket(d))
}
