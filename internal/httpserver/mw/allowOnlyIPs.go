package mw

import (
	"net/http"

	"github.com/q962/tab-stash/internal/logger"
	"github.com/q962/tab-stash/internal/utils"
)

// AllowOnlyCIDRS guards the routes that change deletions: only clients whose
// IP matches allowed (single IPs or CIDRs) get through, others get a JSON
// 403. An empty list lets everyone through.
// trustProxy resolves the client from forwarding headers (e.g. cloudflared).
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	m := utils.NewIPMatcher(allowed)
	if m.IsEmpty() {
		log.Debug("write allowlist empty, mutating routes are open")
		return func(next http.Handler) http.Handler { return next }
	}

	log.Debug("write allowlist enabled",
		logger.Strings("allowed", allowed),
		logger.Bool("trust_proxy", trustProxy))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trustProxy)
			if !m.Allow(ip) {
				log.Warn("write rejected by allowlist",
					logger.String("client_ip", ip),
					logger.String("method", r.Method),
					logger.String("path", r.URL.Path))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"client not allowed to modify deletions"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
