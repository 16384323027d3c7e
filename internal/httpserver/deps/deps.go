package deps

import (
	"time"

	"github.com/q962/tab-stash/internal/kvs"
	"github.com/q962/tab-stash/internal/logger"
	"github.com/q962/tab-stash/internal/stash"
)

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time // for testing, defaults to time.Now
	AllowedCIDRS []string         // IPs allowed to call mutating endpoints
	TrustProxy   bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)
	Stash        *stash.Stash     // In-memory mirror of the deleted items
	Store        kvs.Store        // Backing store, pinged by /infra
	StoreBackend string           // "redis" | "badger" | "memory"
	SweepTrigger chan struct{}    // Channel to trigger a manual retention sweep (nil if retention is disabled)
	Heartbeat    time.Duration    // Keepalive period for SSE and WebSocket streams
	WriteBurst   int              // Mutating requests per client IP before throttling (0 = unlimited)
	WriteRefill  int              // Tokens regained per client IP per minute
}
