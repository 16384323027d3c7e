package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendRedis  = "redis"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	ConfigFile string // optional flat YAML file consulted after the process env

	// Store
	StoreBackend   string // "redis" | "badger" | "memory"
	StoreNamespace string // ex: "deleted_items"
	BadgerDir      string // badger data directory (badger backend only)

	// Retention
	Retention     time.Duration // deletions older than this are swept (0 = keep forever)
	SweepInterval time.Duration // how often the sweeper runs (ex: 1h)

	// Redis (redis backend only)
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedCIDRS []string      // optional, restrict mutating routes to specific IPs/CIDRs (e.g. "10.0.0.0/8, 1.2.3.4")
	TrustProxy   bool          // true => trust X-Forwarded-For headers (e.g. cloudflared)
	SSEHeartbeat time.Duration // keepalive period for event streams

	WriteBurst  int // mutating requests per client IP before 429 (0 = unlimited)
	WriteRefill int // tokens regained per client IP per minute
}

// fileValues holds the settings read from TABSTASH_CONFIG_FILE, if any.
var fileValues map[string]string

func Load() *Config {
	fileValues = nil
	configFile := os.Getenv("TABSTASH_CONFIG_FILE")
	if configFile != "" {
		values, err := readFile(configFile)
		if err != nil {
			panic(fmt.Sprintf("❌ FATAL: %v", err))
		}
		fileValues = values
	}

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("TABSTASH_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("TABSTASH_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("TABSTASH_LOG_LEVEL", "info"),
		PrettyLog: mustBool("TABSTASH_PRETTY_LOG", true),

		ConfigFile: configFile,

		// Store
		StoreBackend:   strings.ToLower(getenv("TABSTASH_STORE_BACKEND", BackendBadger)),
		StoreNamespace: getenv("TABSTASH_STORE_NAMESPACE", "deleted_items"),
		BadgerDir:      getenv("TABSTASH_BADGER_DIR", "/data/badger"),

		// Retention
		Retention:     mustDuration("TABSTASH_RETENTION", 30*24*time.Hour),
		SweepInterval: mustDuration("TABSTASH_SWEEP_INTERVAL", time.Hour),

		// Access restrictions
		AllowedCIDRS: parseAllowedIPs(getenv("TABSTASH_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("TABSTASH_TRUST_PROXY", false),
		SSEHeartbeat: mustDuration("TABSTASH_SSE_HEARTBEAT", 25*time.Second),
		WriteBurst:   getenvInt("TABSTASH_WRITE_BURST", 30),
		WriteRefill:  getenvInt("TABSTASH_WRITE_REFILL_PER_MIN", 60),
	}

	switch cfg.StoreBackend {
	case BackendRedis:
		loadRedis(cfg)
	case BackendBadger, BackendMemory:
	default:
		panic(fmt.Sprintf("❌ FATAL: TABSTASH_STORE_BACKEND must be one of %s, %s, %s (got %q)",
			BackendRedis, BackendBadger, BackendMemory, cfg.StoreBackend))
	}

	if cfg.SweepInterval <= 0 {
		panic("❌ FATAL: TABSTASH_SWEEP_INTERVAL must be positive")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

func loadRedis(cfg *Config) {
	cfg.RedisAddr = requireEnv("TABSTASH_REDIS_ADDR")
	cfg.RedisUser = getenv("TABSTASH_REDIS_USERNAME", "default")
	cfg.RedisPasswordRequired = mustBool("TABSTASH_REDIS_PASSWORD_REQUIRED", false)
	cfg.RedisPassword = getenv("TABSTASH_REDIS_PASSWORD", "")
	cfg.RedisDB = getenvInt("TABSTASH_REDIS_DB", 0)
	cfg.RedisDT = mustDuration("TABSTASH_REDIS_DIAL_TIMEOUT", 5*time.Second)
	cfg.RedisRT = mustDuration("TABSTASH_REDIS_READ_TIMEOUT", 3*time.Second)
	cfg.RedisWT = mustDuration("TABSTASH_REDIS_WRITE_TIMEOUT", 3*time.Second)
	cfg.RedisMaxWait = mustDuration("TABSTASH_REDIS_MAX_WAIT", 10*time.Second)
	cfg.RedisPingTimeout = mustDuration("TABSTASH_REDIS_PING_TIMEOUT", 5*time.Second)
	cfg.RedisPoolSize = getenvInt("TABSTASH_REDIS_POOL_SIZE", 10)
	cfg.RedisConnectTimeout = mustDuration("TABSTASH_REDIS_CONNECT_TIMEOUT", 30*time.Second)
	cfg.RedisRetryInterval = mustDuration("TABSTASH_REDIS_RETRY_INTERVAL", 2*time.Second)
	cfg.RedisWarnThreshold = getenvInt("TABSTASH_REDIS_WARN_THRESHOLD", 3)

	// Validate Redis password configuration
	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: TABSTASH_REDIS_PASSWORD is required when TABSTASH_REDIS_PASSWORD_REQUIRED=true")
	}
}

// readFile loads a flat KEY: value YAML document.
func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	values := make(map[string]string)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return values, nil
}

// helpers

// lookup returns the process env value for key, falling back to the config
// file.
func lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fileValues[key]
}

func getenv(key, def string) string {
	if v := lookup(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := lookup(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := lookup(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := lookup(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := lookup(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
