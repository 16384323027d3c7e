package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestRequireEnv(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     string
		shouldSet bool
		wantPanic bool
	}{
		{
			name:      "variable set",
			key:       "TEST_VAR",
			value:     "test_value",
			shouldSet: true,
			wantPanic: false,
		},
		{
			name:      "variable not set",
			key:       "TEST_VAR_MISSING",
			shouldSet: false,
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			if tt.wantPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Errorf("requireEnv() should have panicked")
					}
				}()
			}

			result := requireEnv(tt.key)
			if !tt.wantPanic && result != tt.value {
				t.Errorf("requireEnv() = %v, want %v", result, tt.value)
			}
		})
	}
}

func TestMustDuration(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      time.Duration
		expected time.Duration
	}{
		{
			name:     "valid duration",
			key:      "TEST_DURATION",
			value:    "5s",
			def:      1 * time.Second,
			expected: 5 * time.Second,
		},
		{
			name:     "invalid duration uses default",
			key:      "TEST_DURATION_INVALID",
			value:    "invalid",
			def:      10 * time.Second,
			expected: 10 * time.Second,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_DURATION_MISSING",
			value:    "",
			def:      15 * time.Second,
			expected: 15 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			result := mustDuration(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustDuration() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMustBool(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      bool
		expected bool
	}{
		{
			name:     "true value",
			key:      "TEST_BOOL",
			value:    "true",
			def:      false,
			expected: true,
		},
		{
			name:     "false value",
			key:      "TEST_BOOL_FALSE",
			value:    "false",
			def:      true,
			expected: false,
		},
		{
			name:     "invalid value uses default",
			key:      "TEST_BOOL_INVALID",
			value:    "invalid",
			def:      true,
			expected: true,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_BOOL_MISSING",
			value:    "",
			def:      false,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			result := mustBool(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustBool() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TABSTASH_STORE_BACKEND", "")
	t.Setenv("TABSTASH_CONFIG_FILE", "")

	cfg := Load()

	if cfg.ListenPort != ":8080" {
		t.Errorf("ListenPort = %q, want :8080", cfg.ListenPort)
	}
	if cfg.StoreBackend != BackendBadger {
		t.Errorf("StoreBackend = %q, want %q", cfg.StoreBackend, BackendBadger)
	}
	if cfg.StoreNamespace != "deleted_items" {
		t.Errorf("StoreNamespace = %q, want deleted_items", cfg.StoreNamespace)
	}
	if cfg.Retention != 720*time.Hour {
		t.Errorf("Retention = %v, want 720h", cfg.Retention)
	}
	if cfg.SweepInterval != time.Hour {
		t.Errorf("SweepInterval = %v, want 1h", cfg.SweepInterval)
	}
	if cfg.TrustProxy {
		t.Errorf("TrustProxy = true, want false")
	}
	if cfg.RedisAddr != "" {
		t.Errorf("RedisAddr = %q, want empty for the badger backend", cfg.RedisAddr)
	}
}

func TestLoadBackend(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		wantPanic bool
	}{
		{
			name: "memory",
			env:  map[string]string{"TABSTASH_STORE_BACKEND": "memory"},
		},
		{
			name: "backend is case insensitive",
			env:  map[string]string{"TABSTASH_STORE_BACKEND": "Badger"},
		},
		{
			name: "redis with address",
			env: map[string]string{
				"TABSTASH_STORE_BACKEND": "redis",
				"TABSTASH_REDIS_ADDR":    "localhost:6379",
			},
		},
		{
			name:      "redis without address",
			env:       map[string]string{"TABSTASH_STORE_BACKEND": "redis", "TABSTASH_REDIS_ADDR": ""},
			wantPanic: true,
		},
		{
			name: "redis password required but missing",
			env: map[string]string{
				"TABSTASH_STORE_BACKEND":           "redis",
				"TABSTASH_REDIS_ADDR":              "localhost:6379",
				"TABSTASH_REDIS_PASSWORD_REQUIRED": "true",
				"TABSTASH_REDIS_PASSWORD":          "",
			},
			wantPanic: true,
		},
		{
			name:      "unknown backend",
			env:       map[string]string{"TABSTASH_STORE_BACKEND": "sqlite"},
			wantPanic: true,
		},
		{
			name:      "zero sweep interval",
			env:       map[string]string{"TABSTASH_STORE_BACKEND": "memory", "TABSTASH_SWEEP_INTERVAL": "0s"},
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TABSTASH_CONFIG_FILE", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			defer func() {
				r := recover()
				if tt.wantPanic && r == nil {
					t.Errorf("Load() should have panicked")
				}
				if !tt.wantPanic && r != nil {
					t.Errorf("Load() panicked: %v", r)
				}
			}()

			Load()
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabstash.yaml")
	content := `TABSTASH_STORE_BACKEND: redis
TABSTASH_REDIS_ADDR: redis:6379
TABSTASH_REDIS_DB: 2
TABSTASH_RETENTION: 48h
TABSTASH_LISTEN_PORT: ":9000"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("TABSTASH_CONFIG_FILE", path)
	t.Setenv("TABSTASH_STORE_BACKEND", "")
	t.Setenv("TABSTASH_REDIS_ADDR", "")
	// The process env wins over the file.
	t.Setenv("TABSTASH_LISTEN_PORT", ":7000")

	cfg := Load()

	if cfg.StoreBackend != BackendRedis {
		t.Errorf("StoreBackend = %q, want redis", cfg.StoreBackend)
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Errorf("RedisAddr = %q, want redis:6379", cfg.RedisAddr)
	}
	if cfg.RedisDB != 2 {
		t.Errorf("RedisDB = %d, want 2", cfg.RedisDB)
	}
	if cfg.Retention != 48*time.Hour {
		t.Errorf("Retention = %v, want 48h", cfg.Retention)
	}
	if cfg.ListenPort != ":7000" {
		t.Errorf("ListenPort = %q, want :7000", cfg.ListenPort)
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", cfg.ConfigFile, path)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv("TABSTASH_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Load() should have panicked")
		}
	}()
	Load()
}

func TestParseAllowedIPs(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected []string
	}{
		{name: "empty", value: "", expected: nil},
		{name: "single", value: "10.0.0.0/8", expected: []string{"10.0.0.0/8"}},
		{name: "quoted list", value: `"1.2.3.4", '192.168.0.0/16' ,`, expected: []string{"1.2.3.4", "192.168.0.0/16"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseAllowedIPs(tt.value)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("parseAllowedIPs() = %v, want %v", got, tt.expected)
			}
		})
	}
}
