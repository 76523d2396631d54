// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolateEnv points config discovery at an empty temp directory so neither a
// developer's config.yaml nor .env leaks into the test.
func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(ConfigPathEnvVar, filepath.Join(dir, "missing.yaml"))
	t.Setenv(DotEnvPathEnvVar, "")
	origDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change to temp directory: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(origDir); err != nil {
			t.Errorf("Failed to restore working directory: %v", err)
		}
	})
	return dir
}

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Dispatch.Interval != 5*time.Minute {
		t.Errorf("Dispatch.Interval = %v, want 5m", cfg.Dispatch.Interval)
	}
	if cfg.Dispatch.SubmitTimeout != 5*time.Second {
		t.Errorf("Dispatch.SubmitTimeout = %v, want 5s", cfg.Dispatch.SubmitTimeout)
	}
	if cfg.Dispatch.MaxAttempts != 50 {
		t.Errorf("Dispatch.MaxAttempts = %d, want 50", cfg.Dispatch.MaxAttempts)
	}
	if cfg.Server.Port != 3857 {
		t.Errorf("Server.Port = %d, want 3857", cfg.Server.Port)
	}
	if cfg.Capture.Host != "127.0.0.1" {
		t.Errorf("Capture.Host = %q, want loopback", cfg.Capture.Host)
	}
	if cfg.Events.Transport != "memory" {
		t.Errorf("Events.Transport = %q, want memory", cfg.Events.Transport)
	}
	if !cfg.Tracker.SyncWrites {
		t.Error("Tracker.SyncWrites should be true by default")
	}
	if len(cfg.Security.CORSOrigins) != 1 || cfg.Security.CORSOrigins[0] != "*" {
		t.Errorf("Security.CORSOrigins = %v, want [*]", cfg.Security.CORSOrigins)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

// TestEnvTransformFunc verifies environment variable name transformations
func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"DUCKDB_PATH", "database.path"},
		{"HTTP_PORT", "server.port"},
		{"SYNC_INTERVAL", "dispatch.interval"},
		{"DISPATCH_MAX_ATTEMPTS", "dispatch.max_attempts"},
		{"TRACKER_STORE_PATH", "tracker.path"},
		{"TRACKER_COMPACT_SCHEDULE", "tracker.compact_schedule"},
		{"SENTIMENT_THRESHOLDS_FILE", "sentiment.thresholds_file"},
		{"NATS_EMBEDDED", "events.embedded_server"},
		{"CORS_ORIGINS", "security.cors_origins"},
		{"LOG_FILE", "logging.file"},
		{"log_level", "logging.level"},

		// Unknown (should return empty)
		{"RANDOM_VAR", ""},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if result := envTransformFunc(tt.input); result != tt.expected {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestLoadWithKoanfEnvVars(t *testing.T) {
	isolateEnv(t)
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SYNC_INTERVAL", "90s")
	t.Setenv("DISPATCH_MAX_ATTEMPTS", "0")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Dispatch.Interval != 90*time.Second {
		t.Errorf("Dispatch.Interval = %v, want 90s", cfg.Dispatch.Interval)
	}
	if cfg.Dispatch.MaxAttempts != 0 {
		t.Errorf("Dispatch.MaxAttempts = %d, want 0", cfg.Dispatch.MaxAttempts)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "https://b.example" {
		t.Errorf("Security.CORSOrigins = %v", cfg.Security.CORSOrigins)
	}

	// Defaults still apply for unset values
	if cfg.Database.MaxMemory != "1GB" {
		t.Errorf("Database.MaxMemory = %q, want 1GB (default)", cfg.Database.MaxMemory)
	}
}

func TestLoadWithKoanfConfigFile(t *testing.T) {
	dir := isolateEnv(t)

	configContent := `
server:
  port: 8888
dispatch:
  endpoint: "https://ingest.example/api/v1"
  interval: 10m
tracker:
  in_memory: true
sentiment:
  thresholds_file: "/etc/shelfmark/thresholds.yaml"
logging:
  level: "warn"
`
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, configPath)
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 8888 {
		t.Errorf("Server.Port = %d, want 8888", cfg.Server.Port)
	}
	if cfg.Dispatch.Endpoint != "https://ingest.example/api/v1" {
		t.Errorf("Dispatch.Endpoint = %q", cfg.Dispatch.Endpoint)
	}
	if cfg.Dispatch.Interval != 10*time.Minute {
		t.Errorf("Dispatch.Interval = %v, want 10m", cfg.Dispatch.Interval)
	}
	if !cfg.Tracker.InMemory {
		t.Error("Tracker.InMemory should come from the file")
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Logging.Level = %q, want error (env override)", cfg.Logging.Level)
	}
}

func TestLoadWithKoanfDotEnv(t *testing.T) {
	dir := isolateEnv(t)

	dotenv := filepath.Join(dir, "tracker.env")
	if err := os.WriteFile(dotenv, []byte("TRACKER_STORE_PATH=/var/lib/shelfmark/tracker\nHTTP_PORT=7000\n"), 0o600); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}
	t.Setenv(DotEnvPathEnvVar, dotenv)
	t.Setenv("HTTP_PORT", "7100")
	// godotenv sets variables in the process; register them for cleanup.
	t.Setenv("TRACKER_STORE_PATH", "")
	os.Unsetenv("TRACKER_STORE_PATH")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Tracker.Path != "/var/lib/shelfmark/tracker" {
		t.Errorf("Tracker.Path = %q, want value from env file", cfg.Tracker.Path)
	}
	if cfg.Server.Port != 7100 {
		t.Errorf("Server.Port = %d, want 7100 (real env wins over env file)", cfg.Server.Port)
	}
}

func TestLoadWithKoanfMissingExplicitDotEnv(t *testing.T) {
	dir := isolateEnv(t)
	t.Setenv(DotEnvPathEnvVar, filepath.Join(dir, "nope.env"))

	if _, err := LoadWithKoanf(); err == nil {
		t.Error("Expected error for a missing explicit env file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"bad endpoint", func(c *Config) { c.Dispatch.Endpoint = "ftp://x" }, "dispatch.endpoint"},
		{"interval too small", func(c *Config) { c.Dispatch.Interval = time.Millisecond }, "dispatch.interval"},
		{"negative attempts", func(c *Config) { c.Dispatch.MaxAttempts = -1 }, "dispatch.max_attempts"},
		{"backoff cap below base", func(c *Config) { c.Dispatch.MaxBackoff = time.Second }, "dispatch.max_backoff"},
		{"bad cron", func(c *Config) { c.Tracker.CompactSchedule = "every hour" }, "tracker.compact_schedule"},
		{"no store path", func(c *Config) { c.Tracker.Path = "" }, "tracker.path"},
		{"unknown transport", func(c *Config) { c.Events.Transport = "kafka" }, "events.transport"},
		{"nats without url", func(c *Config) { c.Events.Transport = "nats"; c.Events.URL = "" }, "events.url"},
		{"bad port", func(c *Config) { c.Capture.Port = 0 }, "capture.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() = %v, want *ConfigError", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.wantField)
			}
		})
	}
}

func TestValidateLogging(t *testing.T) {
	cfg := defaultConfig()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "LOG_LEVEL") {
		t.Errorf("Expected LOG_LEVEL error, got %v", err)
	}
}

func TestShouldWarnAboutCORS(t *testing.T) {
	cfg := defaultConfig()
	if cfg.ShouldWarnAboutCORS() {
		t.Error("development should not warn")
	}
	cfg.Server.Environment = "production"
	if !cfg.ShouldWarnAboutCORS() {
		t.Error("production with wildcard origin should warn")
	}
}

func TestAddrs(t *testing.T) {
	cfg := defaultConfig()
	if got := cfg.CaptureAddr(); got != "127.0.0.1:3858" {
		t.Errorf("CaptureAddr() = %q", got)
	}
	if got := cfg.ServerAddr(); got != "0.0.0.0:3857" {
		t.Errorf("ServerAddr() = %q", got)
	}
}

func TestLoggingConfigLogger(t *testing.T) {
	cfg := defaultConfig()
	cfg.Logging.File = "/var/log/shelfmark.log"

	lc := cfg.Logging.Logger()
	if lc.Level != "info" || lc.Format != "json" || !lc.Timestamp {
		t.Errorf("unexpected logger config: %+v", lc)
	}
	if lc.File.Path != "/var/log/shelfmark.log" || lc.File.MaxSizeMB != 100 || !lc.File.Compress {
		t.Errorf("unexpected file config: %+v", lc.File)
	}
}
