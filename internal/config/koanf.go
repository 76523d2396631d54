// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/shelfmark/config.yaml",
	"/etc/shelfmark/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DotEnvPathEnvVar overrides the .env file location.
const DotEnvPathEnvVar = "DOTENV_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        3857,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Database: DatabaseConfig{
			Path:      "/data/shelfmark.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		Tracker: TrackerConfig{
			Path:            "/data/tracker",
			InMemory:        false,
			SyncWrites:      true,
			CompactSchedule: "@every 1h",
			DeadLetterTTL:   7 * 24 * time.Hour,
			GCDiscardRatio:  0.5,
		},
		Dispatch: DispatchConfig{
			Endpoint:           "http://127.0.0.1:3857/api/v1",
			Interval:           5 * time.Minute,
			SubmitTimeout:      5 * time.Second,
			MaxAttempts:        50,
			RetryBackoff:       15 * time.Second,
			MaxBackoff:         1 * time.Hour,
			RateLimit:          20,
			RateBurst:          5,
			BreakerEnabled:     true,
			BreakerMinRequests: 10,
			BreakerFailRatio:   0.6,
			BreakerTimeout:     30 * time.Second,
		},
		Capture: CaptureConfig{
			Host: "127.0.0.1",
			Port: 3858,
		},
		Sentiment: SentimentConfig{
			ThresholdsFile: "",
			SeedDefaults:   true,
			CacheSize:      10000,
			CacheTTL:       10 * time.Minute,
		},
		Events: EventsConfig{
			Transport:           "memory",
			URL:                 "nats://127.0.0.1:4222",
			EmbeddedServer:      false,
			StoreDir:            "/data/nats/jetstream",
			DurableName:         "shelfmark",
			RouterRetryCount:    3,
			RouterRetryInterval: 100 * time.Millisecond,
			CloseTimeout:        30 * time.Second,
		},
		Security: SecurityConfig{
			RateLimitReqs:     600,
			RateLimitWindow:   1 * time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "json",
			Caller:         false,
			FileMaxSizeMB:  100,
			FileMaxBackups: 5,
			FileMaxAgeDays: 30,
			FileCompress:   true,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf with layered sources.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: .env values become environment variables unless already set
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	// Layer 4: Load environment variables (highest priority)
	// DUCKDB_PATH -> database.path, SYNC_INTERVAL -> dispatch.interval
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadDotEnv loads DOTENV_PATH (or ./.env). A missing default file is not an
// error; a missing explicit path is.
func loadDotEnv() error {
	path := os.Getenv(DotEnvPathEnvVar)
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings while YAML files already produce slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unmapped variables are ignored so unrelated environment does not leak into config.
var envMappings = map[string]string{
	// Server mappings
	"http_port":    "server.port",
	"http_host":    "server.host",
	"http_timeout": "server.timeout",
	"environment":  "server.environment",

	// Database mappings
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	// Tracker store mappings
	"tracker_store_path":       "tracker.path",
	"tracker_in_memory":        "tracker.in_memory",
	"tracker_sync_writes":      "tracker.sync_writes",
	"tracker_compact_schedule": "tracker.compact_schedule",
	"tracker_dead_letter_ttl":  "tracker.dead_letter_ttl",
	"tracker_gc_discard_ratio": "tracker.gc_discard_ratio",

	// Dispatcher mappings
	"dispatch_endpoint":             "dispatch.endpoint",
	"sync_interval":                 "dispatch.interval",
	"dispatch_submit_timeout":       "dispatch.submit_timeout",
	"dispatch_max_attempts":         "dispatch.max_attempts",
	"dispatch_retry_backoff":        "dispatch.retry_backoff",
	"dispatch_max_backoff":          "dispatch.max_backoff",
	"dispatch_rate_limit":           "dispatch.rate_limit",
	"dispatch_rate_burst":           "dispatch.rate_burst",
	"dispatch_breaker_enabled":      "dispatch.breaker_enabled",
	"dispatch_breaker_min_requests": "dispatch.breaker_min_requests",
	"dispatch_breaker_fail_ratio":   "dispatch.breaker_fail_ratio",
	"dispatch_breaker_timeout":      "dispatch.breaker_timeout",

	// Capture API mappings
	"capture_host": "capture.host",
	"capture_port": "capture.port",

	// Sentiment mappings
	"sentiment_thresholds_file": "sentiment.thresholds_file",
	"sentiment_seed_defaults":   "sentiment.seed_defaults",
	"sentiment_cache_size":      "sentiment.cache_size",
	"sentiment_cache_ttl":       "sentiment.cache_ttl",

	// Event bus mappings
	"events_transport":           "events.transport",
	"nats_url":                   "events.url",
	"nats_embedded":              "events.embedded_server",
	"nats_store_dir":             "events.store_dir",
	"nats_durable_name":          "events.durable_name",
	"nats_instance_id":           "events.instance_id",
	"nats_router_retry_count":    "events.router_retry_count",
	"nats_router_retry_interval": "events.router_retry_interval",
	"nats_router_close_timeout":  "events.close_timeout",

	// Security mappings
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",

	// Logging mappings
	"log_level":             "logging.level",
	"log_format":            "logging.format",
	"log_caller":            "logging.caller",
	"log_file":              "logging.file",
	"log_file_max_size_mb":  "logging.file_max_size_mb",
	"log_file_max_backups":  "logging.file_max_backups",
	"log_file_max_age_days": "logging.file_max_age_days",
	"log_file_compress":     "logging.file_compress",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - DUCKDB_PATH -> database.path
//   - SYNC_INTERVAL -> dispatch.interval
//   - NATS_EMBEDDED -> events.embedded_server
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
