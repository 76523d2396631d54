// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

// Package config loads layered configuration for the Shelfmark server and
// tracker agent.
//
// Configuration precedence (lowest to highest):
//  1. Built-in defaults (defaultConfig)
//  2. Config file (config.yaml, or the path in CONFIG_PATH)
//  3. .env file (DOTENV_PATH or ./.env), never overriding the real environment
//  4. Environment variables
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access.
package config

import (
	"time"

	"github.com/tomtom215/shelfmark/internal/logging"
)

// Config is the root configuration shared by both binaries. Each binary reads
// only the sections it needs.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Tracker   TrackerConfig   `koanf:"tracker"`
	Dispatch  DispatchConfig  `koanf:"dispatch"`
	Capture   CaptureConfig   `koanf:"capture"`
	Sentiment SentimentConfig `koanf:"sentiment"`
	Events    EventsConfig    `koanf:"events"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds ingestion/sentiment HTTP server settings
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // "development", "staging", "production"
}

// DatabaseConfig holds DuckDB settings
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = DuckDB default
}

// TrackerConfig holds the tracker agent's local event store settings.
//
// Environment Variables:
//   - TRACKER_STORE_PATH: BadgerDB directory (default: /data/tracker)
//   - TRACKER_IN_MEMORY: keep the store in memory only (default: false)
//   - TRACKER_SYNC_WRITES: fsync every write (default: true)
//   - TRACKER_COMPACT_SCHEDULE: cron spec for compaction (default: @every 1h)
//   - TRACKER_DEAD_LETTER_TTL: how long dead letters are kept (default: 168h)
type TrackerConfig struct {
	Path            string        `koanf:"path"`
	InMemory        bool          `koanf:"in_memory"`
	SyncWrites      bool          `koanf:"sync_writes"`
	CompactSchedule string        `koanf:"compact_schedule"`
	DeadLetterTTL   time.Duration `koanf:"dead_letter_ttl"`
	GCDiscardRatio  float64       `koanf:"gc_discard_ratio"`
}

// DispatchConfig controls the sync dispatcher.
//
// Environment Variables:
//   - DISPATCH_ENDPOINT: ingestion API base URL (default: http://127.0.0.1:3857/api/v1)
//   - SYNC_INTERVAL: periodic flush interval (default: 5m)
//   - DISPATCH_SUBMIT_TIMEOUT: per-item submission bound (default: 5s)
//   - DISPATCH_MAX_ATTEMPTS: failed attempts before dead-lettering, 0 = never (default: 50)
//   - DISPATCH_RETRY_BACKOFF: base backoff after a failed attempt (default: 15s)
//   - DISPATCH_MAX_BACKOFF: backoff cap (default: 1h)
//   - DISPATCH_RATE_LIMIT: submissions per second, 0 = unlimited (default: 20)
type DispatchConfig struct {
	Endpoint       string        `koanf:"endpoint"`
	Interval       time.Duration `koanf:"interval"`
	SubmitTimeout  time.Duration `koanf:"submit_timeout"`
	MaxAttempts    int           `koanf:"max_attempts"`
	RetryBackoff   time.Duration `koanf:"retry_backoff"`
	MaxBackoff     time.Duration `koanf:"max_backoff"`
	RateLimit      float64       `koanf:"rate_limit"`
	RateBurst      int           `koanf:"rate_burst"`
	BreakerEnabled bool          `koanf:"breaker_enabled"`
	// BreakerMinRequests is the request count before the failure ratio can trip the breaker.
	BreakerMinRequests uint32        `koanf:"breaker_min_requests"`
	BreakerFailRatio   float64       `koanf:"breaker_fail_ratio"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`
}

// CaptureConfig is the tracker agent's loopback capture API.
type CaptureConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// SentimentConfig controls the aggregation engine.
type SentimentConfig struct {
	// ThresholdsFile is a YAML file of threshold rows seeded into an empty table.
	ThresholdsFile string        `koanf:"thresholds_file"`
	SeedDefaults   bool          `koanf:"seed_defaults"`
	CacheSize      int           `koanf:"cache_size"`
	CacheTTL       time.Duration `koanf:"cache_ttl"`
}

// EventsConfig selects the in-process event bus transport.
//
// Transport "memory" uses a watermill GoChannel; "nats" uses NATS JetStream,
// optionally served by an embedded nats-server.
type EventsConfig struct {
	Transport           string        `koanf:"transport"`
	URL                 string        `koanf:"url"`
	EmbeddedServer      bool          `koanf:"embedded_server"`
	StoreDir            string        `koanf:"store_dir"`
	DurableName         string        `koanf:"durable_name"`
	InstanceID          string        `koanf:"instance_id"`
	RouterRetryCount    int           `koanf:"router_retry_count"`
	RouterRetryInterval time.Duration `koanf:"router_retry_interval"`
	CloseTimeout        time.Duration `koanf:"close_timeout"`
}

// SecurityConfig holds HTTP hardening settings
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings for zerolog.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller file:line (default: false)
//   - LOG_FILE: optional rotating log file path
type LoggingConfig struct {
	Level          string `koanf:"level"`
	Format         string `koanf:"format"`
	Caller         bool   `koanf:"caller"`
	File           string `koanf:"file"`
	FileMaxSizeMB  int    `koanf:"file_max_size_mb"`
	FileMaxBackups int    `koanf:"file_max_backups"`
	FileMaxAgeDays int    `koanf:"file_max_age_days"`
	FileCompress   bool   `koanf:"file_compress"`
}

// Logger converts the logging section into the zerolog initialization config.
func (l LoggingConfig) Logger() logging.Config {
	return logging.Config{
		Level:     l.Level,
		Format:    l.Format,
		Caller:    l.Caller,
		Timestamp: true,
		File: logging.FileConfig{
			Path:       l.File,
			MaxSizeMB:  l.FileMaxSizeMB,
			MaxBackups: l.FileMaxBackups,
			MaxAgeDays: l.FileMaxAgeDays,
			Compress:   l.FileCompress,
		},
	}
}

// ServerAddr returns host:port for the ingestion server.
func (c *Config) ServerAddr() string {
	return joinHostPort(c.Server.Host, c.Server.Port)
}

// CaptureAddr returns host:port for the tracker capture API.
func (c *Config) CaptureAddr() string {
	return joinHostPort(c.Capture.Host, c.Capture.Port)
}

// Load reads configuration from all layers and validates it.
// See LoadWithKoanf for the underlying implementation.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
