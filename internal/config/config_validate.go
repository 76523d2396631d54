// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Validation limits
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = 1 * time.Second
	maxRateLimitWindow   = 1 * time.Hour
	minSyncInterval      = 1 * time.Second
	maxSubmitTimeout     = 5 * time.Minute
)

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateDatabase,
		c.validateTracker,
		c.validateDispatch,
		c.validateSentiment,
		c.validateEvents,
		c.validateSecurity,
		c.validateLogging,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if err := validatePort("server.port", c.Server.Port); err != nil {
		return err
	}
	return validatePort("capture.port", c.Capture.Port)
}

func validatePort(field string, port int) error {
	if port < 1 || port > 65535 {
		return &ConfigError{Field: field, Message: "must be between 1 and 65535"}
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return &ConfigError{Field: "database.path", Message: "is required (use :memory: for an in-memory database)"}
	}
	if c.Database.Threads < 0 {
		return &ConfigError{Field: "database.threads", Message: "must be >= 0"}
	}
	return nil
}

// validateTracker checks the local store; the cron spec is parsed with the same
// parser the compactor uses.
func (c *Config) validateTracker() error {
	if !c.Tracker.InMemory && c.Tracker.Path == "" {
		return &ConfigError{Field: "tracker.path", Message: "is required unless tracker.in_memory is set"}
	}
	if c.Tracker.CompactSchedule != "" {
		if _, err := cron.ParseStandard(c.Tracker.CompactSchedule); err != nil {
			return &ConfigError{Field: "tracker.compact_schedule", Message: err.Error()}
		}
	}
	if c.Tracker.GCDiscardRatio <= 0 || c.Tracker.GCDiscardRatio >= 1 {
		return &ConfigError{Field: "tracker.gc_discard_ratio", Message: "must be between 0 and 1 (exclusive)"}
	}
	if c.Tracker.DeadLetterTTL < 0 {
		return &ConfigError{Field: "tracker.dead_letter_ttl", Message: "must be >= 0"}
	}
	return nil
}

func (c *Config) validateDispatch() error {
	d := c.Dispatch
	u, err := url.Parse(d.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ConfigError{Field: "dispatch.endpoint", Message: "must be an http(s) URL"}
	}
	if d.Interval < minSyncInterval {
		return &ConfigError{Field: "dispatch.interval", Message: fmt.Sprintf("must be at least %v", minSyncInterval)}
	}
	if d.SubmitTimeout <= 0 || d.SubmitTimeout > maxSubmitTimeout {
		return &ConfigError{Field: "dispatch.submit_timeout", Message: fmt.Sprintf("must be between 0 and %v", maxSubmitTimeout)}
	}
	if d.MaxAttempts < 0 {
		return &ConfigError{Field: "dispatch.max_attempts", Message: "must be >= 0 (0 disables dead-lettering)"}
	}
	if d.RetryBackoff < 0 || d.MaxBackoff < d.RetryBackoff {
		return &ConfigError{Field: "dispatch.max_backoff", Message: "must be >= dispatch.retry_backoff >= 0"}
	}
	if d.RateLimit < 0 {
		return &ConfigError{Field: "dispatch.rate_limit", Message: "must be >= 0"}
	}
	if d.RateLimit > 0 && d.RateBurst < 1 {
		return &ConfigError{Field: "dispatch.rate_burst", Message: "must be >= 1 when rate limiting"}
	}
	if d.BreakerEnabled && (d.BreakerFailRatio <= 0 || d.BreakerFailRatio > 1) {
		return &ConfigError{Field: "dispatch.breaker_fail_ratio", Message: "must be in (0, 1]"}
	}
	return nil
}

func (c *Config) validateSentiment() error {
	if c.Sentiment.CacheSize < 0 {
		return &ConfigError{Field: "sentiment.cache_size", Message: "must be >= 0"}
	}
	if c.Sentiment.CacheTTL < 0 {
		return &ConfigError{Field: "sentiment.cache_ttl", Message: "must be >= 0"}
	}
	return nil
}

func (c *Config) validateEvents() error {
	switch c.Events.Transport {
	case "memory":
		return nil
	case "nats":
		if !c.Events.EmbeddedServer && !strings.HasPrefix(c.Events.URL, "nats://") {
			return &ConfigError{Field: "events.url", Message: "must start with nats:// when no embedded server is used"}
		}
		if c.Events.EmbeddedServer && c.Events.StoreDir == "" {
			return &ConfigError{Field: "events.store_dir", Message: "is required for the embedded server"}
		}
		return nil
	default:
		return &ConfigError{Field: "events.transport", Message: "must be one of: memory, nats"}
	}
}

// validateSecurity validates rate limiting and CORS settings
func (c *Config) validateSecurity() error {
	if len(c.Security.CORSOrigins) == 0 {
		return &ConfigError{Field: "security.cors_origins", Message: "must list at least one origin"}
	}
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// ShouldWarnAboutCORS reports a wildcard origin outside development.
func (c *Config) ShouldWarnAboutCORS() bool {
	if c.Server.Environment == "development" {
		return false
	}
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}
