// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Local Event Store Metrics
	TrackerAppends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfmark_tracker_appends_total",
			Help: "Total number of engagement records offered to the local event store",
		},
		[]string{"kind", "outcome"}, // outcome: "queued", "coalesced", "failed"
	)

	TrackerPending = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shelfmark_tracker_pending_records",
			Help: "Current number of records awaiting submission",
		},
		[]string{"kind"},
	)

	TrackerSkippedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfmark_tracker_skipped_records_total",
			Help: "Total number of stored records skipped because they could not be decoded",
		},
		[]string{"kind"},
	)

	TrackerStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfmark_tracker_store_errors_total",
			Help: "Total number of local event store failures absorbed by the store",
		},
		[]string{"operation"},
	)

	TrackerDeadLetters = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfmark_tracker_dead_letters_total",
			Help: "Total number of records moved to the dead-letter list",
		},
		[]string{"kind", "reason"}, // reason: "max_attempts", "rejected", "malformed"
	)

	TrackerCompactions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfmark_tracker_compactions_total",
			Help: "Total number of compaction passes",
		},
		[]string{"status"},
	)

	// Dispatch Metrics
	DispatchSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfmark_dispatch_submissions_total",
			Help: "Total number of per-record submissions to the ingestion endpoint",
		},
		[]string{"kind", "result"}, // result: "confirmed", "failed", "deferred"
	)

	DispatchFlushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfmark_dispatch_flushes_total",
			Help: "Total number of dispatch flushes by trigger",
		},
		[]string{"trigger"}, // "startup", "interval", "click_through", "manual"
	)

	DispatchFlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shelfmark_dispatch_flush_duration_seconds",
			Help:    "Duration of dispatch flushes in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)

	DispatchBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shelfmark_dispatch_circuit_breaker_state",
			Help: "Ingestion client circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	DispatchBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfmark_dispatch_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"from", "to"},
	)

	// Ingestion Metrics
	IngestedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfmark_ingested_events_total",
			Help: "Total number of engagement events received by the ingestion API",
		},
		[]string{"kind", "result"}, // result: "created", "duplicate", "invalid", "error"
	)

	RatingsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfmark_ratings_recorded_total",
			Help: "Total number of ratings recorded",
		},
		[]string{"value"},
	)

	// Sentiment Metrics
	SentimentClassifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfmark_sentiment_classifications_total",
			Help: "Total number of sentiment classifications by resulting level",
		},
		[]string{"level"},
	)

	SentimentCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelfmark_sentiment_cache_hits_total",
			Help: "Total number of sentiment report cache hits",
		},
	)

	SentimentCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelfmark_sentiment_cache_misses_total",
			Help: "Total number of sentiment report cache misses",
		},
	)

	SentimentThresholdReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfmark_sentiment_threshold_reloads_total",
			Help: "Total number of threshold table reloads",
		},
		[]string{"status"},
	)

	// Event Bus Metrics
	BusPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfmark_bus_messages_published_total",
			Help: "Total number of messages published to the event bus",
		},
		[]string{"topic", "status"},
	)

	BusHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfmark_bus_messages_handled_total",
			Help: "Total number of event bus messages handled",
		},
		[]string{"topic", "status"},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)
)

// RecordTrackerAppend records the outcome of a local store append.
func RecordTrackerAppend(kind, outcome string) {
	TrackerAppends.WithLabelValues(kind, outcome).Inc()
}

// SetTrackerPending updates the pending gauge for a record kind.
func SetTrackerPending(kind string, count int) {
	TrackerPending.WithLabelValues(kind).Set(float64(count))
}

// RecordSkippedRecords counts stored records that failed to decode.
func RecordSkippedRecords(kind string, n int) {
	if n <= 0 {
		return
	}
	TrackerSkippedRecords.WithLabelValues(kind).Add(float64(n))
}

// RecordStoreError counts an absorbed local store failure.
func RecordStoreError(operation string) {
	TrackerStoreErrors.WithLabelValues(operation).Inc()
}

// RecordDeadLetter counts a record moved to the dead-letter list.
func RecordDeadLetter(kind, reason string) {
	TrackerDeadLetters.WithLabelValues(kind, reason).Inc()
}

// RecordCompaction records a compaction pass.
func RecordCompaction(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	TrackerCompactions.WithLabelValues(status).Inc()
}

// RecordSubmission records the result of one dispatch submission.
func RecordSubmission(kind, result string) {
	DispatchSubmissions.WithLabelValues(kind, result).Inc()
}

// RecordFlush records a completed dispatch flush.
func RecordFlush(trigger string, duration time.Duration) {
	DispatchFlushes.WithLabelValues(trigger).Inc()
	DispatchFlushDuration.Observe(duration.Seconds())
}

// RecordBreakerTransition records a circuit breaker state change.
// States are encoded the same way as gobreaker: closed=0, half-open=1, open=2.
func RecordBreakerTransition(from, to string, state int) {
	DispatchBreakerTransitions.WithLabelValues(from, to).Inc()
	DispatchBreakerState.Set(float64(state))
}

// RecordIngest records an ingestion API outcome.
func RecordIngest(kind, result string) {
	IngestedEvents.WithLabelValues(kind, result).Inc()
}

// RecordRating records an accepted rating value.
func RecordRating(value int) {
	RatingsRecorded.WithLabelValues(strconv.Itoa(value)).Inc()
}

// RecordClassification records the level a classification produced.
func RecordClassification(level string) {
	SentimentClassifications.WithLabelValues(level).Inc()
}

// RecordSentimentCache records a report cache lookup.
func RecordSentimentCache(hit bool) {
	if hit {
		SentimentCacheHits.Inc()
		return
	}
	SentimentCacheMisses.Inc()
}

// RecordThresholdReload records a threshold table reload attempt.
func RecordThresholdReload(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	SentimentThresholdReloads.WithLabelValues(status).Inc()
}

// RecordBusPublish records a publish to the event bus.
func RecordBusPublish(topic string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	BusPublished.WithLabelValues(topic, status).Inc()
}

// RecordBusHandled records a handled bus message.
func RecordBusHandled(topic string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	BusHandled.WithLabelValues(topic, status).Inc()
}

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements active request counter
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRateLimitHit records a rejected request.
func RecordRateLimitHit(endpoint string) {
	APIRateLimitHits.WithLabelValues(endpoint).Inc()
}
