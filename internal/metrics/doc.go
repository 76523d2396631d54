// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

/*
Package metrics provides Prometheus metrics for Shelfmark.

All collectors are registered on the default registry through promauto and
exposed by the API server at /metrics in the Prometheus text format:

	curl http://localhost:3857/metrics

# Available Metrics

Local event store:
  - shelfmark_tracker_appends_total{kind,outcome}
  - shelfmark_tracker_pending_records{kind}
  - shelfmark_tracker_skipped_records_total{kind}
  - shelfmark_tracker_store_errors_total{operation}
  - shelfmark_tracker_dead_letters_total{kind,reason}
  - shelfmark_tracker_compactions_total{status}

Dispatch:
  - shelfmark_dispatch_submissions_total{kind,result}
  - shelfmark_dispatch_flushes_total{trigger}
  - shelfmark_dispatch_flush_duration_seconds
  - shelfmark_dispatch_circuit_breaker_state
  - shelfmark_dispatch_circuit_breaker_transitions_total{from,to}

Ingestion and sentiment:
  - shelfmark_ingested_events_total{kind,result}
  - shelfmark_ratings_recorded_total{value}
  - shelfmark_sentiment_classifications_total{level}
  - shelfmark_sentiment_cache_hits_total, shelfmark_sentiment_cache_misses_total
  - shelfmark_sentiment_threshold_reloads_total{status}

Event bus, database and HTTP:
  - shelfmark_bus_messages_published_total{topic,status}
  - shelfmark_bus_messages_handled_total{topic,status}
  - duckdb_query_duration_seconds{operation,table}, duckdb_query_errors_total{operation,table}
  - api_requests_total{method,endpoint,status_code}
  - api_request_duration_seconds{method,endpoint}
  - api_active_requests, api_rate_limit_hits_total{endpoint}

# Usage

	metrics.RecordSubmission("impression", "confirmed")
	metrics.RecordFlush("interval", time.Since(start))
*/
package metrics
