// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

/*
Package middleware provides HTTP middleware shared by the Shelfmark API and
capture servers.

  - RequestID: X-Request-ID propagation and logging context
  - PrometheusMetrics: request count, latency and in-flight instrumentation

Both use the http.HandlerFunc wrapping form and are adapted to chi's
func(http.Handler) http.Handler at the router.
*/
package middleware
