// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

// Package database is the server-side relational store for Shelfmark,
// backed by DuckDB.
//
// # Overview
//
// The package holds the rows the ingestion endpoint writes and the
// sentiment engine reads:
//
//   - database.go: connection lifecycle (open, pool, ping, checkpoint, close)
//   - schema.go: table creation
//   - engagement.go: idempotent impression and click-through inserts, engagement summary
//   - ratings.go: append-only rating rows and per-criterion counts
//   - thresholds.go: sentiment threshold tables (read, replace, seed)
//
// # Idempotent Ingestion
//
// Event tables are keyed by the submission's idempotency key. Inserts use
// ON CONFLICT DO NOTHING and report whether the row already existed:
//
//	res, err := db.InsertImpression(ctx, &models.StoredImpression{
//	    EventKey: key, BookID: bookID, Submission: sub,
//	})
//	if res.Duplicate {
//	    // already stored; still acceptance
//	}
//
// # Thresholds
//
// Threshold rows are read-only at aggregation time. They change only
// through ReplaceThresholds, which swaps one criterion's table in a
// transaction, or SeedThresholds, which fills criteria that have no rows.
//
// # Metrics
//
// Every query records query duration and error metrics through
// metrics.RecordDBQuery, labeled by operation and table.
//
// # Testing
//
// Tests open private databases with Path set to MemoryPath.
package database
