// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

/*
schema.go - Database Schema Management

Tables:
  - impressions: ingested impressions, one row per idempotency key
  - click_throughs: ingested click-throughs, one row per idempotency key
  - ratings: append-only rating rows (-1, 0, +1 per criterion)
  - sentiment_thresholds: per-criterion level ranges and required counts

The event key is the primary key of both event tables. The tracker sends
the record fingerprint as X-Idempotency-Key, so a resubmitted record lands
on the same key and the insert becomes a no-op.

sentiment_thresholds carries no unique constraint. Replacing a table deletes
and reinserts rows for one criterion inside a transaction, and DuckDB checks
index constraints eagerly within a transaction. Uniqueness of (criterion,
level) is enforced by table validation before any write.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the tables and indexes if they do not exist
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

func tableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS impressions (
			event_key TEXT PRIMARY KEY,
			book_id TEXT NOT NULL,
			source TEXT NOT NULL,
			context TEXT NOT NULL DEFAULT '',
			impression_type TEXT NOT NULL,
			weight DOUBLE NOT NULL,
			position INTEGER,
			container_type TEXT NOT NULL DEFAULT '',
			container_id TEXT NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '{}',
			timestamp_ms BIGINT NOT NULL DEFAULT 0,
			received_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_impressions_book ON impressions(book_id)`,

		`CREATE TABLE IF NOT EXISTS click_throughs (
			event_key TEXT PRIMARY KEY,
			book_id TEXT NOT NULL,
			source TEXT NOT NULL,
			referrer TEXT NOT NULL DEFAULT '',
			is_referral BOOLEAN NOT NULL DEFAULT false,
			position INTEGER,
			container_type TEXT NOT NULL DEFAULT '',
			container_id TEXT NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '{}',
			timestamp_ms BIGINT NOT NULL DEFAULT 0,
			received_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_click_throughs_book ON click_throughs(book_id)`,

		`CREATE TABLE IF NOT EXISTS ratings (
			id TEXT PRIMARY KEY,
			book_id TEXT NOT NULL,
			criterion TEXT NOT NULL,
			value INTEGER NOT NULL CHECK (value BETWEEN -1 AND 1),
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ratings_book_criterion ON ratings(book_id, criterion)`,

		`CREATE TABLE IF NOT EXISTS sentiment_thresholds (
			criterion TEXT NOT NULL,
			level TEXT NOT NULL,
			rating_min DOUBLE NOT NULL,
			rating_max DOUBLE NOT NULL,
			required_count INTEGER NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	}
}
