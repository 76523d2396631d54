// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tomtom215/shelfmark/internal/models"
)

// Thresholds returns the rows for one criterion ordered by score range.
// An unknown criterion yields ErrUnknownCriterion. Rows are returned as
// stored; callers validate them before use.
func (db *DB) Thresholds(ctx context.Context, criterion string) (rows []models.ThresholdRow, err error) {
	start := time.Now()
	defer observe("select", "sentiment_thresholds", start, &err)

	result, err := db.conn.QueryContext(ctx, `SELECT criterion, level, rating_min, rating_max, required_count
		FROM sentiment_thresholds
		WHERE criterion = ?
		ORDER BY rating_min, rating_max`, criterion)
	if err != nil {
		return nil, fmt.Errorf("failed to query thresholds: %w", err)
	}
	defer closeWithLog(result, "rows")

	for result.Next() {
		var (
			row   models.ThresholdRow
			level string
		)
		if err = result.Scan(&row.Criterion, &level, &row.RatingMin, &row.RatingMax, &row.RequiredCount); err != nil {
			return nil, fmt.Errorf("failed to scan threshold row: %w", err)
		}
		row.Level = models.SentimentLevel(level)
		rows = append(rows, row)
	}
	if err = result.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate thresholds: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCriterion, criterion)
	}
	return rows, nil
}

// Criteria lists the criteria that have threshold rows.
func (db *DB) Criteria(ctx context.Context) (criteria []string, err error) {
	start := time.Now()
	defer observe("select", "sentiment_thresholds", start, &err)

	rows, err := db.conn.QueryContext(ctx, `SELECT DISTINCT criterion FROM sentiment_thresholds ORDER BY criterion`)
	if err != nil {
		return nil, fmt.Errorf("failed to query criteria: %w", err)
	}
	defer closeWithLog(rows, "rows")

	criteria = []string{}
	for rows.Next() {
		var c string
		if err = rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan criterion: %w", err)
		}
		criteria = append(criteria, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate criteria: %w", err)
	}
	return criteria, nil
}

// ReplaceThresholds swaps the rows of one criterion in a single transaction.
// Every row must belong to criterion. The caller validates the table.
func (db *DB) ReplaceThresholds(ctx context.Context, criterion string, rows []models.ThresholdRow) (err error) {
	start := time.Now()
	defer observe("replace", "sentiment_thresholds", start, &err)

	for _, row := range rows {
		if row.Criterion != criterion {
			return fmt.Errorf("threshold row for %q in table for %q", row.Criterion, criterion)
		}
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	if _, err = tx.ExecContext(ctx, `DELETE FROM sentiment_thresholds WHERE criterion = ?`, criterion); err != nil {
		return fmt.Errorf("failed to delete thresholds: %w", err)
	}

	now := time.Now().UTC()
	for _, row := range rows {
		_, err = tx.ExecContext(ctx, `INSERT INTO sentiment_thresholds
			(criterion, level, rating_min, rating_max, required_count, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			row.Criterion, string(row.Level), row.RatingMin, row.RatingMax, row.RequiredCount, now)
		if err != nil {
			return fmt.Errorf("failed to insert threshold row: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit thresholds: %w", err)
	}
	return nil
}

// SeedThresholds writes the given rows for every criterion that has no rows
// yet and returns the seeded criteria. Existing tables are never touched.
func (db *DB) SeedThresholds(ctx context.Context, rows []models.ThresholdRow) ([]string, error) {
	existing, err := db.Criteria(ctx)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c] = true
	}

	byCriterion := make(map[string][]models.ThresholdRow)
	for _, row := range rows {
		if have[row.Criterion] {
			continue
		}
		byCriterion[row.Criterion] = append(byCriterion[row.Criterion], row)
	}

	seeded := make([]string, 0, len(byCriterion))
	for c := range byCriterion {
		seeded = append(seeded, c)
	}
	sort.Strings(seeded)

	for _, c := range seeded {
		if err := db.ReplaceThresholds(ctx, c, byCriterion[c]); err != nil {
			return nil, fmt.Errorf("failed to seed %s: %w", c, err)
		}
	}
	return seeded, nil
}
