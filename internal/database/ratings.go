// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/shelfmark/internal/models"
)

// InsertRating appends a rating row. ID and CreatedAt are filled in when empty.
func (db *DB) InsertRating(ctx context.Context, rating *models.Rating) (err error) {
	start := time.Now()
	defer observe("insert", "ratings", start, &err)

	if rating.Value < -1 || rating.Value > 1 {
		return fmt.Errorf("rating value %d out of range", rating.Value)
	}
	if rating.ID == "" {
		rating.ID = uuid.New().String()
	}
	if rating.CreatedAt.IsZero() {
		rating.CreatedAt = time.Now().UTC()
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO ratings (id, book_id, criterion, value, created_at) VALUES (?, ?, ?, ?, ?)`,
		rating.ID, rating.BookID, rating.Criterion, rating.Value, rating.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert rating: %w", err)
	}
	return nil
}

// RatingCounts returns positive, neutral and negative counts per criterion
// for one book, ordered by criterion.
func (db *DB) RatingCounts(ctx context.Context, bookID string) (counts []models.CriterionCounts, err error) {
	start := time.Now()
	defer observe("select", "ratings", start, &err)

	rows, err := db.conn.QueryContext(ctx, `SELECT criterion,
			COUNT(*) FILTER (WHERE value > 0),
			COUNT(*) FILTER (WHERE value = 0),
			COUNT(*) FILTER (WHERE value < 0)
		FROM ratings
		WHERE book_id = ?
		GROUP BY criterion
		ORDER BY criterion`, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rating counts: %w", err)
	}
	defer closeWithLog(rows, "rows")

	counts = []models.CriterionCounts{}
	for rows.Next() {
		var (
			c                           models.CriterionCounts
			positive, neutral, negative int64
		)
		if err = rows.Scan(&c.Criterion, &positive, &neutral, &negative); err != nil {
			return nil, fmt.Errorf("failed to scan rating counts: %w", err)
		}
		c.Positive, c.Neutral, c.Negative = int(positive), int(neutral), int(negative)
		counts = append(counts, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rating counts: %w", err)
	}
	return counts, nil
}
