// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/shelfmark/internal/models"
)

// InsertImpression stores an ingested impression. A row whose event key
// already exists is left untouched and reported as a duplicate; resubmitting
// a record is acceptance, not an error.
func (db *DB) InsertImpression(ctx context.Context, imp *models.StoredImpression) (result models.IngestResult, err error) {
	start := time.Now()
	defer observe("insert", "impressions", start, &err)

	if imp.EventKey == "" {
		imp.EventKey = uuid.New().String()
	}
	if imp.ReceivedAt.IsZero() {
		imp.ReceivedAt = time.Now().UTC()
	}
	sub := imp.Submission

	metadata, err := json.Marshal(sub.Metadata)
	if err != nil {
		return result, fmt.Errorf("failed to encode impression metadata: %w", err)
	}

	query := `INSERT INTO impressions (
		event_key, book_id, source, context, impression_type, weight,
		position, container_type, container_id, metadata, timestamp_ms, received_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT DO NOTHING`

	res, err := db.conn.ExecContext(ctx, query,
		imp.EventKey, imp.BookID, sub.Source, sub.Context, string(sub.Type), sub.Weight,
		nullableInt(sub.Position), sub.ContainerType, sub.ContainerID, string(metadata),
		sub.TimestampMs, imp.ReceivedAt,
	)
	return ingestResult(imp.EventKey, res, err, "impression")
}

// InsertClickThrough stores an ingested click-through with the same
// idempotency rules as InsertImpression.
func (db *DB) InsertClickThrough(ctx context.Context, ct *models.StoredClickThrough) (result models.IngestResult, err error) {
	start := time.Now()
	defer observe("insert", "click_throughs", start, &err)

	if ct.EventKey == "" {
		ct.EventKey = uuid.New().String()
	}
	if ct.ReceivedAt.IsZero() {
		ct.ReceivedAt = time.Now().UTC()
	}
	sub := ct.Submission

	metadata, err := json.Marshal(sub.Metadata)
	if err != nil {
		return result, fmt.Errorf("failed to encode click-through metadata: %w", err)
	}

	query := `INSERT INTO click_throughs (
		event_key, book_id, source, referrer, is_referral,
		position, container_type, container_id, metadata, timestamp_ms, received_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT DO NOTHING`

	res, err := db.conn.ExecContext(ctx, query,
		ct.EventKey, ct.BookID, sub.Source, sub.Referrer, sub.IsReferral,
		nullableInt(sub.Position), sub.ContainerType, sub.ContainerID, string(metadata),
		sub.TimestampMs, ct.ReceivedAt,
	)
	return ingestResult(ct.EventKey, res, err, "click-through")
}

// ingestResult maps an insert outcome to an IngestResult. Two concurrent
// inserts of one key can surface as a constraint or transaction conflict
// instead of a skipped row; both mean the row exists.
func ingestResult(key string, res sql.Result, err error, kind string) (models.IngestResult, error) {
	result := models.IngestResult{EventKey: key}
	if err != nil {
		if isUniqueConstraintError(err) || isTransactionConflict(err) {
			result.Duplicate = true
			return result, nil
		}
		return result, fmt.Errorf("failed to insert %s: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return result, fmt.Errorf("failed to read %s insert result: %w", kind, err)
	}
	result.Duplicate = n == 0
	return result, nil
}

// EngagementSummary aggregates ingested events for one book. A book with
// no events yields a zero summary, not an error.
func (db *DB) EngagementSummary(ctx context.Context, bookID string) (summary *models.EngagementSummary, err error) {
	start := time.Now()
	defer observe("select", "impressions", start, &err)

	summary = &models.EngagementSummary{
		BookID:            bookID,
		ImpressionsByType: make(map[string]int),
		WeightByType:      make(map[string]float64),
	}

	rows, err := db.conn.QueryContext(ctx, `SELECT impression_type, COUNT(*), COALESCE(SUM(weight), 0), MAX(received_at)
		FROM impressions
		WHERE book_id = ?
		GROUP BY impression_type
		ORDER BY impression_type`, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to query impressions: %w", err)
	}
	defer closeWithLog(rows, "rows")

	for rows.Next() {
		var (
			impressionType string
			count          int64
			weight         float64
			lastSeen       sql.NullTime
		)
		if err = rows.Scan(&impressionType, &count, &weight, &lastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan impression summary: %w", err)
		}
		summary.ImpressionsByType[impressionType] = int(count)
		summary.WeightByType[impressionType] = weight
		summary.WeightedImpressions += weight
		summary.LastSeen = latest(summary.LastSeen, lastSeen)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate impression summary: %w", err)
	}

	var (
		clicks, referrals int64
		lastClick         sql.NullTime
	)
	err = db.conn.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(*) FILTER (WHERE is_referral), MAX(received_at)
		FROM click_throughs
		WHERE book_id = ?`, bookID).Scan(&clicks, &referrals, &lastClick)
	if err != nil {
		return nil, fmt.Errorf("failed to query click-throughs: %w", err)
	}
	summary.ClickThroughs = int(clicks)
	summary.ReferralClickThroughs = int(referrals)
	summary.LastSeen = latest(summary.LastSeen, lastClick)

	return summary, nil
}

func latest(current *time.Time, candidate sql.NullTime) *time.Time {
	if !candidate.Valid {
		return current
	}
	if current == nil || candidate.Time.After(*current) {
		t := candidate.Time
		return &t
	}
	return current
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}
