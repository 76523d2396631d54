// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package models

import "time"

// ImpressionSubmission is the body of POST /books/{bookID}/impression.
type ImpressionSubmission struct {
	Source        string         `json:"source" validate:"required,max=128"`
	Context       string         `json:"context" validate:"max=512"`
	Type          ImpressionType `json:"type" validate:"required,impressiontype"`
	Weight        float64        `json:"weight" validate:"gte=0,lte=10"`
	Position      *int           `json:"position,omitempty" validate:"omitempty,gte=0"`
	ContainerType string         `json:"containerType,omitempty" validate:"max=64"`
	ContainerID   string         `json:"containerId,omitempty" validate:"max=128"`
	Metadata      EventMetadata  `json:"metadata"`
	TimestampMs   int64          `json:"timestampMs,omitempty" validate:"gte=0"`
}

// ClickThroughSubmission is the body of POST /books/{bookID}/click-through.
type ClickThroughSubmission struct {
	Source        string        `json:"source" validate:"required,max=128"`
	Referrer      string        `json:"referrer" validate:"max=512"`
	Position      *int          `json:"position,omitempty" validate:"omitempty,gte=0"`
	ContainerType string        `json:"containerType,omitempty" validate:"max=64"`
	ContainerID   string        `json:"containerId,omitempty" validate:"max=128"`
	Metadata      EventMetadata `json:"metadata"`
	IsReferral    bool          `json:"isReferral"`
	TimestampMs   int64         `json:"timestampMs,omitempty" validate:"gte=0"`
}

// RatingSubmission records one rating of a book on a criterion.
// Value is -1 (negative), 0 (neutral) or 1 (positive).
type RatingSubmission struct {
	Criterion string `json:"criterion" validate:"required,criterion"`
	Value     *int   `json:"value" validate:"required,oneof=-1 0 1"`
}

// Rating is one persisted rating row. Rows are append-only.
type Rating struct {
	ID        string    `json:"id"`
	BookID    string    `json:"book_id"`
	Criterion string    `json:"criterion"`
	Value     int       `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// StoredImpression is an ingested impression row.
type StoredImpression struct {
	EventKey   string
	BookID     string
	Submission ImpressionSubmission
	ReceivedAt time.Time
}

// StoredClickThrough is an ingested click-through row.
type StoredClickThrough struct {
	EventKey   string
	BookID     string
	Submission ClickThroughSubmission
	ReceivedAt time.Time
}

// IngestResult reports whether an ingested event created a new row.
type IngestResult struct {
	EventKey  string `json:"event_key"`
	Duplicate bool   `json:"duplicate"`
}

// EngagementSummary aggregates ingested engagement for a book.
type EngagementSummary struct {
	BookID                string             `json:"book_id"`
	WeightedImpressions   float64            `json:"weighted_impressions"`
	ImpressionsByType     map[string]int     `json:"impressions_by_type"`
	WeightByType          map[string]float64 `json:"weight_by_type"`
	ClickThroughs         int                `json:"click_throughs"`
	ReferralClickThroughs int                `json:"referral_click_throughs"`
	LastSeen              *time.Time         `json:"last_seen,omitempty"`
}
