// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package api

import (
	"context"
	"time"

	"github.com/tomtom215/shelfmark/internal/logging"
	"github.com/tomtom215/shelfmark/internal/models"
	"github.com/tomtom215/shelfmark/internal/sentiment"
)

// IdempotencyKeyHeader carries the client's idempotency key on ingestion requests.
const IdempotencyKeyHeader = "X-Idempotency-Key"

// maxIdempotencyKeyLen bounds client supplied event keys.
const maxIdempotencyKeyLen = 128

// IngestStore is the persistence the ingestion handlers need. *database.DB implements it.
type IngestStore interface {
	InsertImpression(ctx context.Context, imp *models.StoredImpression) (models.IngestResult, error)
	InsertClickThrough(ctx context.Context, ct *models.StoredClickThrough) (models.IngestResult, error)
	InsertRating(ctx context.Context, rating *models.Rating) error
	EngagementSummary(ctx context.Context, bookID string) (*models.EngagementSummary, error)
	Ping(ctx context.Context) error
}

// SentimentService is the aggregation surface. *sentiment.Engine implements it.
type SentimentService interface {
	BookSentiment(ctx context.Context, bookID string) (*models.BookSentiment, error)
	Classify(ctx context.Context, criterion string, score float64, count int) (models.CriterionSentiment, error)
	Thresholds(ctx context.Context, criterion string) ([]models.ThresholdRow, error)
	Criteria(ctx context.Context) ([]string, error)
	ReplaceThresholds(ctx context.Context, criterion string, rows []models.ThresholdRow) (*sentiment.Table, error)
	InvalidateBook(bookID string)
	InvalidateThresholds(criterion string)
}

// Publisher emits domain events. *events.Bus implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Handler serves the ingestion and sentiment API.
type Handler struct {
	store     IngestStore
	sentiment SentimentService
	publisher Publisher
	startTime time.Time
}

// NewHandler creates the API handler. A nil publisher disables event
// publication; cache invalidation then happens inline.
func NewHandler(store IngestStore, svc SentimentService, publisher Publisher) *Handler {
	return &Handler{
		store:     store,
		sentiment: svc,
		publisher: publisher,
		startTime: time.Now(),
	}
}

// publish emits an event and reports whether it was handed to the bus.
// Publication failures never fail the request: the row is already stored.
func (h *Handler) publish(ctx context.Context, topic string, payload any) bool {
	if h.publisher == nil {
		return false
	}
	if err := h.publisher.Publish(ctx, topic, payload); err != nil {
		logging.CtxErr(ctx, err).Str("topic", topic).Msg("Event publication failed")
		return false
	}
	return true
}
