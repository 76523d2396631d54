// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/shelfmark/internal/events"
	"github.com/tomtom215/shelfmark/internal/logging"
	"github.com/tomtom215/shelfmark/internal/metrics"
	"github.com/tomtom215/shelfmark/internal/models"
)

// maxBookIDLen bounds the book identifier taken from the URL path.
const maxBookIDLen = 256

// bookIDParam returns the {bookID} path parameter, writing a 400 when it is
// missing or oversized.
func bookIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	bookID := chi.URLParam(r, "bookID")
	if bookID == "" || len(bookID) > maxBookIDLen {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid book ID", nil)
		return "", false
	}
	return bookID, true
}

// idempotencyKey returns the X-Idempotency-Key header, writing a 400 when it
// is oversized. An empty key is allowed; the store then generates one.
func idempotencyKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := r.Header.Get(IdempotencyKeyHeader)
	if len(key) > maxIdempotencyKeyLen {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Idempotency key too long", nil)
		return "", false
	}
	return key, true
}

// ingestStatus maps an ingest result to its response code: 201 for a new
// row, 200 for a replay of an already stored key.
func ingestStatus(result models.IngestResult) (int, string) {
	if result.Duplicate {
		return http.StatusOK, "duplicate"
	}
	return http.StatusCreated, "inserted"
}

// Impression ingests one impression of a book.
//
// @Summary Ingest an impression
// @Tags Ingestion
// @Accept json
// @Produce json
// @Param bookID path string true "Book identifier"
// @Param X-Idempotency-Key header string false "Event key; replays answer 200"
// @Success 201 {object} models.APIResponse{data=models.IngestResult}
// @Success 200 {object} models.APIResponse{data=models.IngestResult} "Duplicate"
// @Failure 400 {object} models.APIResponse
// @Router /books/{bookID}/impression [post]
func (h *Handler) Impression(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	bookID, ok := bookIDParam(w, r)
	if !ok {
		return
	}
	key, ok := idempotencyKey(w, r)
	if !ok {
		return
	}

	var sub models.ImpressionSubmission
	if !decodeBody(w, r, &sub) {
		return
	}
	if apiErr := validateRequest(&sub); apiErr != nil {
		metrics.RecordIngest("impression", "invalid")
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}
	if sub.Weight == 0 {
		sub.Weight = sub.Type.Weight()
	}

	result, err := h.store.InsertImpression(r.Context(), &models.StoredImpression{
		EventKey:   key,
		BookID:     bookID,
		Submission: sub,
	})
	if err != nil {
		metrics.RecordIngest("impression", "error")
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to store impression", err)
		return
	}

	status, label := ingestStatus(result)
	metrics.RecordIngest("impression", label)
	h.publish(r.Context(), events.TopicEngagementIngested, events.EngagementIngested{
		BookID:    bookID,
		Kind:      "impression",
		EventKey:  result.EventKey,
		Duplicate: result.Duplicate,
	})

	respondSuccess(w, status, result, start, false)
}

// ClickThrough ingests one click-through to a book.
//
// @Summary Ingest a click-through
// @Tags Ingestion
// @Accept json
// @Produce json
// @Param bookID path string true "Book identifier"
// @Param X-Idempotency-Key header string false "Event key; replays answer 200"
// @Success 201 {object} models.APIResponse{data=models.IngestResult}
// @Router /books/{bookID}/click-through [post]
func (h *Handler) ClickThrough(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	bookID, ok := bookIDParam(w, r)
	if !ok {
		return
	}
	key, ok := idempotencyKey(w, r)
	if !ok {
		return
	}

	var sub models.ClickThroughSubmission
	if !decodeBody(w, r, &sub) {
		return
	}
	if apiErr := validateRequest(&sub); apiErr != nil {
		metrics.RecordIngest("click_through", "invalid")
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}

	result, err := h.store.InsertClickThrough(r.Context(), &models.StoredClickThrough{
		EventKey:   key,
		BookID:     bookID,
		Submission: sub,
	})
	if err != nil {
		metrics.RecordIngest("click_through", "error")
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to store click-through", err)
		return
	}

	status, label := ingestStatus(result)
	metrics.RecordIngest("click_through", label)
	h.publish(r.Context(), events.TopicEngagementIngested, events.EngagementIngested{
		BookID:    bookID,
		Kind:      "click_through",
		EventKey:  result.EventKey,
		Duplicate: result.Duplicate,
	})

	respondSuccess(w, status, result, start, false)
}

// Rating appends one rating row for a book and criterion.
//
// @Summary Record a rating
// @Tags Sentiment
// @Accept json
// @Produce json
// @Param bookID path string true "Book identifier"
// @Param rating body models.RatingSubmission true "Criterion and value (-1, 0, 1)"
// @Success 201 {object} models.APIResponse{data=models.Rating}
// @Router /books/{bookID}/ratings [post]
func (h *Handler) Rating(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	bookID, ok := bookIDParam(w, r)
	if !ok {
		return
	}

	var sub models.RatingSubmission
	if !decodeBody(w, r, &sub) {
		return
	}
	if apiErr := validateRequest(&sub); apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}

	rating := &models.Rating{
		BookID:    bookID,
		Criterion: sub.Criterion,
		Value:     *sub.Value,
	}
	if err := h.store.InsertRating(r.Context(), rating); err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to store rating", err)
		return
	}
	metrics.RecordRating(rating.Value)

	published := h.publish(r.Context(), events.TopicRatingsRecorded, events.RatingRecorded{
		RatingID:   rating.ID,
		BookID:     rating.BookID,
		Criterion:  rating.Criterion,
		Value:      rating.Value,
		RecordedAt: rating.CreatedAt,
	})
	if !published {
		h.sentiment.InvalidateBook(bookID)
	}

	logging.Ctx(r.Context()).Debug().
		Str("book_id", bookID).
		Str("criterion", rating.Criterion).
		Int("value", rating.Value).
		Msg("Rating recorded")

	respondSuccess(w, http.StatusCreated, rating, start, false)
}
