// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/shelfmark/internal/database"
	"github.com/tomtom215/shelfmark/internal/events"
	"github.com/tomtom215/shelfmark/internal/models"
	"github.com/tomtom215/shelfmark/internal/sentiment"
	"github.com/tomtom215/shelfmark/internal/validation"
)

// BookSentiment reports the per-criterion sentiment of a book.
//
// @Summary Get book sentiment
// @Tags Sentiment
// @Produce json
// @Param bookID path string true "Book identifier"
// @Success 200 {object} models.APIResponse{data=models.BookSentiment}
// @Router /books/{bookID}/sentiment [get]
func (h *Handler) BookSentiment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	bookID, ok := bookIDParam(w, r)
	if !ok {
		return
	}

	report, err := h.sentiment.BookSentiment(r.Context(), bookID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to compute sentiment", err)
		return
	}

	respondSuccess(w, http.StatusOK, report, start, false)
}

// Engagement reports ingested engagement totals for a book.
//
// @Summary Get book engagement summary
// @Tags Ingestion
// @Produce json
// @Param bookID path string true "Book identifier"
// @Success 200 {object} models.APIResponse{data=models.EngagementSummary}
// @Router /books/{bookID}/engagement [get]
func (h *Handler) Engagement(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	bookID, ok := bookIDParam(w, r)
	if !ok {
		return
	}

	summary, err := h.store.EngagementSummary(r.Context(), bookID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to summarize engagement", err)
		return
	}

	respondSuccess(w, http.StatusOK, summary, start, false)
}

// Criteria lists the criteria that have a threshold table.
func (h *Handler) Criteria(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	criteria, err := h.sentiment.Criteria(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to list criteria", err)
		return
	}
	if criteria == nil {
		criteria = []string{}
	}

	respondSuccess(w, http.StatusOK, criteria, start, false)
}

// criterionParam returns the {criterion} path parameter, writing a 400 when
// it is not a valid criterion name.
func criterionParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	criterion := chi.URLParam(r, "criterion")
	if !validation.ValidCriterion(criterion) {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid criterion", nil)
		return "", false
	}
	return criterion, true
}

// Thresholds returns the stored threshold table of a criterion.
//
// @Summary Get a criterion's threshold table
// @Tags Sentiment
// @Produce json
// @Param criterion path string true "Criterion name"
// @Success 200 {object} models.APIResponse{data=[]models.ThresholdRow}
// @Failure 404 {object} models.APIResponse
// @Router /sentiment/thresholds/{criterion} [get]
func (h *Handler) Thresholds(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	criterion, ok := criterionParam(w, r)
	if !ok {
		return
	}

	rows, err := h.sentiment.Thresholds(r.Context(), criterion)
	switch {
	case errors.Is(err, database.ErrUnknownCriterion):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "No threshold table for criterion", nil)
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load thresholds", err)
		return
	}

	respondSuccess(w, http.StatusOK, rows, start, false)
}

// ReplaceThresholds validates and replaces the threshold table of a criterion.
// Rows without a criterion take the one from the path.
//
// @Summary Replace a criterion's threshold table
// @Tags Sentiment
// @Accept json
// @Produce json
// @Param criterion path string true "Criterion name"
// @Param table body models.ThresholdTableRequest true "Complete table"
// @Success 200 {object} models.APIResponse{data=[]models.ThresholdRow}
// @Failure 422 {object} models.APIResponse "Table rejected"
// @Router /sentiment/thresholds/{criterion} [put]
func (h *Handler) ReplaceThresholds(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	criterion, ok := criterionParam(w, r)
	if !ok {
		return
	}

	var req models.ThresholdTableRequest
	if !decodeBody(w, r, &req) {
		return
	}
	for i := range req.Rows {
		if req.Rows[i].Criterion == "" {
			req.Rows[i].Criterion = criterion
		}
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}

	table, err := h.sentiment.ReplaceThresholds(r.Context(), criterion, req.Rows)
	switch {
	case errors.Is(err, sentiment.ErrInvalidThresholds):
		respondError(w, http.StatusUnprocessableEntity, "INVALID_THRESHOLDS", err.Error(), nil)
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to store thresholds", err)
		return
	}

	rows := table.Rows()
	h.publish(r.Context(), events.TopicThresholdsUpdated, events.ThresholdsUpdated{
		Criterion: criterion,
		Rows:      len(rows),
		UpdatedAt: time.Now().UTC(),
	})

	respondSuccess(w, http.StatusOK, rows, start, false)
}

// Classify labels a score and rating count against a criterion's table
// without touching any stored ratings.
//
// @Summary Classify a score
// @Tags Sentiment
// @Accept json
// @Produce json
// @Param request body models.ClassifyRequest true "Criterion, score in [-1, 1] and count"
// @Success 200 {object} models.APIResponse{data=models.CriterionSentiment}
// @Router /sentiment/classify [post]
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.ClassifyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}

	result, err := h.sentiment.Classify(r.Context(), req.Criterion, *req.Score, req.Count)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to classify", err)
		return
	}

	respondSuccess(w, http.StatusOK, result, start, false)
}
