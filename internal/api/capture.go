// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/shelfmark/internal/dispatch"
	"github.com/tomtom215/shelfmark/internal/middleware"
	"github.com/tomtom215/shelfmark/internal/models"
	"github.com/tomtom215/shelfmark/internal/tracker"
)

// EventRecorder is the local event store surface. *tracker.Store implements it.
type EventRecorder interface {
	AppendImpression(ctx context.Context, imp models.Impression) tracker.AppendOutcome
	AppendClickThrough(ctx context.Context, click models.ClickThrough) tracker.AppendOutcome
	Impressions(ctx context.Context) []models.Impression
	ClickThroughs(ctx context.Context) []models.ClickThrough
	DeadLetters(ctx context.Context) []tracker.DeadLetter
}

// Flusher runs an on-demand flush. *dispatch.Dispatcher implements it.
type Flusher interface {
	Flush(ctx context.Context) dispatch.FlushResult
}

// CaptureHandler serves the tracker agent's loopback capture API.
type CaptureHandler struct {
	store   EventRecorder
	flusher Flusher
	now     func() time.Time
}

// NewCaptureHandler creates the capture handler.
func NewCaptureHandler(store EventRecorder, flusher Flusher) *CaptureHandler {
	return &CaptureHandler{store: store, flusher: flusher, now: time.Now}
}

// AppendResult is the response body of a capture call.
type AppendResult struct {
	Outcome string `json:"outcome"`
}

// PendingEvents lists the records waiting for the next flush.
type PendingEvents struct {
	Impressions   []models.Impression   `json:"impressions"`
	ClickThroughs []models.ClickThrough `json:"click_throughs"`
}

// appendStatus maps a store outcome to its response code. A record that
// coalesced into a pending one is accepted but not new.
func appendStatus(outcome tracker.AppendOutcome) int {
	switch outcome {
	case tracker.AppendQueued:
		return http.StatusAccepted
	case tracker.AppendCoalesced:
		return http.StatusOK
	case tracker.AppendRejected:
		return http.StatusBadRequest
	default:
		return http.StatusServiceUnavailable
	}
}

func respondAppend(w http.ResponseWriter, outcome tracker.AppendOutcome) {
	status := appendStatus(outcome)
	switch status {
	case http.StatusBadRequest:
		respondError(w, status, "INVALID_EVENT", "Event failed validation", nil)
	case http.StatusServiceUnavailable:
		respondError(w, status, "STORE_UNAVAILABLE", "Event could not be stored", nil)
	default:
		respondSuccess(w, status, AppendResult{Outcome: outcome.String()}, time.Time{}, false)
	}
}

// TrackImpression records an impression. A missing timestamp is set to now.
func (h *CaptureHandler) TrackImpression(w http.ResponseWriter, r *http.Request) {
	var imp models.Impression
	if !decodeBody(w, r, &imp) {
		return
	}
	if imp.TimestampMs == 0 {
		imp.TimestampMs = h.now().UnixMilli()
	}
	respondAppend(w, h.store.AppendImpression(r.Context(), imp))
}

// TrackClickThrough records a click-through, which also triggers a flush.
func (h *CaptureHandler) TrackClickThrough(w http.ResponseWriter, r *http.Request) {
	var click models.ClickThrough
	if !decodeBody(w, r, &click) {
		return
	}
	if click.TimestampMs == 0 {
		click.TimestampMs = h.now().UnixMilli()
	}
	respondAppend(w, h.store.AppendClickThrough(r.Context(), click))
}

// Pending lists pending records in insertion order.
func (h *CaptureHandler) Pending(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, PendingEvents{
		Impressions:   h.store.Impressions(r.Context()),
		ClickThroughs: h.store.ClickThroughs(r.Context()),
	}, time.Time{}, false)
}

// Flush submits every pending record now and reports what happened.
func (h *CaptureHandler) Flush(w http.ResponseWriter, r *http.Request) {
	if h.flusher == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Dispatcher not running", nil)
		return
	}
	start := time.Now()
	respondSuccess(w, http.StatusOK, h.flusher.Flush(r.Context()), start, false)
}

// DeadLetters lists records that left the queue undelivered, oldest first.
func (h *CaptureHandler) DeadLetters(w http.ResponseWriter, r *http.Request) {
	letters := h.store.DeadLetters(r.Context())
	if letters == nil {
		letters = []tracker.DeadLetter{}
	}
	respondSuccess(w, http.StatusOK, letters, time.Time{}, false)
}

// NewCaptureRouter builds the tracker agent router:
// /track/impression, /track/click-through, /track/pending, /track/flush,
// /track/dead-letters, /health/live and /metrics.
func NewCaptureRouter(h *CaptureHandler, mw *ChiMiddleware) http.Handler {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())

	r.Route("/track", func(r chi.Router) {
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		r.Post("/impression", h.TrackImpression)
		r.Post("/click-through", h.TrackClickThrough)
		r.Get("/pending", h.Pending)
		r.Post("/flush", h.Flush)
		r.Get("/dead-letters", h.DeadLetters)
	})

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		respondSuccess(w, http.StatusOK, map[string]bool{"alive": true}, time.Time{}, false)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})

	return r
}
