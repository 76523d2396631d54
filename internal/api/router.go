// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/shelfmark/internal/middleware"
)

// NewServerRouter builds the ingestion and sentiment router.
//
// Routes (all under /api/v1 unless noted):
//   - POST /books/{bookID}/impression, /books/{bookID}/click-through
//   - POST /books/{bookID}/ratings
//   - GET  /books/{bookID}/sentiment, /books/{bookID}/engagement
//   - POST /sentiment/classify
//   - GET  /sentiment/thresholds, GET|PUT /sentiment/thresholds/{criterion}
//   - GET  /health/live, /health/ready
//   - GET  /metrics (root)
func NewServerRouter(h *Handler, mw *ChiMiddleware) http.Handler {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		r.Get("/health/live", h.HealthLive)
		r.Get("/health/ready", h.HealthReady)

		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimit())

			r.Route("/books/{bookID}", func(r chi.Router) {
				r.Post("/impression", h.Impression)
				r.Post("/click-through", h.ClickThrough)
				r.Post("/ratings", h.Rating)
				r.Get("/sentiment", h.BookSentiment)
				r.Get("/engagement", h.Engagement)
			})

			r.Route("/sentiment", func(r chi.Router) {
				r.Post("/classify", h.Classify)
				r.Get("/thresholds", h.Criteria)
				r.Get("/thresholds/{criterion}", h.Thresholds)
				r.Put("/thresholds/{criterion}", h.ReplaceThresholds)
			})
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	return r
}
