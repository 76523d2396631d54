// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package api

import (
	"net/http"
	"testing"

	"github.com/tomtom215/shelfmark/internal/events"
	"github.com/tomtom215/shelfmark/internal/models"
	"github.com/tomtom215/shelfmark/internal/sentiment"
)

func TestThresholds_UnknownCriterion(t *testing.T) {
	ts := newTestServer(t, false)

	w, env := doRequest(t, ts.router, http.MethodGet, "/api/v1/sentiment/thresholds/enjoyment", nil, nil)
	expectError(t, w, env, http.StatusNotFound, "NOT_FOUND")

	w, env = doRequest(t, ts.router, http.MethodGet, "/api/v1/sentiment/thresholds/Not-Valid", nil, nil)
	expectError(t, w, env, http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestReplaceThresholds(t *testing.T) {
	ts := newTestServer(t, false)

	rows := sentiment.DefaultThresholds("humor")
	for i := range rows {
		rows[i].Criterion = ""
	}

	w, env := doRequest(t, ts.router, http.MethodPut, "/api/v1/sentiment/thresholds/humor", models.ThresholdTableRequest{Rows: rows}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	var stored []models.ThresholdRow
	decodeData(t, env, &stored)
	if len(stored) != 7 || stored[0].Criterion != "humor" {
		t.Errorf("stored rows = %+v", stored)
	}
	if n := ts.publisher.published(events.TopicThresholdsUpdated); n != 1 {
		t.Errorf("threshold events = %d, want 1", n)
	}

	w, env = doRequest(t, ts.router, http.MethodGet, "/api/v1/sentiment/thresholds/humor", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET status = %d", w.Code)
	}
	decodeData(t, env, &stored)
	if len(stored) != 7 {
		t.Errorf("GET rows = %d, want 7", len(stored))
	}

	w, env = doRequest(t, ts.router, http.MethodGet, "/api/v1/sentiment/thresholds", nil, nil)
	var criteria []string
	decodeData(t, env, &criteria)
	if w.Code != http.StatusOK || len(criteria) != 1 || criteria[0] != "humor" {
		t.Errorf("criteria = %v (status %d)", criteria, w.Code)
	}
}

func TestReplaceThresholds_InvalidTable(t *testing.T) {
	ts := newTestServer(t, true)

	gap := sentiment.DefaultThresholds("enjoyment")
	gap[4].RatingMin = 0.3 // positive no longer touches mixed

	noMixed := append([]models.ThresholdRow(nil), sentiment.DefaultThresholds("enjoyment")[:3]...)

	tests := []struct {
		name   string
		rows   []models.ThresholdRow
		status int
		code   string
	}{
		{"gap between bands", gap, http.StatusUnprocessableEntity, "INVALID_THRESHOLDS"},
		{"missing mixed", noMixed, http.StatusUnprocessableEntity, "INVALID_THRESHOLDS"},
		{"empty", []models.ThresholdRow{}, http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := doRequest(t, ts.router, http.MethodPut, "/api/v1/sentiment/thresholds/enjoyment", models.ThresholdTableRequest{Rows: tt.rows}, nil)
			expectError(t, w, env, tt.status, tt.code)
		})
	}

	if n := ts.publisher.published(events.TopicThresholdsUpdated); n != 0 {
		t.Errorf("rejected tables published %d events", n)
	}
	rows, err := ts.store.Thresholds(t.Context(), "enjoyment")
	if err != nil || rows[4].RatingMin != 0.2 {
		t.Errorf("stored table changed after rejection: %+v, %v", rows, err)
	}
}

func TestClassify(t *testing.T) {
	ts := newTestServer(t, true)

	tests := []struct {
		name  string
		score float64
		count int
		want  models.SentimentLevel
	}{
		{"overwhelming with enough ratings", 0.92, 120, models.SentimentOverwhelminglyPositive},
		{"steps toward mixed when short", 0.92, 50, models.SentimentVeryPositive},
		{"negative band", -0.3, 5, models.SentimentNegative},
		{"zero ratings", 0, 0, models.SentimentUndetermined},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := map[string]interface{}{"criterion": "enjoyment", "score": tt.score, "count": tt.count}
			w, env := doRequest(t, ts.router, http.MethodPost, "/api/v1/sentiment/classify", body, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d (body %s)", w.Code, w.Body.String())
			}
			var got models.CriterionSentiment
			decodeData(t, env, &got)
			if got.Level != tt.want {
				t.Errorf("level = %s, want %s", got.Level, tt.want)
			}
		})
	}
}

func TestClassify_UnknownCriterionIsUndetermined(t *testing.T) {
	ts := newTestServer(t, true)

	body := map[string]interface{}{"criterion": "dialogue", "score": 0.5, "count": 500}
	w, env := doRequest(t, ts.router, http.MethodPost, "/api/v1/sentiment/classify", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got models.CriterionSentiment
	decodeData(t, env, &got)
	if got.Level != models.SentimentUndetermined {
		t.Errorf("level = %s, want undetermined", got.Level)
	}
}

func TestClassify_Rejections(t *testing.T) {
	ts := newTestServer(t, true)

	for name, body := range map[string]map[string]interface{}{
		"missing score":  {"criterion": "enjoyment", "count": 3},
		"score too high": {"criterion": "enjoyment", "score": 1.5, "count": 3},
		"negative count": {"criterion": "enjoyment", "score": 0.1, "count": -1},
	} {
		t.Run(name, func(t *testing.T) {
			w, env := doRequest(t, ts.router, http.MethodPost, "/api/v1/sentiment/classify", body, nil)
			expectError(t, w, env, http.StatusBadRequest, "VALIDATION_ERROR")
		})
	}
}

func TestBookSentiment(t *testing.T) {
	ts := newTestServer(t, true)
	for i := 0; i < 6; i++ {
		w, _ := doRequest(t, ts.router, http.MethodPost, "/api/v1/books/b-9/ratings", map[string]interface{}{"criterion": "characters", "value": 1}, nil)
		if w.Code != http.StatusCreated {
			t.Fatalf("rating status = %d", w.Code)
		}
	}
	// The bus is not running in these tests; drop the cached report by hand.
	ts.engine.InvalidateBook("b-9")

	w, env := doRequest(t, ts.router, http.MethodGet, "/api/v1/books/b-9/sentiment", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var report models.BookSentiment
	decodeData(t, env, &report)
	if report.BookID != "b-9" || len(report.Criteria) != len(sentiment.DefaultCriteria) {
		t.Fatalf("report = %+v", report)
	}
	for _, c := range report.Criteria {
		switch c.Criterion {
		case "characters":
			// 6 positive ratings score 1.0: overwhelming and very positive need
			// more, positive needs 5.
			if c.Level != models.SentimentPositive || c.Count != 6 {
				t.Errorf("characters = %+v, want positive with 6 ratings", c)
			}
		default:
			if c.Level != models.SentimentUndetermined {
				t.Errorf("%s = %s, want undetermined", c.Criterion, c.Level)
			}
		}
	}
}
