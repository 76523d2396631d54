// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/shelfmark/internal/database"
	"github.com/tomtom215/shelfmark/internal/models"
	"github.com/tomtom215/shelfmark/internal/sentiment"
)

// memStore is an in-memory IngestStore and sentiment.Store.
type memStore struct {
	mu          sync.Mutex
	impressions map[string]*models.StoredImpression
	clicks      map[string]*models.StoredClickThrough
	ratings     []models.Rating
	tables      map[string][]models.ThresholdRow
	insertErr   error
	pingErr     error
	nextKey     int
}

func newMemStore() *memStore {
	return &memStore{
		impressions: make(map[string]*models.StoredImpression),
		clicks:      make(map[string]*models.StoredClickThrough),
		tables:      make(map[string][]models.ThresholdRow),
	}
}

func (s *memStore) key(k string) string {
	if k != "" {
		return k
	}
	s.nextKey++
	return "generated-" + strconv.Itoa(s.nextKey)
}

func (s *memStore) InsertImpression(_ context.Context, imp *models.StoredImpression) (models.IngestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return models.IngestResult{}, s.insertErr
	}
	imp.EventKey = s.key(imp.EventKey)
	if _, ok := s.impressions[imp.EventKey]; ok {
		return models.IngestResult{EventKey: imp.EventKey, Duplicate: true}, nil
	}
	s.impressions[imp.EventKey] = imp
	return models.IngestResult{EventKey: imp.EventKey}, nil
}

func (s *memStore) InsertClickThrough(_ context.Context, ct *models.StoredClickThrough) (models.IngestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return models.IngestResult{}, s.insertErr
	}
	ct.EventKey = s.key(ct.EventKey)
	if _, ok := s.clicks[ct.EventKey]; ok {
		return models.IngestResult{EventKey: ct.EventKey, Duplicate: true}, nil
	}
	s.clicks[ct.EventKey] = ct
	return models.IngestResult{EventKey: ct.EventKey}, nil
}

func (s *memStore) InsertRating(_ context.Context, rating *models.Rating) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.nextKey++
	rating.ID = "rating-" + strconv.Itoa(s.nextKey)
	rating.CreatedAt = time.Now().UTC()
	s.ratings = append(s.ratings, *rating)
	return nil
}

func (s *memStore) EngagementSummary(_ context.Context, bookID string) (*models.EngagementSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary := &models.EngagementSummary{
		BookID:            bookID,
		ImpressionsByType: map[string]int{},
		WeightByType:      map[string]float64{},
	}
	for _, imp := range s.impressions {
		if imp.BookID != bookID {
			continue
		}
		typ := string(imp.Submission.Type)
		summary.ImpressionsByType[typ]++
		summary.WeightByType[typ] += imp.Submission.Weight
		summary.WeightedImpressions += imp.Submission.Weight
	}
	for _, ct := range s.clicks {
		if ct.BookID != bookID {
			continue
		}
		summary.ClickThroughs++
		if ct.Submission.IsReferral {
			summary.ReferralClickThroughs++
		}
	}
	return summary, nil
}

func (s *memStore) Ping(_ context.Context) error {
	return s.pingErr
}

func (s *memStore) RatingCounts(_ context.Context, bookID string) ([]models.CriterionCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byCriterion := make(map[string]*models.CriterionCounts)
	for _, r := range s.ratings {
		if r.BookID != bookID {
			continue
		}
		c, ok := byCriterion[r.Criterion]
		if !ok {
			c = &models.CriterionCounts{Criterion: r.Criterion}
			byCriterion[r.Criterion] = c
		}
		switch {
		case r.Value > 0:
			c.Positive++
		case r.Value < 0:
			c.Negative++
		default:
			c.Neutral++
		}
	}
	out := make([]models.CriterionCounts, 0, len(byCriterion))
	for _, c := range byCriterion {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Criterion < out[j].Criterion })
	return out, nil
}

func (s *memStore) Thresholds(_ context.Context, criterion string) ([]models.ThresholdRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.tables[criterion]
	if !ok {
		return nil, database.ErrUnknownCriterion
	}
	return append([]models.ThresholdRow(nil), rows...), nil
}

func (s *memStore) Criteria(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.tables))
	for c := range s.tables {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

func (s *memStore) ReplaceThresholds(_ context.Context, criterion string, rows []models.ThresholdRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[criterion] = append([]models.ThresholdRow(nil), rows...)
	return nil
}

func (s *memStore) SeedThresholds(_ context.Context, rows []models.ThresholdRow) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	grouped := sentiment.GroupByCriterion(rows)
	var seeded []string
	for criterion, group := range grouped {
		if _, ok := s.tables[criterion]; ok {
			continue
		}
		s.tables[criterion] = group
		seeded = append(seeded, criterion)
	}
	sort.Strings(seeded)
	return seeded, nil
}

// recordingPublisher captures published topics.
type recordingPublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads []any
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *recordingPublisher) published(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, t := range p.topics {
		if t == topic {
			n++
		}
	}
	return n
}

// testServer wires a Handler over memStore and a real sentiment engine.
type testServer struct {
	store     *memStore
	engine    *sentiment.Engine
	publisher *recordingPublisher
	router    http.Handler
}

func newTestServer(t *testing.T, seedDefaults bool) *testServer {
	t.Helper()
	store := newMemStore()
	engine := sentiment.NewEngine(store, sentiment.EngineOptions{CacheSize: 16, CacheTTL: time.Minute})
	if seedDefaults {
		if _, err := engine.Seed(context.Background(), sentiment.DefaultThresholds()); err != nil {
			t.Fatalf("Seed() error: %v", err)
		}
	}
	pub := &recordingPublisher{}
	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitDisabled = true
	return &testServer{
		store:     store,
		engine:    engine,
		publisher: pub,
		router:    NewServerRouter(NewHandler(store, engine, pub), NewChiMiddleware(cfg)),
	}
}

// envelope mirrors models.APIResponse with a raw data field.
type envelope struct {
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  *models.APIError `json:"error"`
}

func doRequest(t *testing.T, h http.Handler, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var env envelope
	if ct := w.Header().Get("Content-Type"); ct == "application/json" {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode response %q: %v", w.Body.String(), err)
		}
	}
	return w, env
}

func decodeData(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, env envelope, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, status, w.Body.String())
	}
	if env.Status != "error" || env.Error == nil {
		t.Fatalf("expected error envelope, got %s", w.Body.String())
	}
	if env.Error.Code != code {
		t.Errorf("error code = %q, want %q", env.Error.Code, code)
	}
}

var errBoom = errors.New("boom")
