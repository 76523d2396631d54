// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package sentiment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/shelfmark/internal/cache"
	"github.com/tomtom215/shelfmark/internal/database"
	"github.com/tomtom215/shelfmark/internal/logging"
	"github.com/tomtom215/shelfmark/internal/metrics"
	"github.com/tomtom215/shelfmark/internal/models"
)

// Store is the read and administration surface the engine needs from the
// relational store. *database.DB implements it.
type Store interface {
	RatingCounts(ctx context.Context, bookID string) ([]models.CriterionCounts, error)
	Thresholds(ctx context.Context, criterion string) ([]models.ThresholdRow, error)
	Criteria(ctx context.Context) ([]string, error)
	ReplaceThresholds(ctx context.Context, criterion string, rows []models.ThresholdRow) error
	SeedThresholds(ctx context.Context, rows []models.ThresholdRow) ([]string, error)
}

// EngineOptions configures report caching.
type EngineOptions struct {
	CacheSize int
	CacheTTL  time.Duration
	Now       func() time.Time
}

// Engine classifies per-criterion rating counts into sentiment levels.
// It never writes ratings; threshold tables change only through
// ReplaceThresholds and Seed.
type Engine struct {
	store Store
	now   func() time.Time

	reportMu  sync.Mutex
	reportGen uint64 // bumped by every report invalidation
	reports   *cache.LRU[string, *models.BookSentiment]

	mu       sync.RWMutex
	tableGen uint64            // bumped by every table replacement or invalidation
	tables   map[string]*Table // nil value: stored table is invalid
}

// NewEngine creates an Engine over store.
func NewEngine(store Store, opts EngineOptions) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		store:   store,
		now:     opts.Now,
		reports: cache.NewLRU[string, *models.BookSentiment](opts.CacheSize, opts.CacheTTL, cache.WithClock(opts.Now)),
		tables:  make(map[string]*Table),
	}
}

// Table returns the validated table for criterion, or nil when the
// criterion is unknown or its stored table is invalid.
func (e *Engine) Table(ctx context.Context, criterion string) (*Table, error) {
	e.mu.RLock()
	t, ok := e.tables[criterion]
	gen := e.tableGen
	e.mu.RUnlock()
	if ok {
		return t, nil
	}

	rows, err := e.store.Thresholds(ctx, criterion)
	if errors.Is(err, database.ErrUnknownCriterion) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load thresholds for %s: %w", criterion, err)
	}

	t, err = NewTable(criterion, rows)
	if err != nil {
		logging.Error().Err(err).Str("criterion", criterion).Msg("Stored threshold table is invalid, criterion reports undetermined")
		t = nil
	}

	// A replacement or invalidation during the read makes these rows stale.
	e.mu.Lock()
	if e.tableGen == gen {
		e.tables[criterion] = t
	}
	e.mu.Unlock()
	return t, nil
}

// Classify classifies a score and count for one criterion. Unknown
// criteria yield undetermined, not an error.
func (e *Engine) Classify(ctx context.Context, criterion string, score float64, count int) (models.CriterionSentiment, error) {
	result := models.CriterionSentiment{
		Criterion: criterion,
		Level:     models.SentimentUndetermined,
		Score:     score,
		Count:     count,
	}
	t, err := e.Table(ctx, criterion)
	if err != nil {
		return result, err
	}
	if t != nil {
		result.Level = t.Classify(score, count)
	}
	metrics.RecordClassification(string(result.Level))
	return result, nil
}

// BookSentiment builds the per-criterion report for a book. Every criterion
// with a threshold table is reported, undetermined when the book has no
// ratings for it. Rated criteria without a table are reported undetermined.
func (e *Engine) BookSentiment(ctx context.Context, bookID string) (*models.BookSentiment, error) {
	if report, ok := e.reports.Get(bookID); ok {
		metrics.RecordSentimentCache(true)
		return report, nil
	}
	metrics.RecordSentimentCache(false)

	e.reportMu.Lock()
	gen := e.reportGen
	e.reportMu.Unlock()

	counts, err := e.store.RatingCounts(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rating counts for %s: %w", bookID, err)
	}
	criteria, err := e.store.Criteria(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list criteria: %w", err)
	}

	byCriterion := make(map[string]models.CriterionCounts, len(criteria)+len(counts))
	for _, c := range criteria {
		byCriterion[c] = models.CriterionCounts{Criterion: c}
	}
	for _, c := range counts {
		byCriterion[c.Criterion] = c
	}

	names := make([]string, 0, len(byCriterion))
	for name := range byCriterion {
		names = append(names, name)
	}
	sort.Strings(names)

	report := &models.BookSentiment{
		BookID:     bookID,
		Criteria:   make([]models.CriterionSentiment, 0, len(names)),
		ComputedAt: e.now().UTC(),
	}
	for _, name := range names {
		c := byCriterion[name]
		cs, err := e.Classify(ctx, name, c.Score(), c.Total())
		if err != nil {
			return nil, err
		}
		report.Criteria = append(report.Criteria, cs)
	}

	e.reportMu.Lock()
	if e.reportGen == gen {
		e.reports.Add(bookID, report)
	}
	e.reportMu.Unlock()
	return report, nil
}

// Thresholds returns the stored rows for criterion in score order.
func (e *Engine) Thresholds(ctx context.Context, criterion string) ([]models.ThresholdRow, error) {
	return e.store.Thresholds(ctx, criterion)
}

// Criteria lists criteria with threshold tables.
func (e *Engine) Criteria(ctx context.Context) ([]string, error) {
	return e.store.Criteria(ctx)
}

// ReplaceThresholds validates rows as a complete table and swaps it in.
// Invalid tables are rejected with ErrInvalidThresholds and nothing is written.
func (e *Engine) ReplaceThresholds(ctx context.Context, criterion string, rows []models.ThresholdRow) (*Table, error) {
	t, err := NewTable(criterion, rows)
	if err != nil {
		metrics.RecordThresholdReload(err)
		return nil, err
	}
	if err := e.store.ReplaceThresholds(ctx, criterion, t.Rows()); err != nil {
		metrics.RecordThresholdReload(err)
		return nil, err
	}
	metrics.RecordThresholdReload(nil)

	e.mu.Lock()
	e.tables[criterion] = t
	e.tableGen++
	e.mu.Unlock()
	e.clearReports()

	logging.Info().Str("criterion", criterion).Int("rows", len(rows)).Msg("Threshold table replaced")
	return t, nil
}

// Seed validates rows per criterion and writes the tables of criteria that
// have none yet. It returns the seeded criteria.
func (e *Engine) Seed(ctx context.Context, rows []models.ThresholdRow) ([]string, error) {
	for criterion, table := range GroupByCriterion(rows) {
		if _, err := NewTable(criterion, table); err != nil {
			return nil, err
		}
	}
	seeded, err := e.store.SeedThresholds(ctx, rows)
	if err != nil {
		return nil, err
	}
	if len(seeded) > 0 {
		e.InvalidateThresholds("")
		logging.Info().Strs("criteria", seeded).Msg("Seeded threshold tables")
	}
	return seeded, nil
}

// InvalidateBook drops the cached report for a book.
func (e *Engine) InvalidateBook(bookID string) {
	e.reportMu.Lock()
	e.reportGen++
	e.reports.Remove(bookID)
	e.reportMu.Unlock()
}

func (e *Engine) clearReports() {
	e.reportMu.Lock()
	e.reportGen++
	e.reports.Clear()
	e.reportMu.Unlock()
}

// InvalidateThresholds drops the cached table for criterion, or every table
// when criterion is empty, along with all cached reports.
func (e *Engine) InvalidateThresholds(criterion string) {
	e.mu.Lock()
	if criterion == "" {
		e.tables = make(map[string]*Table)
	} else {
		delete(e.tables, criterion)
	}
	e.tableGen++
	e.mu.Unlock()
	e.clearReports()
}
