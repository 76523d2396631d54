// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package sentiment

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/tomtom215/shelfmark/internal/models"
	"github.com/tomtom215/shelfmark/internal/validation"
)

// ErrInvalidThresholds marks a threshold table that violates the ordering,
// coverage or required-count rules.
var ErrInvalidThresholds = errors.New("invalid threshold table")

// boundaryTolerance absorbs float noise when checking that ranges touch.
const boundaryTolerance = 1e-9

// Table is a validated threshold table for one criterion. Rows are sorted
// by score range, from most negative to most positive.
type Table struct {
	criterion string
	rows      []models.ThresholdRow
	mixed     int
}

// NewTable sorts and validates rows. The input slice is not modified.
func NewTable(criterion string, rows []models.ThresholdRow) (*Table, error) {
	if !validation.ValidCriterion(criterion) {
		return nil, fmt.Errorf("%w: bad criterion name %q", ErrInvalidThresholds, criterion)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s has no rows", ErrInvalidThresholds, criterion)
	}

	sorted := make([]models.ThresholdRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].RatingMin != sorted[j].RatingMin {
			return sorted[i].RatingMin < sorted[j].RatingMin
		}
		return sorted[i].RatingMax < sorted[j].RatingMax
	})

	t := &Table{criterion: criterion, rows: sorted, mixed: -1}
	if err := t.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidThresholds, criterion, err)
	}
	return t, nil
}

func (t *Table) validate() error {
	prevRank := math.MinInt
	for i, row := range t.rows {
		if row.Criterion != t.criterion {
			return fmt.Errorf("row %d belongs to %q", i, row.Criterion)
		}
		rank, ok := row.Level.Rank()
		if !ok {
			return fmt.Errorf("row %d has unknown level %q", i, row.Level)
		}
		if rank <= prevRank {
			return fmt.Errorf("level %s is out of order or repeated", row.Level)
		}
		prevRank = rank
		if math.IsNaN(row.RatingMin) || math.IsNaN(row.RatingMax) || row.RatingMin > row.RatingMax {
			return fmt.Errorf("level %s has range [%v, %v]", row.Level, row.RatingMin, row.RatingMax)
		}
		if row.RequiredCount < 0 {
			return fmt.Errorf("level %s has negative required count", row.Level)
		}
		if row.Level == models.SentimentMixed {
			t.mixed = i
		}
		if i > 0 {
			prev := t.rows[i-1]
			if math.Abs(prev.RatingMax-row.RatingMin) > boundaryTolerance {
				return fmt.Errorf("gap or overlap between %s (max %v) and %s (min %v)",
					prev.Level, prev.RatingMax, row.Level, row.RatingMin)
			}
		}
	}

	if t.mixed < 0 {
		return errors.New("no mixed row")
	}
	if t.rows[0].RatingMin > -1+boundaryTolerance {
		return fmt.Errorf("lowest range starts at %v, above -1", t.rows[0].RatingMin)
	}
	if last := t.rows[len(t.rows)-1]; last.RatingMax < 1-boundaryTolerance {
		return fmt.Errorf("highest range ends at %v, below 1", last.RatingMax)
	}

	for i := t.mixed + 1; i < len(t.rows); i++ {
		if t.rows[i].RequiredCount < t.rows[i-1].RequiredCount {
			return fmt.Errorf("required count decreases from %s to %s", t.rows[i-1].Level, t.rows[i].Level)
		}
	}
	for i := t.mixed - 1; i >= 0; i-- {
		if t.rows[i].RequiredCount < t.rows[i+1].RequiredCount {
			return fmt.Errorf("required count decreases from %s to %s", t.rows[i+1].Level, t.rows[i].Level)
		}
	}
	return nil
}

// Criterion returns the criterion the table belongs to.
func (t *Table) Criterion() string {
	return t.criterion
}

// Rows returns a copy of the sorted rows.
func (t *Table) Rows() []models.ThresholdRow {
	out := make([]models.ThresholdRow, len(t.rows))
	copy(out, t.rows)
	return out
}

// Classify maps a normalized score and its rating count to a level.
//
// The home row is the row whose range holds the score; on a shared boundary
// the row starting at the score wins. Scores beyond the table are clamped to
// the outermost rows. From the home row the walk moves toward mixed and stops
// at the first row whose required count is met. A count of zero, or a count
// too small even for mixed, is undetermined.
func (t *Table) Classify(score float64, count int) models.SentimentLevel {
	if count <= 0 || math.IsNaN(score) {
		return models.SentimentUndetermined
	}

	home := t.home(score)
	step := 1
	if home > t.mixed {
		step = -1
	}
	for i := home; ; i += step {
		if t.rows[i].RequiredCount <= count {
			return t.rows[i].Level
		}
		if i == t.mixed {
			return models.SentimentUndetermined
		}
	}
}

// ClassifyCounts scores counts and classifies them.
func (t *Table) ClassifyCounts(counts models.CriterionCounts) models.CriterionSentiment {
	total := counts.Total()
	return models.CriterionSentiment{
		Criterion: t.criterion,
		Level:     t.Classify(counts.Score(), total),
		Score:     counts.Score(),
		Count:     total,
	}
}

// home returns the index of the last row whose RatingMin is at or below score.
func (t *Table) home(score float64) int {
	i := sort.Search(len(t.rows), func(i int) bool {
		return t.rows[i].RatingMin > score
	})
	if i == 0 {
		return 0
	}
	return i - 1
}
