// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package sentiment

import "github.com/tomtom215/shelfmark/internal/models"

// DefaultCriteria are seeded when no thresholds file is configured.
var DefaultCriteria = []string{"enjoyment", "writing", "characters", "pacing"}

// defaultBands lists the built-in ranges from most negative to most positive.
var defaultBands = []struct {
	level         models.SentimentLevel
	min, max      float64
	requiredCount int
}{
	{models.SentimentOverwhelminglyNegative, -1.0, -0.9, 100},
	{models.SentimentVeryNegative, -0.9, -0.5, 30},
	{models.SentimentNegative, -0.5, -0.2, 5},
	{models.SentimentMixed, -0.2, 0.2, 1},
	{models.SentimentPositive, 0.2, 0.5, 5},
	{models.SentimentVeryPositive, 0.5, 0.9, 30},
	{models.SentimentOverwhelminglyPositive, 0.9, 1.0, 100},
}

// DefaultThresholds returns the built-in table for each criterion, or for
// DefaultCriteria when none are given.
func DefaultThresholds(criteria ...string) []models.ThresholdRow {
	if len(criteria) == 0 {
		criteria = DefaultCriteria
	}
	rows := make([]models.ThresholdRow, 0, len(criteria)*len(defaultBands))
	for _, c := range criteria {
		for _, b := range defaultBands {
			rows = append(rows, models.ThresholdRow{
				Criterion:     c,
				Level:         b.level,
				RatingMin:     b.min,
				RatingMax:     b.max,
				RequiredCount: b.requiredCount,
			})
		}
	}
	return rows
}

// GroupByCriterion splits rows into per-criterion slices.
func GroupByCriterion(rows []models.ThresholdRow) map[string][]models.ThresholdRow {
	out := make(map[string][]models.ThresholdRow)
	for _, row := range rows {
		out[row.Criterion] = append(out[row.Criterion], row)
	}
	return out
}
