// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package models

import (
	"fmt"
	"time"
)

// SentimentLevel is a qualitative label on the seven-point sentiment scale,
// or SentimentUndetermined when no level can be asserted.
type SentimentLevel string

const (
	SentimentOverwhelminglyNegative SentimentLevel = "overwhelmingly_negative"
	SentimentVeryNegative           SentimentLevel = "very_negative"
	SentimentNegative               SentimentLevel = "negative"
	SentimentMixed                  SentimentLevel = "mixed"
	SentimentPositive               SentimentLevel = "positive"
	SentimentVeryPositive           SentimentLevel = "very_positive"
	SentimentOverwhelminglyPositive SentimentLevel = "overwhelmingly_positive"

	// SentimentUndetermined means zero data or no usable thresholds. It is
	// distinct from SentimentMixed, which means balanced data.
	SentimentUndetermined SentimentLevel = "undetermined"
)

var sentimentRanks = map[SentimentLevel]int{
	SentimentOverwhelminglyNegative: -3,
	SentimentVeryNegative:           -2,
	SentimentNegative:               -1,
	SentimentMixed:                  0,
	SentimentPositive:               1,
	SentimentVeryPositive:           2,
	SentimentOverwhelminglyPositive: 3,
}

// SentimentLevels lists the scale from most negative to most positive.
var SentimentLevels = []SentimentLevel{
	SentimentOverwhelminglyNegative,
	SentimentVeryNegative,
	SentimentNegative,
	SentimentMixed,
	SentimentPositive,
	SentimentVeryPositive,
	SentimentOverwhelminglyPositive,
}

// Rank returns the signed position of the level on the scale (mixed is 0).
// ok is false for SentimentUndetermined and unknown labels.
func (l SentimentLevel) Rank() (rank int, ok bool) {
	rank, ok = sentimentRanks[l]
	return rank, ok
}

// Extremity is the distance from mixed, or -1 when the level has no rank.
func (l SentimentLevel) Extremity() int {
	r, ok := l.Rank()
	if !ok {
		return -1
	}
	if r < 0 {
		return -r
	}
	return r
}

// Valid reports whether l is one of the seven scale levels.
func (l SentimentLevel) Valid() bool {
	_, ok := sentimentRanks[l]
	return ok
}

// ParseSentimentLevel validates a level label from storage or configuration.
func ParseSentimentLevel(s string) (SentimentLevel, error) {
	l := SentimentLevel(s)
	if !l.Valid() {
		return "", fmt.Errorf("unknown sentiment level %q", s)
	}
	return l, nil
}

// ThresholdRow is one band of a criterion's threshold table: scores within
// [RatingMin, RatingMax] may be labeled Level once at least RequiredCount
// ratings exist.
type ThresholdRow struct {
	Criterion     string         `json:"criterion" koanf:"criterion" validate:"required,criterion"`
	Level         SentimentLevel `json:"level" koanf:"level" validate:"required,sentimentlevel"`
	RatingMin     float64        `json:"rating_min" koanf:"rating_min"`
	RatingMax     float64        `json:"rating_max" koanf:"rating_max"`
	RequiredCount int            `json:"required_count" koanf:"required_count" validate:"gte=0"`
}

// CriterionCounts holds the rating tallies for one criterion of one book.
type CriterionCounts struct {
	Criterion string `json:"criterion"`
	Positive  int    `json:"positive"`
	Neutral   int    `json:"neutral"`
	Negative  int    `json:"negative"`
}

// Total is the number of ratings contributing to the score.
func (c CriterionCounts) Total() int {
	return c.Positive + c.Neutral + c.Negative
}

// Score is the net signed sentiment in [-1, 1]; zero when there are no ratings.
func (c CriterionCounts) Score() float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	return float64(c.Positive-c.Negative) / float64(total)
}

// CriterionSentiment is the classification of one criterion.
type CriterionSentiment struct {
	Criterion string         `json:"criterion"`
	Level     SentimentLevel `json:"level"`
	Score     float64        `json:"score"`
	Count     int            `json:"count"`
}

// BookSentiment is the per-criterion sentiment report for a book.
type BookSentiment struct {
	BookID     string               `json:"book_id"`
	Criteria   []CriterionSentiment `json:"criteria"`
	ComputedAt time.Time            `json:"computed_at"`
}

// ClassifyRequest asks for a stateless classification of a score.
type ClassifyRequest struct {
	Criterion string   `json:"criterion" validate:"required,criterion"`
	Score     *float64 `json:"score" validate:"required,gte=-1,lte=1"`
	Count     int      `json:"count" validate:"gte=0"`
}

// ThresholdTableRequest replaces the threshold table of a criterion.
type ThresholdTableRequest struct {
	Rows []ThresholdRow `json:"rows" validate:"required,min=1,dive"`
}
