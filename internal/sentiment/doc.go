// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

// Package sentiment turns per-criterion rating counts into sentiment levels
// gated by minimum sample counts.
//
// # Score
//
// A criterion's normalized score is (positive - negative) / total, where
// total counts neutral ratings too. The score lies in [-1, 1].
//
// # Threshold Tables
//
// Each criterion has a table of rows, one per level on the seven-point scale
// from overwhelmingly_negative to overwhelmingly_positive with mixed at the
// centre. NewTable validates a table before it is used:
//
//   - sorted by range, levels strictly increase
//   - consecutive ranges touch, and together they cover [-1, 1]
//   - a mixed row exists
//   - required counts never decrease moving away from mixed
//
// Stored tables that fail validation are logged and treated as unknown.
//
// # Classification
//
// The row holding the score is the starting point; a score on a shared
// boundary belongs to the row that starts there. From that row the walk
// moves toward mixed and stops at the first row whose required count the
// sample meets:
//
//	table, _ := sentiment.NewTable("enjoyment", sentiment.DefaultThresholds("enjoyment"))
//	table.Classify(0.92, 120) // overwhelmingly_positive
//	table.Classify(0.92, 50)  // very_positive
//	table.Classify(0.92, 0)   // undetermined
//
// Raising the count at a fixed score can only move the level further from
// mixed. A zero count is always undetermined, never mixed.
//
// # Engine
//
// Engine reads counts and tables from the relational store, caches per-book
// reports in an LRU, and drops cached reports when ratings or thresholds
// change. It never writes ratings.
package sentiment
