// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package main

import (
	"context"
	"fmt"

	"github.com/tomtom215/shelfmark/internal/config"
	"github.com/tomtom215/shelfmark/internal/models"
	"github.com/tomtom215/shelfmark/internal/sentiment"
)

// seeder is the part of the sentiment engine used at startup.
type seeder interface {
	Seed(ctx context.Context, rows []models.ThresholdRow) ([]string, error)
}

// seedRows picks the threshold rows to seed: the configured file when set,
// otherwise the built-in bands when SeedDefaults is on, otherwise none.
func seedRows(cfg *config.SentimentConfig) ([]models.ThresholdRow, error) {
	if cfg.ThresholdsFile != "" {
		rows, err := sentiment.LoadThresholdsFile(cfg.ThresholdsFile)
		if err != nil {
			return nil, err
		}
		return rows, nil
	}
	if cfg.SeedDefaults {
		return sentiment.DefaultThresholds(), nil
	}
	return nil, nil
}

// seedThresholds writes the configured tables for criteria that have none.
// Existing tables are never overwritten.
func seedThresholds(ctx context.Context, s seeder, cfg *config.SentimentConfig) ([]string, error) {
	rows, err := seedRows(cfg)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	seeded, err := s.Seed(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("failed to seed threshold tables: %w", err)
	}
	return seeded, nil
}
