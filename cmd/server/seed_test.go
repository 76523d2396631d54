// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tomtom215/shelfmark/internal/config"
	"github.com/tomtom215/shelfmark/internal/models"
	"github.com/tomtom215/shelfmark/internal/sentiment"
)

type recordingSeeder struct {
	rows []models.ThresholdRow
	err  error
}

func (s *recordingSeeder) Seed(_ context.Context, rows []models.ThresholdRow) ([]string, error) {
	s.rows = rows
	if s.err != nil {
		return nil, s.err
	}
	return []string{"seeded"}, nil
}

func TestSeedThresholdsDefaults(t *testing.T) {
	s := &recordingSeeder{}
	seeded, err := seedThresholds(context.Background(), s, &config.SentimentConfig{SeedDefaults: true})
	if err != nil {
		t.Fatalf("seedThresholds() error: %v", err)
	}
	if len(seeded) != 1 {
		t.Errorf("seeded = %v", seeded)
	}
	if want := len(sentiment.DefaultThresholds()); len(s.rows) != want {
		t.Errorf("seeded %d rows, want %d", len(s.rows), want)
	}
}

func TestSeedThresholdsDisabled(t *testing.T) {
	s := &recordingSeeder{}
	seeded, err := seedThresholds(context.Background(), s, &config.SentimentConfig{})
	if err != nil || seeded != nil {
		t.Fatalf("seedThresholds() = %v, %v; want nil, nil", seeded, err)
	}
	if s.rows != nil {
		t.Error("Seed should not be called when seeding is disabled")
	}
}

func TestSeedThresholdsFileWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	content := `
criteria:
  pacing:
    - level: mixed
      rating_min: -1
      rating_max: 1
      required_count: 3
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write thresholds file: %v", err)
	}

	s := &recordingSeeder{}
	if _, err := seedThresholds(context.Background(), s, &config.SentimentConfig{ThresholdsFile: path, SeedDefaults: true}); err != nil {
		t.Fatalf("seedThresholds() error: %v", err)
	}
	if len(s.rows) != 1 || s.rows[0].Criterion != "pacing" || s.rows[0].RequiredCount != 3 {
		t.Errorf("rows = %+v", s.rows)
	}
}

func TestSeedThresholdsErrors(t *testing.T) {
	missing := &config.SentimentConfig{ThresholdsFile: filepath.Join(t.TempDir(), "missing.yaml")}
	if _, err := seedThresholds(context.Background(), &recordingSeeder{}, missing); err == nil {
		t.Error("expected error for missing thresholds file")
	}

	boom := errors.New("boom")
	_, err := seedThresholds(context.Background(), &recordingSeeder{err: boom}, &config.SentimentConfig{SeedDefaults: true})
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped seed error, got %v", err)
	}
}
