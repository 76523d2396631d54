// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package sentiment

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tomtom215/shelfmark/internal/models"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write thresholds file: %v", err)
	}
	return path
}

func TestLoadThresholdsFile(t *testing.T) {
	path := writeFile(t, `
criteria:
  writing:
    - level: negative
      rating_min: -1
      rating_max: -0.3
      required_count: 10
    - level: mixed
      rating_min: -0.3
      rating_max: 0.3
      required_count: 2
    - level: positive
      rating_min: 0.3
      rating_max: 1
      required_count: 10
  enjoyment:
    - level: mixed
      rating_min: -1.0
      rating_max: 1.0
      required_count: 1
`)

	rows, err := LoadThresholdsFile(path)
	if err != nil {
		t.Fatalf("LoadThresholdsFile() error: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(rows))
	}
	// Criteria come out sorted; criterion names are filled from map keys.
	if rows[0].Criterion != "enjoyment" || rows[1].Criterion != "writing" {
		t.Errorf("unexpected criteria order: %+v", rows)
	}
	if rows[3].Level != models.SentimentPositive || rows[3].RequiredCount != 10 || rows[3].RatingMin != 0.3 {
		t.Errorf("unexpected row: %+v", rows[3])
	}
}

func TestLoadThresholdsFileRejectsInvalidTable(t *testing.T) {
	path := writeFile(t, `
criteria:
  enjoyment:
    - level: mixed
      rating_min: -0.5
      rating_max: 1.0
      required_count: 1
`)

	if _, err := LoadThresholdsFile(path); !errors.Is(err, ErrInvalidThresholds) {
		t.Fatalf("expected ErrInvalidThresholds, got %v", err)
	}
}

func TestLoadThresholdsFileEmpty(t *testing.T) {
	path := writeFile(t, "criteria: {}\n")

	if _, err := LoadThresholdsFile(path); !errors.Is(err, ErrInvalidThresholds) {
		t.Fatalf("expected ErrInvalidThresholds, got %v", err)
	}
}

func TestLoadThresholdsFileMissing(t *testing.T) {
	if _, err := LoadThresholdsFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDefaultThresholdsAreValid(t *testing.T) {
	for criterion, rows := range GroupByCriterion(DefaultThresholds()) {
		if _, err := NewTable(criterion, rows); err != nil {
			t.Errorf("default table for %s invalid: %v", criterion, err)
		}
	}
	if got := len(DefaultThresholds("a", "b")); got != 14 {
		t.Errorf("expected 7 rows per criterion, got %d", got)
	}
}
