// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package sentiment

import (
	"fmt"
	"sort"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/shelfmark/internal/models"
)

// thresholdsFile is the YAML layout of a thresholds file:
//
//	criteria:
//	  enjoyment:
//	    - level: overwhelmingly_positive
//	      rating_min: 0.9
//	      rating_max: 1.0
//	      required_count: 100
//	    - ...
type thresholdsFile struct {
	Criteria map[string][]models.ThresholdRow `koanf:"criteria"`
}

// LoadThresholdsFile reads a YAML thresholds file and validates every table
// in it. The criterion of each row comes from its map key.
func LoadThresholdsFile(path string) ([]models.ThresholdRow, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load thresholds file %s: %w", path, err)
	}

	var parsed thresholdsFile
	if err := k.Unmarshal("", &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse thresholds file %s: %w", path, err)
	}
	if len(parsed.Criteria) == 0 {
		return nil, fmt.Errorf("%w: %s defines no criteria", ErrInvalidThresholds, path)
	}

	criteria := make([]string, 0, len(parsed.Criteria))
	for c := range parsed.Criteria {
		criteria = append(criteria, c)
	}
	sort.Strings(criteria)

	var rows []models.ThresholdRow
	for _, c := range criteria {
		table := parsed.Criteria[c]
		for i := range table {
			table[i].Criterion = c
		}
		if _, err := NewTable(c, table); err != nil {
			return nil, err
		}
		rows = append(rows, table...)
	}
	return rows, nil
}
