// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

// Package validation provides struct validation using go-playground/validator v10.
//
// # Overview
//
// The package provides:
//   - Thread-safe singleton validator (initialized once, cached struct info)
//   - Custom tags: impressiontype, sentimentlevel, criterion
//   - Error translation to human-readable messages keyed by JSON field name
//   - APIError conversion matching the application's error format
//
// # Where It Is Used
//
// The ingestion API validates submission bodies before touching DuckDB, the
// threshold administration API validates every row of a table before the
// invariants check, and the tracker's local store validates records read back
// from Badger so malformed entries are skipped instead of submitted.
//
// # Quick Start
//
//	var req models.RatingSubmission
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
//	    return
//	}
//
// # Thread Safety
//
// GetValidator and ValidateStruct are safe for concurrent use.
package validation
