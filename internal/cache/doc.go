// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

// Package cache provides a generic, thread-safe LRU cache with per-entry TTL.
//
// The sentiment engine keeps per-book reports in it:
//
//	reports := cache.NewLRU[string, *models.BookSentiment](1024, 10*time.Minute)
//	reports.Add(bookID, report)
//	if r, ok := reports.Get(bookID); ok {
//	    return r
//	}
//
// Expiry is lazy: Get drops an expired entry on access, and CleanupExpired
// sweeps the whole list.
package cache
