// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

/*
Package models defines the data structures shared by the Shelfmark tracker agent
and server.

Key Components:

  - Impression, ClickThrough: engagement records queued locally by the tracker
  - EventMetadata: typed metadata with a string-keyed extension map
  - ImpressionSubmission, ClickThroughSubmission: ingestion wire payloads
  - ThresholdRow, SentimentLevel: count-gated sentiment threshold tables
  - CriterionCounts, BookSentiment: aggregation inputs and outputs
  - APIResponse: standardized API response wrapper

Weighting:

Impression weight is derived from ImpressionType at submission time and is never
stored with the record, so the weighting policy can change without rewriting the
local queue.

	view           1.0
	detail-expand  0.25
	card-click     0.5
	referral-click 1.0
*/
package models
