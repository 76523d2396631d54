// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

/*
Package tracker implements the local event store for engagement records.

Impressions and click-throughs are appended to two fixed keys in a durable
key-value backend (BadgerDB in production), each holding a JSON array of
pending records. Records stay there until the dispatcher reports that the
ingestion endpoint accepted them.

# Deduplication

Impressions coalesce on (entityId, sourceComponent, pageContext,
impressionType) while pending: the first record is kept and later duplicates
are dropped. Detail-expand impressions never coalesce. Click-throughs are
never deduplicated and every click-through append signals the registered
FlushTrigger.

# Failure Model

Queue operations never return errors. A backend failure is logged and counted
in shelfmark_tracker_store_errors_total; reads degrade to empty results.
Elements that fail to decode are skipped on read and left in place, and the
Compactor later moves them to the dead-letter list.

# Keys

	pending:impressions                 JSON array of models.Impression
	pending:click_throughs              JSON array of models.ClickThrough
	attempt:<kind>:<fingerprint>        Attempt (retry bookkeeping)
	deadletter:<kind>:<unixnano>:<id>   DeadLetter, optionally with a TTL
*/
package tracker
