// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

/*
Package api implements the HTTP surfaces of Shelfmark.

The server router (NewServerRouter) accepts engagement events and ratings,
reports per-book sentiment and engagement, and administers threshold tables.
Ingestion is idempotent by X-Idempotency-Key: a new key answers 201, a
replayed key answers 200 and stores nothing.

The capture router (NewCaptureRouter) runs inside the tracker agent on a
loopback address. It appends to the local event store and exposes the
pending queues, manual flushes and the dead-letter list.

Every response uses the models.APIResponse envelope.
*/
package api
