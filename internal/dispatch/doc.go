// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

/*
Package dispatch delivers pending engagement records from the local tracker
store to the ingestion API.

A Dispatcher flushes on a fixed interval (5 minutes by default), once at
start-up, and whenever the store signals a click-through. A flush reads both
queues, submits every record individually with its own deadline, and removes
exactly the records the endpoint accepted. A failure is logged, counted
against the record's attempt history and never stops the rest of the batch.

Retries back off exponentially per record (RetryBackoff doubling up to
MaxBackoff). After MaxAttempts failures a record is moved to the tracker's
dead-letter list. Submissions rejected by an open circuit breaker are not
counted as attempts.

Every submission carries the record fingerprint in the X-Idempotency-Key
header so duplicate deliveries are absorbed by the server.
*/
package dispatch
