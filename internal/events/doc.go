// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

// Package events carries Shelfmark's domain notifications over a watermill
// bus.
//
// Two transports are supported:
//
//   - memory: a watermill GoChannel inside the process (default)
//   - nats: NATS JetStream through watermill-nats, against an external server
//     or an embedded nats-server started by the bus itself
//
// With NATS every topic lives in the SHELFMARK_EVENTS stream, and each
// handler gets its own durable consumer. Durable names carry an instance ID
// (the hostname unless configured), so every server replica consumes every
// invalidation rather than sharing one queue with its peers.
//
// # Topics
//
//   - ratings.recorded: a rating row was stored (RatingRecorded)
//   - thresholds.updated: a criterion's threshold table changed (ThresholdsUpdated)
//   - engagement.ingested: an impression or click-through was accepted (EngagementIngested)
//
// # Handlers
//
// Handlers run behind watermill's CorrelationID, Recoverer and Retry
// middleware. The correlation ID of the publishing request is restored into
// the handler's context so logs line up:
//
//	bus.AddHandler("cache", events.TopicRatingsRecorded, func(ctx context.Context, msg *message.Message) error {
//	    var ev events.RatingRecorded
//	    if err := events.Decode(msg, &ev); err != nil {
//	        return nil // never decodes; drop
//	    }
//	    engine.InvalidateBook(ev.BookID)
//	    return nil
//	})
package events
