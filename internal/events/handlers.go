// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/shelfmark/internal/logging"
)

// Invalidator drops cached sentiment state. *sentiment.Engine implements it.
type Invalidator interface {
	InvalidateBook(bookID string)
	InvalidateThresholds(criterion string)
}

// RegisterInvalidation subscribes inv to rating and threshold events so
// cached reports never outlive the data they were computed from.
func RegisterInvalidation(b *Bus, inv Invalidator) {
	b.AddHandler("sentiment-ratings-invalidation", TopicRatingsRecorded, func(ctx context.Context, msg *message.Message) error {
		var ev RatingRecorded
		if err := Decode(msg, &ev); err != nil {
			// A payload that cannot be decoded will never decode; drop it.
			logging.Ctx(ctx).Warn().Err(err).Msg("Dropping undecodable rating event")
			return nil
		}
		inv.InvalidateBook(ev.BookID)
		return nil
	})

	b.AddHandler("sentiment-thresholds-invalidation", TopicThresholdsUpdated, func(ctx context.Context, msg *message.Message) error {
		var ev ThresholdsUpdated
		if err := Decode(msg, &ev); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Dropping undecodable thresholds event, invalidating all tables")
			ev.Criterion = ""
		}
		inv.InvalidateThresholds(ev.Criterion)
		logging.Ctx(ctx).Debug().Str("criterion", ev.Criterion).Msg("Threshold cache invalidated")
		return nil
	})
}

// RegisterEngagementLog logs ingested engagement events at debug level.
func RegisterEngagementLog(b *Bus) {
	b.AddHandler("engagement-log", TopicEngagementIngested, func(ctx context.Context, msg *message.Message) error {
		var ev EngagementIngested
		if err := Decode(msg, &ev); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Dropping undecodable engagement event")
			return nil
		}
		logging.Ctx(ctx).Debug().
			Str("book_id", ev.BookID).
			Str("kind", ev.Kind).
			Str("event_key", ev.EventKey).
			Bool("duplicate", ev.Duplicate).
			Msg("Engagement ingested")
		return nil
	})
}
