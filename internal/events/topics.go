// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package events

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
)

// Topics published on the bus.
const (
	TopicRatingsRecorded    = "ratings.recorded"
	TopicThresholdsUpdated  = "thresholds.updated"
	TopicEngagementIngested = "engagement.ingested"
)

// Topics lists every topic; the JetStream stream is provisioned with these subjects.
var Topics = []string{TopicRatingsRecorded, TopicThresholdsUpdated, TopicEngagementIngested}

// RatingRecorded is published after a rating row is stored.
type RatingRecorded struct {
	RatingID   string    `json:"rating_id"`
	BookID     string    `json:"book_id"`
	Criterion  string    `json:"criterion"`
	Value      int       `json:"value"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ThresholdsUpdated is published after a criterion's threshold table is
// replaced. An empty Criterion means every table may have changed.
type ThresholdsUpdated struct {
	Criterion string    `json:"criterion"`
	Rows      int       `json:"rows"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EngagementIngested is published for every accepted impression or
// click-through, duplicates included.
type EngagementIngested struct {
	BookID    string `json:"book_id"`
	Kind      string `json:"kind"`
	EventKey  string `json:"event_key"`
	Duplicate bool   `json:"duplicate"`
}

// Decode unmarshals a message payload into v.
func Decode(msg *message.Message, v any) error {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("decode message %s: %w", msg.UUID, err)
	}
	return nil
}
