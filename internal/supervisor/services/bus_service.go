// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package services

import (
	"context"
	"fmt"

	"github.com/thejerf/suture/v4"
)

// RouterRunner runs a message router until its context ends. *events.Bus
// satisfies it.
type RouterRunner interface {
	Run(ctx context.Context) error
}

// EventBusService runs the watermill router of the event bus under
// supervision. The bus itself (publisher, subscriber, embedded server) is
// closed by its owner after the tree stops.
type EventBusService struct {
	bus  RouterRunner
	name string
}

// NewEventBusService wraps bus.
func NewEventBusService(bus RouterRunner) *EventBusService {
	return &EventBusService{bus: bus, name: "event-bus"}
}

// Serve implements suture.Service.
func (s *EventBusService) Serve(ctx context.Context) error {
	if err := s.bus.Run(ctx); err != nil {
		return fmt.Errorf("event bus router: %w", err)
	}
	if ctx.Err() == nil {
		// A closed router cannot be run again.
		return suture.ErrDoNotRestart
	}
	return ctx.Err()
}

// String implements fmt.Stringer.
func (s *EventBusService) String() string {
	return s.name
}
