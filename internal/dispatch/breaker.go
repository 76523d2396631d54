// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package dispatch

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/shelfmark/internal/logging"
	"github.com/tomtom215/shelfmark/internal/metrics"
	"github.com/tomtom215/shelfmark/internal/models"
)

// BreakerSettings configures the circuit breaker around an Ingestor.
type BreakerSettings struct {
	// MinRequests is the number of requests in a window before the failure ratio is considered.
	MinRequests uint32
	// FailRatio opens the circuit once reached.
	FailRatio float64
	// Timeout is how long the circuit stays open before a half-open probe.
	Timeout time.Duration
}

// CircuitBreakerIngestor wraps an Ingestor with the circuit breaker pattern.
// While the circuit is open submissions fail immediately and the records
// stay queued for a later flush.
type CircuitBreakerIngestor struct {
	next Ingestor
	cb   *gobreaker.CircuitBreaker[struct{}]
}

// NewCircuitBreakerIngestor wraps next.
func NewCircuitBreakerIngestor(next Ingestor, s BreakerSettings) *CircuitBreakerIngestor {
	if s.MinRequests == 0 {
		s.MinRequests = 10
	}
	if s.FailRatio <= 0 {
		s.FailRatio = 0.6
	}

	metrics.DispatchBreakerState.Set(0)

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "ingestion-api",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     s.Timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= s.FailRatio
			if shouldTrip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.RecordBreakerTransition(from.String(), to.String(), stateToInt(to))
		},
	})

	return &CircuitBreakerIngestor{next: next, cb: cb}
}

// SubmitImpression submits through the breaker.
func (c *CircuitBreakerIngestor) SubmitImpression(ctx context.Context, bookID string, sub models.ImpressionSubmission, idempotencyKey string) error {
	return c.execute(func() error {
		return c.next.SubmitImpression(ctx, bookID, sub, idempotencyKey)
	})
}

// SubmitClickThrough submits through the breaker.
func (c *CircuitBreakerIngestor) SubmitClickThrough(ctx context.Context, bookID string, sub models.ClickThroughSubmission, idempotencyKey string) error {
	return c.execute(func() error {
		return c.next.SubmitClickThrough(ctx, bookID, sub, idempotencyKey)
	})
}

// State returns the current breaker state.
func (c *CircuitBreakerIngestor) State() gobreaker.State {
	return c.cb.State()
}

func (c *CircuitBreakerIngestor) execute(fn func() error) error {
	_, err := c.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// IsBreakerRejection reports whether err came from an open or saturated breaker
// rather than from the endpoint.
func IsBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// stateToInt converts circuit breaker state to its gauge value
func stateToInt(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
