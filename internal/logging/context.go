// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey int

const (
	correlationIDKey contextKey = iota
	requestIDKey
)

// Log field names for the IDs carried in a context.
const (
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"
)

// GenerateRequestID returns a full UUID, unique across replicas.
func GenerateRequestID() string {
	return uuid.NewString()
}

// ContextWithCorrelationID tags ctx with the ID shared by every log line and
// event produced for one unit of work: an HTTP request, a flush cycle, or a
// consumed bus message.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// ContextWithNewCorrelationID tags ctx with a fresh short correlation ID.
func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return ContextWithCorrelationID(ctx, uuid.NewString()[:8])
}

func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Ctx returns the global logger with the context's correlation and request
// IDs attached.
//
//	logging.Ctx(ctx).Warn().Str("kind", "impression").Msg("Rejected record")
func Ctx(ctx context.Context) *zerolog.Logger {
	l := withIDs(ctx, Logger().With()).Logger()
	return &l
}

// CtxErr starts an error level message carrying the context IDs and err.
func CtxErr(ctx context.Context, err error) *zerolog.Event {
	return Ctx(ctx).Err(err)
}

func withIDs(ctx context.Context, c zerolog.Context) zerolog.Context {
	if id := CorrelationIDFromContext(ctx); id != "" {
		c = c.Str(FieldCorrelationID, id)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		c = c.Str(FieldRequestID, id)
	}
	return c
}

// WithComponent returns a child of the global logger tagged with component.
func WithComponent(component string) zerolog.Logger {
	return With().Str("component", component).Logger()
}
