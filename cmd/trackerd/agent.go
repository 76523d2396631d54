// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package main

import (
	"fmt"

	"github.com/tomtom215/shelfmark/internal/config"
	"github.com/tomtom215/shelfmark/internal/dispatch"
	"github.com/tomtom215/shelfmark/internal/tracker"
)

// agent holds the tracker components started by the supervisor tree.
type agent struct {
	store      *tracker.Store
	dispatcher *dispatch.Dispatcher
	compactor  *tracker.Compactor
}

// newIngestor builds the ingestion client, wrapped in a circuit breaker
// unless disabled.
func newIngestor(cfg *config.DispatchConfig) dispatch.Ingestor {
	client := dispatch.NewHTTPClient(cfg.Endpoint, nil)
	if !cfg.BreakerEnabled {
		return client
	}
	return dispatch.NewCircuitBreakerIngestor(client, dispatch.BreakerSettings{
		MinRequests: cfg.BreakerMinRequests,
		FailRatio:   cfg.BreakerFailRatio,
		Timeout:     cfg.BreakerTimeout,
	})
}

// newAgent opens the local store and wires the dispatcher and compactor to it.
// The caller owns store.Close.
func newAgent(cfg *config.Config) (*agent, error) {
	backend, err := tracker.OpenBadger(tracker.BadgerOptions{
		Path:       cfg.Tracker.Path,
		InMemory:   cfg.Tracker.InMemory,
		SyncWrites: cfg.Tracker.SyncWrites,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open tracker store: %w", err)
	}
	store := tracker.NewStore(backend, tracker.Options{DeadLetterTTL: cfg.Tracker.DeadLetterTTL})

	compactor, err := tracker.NewCompactor(store, tracker.CompactorOptions{
		Schedule:       cfg.Tracker.CompactSchedule,
		GCDiscardRatio: cfg.Tracker.GCDiscardRatio,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	dispatcher := dispatch.New(store, newIngestor(&cfg.Dispatch), dispatch.Options{
		Interval:      cfg.Dispatch.Interval,
		SubmitTimeout: cfg.Dispatch.SubmitTimeout,
		MaxAttempts:   cfg.Dispatch.MaxAttempts,
		RetryBackoff:  cfg.Dispatch.RetryBackoff,
		MaxBackoff:    cfg.Dispatch.MaxBackoff,
		RateLimit:     cfg.Dispatch.RateLimit,
		RateBurst:     cfg.Dispatch.RateBurst,
	})

	return &agent{store: store, dispatcher: dispatcher, compactor: compactor}, nil
}
