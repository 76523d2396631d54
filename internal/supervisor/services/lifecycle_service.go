// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package services

import (
	"context"
	"fmt"
)

// StartStopper is a component that starts background work and stops it
// synchronously. *dispatch.Dispatcher and *tracker.Compactor satisfy it.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop()
}

// LifecycleService adapts a StartStopper to suture's Serve pattern: Start,
// wait for cancellation, then Stop. Stop blocks until in-flight work such as
// a running flush or compaction pass has returned.
type LifecycleService struct {
	component StartStopper
	name      string
}

// NewLifecycleService wraps component under name.
func NewLifecycleService(name string, component StartStopper) *LifecycleService {
	return &LifecycleService{component: component, name: name}
}

// NewDispatcherService wraps the sync dispatcher.
func NewDispatcherService(d StartStopper) *LifecycleService {
	return NewLifecycleService("dispatcher", d)
}

// NewCompactorService wraps the tracker store compactor.
func NewCompactorService(c StartStopper) *LifecycleService {
	return NewLifecycleService("compactor", c)
}

// Serve implements suture.Service. A failed Start is returned so suture
// restarts the service with backoff.
func (s *LifecycleService) Serve(ctx context.Context) error {
	if err := s.component.Start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", s.name, err)
	}

	<-ctx.Done()
	s.component.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer.
func (s *LifecycleService) String() string {
	return s.name
}
