// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tomtom215/shelfmark/internal/logging"
	"github.com/tomtom215/shelfmark/internal/metrics"
)

// CompactorOptions configures the maintenance schedule.
type CompactorOptions struct {
	// Schedule is a standard cron expression or descriptor such as "@every 1h".
	Schedule string

	// GCDiscardRatio is passed to value-log GC when the backend supports it.
	GCDiscardRatio float64
}

// CompactionResult summarizes one compaction pass.
type CompactionResult struct {
	Quarantined    int           `json:"quarantined"`
	PrunedAttempts int           `json:"pruned_attempts"`
	Pending        map[Kind]int  `json:"pending"`
	Duration       time.Duration `json:"duration"`
	Error          string        `json:"error,omitempty"`
}

// Compactor performs periodic maintenance of the local store: it quarantines
// malformed pending records, drops orphaned retry bookkeeping, refreshes the
// pending gauges and reclaims space in the backend.
type Compactor struct {
	store    *Store
	opts     CompactorOptions
	schedule cron.Schedule

	// Control
	mu      sync.Mutex
	cron    *cron.Cron
	running bool

	// Stats
	lastRun    time.Time
	lastResult CompactionResult
}

// NewCompactor creates a compactor for store.
func NewCompactor(store *Store, opts CompactorOptions) (*Compactor, error) {
	schedule, err := cron.ParseStandard(opts.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid compaction schedule %q: %w", opts.Schedule, err)
	}
	if opts.GCDiscardRatio <= 0 || opts.GCDiscardRatio >= 1 {
		opts.GCDiscardRatio = 0.5
	}
	return &Compactor{store: store, opts: opts, schedule: schedule}, nil
}

// Start schedules compaction. It is a no-op when already running.
func (c *Compactor) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}

	logger := logging.NewCronAdapter("compactor")
	c.cron = cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	c.cron.Schedule(c.schedule, cron.FuncJob(func() {
		c.RunNow(ctx)
	}))
	c.cron.Start()
	c.running = true

	logging.Info().Str("schedule", c.opts.Schedule).Msg("Tracker compactor started")
	return nil
}

// Stop stops scheduling and waits for a running pass to finish.
func (c *Compactor) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	sched := c.cron
	c.running = false
	c.mu.Unlock()

	<-sched.Stop().Done()
	logging.Info().Msg("Tracker compactor stopped")
}

// RunNow performs one compaction pass synchronously.
func (c *Compactor) RunNow(ctx context.Context) CompactionResult {
	start := time.Now()
	result := CompactionResult{
		Quarantined:    c.store.QuarantineMalformed(ctx),
		PrunedAttempts: c.store.PruneAttempts(ctx),
	}

	var gcErr error
	if gc, ok := c.store.Backend().(GarbageCollector); ok {
		gcErr = gc.RunGC(c.opts.GCDiscardRatio)
		if gcErr != nil {
			result.Error = gcErr.Error()
			logging.CtxErr(ctx, gcErr).Msg("Tracker value log GC failed")
		}
	}

	result.Pending = c.store.PendingCounts(ctx)
	for kind, n := range result.Pending {
		metrics.SetTrackerPending(string(kind), n)
	}
	result.Duration = time.Since(start)
	metrics.RecordCompaction(gcErr)

	c.mu.Lock()
	c.lastRun = start
	c.lastResult = result
	c.mu.Unlock()

	logging.Ctx(ctx).Info().
		Int("quarantined", result.Quarantined).
		Int("pruned_attempts", result.PrunedAttempts).
		Int("pending_impressions", result.Pending[KindImpression]).
		Int("pending_click_throughs", result.Pending[KindClickThrough]).
		Dur("duration", result.Duration).
		Msg("Tracker compaction complete")
	return result
}

// LastResult returns the time and outcome of the most recent pass.
func (c *Compactor) LastResult() (time.Time, CompactionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRun, c.lastResult
}

// NextRun returns when the schedule next fires after t.
func (c *Compactor) NextRun(t time.Time) time.Time {
	return c.schedule.Next(t)
}
