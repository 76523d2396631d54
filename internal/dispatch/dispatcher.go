// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package dispatch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/shelfmark/internal/logging"
	"github.com/tomtom215/shelfmark/internal/metrics"
	"github.com/tomtom215/shelfmark/internal/models"
	"github.com/tomtom215/shelfmark/internal/tracker"
)

// Flush triggers, used as metric labels.
const (
	TriggerStartup      = "startup"
	TriggerInterval     = "interval"
	TriggerClickThrough = "click_through"
	TriggerManual       = "manual"
)

// Options configures a Dispatcher.
type Options struct {
	// Interval between periodic flushes. Defaults to 5 minutes.
	Interval time.Duration

	// SubmitTimeout bounds each per-record submission. Defaults to 5 seconds.
	SubmitTimeout time.Duration

	// MaxAttempts moves a record to the dead-letter list after this many
	// failed submissions. Zero retries forever.
	MaxAttempts int

	// RetryBackoff is the delay after the first failure; it doubles per
	// further failure up to MaxBackoff. Zero retries on every flush.
	RetryBackoff time.Duration
	MaxBackoff   time.Duration

	// RateLimit paces submissions in records per second. Zero disables pacing.
	RateLimit float64
	RateBurst int

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// QueueResult counts what a flush did with one queue.
type QueueResult struct {
	Pending      int `json:"pending"`
	Confirmed    int `json:"confirmed"`
	Failed       int `json:"failed"`
	Deferred     int `json:"deferred"`
	DeadLettered int `json:"dead_lettered"`
}

// FlushResult summarizes one flush.
type FlushResult struct {
	Trigger       string        `json:"trigger"`
	Impressions   QueueResult   `json:"impressions"`
	ClickThroughs QueueResult   `json:"click_throughs"`
	Duration      time.Duration `json:"duration"`
}

// Dispatcher moves pending records from the local store to the ingestion
// endpoint. It flushes on a fixed interval and whenever it is triggered,
// which the store does after every click-through append.
//
// Each record is submitted on its own; a failed submission leaves that
// record pending and the flush moves on. Only confirmed records are removed,
// matched by full equality, so overlapping flushes (the loop and a manual
// Flush) can at worst submit a record twice. The endpoint deduplicates on
// the idempotency key.
type Dispatcher struct {
	store    *tracker.Store
	ingestor Ingestor
	opts     Options
	limiter  *rate.Limiter

	trigger chan struct{}

	// Control
	mu       sync.Mutex
	cancel   context.CancelFunc
	stopDone chan struct{}
	running  bool

	// Stats
	statsMu   sync.Mutex
	lastFlush time.Time
	lastStats FlushResult
}

// New creates a dispatcher and registers it as the store's flush trigger.
func New(store *tracker.Store, ingestor Ingestor, opts Options) *Dispatcher {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = 5 * time.Second
	}
	if opts.MaxBackoff < opts.RetryBackoff {
		opts.MaxBackoff = opts.RetryBackoff
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	d := &Dispatcher{
		store:    store,
		ingestor: ingestor,
		opts:     opts,
		trigger:  make(chan struct{}, 1),
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	store.SetFlushTrigger(d)
	return d
}

// Trigger requests an immediate flush without blocking. Requests made while
// one is already outstanding are merged.
func (d *Dispatcher) Trigger() {
	select {
	case d.trigger <- struct{}{}:
	default:
	}
}

// Start launches the flush loop. The loop flushes once immediately so
// records left by a previous session are delivered.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.stopDone = make(chan struct{})
	d.running = true

	go d.run(loopCtx, d.stopDone)

	logging.Info().
		Dur("interval", d.opts.Interval).
		Dur("submit_timeout", d.opts.SubmitTimeout).
		Int("max_attempts", d.opts.MaxAttempts).
		Msg("Dispatcher started")
	return nil
}

// Stop cancels the loop and waits for an in-flight flush to return.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.cancel()
	done := d.stopDone
	d.running = false
	d.mu.Unlock()

	<-done
	logging.Info().Msg("Dispatcher stopped")
}

func (d *Dispatcher) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	d.flush(ctx, TriggerStartup)

	ticker := time.NewTicker(d.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.flush(ctx, TriggerInterval)
		case <-d.trigger:
			d.flush(ctx, TriggerClickThrough)
		}
	}
}

// Flush runs one flush synchronously.
func (d *Dispatcher) Flush(ctx context.Context) FlushResult {
	return d.flush(ctx, TriggerManual)
}

// LastFlush returns the time and result of the most recent flush that had work.
func (d *Dispatcher) LastFlush() (time.Time, FlushResult) {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	return d.lastFlush, d.lastStats
}

func (d *Dispatcher) flush(ctx context.Context, trigger string) FlushResult {
	start := time.Now()
	result := FlushResult{Trigger: trigger}

	impressions := d.store.Impressions(ctx)
	clickThroughs := d.store.ClickThroughs(ctx)
	if len(impressions) == 0 && len(clickThroughs) == 0 {
		return result
	}

	ctx = logging.ContextWithNewCorrelationID(ctx)

	var confirmedImpressions []models.Impression
	confirmedImpressions, result.Impressions = flushQueue(ctx, d, tracker.KindImpression, impressions,
		func(ctx context.Context, imp models.Impression, key string) error {
			return d.ingestor.SubmitImpression(ctx, imp.EntityID, imp.Submission(), key)
		},
		func(imp models.Impression, err error) bool {
			return d.store.DeadLetterImpression(ctx, imp, tracker.ReasonMaxAttempts, err)
		})
	d.store.RemoveImpressions(context.WithoutCancel(ctx), confirmedImpressions)

	var confirmedClicks []models.ClickThrough
	confirmedClicks, result.ClickThroughs = flushQueue(ctx, d, tracker.KindClickThrough, clickThroughs,
		func(ctx context.Context, click models.ClickThrough, key string) error {
			return d.ingestor.SubmitClickThrough(ctx, click.EntityID, click.Submission(), key)
		},
		func(click models.ClickThrough, err error) bool {
			return d.store.DeadLetterClickThrough(ctx, click, tracker.ReasonMaxAttempts, err)
		})
	d.store.RemoveClickThroughs(context.WithoutCancel(ctx), confirmedClicks)

	result.Duration = time.Since(start)
	metrics.RecordFlush(trigger, result.Duration)

	d.statsMu.Lock()
	d.lastFlush = start
	d.lastStats = result
	d.statsMu.Unlock()

	logging.Ctx(ctx).Info().
		Str("trigger", trigger).
		Int("impressions_confirmed", result.Impressions.Confirmed).
		Int("impressions_failed", result.Impressions.Failed).
		Int("click_throughs_confirmed", result.ClickThroughs.Confirmed).
		Int("click_throughs_failed", result.ClickThroughs.Failed).
		Dur("duration", result.Duration).
		Msg("Flush complete")
	return result
}

type fingerprinted interface {
	Fingerprint() string
}

// flushQueue submits each due record and returns the confirmed ones.
func flushQueue[T fingerprinted](
	ctx context.Context,
	d *Dispatcher,
	kind tracker.Kind,
	records []T,
	submit func(context.Context, T, string) error,
	deadLetter func(T, error) bool,
) ([]T, QueueResult) {
	res := QueueResult{Pending: len(records)}
	if len(records) == 0 {
		return nil, res
	}

	attempts := d.store.Attempts(ctx, kind)
	confirmed := make([]T, 0, len(records))
	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}

		fp := rec.Fingerprint()
		if !d.due(attempts[fp]) {
			res.Deferred++
			metrics.RecordSubmission(string(kind), "deferred")
			continue
		}

		err := d.submit(ctx, func(ctx context.Context) error {
			return submit(ctx, rec, fp)
		})
		if err == nil {
			confirmed = append(confirmed, rec)
			res.Confirmed++
			metrics.RecordSubmission(string(kind), "confirmed")
			continue
		}

		res.Failed++
		metrics.RecordSubmission(string(kind), "failed")
		if IsBreakerRejection(err) || ctx.Err() != nil {
			// The endpoint was never asked; this is not an attempt.
			continue
		}

		a := d.store.RecordFailure(ctx, kind, fp, err)
		logging.Ctx(ctx).Warn().Err(err).
			Str("kind", string(kind)).
			Str("fingerprint", fp).
			Int("attempts", a.Attempts).
			Msg("Submission failed, record stays queued")

		if d.opts.MaxAttempts > 0 && a.Attempts >= d.opts.MaxAttempts && deadLetter(rec, err) {
			res.DeadLettered++
		}
	}
	return confirmed, res
}

func (d *Dispatcher) submit(ctx context.Context, fn func(context.Context) error) error {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	subCtx, cancel := context.WithTimeout(ctx, d.opts.SubmitTimeout)
	defer cancel()
	return fn(subCtx)
}

// due reports whether a record with this history may be submitted now.
func (d *Dispatcher) due(a tracker.Attempt) bool {
	if a.Attempts == 0 || d.opts.RetryBackoff <= 0 {
		return true
	}
	return !d.opts.Now().Before(a.LastAttemptAt.Add(d.backoff(a.Attempts)))
}

// backoff returns RetryBackoff * 2^(attempts-1), capped at MaxBackoff.
func (d *Dispatcher) backoff(attempts int) time.Duration {
	delay := d.opts.RetryBackoff
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= d.opts.MaxBackoff {
			return d.opts.MaxBackoff
		}
	}
	if delay > d.opts.MaxBackoff {
		return d.opts.MaxBackoff
	}
	return delay
}
