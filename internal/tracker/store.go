// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/shelfmark/internal/logging"
	"github.com/tomtom215/shelfmark/internal/metrics"
	"github.com/tomtom215/shelfmark/internal/models"
	"github.com/tomtom215/shelfmark/internal/validation"
)

// Kind names a pending record queue.
type Kind string

const (
	KindImpression   Kind = "impression"
	KindClickThrough Kind = "click_through"
)

// Errors
var (
	// ErrNotFound is returned by Txn.Get when a key is absent.
	ErrNotFound = errors.New("key not found")

	// ErrStoreClosed is returned internally once Close has been called.
	ErrStoreClosed = errors.New("tracker store is closed")
)

// AppendOutcome reports what an append did.
type AppendOutcome int

const (
	// AppendQueued means a new pending record was written.
	AppendQueued AppendOutcome = iota
	// AppendCoalesced means an equivalent impression was already pending; the first one is kept.
	AppendCoalesced
	// AppendRejected means the record failed validation and was not written.
	AppendRejected
	// AppendFailed means the backend could not be written; the failure was logged.
	AppendFailed
)

func (o AppendOutcome) String() string {
	switch o {
	case AppendQueued:
		return "queued"
	case AppendCoalesced:
		return "coalesced"
	case AppendRejected:
		return "rejected"
	default:
		return "failed"
	}
}

// FlushTrigger is signalled after every click-through append. Implementations must not block.
type FlushTrigger interface {
	Trigger()
}

// Options configures a Store.
type Options struct {
	// DeadLetterTTL expires dead letters. Zero keeps them until removed.
	DeadLetterTTL time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// queue is one of the two fixed pending-record keys.
type queue struct {
	kind Kind
	key  []byte
}

var (
	impressionQueue   = queue{kind: KindImpression, key: []byte("pending:impressions")}
	clickThroughQueue = queue{kind: KindClickThrough, key: []byte("pending:click_throughs")}
)

// record is implemented by the pending record types.
type record[T any] interface {
	Equal(T) bool
	Fingerprint() string
}

// Store is the local event store: durable pending queues of impressions and
// click-throughs plus retry bookkeeping and dead letters.
//
// None of the queue operations return errors. Backend failures and corrupt
// data are logged, counted and degrade to an empty result, so a broken store
// never surfaces to the code recording engagement.
type Store struct {
	backend Backend
	opts    Options

	// writeMu serializes read-modify-write cycles on the pending arrays.
	writeMu sync.Mutex

	mu      sync.RWMutex
	trigger FlushTrigger
	closed  bool
}

// NewStore creates a store over backend.
func NewStore(backend Backend, opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{backend: backend, opts: opts}
}

// SetFlushTrigger registers the component that is signalled after click-through appends.
func (s *Store) SetFlushTrigger(t FlushTrigger) {
	s.mu.Lock()
	s.trigger = t
	s.mu.Unlock()
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// Close closes the backend. Later operations degrade as if the store were unavailable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.backend.Close()
}

// AppendImpression queues an impression. Impressions other than detail-expand
// coalesce with a pending impression of the same key, keeping the earlier one.
func (s *Store) AppendImpression(ctx context.Context, imp models.Impression) AppendOutcome {
	var coalesce func(json.RawMessage) bool
	if imp.ImpressionType.Coalesces() {
		key := imp.Key()
		coalesce = func(raw json.RawMessage) bool {
			pending, ok := decodeRecord[models.Impression](raw)
			return ok && pending.Key() == key
		}
	}
	return s.appendRecord(ctx, impressionQueue, imp, coalesce)
}

// AppendClickThrough queues a click-through and, once it is queued, signals
// the flush trigger. Click-throughs are never coalesced.
func (s *Store) AppendClickThrough(ctx context.Context, click models.ClickThrough) AppendOutcome {
	outcome := s.appendRecord(ctx, clickThroughQueue, click, nil)
	if outcome != AppendQueued {
		return outcome
	}

	s.mu.RLock()
	trigger := s.trigger
	s.mu.RUnlock()
	if trigger != nil {
		trigger.Trigger()
	}
	return outcome
}

// Impressions returns every decodable pending impression in queue order.
func (s *Store) Impressions(ctx context.Context) []models.Impression {
	return readRecords[models.Impression](ctx, s, impressionQueue)
}

// ClickThroughs returns every decodable pending click-through in queue order.
func (s *Store) ClickThroughs(ctx context.Context) []models.ClickThrough {
	return readRecords[models.ClickThrough](ctx, s, clickThroughQueue)
}

// RemoveImpressions removes confirmed impressions from the queue. Each confirmed
// value removes at most one pending element that is Equal to it, timestamp
// included. It returns the number removed.
func (s *Store) RemoveImpressions(ctx context.Context, confirmed []models.Impression) int {
	return removeRecords(ctx, s, impressionQueue, confirmed)
}

// RemoveClickThroughs removes confirmed click-throughs, matching as RemoveImpressions does.
func (s *Store) RemoveClickThroughs(ctx context.Context, confirmed []models.ClickThrough) int {
	return removeRecords(ctx, s, clickThroughQueue, confirmed)
}

// PendingCounts returns the number of stored elements in each queue,
// malformed elements included.
func (s *Store) PendingCounts(ctx context.Context) map[Kind]int {
	counts := map[Kind]int{KindImpression: 0, KindClickThrough: 0}
	err := s.view(func(tx Txn) error {
		for _, q := range []queue{impressionQueue, clickThroughQueue} {
			elems, _, err := loadQueue(tx, q)
			if err != nil {
				return err
			}
			counts[q.kind] = len(elems)
		}
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "count", err)
	}
	return counts
}

func (s *Store) appendRecord(ctx context.Context, q queue, rec any, coalesce func(json.RawMessage) bool) AppendOutcome {
	if err := ctx.Err(); err != nil {
		s.logFailure(ctx, "append", err)
		metrics.RecordTrackerAppend(string(q.kind), AppendFailed.String())
		return AppendFailed
	}
	if verr := validation.ValidateStruct(rec); verr != nil {
		logging.Ctx(ctx).Warn().Err(verr).Str("kind", string(q.kind)).Msg("Rejected invalid engagement record")
		metrics.RecordTrackerAppend(string(q.kind), AppendRejected.String())
		return AppendRejected
	}

	data, err := json.Marshal(rec)
	if err != nil {
		s.logFailure(ctx, "append", fmt.Errorf("encode %s: %w", q.kind, err))
		metrics.RecordTrackerAppend(string(q.kind), AppendFailed.String())
		return AppendFailed
	}

	outcome := AppendQueued
	var pending int
	err = s.update(func(tx Txn) error {
		outcome = AppendQueued
		elems, corrupt, err := loadQueue(tx, q)
		if err != nil {
			return err
		}
		if corrupt != nil {
			if err := s.quarantineQueue(tx, q, corrupt); err != nil {
				return err
			}
			elems = nil
		}
		if coalesce != nil {
			for _, raw := range elems {
				if coalesce(raw) {
					outcome = AppendCoalesced
					pending = len(elems)
					return nil
				}
			}
		}
		elems = append(elems, json.RawMessage(data))
		pending = len(elems)
		return saveQueue(tx, q, elems)
	})
	if err != nil {
		s.logFailure(ctx, "append", err)
		metrics.RecordTrackerAppend(string(q.kind), AppendFailed.String())
		return AppendFailed
	}

	metrics.RecordTrackerAppend(string(q.kind), outcome.String())
	metrics.SetTrackerPending(string(q.kind), pending)
	return outcome
}

func readRecords[T any](ctx context.Context, s *Store, q queue) []T {
	var elems []json.RawMessage
	err := s.view(func(tx Txn) error {
		var corrupt []byte
		var err error
		elems, corrupt, err = loadQueue(tx, q)
		if err != nil {
			return err
		}
		if corrupt != nil {
			logging.Ctx(ctx).Warn().Str("kind", string(q.kind)).Int("bytes", len(corrupt)).
				Msg("Pending queue is corrupt, treating as empty")
			metrics.RecordStoreError("decode")
		}
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "read", err)
		return nil
	}

	records := make([]T, 0, len(elems))
	skipped := 0
	for _, raw := range elems {
		rec, ok := decodeRecord[T](raw)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if skipped > 0 {
		logging.Ctx(ctx).Warn().Str("kind", string(q.kind)).Int("skipped", skipped).
			Msg("Skipped malformed pending records")
		metrics.RecordSkippedRecords(string(q.kind), skipped)
	}
	return records
}

func removeRecords[T record[T]](ctx context.Context, s *Store, q queue, confirmed []T) int {
	if len(confirmed) == 0 {
		return 0
	}

	removed := 0
	var pending int
	err := s.update(func(tx Txn) error {
		removed = 0
		elems, corrupt, err := loadQueue(tx, q)
		if err != nil {
			return err
		}
		if corrupt != nil {
			// Nothing to match against; the compactor quarantines the value.
			pending = 0
			return nil
		}

		used := make([]bool, len(confirmed))
		kept := make([]json.RawMessage, 0, len(elems))
		keptFingerprints := make(map[string]bool, len(elems))
		var removedFingerprints []string
		for _, raw := range elems {
			rec, ok := decodeRecord[T](raw)
			if ok {
				if j := matchUnused(rec, confirmed, used); j >= 0 {
					used[j] = true
					removed++
					removedFingerprints = append(removedFingerprints, rec.Fingerprint())
					continue
				}
				keptFingerprints[rec.Fingerprint()] = true
			}
			kept = append(kept, raw)
		}
		if removed == 0 {
			pending = len(elems)
			return nil
		}

		for _, fp := range removedFingerprints {
			if keptFingerprints[fp] {
				continue
			}
			if err := tx.Delete(attemptKey(q.kind, fp)); err != nil {
				return err
			}
		}
		pending = len(kept)
		return saveQueue(tx, q, kept)
	})
	if err != nil {
		s.logFailure(ctx, "remove", err)
		return 0
	}

	metrics.SetTrackerPending(string(q.kind), pending)
	return removed
}

func matchUnused[T record[T]](rec T, confirmed []T, used []bool) int {
	for j, c := range confirmed {
		if !used[j] && rec.Equal(c) {
			return j
		}
	}
	return -1
}

// loadQueue reads the pending array for q. A stored value that is not a JSON
// array is returned as corrupt with no elements.
func loadQueue(tx Txn, q queue) (elems []json.RawMessage, corrupt []byte, err error) {
	raw, err := tx.Get(q.key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get %s: %w", q.key, err)
	}
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, raw, nil
	}
	return elems, nil, nil
}

func saveQueue(tx Txn, q queue, elems []json.RawMessage) error {
	if len(elems) == 0 {
		return tx.Delete(q.key)
	}
	data, err := json.Marshal(elems)
	if err != nil {
		return fmt.Errorf("encode %s: %w", q.key, err)
	}
	return tx.Set(q.key, data)
}

// decodeRecord decodes and validates one stored element.
func decodeRecord[T any](raw json.RawMessage) (T, bool) {
	var rec T
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, false
	}
	if verr := validation.ValidateStruct(rec); verr != nil {
		return rec, false
	}
	return rec, true
}

func (s *Store) update(fn func(tx Txn) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.backend.Update(fn)
}

func (s *Store) view(fn func(tx Txn) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.backend.View(fn)
}

func (s *Store) logFailure(ctx context.Context, op string, err error) {
	metrics.RecordStoreError(op)
	logging.CtxErr(ctx, err).Str("operation", op).Msg("Tracker store operation failed")
}
