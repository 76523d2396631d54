// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package tracker

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/shelfmark/internal/logging"
	"github.com/tomtom215/shelfmark/internal/models"
)

// Test helpers

// captureLogs points the global logger at a buffer for the rest of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	previous := logging.Logger()
	logging.SetLogger(logging.NewTestLogger(&buf))
	t.Cleanup(func() { logging.SetLogger(previous) })
	return &buf
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	backend, err := OpenBadger(BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadger() error: %v", err)
	}
	s := NewStore(backend, Options{})
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error: %v", err)
		}
	})
	return s
}

func impression(id string, typ models.ImpressionType, ts int64) models.Impression {
	return models.Impression{
		EntityID:        id,
		SourceComponent: "book-card",
		PageContext:     "/discover",
		TimestampMs:     ts,
		ImpressionType:  typ,
	}
}

func clickThrough(id string, ts int64, domain string) models.ClickThrough {
	c := models.ClickThrough{
		EntityID:        id,
		SourceComponent: "book-card",
		ReferrerContext: "/discover",
		TimestampMs:     ts,
	}
	c.Metadata.ReferralDomain = domain
	return c
}

func setRaw(t *testing.T, s *Store, key []byte, value []byte) {
	t.Helper()
	err := s.Backend().Update(func(tx Txn) error {
		return tx.Set(key, value)
	})
	if err != nil {
		t.Fatalf("setRaw() error: %v", err)
	}
}

type countingTrigger struct {
	n atomic.Int32
}

func (c *countingTrigger) Trigger() {
	c.n.Add(1)
}

// failingBackend fails every transaction.
type failingBackend struct{}

var errBackendDown = errors.New("backend unavailable")

func (failingBackend) Update(func(tx Txn) error) error { return errBackendDown }
func (failingBackend) View(func(tx Txn) error) error   { return errBackendDown }
func (failingBackend) Close() error                    { return nil }

// Tests

func TestAppendImpression_CoalescesSameKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := impression("book-1", models.ImpressionView, 1000)
	second := impression("book-1", models.ImpressionView, 2000)

	if got := s.AppendImpression(ctx, first); got != AppendQueued {
		t.Fatalf("first append = %v, want queued", got)
	}
	if got := s.AppendImpression(ctx, second); got != AppendCoalesced {
		t.Fatalf("second append = %v, want coalesced", got)
	}

	pending := s.Impressions(ctx)
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	if pending[0].TimestampMs != 1000 {
		t.Errorf("kept timestamp = %d, want the first record (1000)", pending[0].TimestampMs)
	}
}

func TestAppendImpression_DistinctKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := impression("book-1", models.ImpressionView, 1000)
	otherPage := base
	otherPage.PageContext = "/shelves/42"
	otherType := base
	otherType.ImpressionType = models.ImpressionCardClick
	otherBook := base
	otherBook.EntityID = "book-2"

	for _, imp := range []models.Impression{base, otherPage, otherType, otherBook} {
		if got := s.AppendImpression(ctx, imp); got != AppendQueued {
			t.Errorf("append %+v = %v, want queued", imp.Key(), got)
		}
	}
	if n := len(s.Impressions(ctx)); n != 4 {
		t.Errorf("pending = %d, want 4", n)
	}
}

func TestAppendImpression_DetailExpandNeverCoalesces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		imp := impression("book-1", models.ImpressionDetailExpand, 1000)
		if got := s.AppendImpression(ctx, imp); got != AppendQueued {
			t.Fatalf("append %d = %v, want queued", i, got)
		}
	}
	if n := len(s.Impressions(ctx)); n != 3 {
		t.Errorf("pending = %d, want 3", n)
	}
}

func TestAppendImpression_RejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	ctx := logging.ContextWithCorrelationID(context.Background(), "corr-7")
	logs := captureLogs(t)

	tests := []struct {
		name string
		imp  models.Impression
	}{
		{name: "missing entity", imp: impression("", models.ImpressionView, 1000)},
		{name: "unknown type", imp: impression("book-1", models.ImpressionType("scroll"), 1000)},
		{name: "zero timestamp", imp: impression("book-1", models.ImpressionView, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.AppendImpression(ctx, tt.imp); got != AppendRejected {
				t.Errorf("append = %v, want rejected", got)
			}
		})
	}
	if n := len(s.Impressions(ctx)); n != 0 {
		t.Errorf("pending = %d, want 0", n)
	}
	output := logs.String()
	if got := strings.Count(output, "Rejected invalid engagement record"); got != len(tests) {
		t.Errorf("logged %d rejections, want %d: %s", got, len(tests), output)
	}
	if !strings.Contains(output, `"correlation_id":"corr-7"`) {
		t.Errorf("expected correlation ID in rejection log: %s", output)
	}
}

func TestAppendClickThrough_NeverCoalescesAndTriggers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	trigger := &countingTrigger{}
	s.SetFlushTrigger(trigger)

	click := clickThrough("book-1", 1000, "bookshop.example")
	for i := 0; i < 2; i++ {
		if got := s.AppendClickThrough(ctx, click); got != AppendQueued {
			t.Fatalf("append %d = %v, want queued", i, got)
		}
	}

	if n := len(s.ClickThroughs(ctx)); n != 2 {
		t.Errorf("pending = %d, want 2", n)
	}
	if n := trigger.n.Load(); n != 2 {
		t.Errorf("trigger fired %d times, want 2", n)
	}
}

func TestAppendClickThrough_TriggersOnlyWhenQueued(t *testing.T) {
	ctx := context.Background()

	s := newTestStore(t)
	trigger := &countingTrigger{}
	s.SetFlushTrigger(trigger)
	if got := s.AppendClickThrough(ctx, clickThrough("", 1000, "")); got != AppendRejected {
		t.Fatalf("append = %v, want rejected", got)
	}
	if n := trigger.n.Load(); n != 0 {
		t.Errorf("trigger fired %d times for a rejected click, want 0", n)
	}

	failing := NewStore(failingBackend{}, Options{})
	failingTrigger := &countingTrigger{}
	failing.SetFlushTrigger(failingTrigger)
	if got := failing.AppendClickThrough(ctx, clickThrough("book-1", 1000, "")); got != AppendFailed {
		t.Fatalf("append = %v, want failed", got)
	}
	if n := failingTrigger.n.Load(); n != 0 {
		t.Errorf("trigger fired %d times for a failed write, want 0", n)
	}
}

func TestRemoveImpressions_MatchesFullEquality(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := impression("book-1", models.ImpressionView, 1000)
	b := impression("book-2", models.ImpressionView, 1000)
	s.AppendImpression(ctx, a)
	s.AppendImpression(ctx, b)

	stale := a
	stale.TimestampMs = 999
	if n := s.RemoveImpressions(ctx, []models.Impression{stale}); n != 0 {
		t.Errorf("removed %d with a different timestamp, want 0", n)
	}

	if n := s.RemoveImpressions(ctx, []models.Impression{a}); n != 1 {
		t.Fatalf("removed %d, want 1", n)
	}
	pending := s.Impressions(ctx)
	if len(pending) != 1 || !pending[0].Equal(b) {
		t.Errorf("pending = %+v, want only book-2", pending)
	}
}

func TestRemoveImpressions_Multiset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	hover := impression("book-1", models.ImpressionDetailExpand, 1000)
	for i := 0; i < 3; i++ {
		s.AppendImpression(ctx, hover)
	}

	if n := s.RemoveImpressions(ctx, []models.Impression{hover, hover}); n != 2 {
		t.Fatalf("removed %d, want 2", n)
	}
	if n := len(s.Impressions(ctx)); n != 1 {
		t.Errorf("pending = %d, want 1", n)
	}
}

func TestRemoveClickThroughs_KeepsNewerDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := clickThrough("book-1", 1000, "")
	second := clickThrough("book-1", 2000, "")
	s.AppendClickThrough(ctx, first)

	// A flush read the queue here; a new click arrives before it reconciles.
	snapshot := s.ClickThroughs(ctx)
	s.AppendClickThrough(ctx, second)

	if n := s.RemoveClickThroughs(ctx, snapshot); n != 1 {
		t.Fatalf("removed %d, want 1", n)
	}
	pending := s.ClickThroughs(ctx)
	if len(pending) != 1 || pending[0].TimestampMs != 2000 {
		t.Errorf("pending = %+v, want the newer click", pending)
	}
}

func TestRemove_ClearsAttempts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	imp := impression("book-1", models.ImpressionView, 1000)
	s.AppendImpression(ctx, imp)
	s.RecordFailure(ctx, KindImpression, imp.Fingerprint(), errors.New("503"))

	if _, ok := s.Attempts(ctx, KindImpression)[imp.Fingerprint()]; !ok {
		t.Fatal("expected attempt bookkeeping after failure")
	}
	s.RemoveImpressions(ctx, []models.Impression{imp})
	if n := len(s.Attempts(ctx, KindImpression)); n != 0 {
		t.Errorf("attempts = %d after removal, want 0", n)
	}
}

func TestCorruptQueue_DegradesToEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	setRaw(t, s, impressionQueue.key, []byte("{not json"))

	if pending := s.Impressions(ctx); len(pending) != 0 {
		t.Errorf("pending = %d, want 0 for corrupt queue", len(pending))
	}
	if n := s.RemoveImpressions(ctx, []models.Impression{impression("book-1", models.ImpressionView, 1)}); n != 0 {
		t.Errorf("removed %d from corrupt queue, want 0", n)
	}

	imp := impression("book-1", models.ImpressionView, 1000)
	if got := s.AppendImpression(ctx, imp); got != AppendQueued {
		t.Fatalf("append = %v, want queued", got)
	}
	if pending := s.Impressions(ctx); len(pending) != 1 {
		t.Errorf("pending = %d, want 1", len(pending))
	}

	letters := s.DeadLetters(ctx)
	if len(letters) != 1 || letters[0].Reason != ReasonCorruptQueue {
		t.Fatalf("dead letters = %+v, want one corrupt_queue entry", letters)
	}
	var preserved string
	if err := json.Unmarshal(letters[0].Record, &preserved); err != nil || preserved != "{not json" {
		t.Errorf("preserved record = %q (%v), want original bytes", preserved, err)
	}
}

func TestMalformedElements_SkippedAndPreserved(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	good := impression("book-1", models.ImpressionView, 1000)
	goodJSON, err := json.Marshal(good)
	if err != nil {
		t.Fatal(err)
	}
	raw := []byte(`[{"entityId":"","sourceComponent":"x"},` + string(goodJSON) + `,{"entityId":"book-9","impressionType":7}]`)
	setRaw(t, s, impressionQueue.key, raw)

	pending := s.Impressions(ctx)
	if len(pending) != 1 || !pending[0].Equal(good) {
		t.Fatalf("pending = %+v, want only the valid record", pending)
	}

	if n := s.RemoveImpressions(ctx, pending); n != 1 {
		t.Fatalf("removed %d, want 1", n)
	}
	if counts := s.PendingCounts(ctx); counts[KindImpression] != 2 {
		t.Errorf("stored elements = %d, want the 2 malformed ones preserved", counts[KindImpression])
	}

	if n := s.QuarantineMalformed(ctx); n != 2 {
		t.Errorf("quarantined %d, want 2", n)
	}
	if counts := s.PendingCounts(ctx); counts[KindImpression] != 0 {
		t.Errorf("stored elements = %d after quarantine, want 0", counts[KindImpression])
	}
	for _, dl := range s.DeadLetters(ctx) {
		if dl.Reason != ReasonMalformed || dl.Kind != KindImpression {
			t.Errorf("dead letter = %+v, want malformed impression", dl)
		}
	}
}

func TestFailingBackend_NeverPanics(t *testing.T) {
	s := NewStore(failingBackend{}, Options{})
	ctx := context.Background()

	if got := s.AppendImpression(ctx, impression("book-1", models.ImpressionView, 1)); got != AppendFailed {
		t.Errorf("append = %v, want failed", got)
	}
	if got := s.AppendClickThrough(ctx, clickThrough("book-1", 1, "")); got != AppendFailed {
		t.Errorf("append = %v, want failed", got)
	}
	if pending := s.Impressions(ctx); pending != nil {
		t.Errorf("Impressions() = %v, want nil", pending)
	}
	if pending := s.ClickThroughs(ctx); pending != nil {
		t.Errorf("ClickThroughs() = %v, want nil", pending)
	}
	if n := s.RemoveImpressions(ctx, []models.Impression{impression("book-1", models.ImpressionView, 1)}); n != 0 {
		t.Errorf("removed %d, want 0", n)
	}
	if letters := s.DeadLetters(ctx); letters != nil {
		t.Errorf("DeadLetters() = %v, want nil", letters)
	}
}

func TestClosedStore_Degrades(t *testing.T) {
	backend, err := OpenBadger(BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	s := NewStore(backend, Options{})
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}

	if got := s.AppendImpression(context.Background(), impression("book-1", models.ImpressionView, 1)); got != AppendFailed {
		t.Errorf("append = %v, want failed", got)
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker")
	ctx := context.Background()

	backend, err := OpenBadger(BadgerOptions{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	s := NewStore(backend, Options{})
	s.AppendImpression(ctx, impression("book-1", models.ImpressionView, 1000))
	s.AppendClickThrough(ctx, clickThrough("book-1", 1000, "bookshop.example"))
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	backend, err = OpenBadger(BadgerOptions{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	s = NewStore(backend, Options{})
	defer s.Close()

	if n := len(s.Impressions(ctx)); n != 1 {
		t.Errorf("impressions after reopen = %d, want 1", n)
	}
	clicks := s.ClickThroughs(ctx)
	if len(clicks) != 1 || !clicks[0].IsReferral() {
		t.Errorf("click-throughs after reopen = %+v, want one referral click", clicks)
	}
}

func TestOpenBadger_RequiresPath(t *testing.T) {
	if _, err := OpenBadger(BadgerOptions{}); err == nil {
		t.Error("expected error for empty path without in-memory mode")
	}
}

func TestAppendOutcomeString(t *testing.T) {
	tests := map[AppendOutcome]string{
		AppendQueued:    "queued",
		AppendCoalesced: "coalesced",
		AppendRejected:  "rejected",
		AppendFailed:    "failed",
	}
	for outcome, want := range tests {
		if got := outcome.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", outcome, got, want)
		}
	}
}

func TestAppendImpression_CancelledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if got := s.AppendImpression(ctx, impression("book-1", models.ImpressionView, time.Now().UnixMilli())); got != AppendFailed {
		t.Errorf("append = %v, want failed", got)
	}
}
