// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/shelfmark/internal/models"
)

func TestRecordFailure_Increments(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	backend, err := OpenBadger(BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	s := NewStore(backend, Options{Now: func() time.Time { return now }})
	defer s.Close()
	ctx := context.Background()

	click := clickThrough("book-1", 1000, "")
	s.AppendClickThrough(ctx, click)

	for want := 1; want <= 3; want++ {
		a := s.RecordFailure(ctx, KindClickThrough, click.Fingerprint(), errors.New("status 502"))
		if a.Attempts != want {
			t.Errorf("attempts = %d, want %d", a.Attempts, want)
		}
		if a.LastError != "status 502" || !a.LastAttemptAt.Equal(now) {
			t.Errorf("attempt = %+v, want last error and time recorded", a)
		}
	}

	attempts := s.Attempts(ctx, KindClickThrough)
	if attempts[click.Fingerprint()].Attempts != 3 {
		t.Errorf("Attempts() = %+v, want 3 for the click", attempts)
	}
	if n := len(s.Attempts(ctx, KindImpression)); n != 0 {
		t.Errorf("impression attempts = %d, want 0", n)
	}
}

func TestDeadLetterImpression(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doomed := impression("book-1", models.ImpressionView, 1000)
	survivor := impression("book-2", models.ImpressionView, 1000)
	s.AppendImpression(ctx, doomed)
	s.AppendImpression(ctx, survivor)
	s.RecordFailure(ctx, KindImpression, doomed.Fingerprint(), errors.New("first"))
	s.RecordFailure(ctx, KindImpression, doomed.Fingerprint(), errors.New("second"))

	if !s.DeadLetterImpression(ctx, doomed, ReasonMaxAttempts, errors.New("status 500")) {
		t.Fatal("expected the impression to be dead-lettered")
	}
	if s.DeadLetterImpression(ctx, doomed, ReasonMaxAttempts, nil) {
		t.Error("expected no second move for an already dead-lettered impression")
	}

	pending := s.Impressions(ctx)
	if len(pending) != 1 || !pending[0].Equal(survivor) {
		t.Errorf("pending = %+v, want only the survivor", pending)
	}
	if _, ok := s.Attempts(ctx, KindImpression)[doomed.Fingerprint()]; ok {
		t.Error("expected attempt bookkeeping to be cleared")
	}

	letters := s.DeadLetters(ctx)
	if len(letters) != 1 {
		t.Fatalf("dead letters = %d, want 1", len(letters))
	}
	dl := letters[0]
	if dl.Kind != KindImpression || dl.Reason != ReasonMaxAttempts || dl.Attempts != 2 || dl.LastError != "status 500" {
		t.Errorf("dead letter = %+v", dl)
	}
	if dl.Fingerprint != doomed.Fingerprint() || dl.Key == "" {
		t.Errorf("dead letter identity = %q / %q", dl.Fingerprint, dl.Key)
	}
}

func TestDeadLetterClickThrough_OnlyOneOfDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	click := clickThrough("book-1", 1000, "")
	s.AppendClickThrough(ctx, click)
	s.AppendClickThrough(ctx, click)
	s.RecordFailure(ctx, KindClickThrough, click.Fingerprint(), nil)

	if !s.DeadLetterClickThrough(ctx, click, ReasonMaxAttempts, nil) {
		t.Fatal("expected a move")
	}
	if n := len(s.ClickThroughs(ctx)); n != 1 {
		t.Errorf("pending = %d, want 1", n)
	}
	if _, ok := s.Attempts(ctx, KindClickThrough)[click.Fingerprint()]; !ok {
		t.Error("expected bookkeeping kept while an identical record is still pending")
	}
}

func TestDeadLetters_ExpireWithTTL(t *testing.T) {
	backend, err := OpenBadger(BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	s := NewStore(backend, Options{DeadLetterTTL: time.Second})
	defer s.Close()
	ctx := context.Background()

	imp := impression("book-1", models.ImpressionView, 1000)
	s.AppendImpression(ctx, imp)
	s.DeadLetterImpression(ctx, imp, ReasonMaxAttempts, nil)
	if n := len(s.DeadLetters(ctx)); n != 1 {
		t.Fatalf("dead letters = %d, want 1", n)
	}

	time.Sleep(2100 * time.Millisecond)
	if n := len(s.DeadLetters(ctx)); n != 0 {
		t.Errorf("dead letters = %d after TTL, want 0", n)
	}
}

func TestPruneAttempts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	live := impression("book-1", models.ImpressionView, 1000)
	s.AppendImpression(ctx, live)
	s.RecordFailure(ctx, KindImpression, live.Fingerprint(), nil)
	s.RecordFailure(ctx, KindImpression, "orphan", nil)
	s.RecordFailure(ctx, KindClickThrough, "orphan", nil)

	if n := s.PruneAttempts(ctx); n != 2 {
		t.Errorf("pruned %d, want 2", n)
	}
	attempts := s.Attempts(ctx, KindImpression)
	if _, ok := attempts[live.Fingerprint()]; !ok || len(attempts) != 1 {
		t.Errorf("attempts = %+v, want only the live record", attempts)
	}
}
