// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/shelfmark/internal/logging"
	"github.com/tomtom215/shelfmark/internal/metrics"
	"github.com/tomtom215/shelfmark/internal/models"
)

// Dead-letter reasons.
const (
	ReasonMaxAttempts  = "max_attempts"
	ReasonMalformed    = "malformed"
	ReasonCorruptQueue = "corrupt_queue"
)

const (
	attemptPrefix    = "attempt:"
	deadLetterPrefix = "deadletter:"
)

// Attempt is the retry bookkeeping for one pending record, keyed by its fingerprint.
type Attempt struct {
	Attempts      int       `json:"attempts"`
	LastAttemptAt time.Time `json:"last_attempt_at"`
	LastError     string    `json:"last_error,omitempty"`
}

// DeadLetter is a record that left the pending queue without being delivered.
type DeadLetter struct {
	Key            string          `json:"key"`
	Kind           Kind            `json:"kind"`
	Fingerprint    string          `json:"fingerprint,omitempty"`
	Record         json.RawMessage `json:"record"`
	Reason         string          `json:"reason"`
	LastError      string          `json:"last_error,omitempty"`
	Attempts       int             `json:"attempts"`
	DeadLetteredAt time.Time       `json:"dead_lettered_at"`
}

func attemptKey(kind Kind, fingerprint string) []byte {
	return []byte(attemptPrefix + string(kind) + ":" + fingerprint)
}

func deadLetterKey(kind Kind, at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s", deadLetterPrefix, kind, at.UnixNano(), id))
}

// RecordFailure increments the attempt count of the record with the given
// fingerprint and returns the updated bookkeeping.
func (s *Store) RecordFailure(ctx context.Context, kind Kind, fingerprint string, cause error) Attempt {
	var a Attempt
	err := s.update(func(tx Txn) error {
		var err error
		a, err = getAttempt(tx, kind, fingerprint)
		if err != nil {
			return err
		}
		a.Attempts++
		a.LastAttemptAt = s.opts.Now()
		if cause != nil {
			a.LastError = cause.Error()
		}
		data, err := json.Marshal(a)
		if err != nil {
			return err
		}
		return tx.Set(attemptKey(kind, fingerprint), data)
	})
	if err != nil {
		s.logFailure(ctx, "record_failure", err)
	}
	return a
}

// Attempts returns the retry bookkeeping of a queue keyed by fingerprint.
func (s *Store) Attempts(ctx context.Context, kind Kind) map[string]Attempt {
	attempts := make(map[string]Attempt)
	prefix := []byte(attemptPrefix + string(kind) + ":")
	err := s.view(func(tx Txn) error {
		return tx.Scan(prefix, func(key, value []byte) error {
			var a Attempt
			if err := json.Unmarshal(value, &a); err != nil {
				return nil
			}
			attempts[strings.TrimPrefix(string(key), string(prefix))] = a
			return nil
		})
	})
	if err != nil {
		s.logFailure(ctx, "attempts", err)
	}
	return attempts
}

// DeadLetterImpression moves one pending impression Equal to imp into the
// dead-letter list. It reports whether a pending element was moved.
func (s *Store) DeadLetterImpression(ctx context.Context, imp models.Impression, reason string, cause error) bool {
	return deadLetterRecord(ctx, s, impressionQueue, imp, reason, cause)
}

// DeadLetterClickThrough moves one pending click-through Equal to click into the dead-letter list.
func (s *Store) DeadLetterClickThrough(ctx context.Context, click models.ClickThrough, reason string, cause error) bool {
	return deadLetterRecord(ctx, s, clickThroughQueue, click, reason, cause)
}

func deadLetterRecord[T record[T]](ctx context.Context, s *Store, q queue, rec T, reason string, cause error) bool {
	moved := false
	var pending int
	err := s.update(func(tx Txn) error {
		moved = false
		elems, corrupt, err := loadQueue(tx, q)
		if err != nil || corrupt != nil {
			return err
		}

		for i, raw := range elems {
			pendingRec, ok := decodeRecord[T](raw)
			if !ok || !pendingRec.Equal(rec) {
				continue
			}

			fp := rec.Fingerprint()
			a, err := getAttempt(tx, q.kind, fp)
			if err != nil {
				return err
			}
			dl := DeadLetter{
				Kind:        q.kind,
				Fingerprint: fp,
				Record:      raw,
				Reason:      reason,
				LastError:   a.LastError,
				Attempts:    a.Attempts,
			}
			if cause != nil {
				dl.LastError = cause.Error()
			}
			if err := s.putDeadLetter(tx, dl, fp); err != nil {
				return err
			}

			kept := append(elems[:i:i], elems[i+1:]...)
			if !containsFingerprint[T](kept, fp) {
				if err := tx.Delete(attemptKey(q.kind, fp)); err != nil {
					return err
				}
			}
			moved = true
			pending = len(kept)
			return saveQueue(tx, q, kept)
		}
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "dead_letter", err)
		return false
	}
	if moved {
		metrics.RecordDeadLetter(string(q.kind), reason)
		metrics.SetTrackerPending(string(q.kind), pending)
		logging.Ctx(ctx).Warn().
			Str("kind", string(q.kind)).
			Str("fingerprint", rec.Fingerprint()).
			Str("reason", reason).
			Msg("Moved pending record to dead letters")
	}
	return moved
}

// DeadLetters lists dead letters oldest first.
func (s *Store) DeadLetters(ctx context.Context) []DeadLetter {
	var letters []DeadLetter
	err := s.view(func(tx Txn) error {
		return tx.Scan([]byte(deadLetterPrefix), func(key, value []byte) error {
			var dl DeadLetter
			if err := json.Unmarshal(value, &dl); err != nil {
				return nil
			}
			dl.Key = string(key)
			letters = append(letters, dl)
			return nil
		})
	})
	if err != nil {
		s.logFailure(ctx, "dead_letters", err)
		return nil
	}
	return letters
}

// QuarantineMalformed moves stored elements that cannot be decoded or fail
// validation into the dead-letter list, as well as whole queue values that are
// not JSON arrays. It returns the number of malformed elements moved.
func (s *Store) QuarantineMalformed(ctx context.Context) int {
	total := 0
	for _, q := range []queue{impressionQueue, clickThroughQueue} {
		n, err := s.quarantineQueueElements(q)
		if err != nil {
			s.logFailure(ctx, "quarantine", err)
			continue
		}
		for i := 0; i < n; i++ {
			metrics.RecordDeadLetter(string(q.kind), ReasonMalformed)
		}
		if n > 0 {
			logging.Ctx(ctx).Warn().Str("kind", string(q.kind)).Int("count", n).
				Msg("Quarantined malformed pending records")
		}
		total += n
	}
	return total
}

func (s *Store) quarantineQueueElements(q queue) (int, error) {
	moved := 0
	err := s.update(func(tx Txn) error {
		moved = 0
		elems, corrupt, err := loadQueue(tx, q)
		if err != nil {
			return err
		}
		if corrupt != nil {
			return s.quarantineQueue(tx, q, corrupt)
		}

		kept := make([]json.RawMessage, 0, len(elems))
		for _, raw := range elems {
			if validElement(q.kind, raw) {
				kept = append(kept, raw)
				continue
			}
			dl := DeadLetter{Kind: q.kind, Record: raw, Reason: ReasonMalformed}
			if err := s.putDeadLetter(tx, dl, uuid.NewString()); err != nil {
				return err
			}
			moved++
		}
		if moved == 0 {
			return nil
		}
		return saveQueue(tx, q, kept)
	})
	return moved, err
}

// quarantineQueue dead-letters an entire corrupt queue value and clears the key.
func (s *Store) quarantineQueue(tx Txn, q queue, corrupt []byte) error {
	dl := DeadLetter{Kind: q.kind, Record: rawString(corrupt), Reason: ReasonCorruptQueue}
	if err := s.putDeadLetter(tx, dl, uuid.NewString()); err != nil {
		return err
	}
	metrics.RecordDeadLetter(string(q.kind), ReasonCorruptQueue)
	logging.Warn().Str("kind", string(q.kind)).Int("bytes", len(corrupt)).
		Msg("Quarantined corrupt pending queue")
	return tx.Delete(q.key)
}

// PruneAttempts deletes retry bookkeeping whose record is no longer pending.
func (s *Store) PruneAttempts(ctx context.Context) int {
	pruned := 0
	err := s.update(func(tx Txn) error {
		pruned = 0
		for _, q := range []queue{impressionQueue, clickThroughQueue} {
			elems, _, err := loadQueue(tx, q)
			if err != nil {
				return err
			}
			live := make(map[string]bool, len(elems))
			for _, raw := range elems {
				if fp, ok := elementFingerprint(q.kind, raw); ok {
					live[fp] = true
				}
			}

			prefix := []byte(attemptPrefix + string(q.kind) + ":")
			var stale [][]byte
			err = tx.Scan(prefix, func(key, _ []byte) error {
				if !live[strings.TrimPrefix(string(key), string(prefix))] {
					stale = append(stale, key)
				}
				return nil
			})
			if err != nil {
				return err
			}
			for _, key := range stale {
				if err := tx.Delete(key); err != nil {
					return err
				}
			}
			pruned += len(stale)
		}
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "prune_attempts", err)
		return 0
	}
	return pruned
}

func (s *Store) putDeadLetter(tx Txn, dl DeadLetter, id string) error {
	dl.DeadLetteredAt = s.opts.Now().UTC()
	data, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("encode dead letter: %w", err)
	}
	key := deadLetterKey(dl.Kind, dl.DeadLetteredAt, id)
	if s.opts.DeadLetterTTL > 0 {
		return tx.SetWithTTL(key, data, s.opts.DeadLetterTTL)
	}
	return tx.Set(key, data)
}

func getAttempt(tx Txn, kind Kind, fingerprint string) (Attempt, error) {
	var a Attempt
	raw, err := tx.Get(attemptKey(kind, fingerprint))
	if errors.Is(err, ErrNotFound) {
		return a, nil
	}
	if err != nil {
		return a, err
	}
	if err := json.Unmarshal(raw, &a); err != nil {
		// Corrupt bookkeeping restarts the count.
		return Attempt{}, nil
	}
	return a, nil
}

func containsFingerprint[T record[T]](elems []json.RawMessage, fp string) bool {
	for _, raw := range elems {
		if rec, ok := decodeRecord[T](raw); ok && rec.Fingerprint() == fp {
			return true
		}
	}
	return false
}

func validElement(kind Kind, raw json.RawMessage) bool {
	_, ok := elementFingerprint(kind, raw)
	return ok
}

func elementFingerprint(kind Kind, raw json.RawMessage) (string, bool) {
	switch kind {
	case KindImpression:
		if rec, ok := decodeRecord[models.Impression](raw); ok {
			return rec.Fingerprint(), true
		}
	case KindClickThrough:
		if rec, ok := decodeRecord[models.ClickThrough](raw); ok {
			return rec.Fingerprint(), true
		}
	}
	return "", false
}

// rawString wraps bytes that are not valid JSON as a JSON string so the dead
// letter itself stays encodable.
func rawString(b []byte) json.RawMessage {
	data, err := json.Marshal(string(b))
	if err != nil {
		return json.RawMessage(`null`)
	}
	return data
}
