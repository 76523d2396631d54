// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package tracker

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/tomtom215/shelfmark/internal/logging"
)

// Backend is the durable key-value store beneath the Store.
type Backend interface {
	// Update runs fn in a read-write transaction. The transaction commits when fn returns nil.
	Update(fn func(tx Txn) error) error

	// View runs fn in a read-only transaction.
	View(fn func(tx Txn) error) error

	Close() error
}

// Txn is the transactional view a Backend hands to Update and View callbacks.
type Txn interface {
	// Get returns ErrNotFound when key is absent.
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	SetWithTTL(key, value []byte, ttl time.Duration) error
	Delete(key []byte) error
	// Scan calls fn for every key with the given prefix, in key order.
	// Slices passed to fn remain valid after fn returns.
	Scan(prefix []byte, fn func(key, value []byte) error) error
}

// GarbageCollector is implemented by backends that can reclaim space.
type GarbageCollector interface {
	RunGC(discardRatio float64) error
}

// maxConflictRetries bounds optimistic transaction retries.
const maxConflictRetries = 5

// BadgerOptions configures a BadgerDB backend.
type BadgerOptions struct {
	Path       string
	InMemory   bool
	SyncWrites bool
}

// BadgerBackend is a Backend on BadgerDB.
type BadgerBackend struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a BadgerDB database.
func OpenBadger(o BadgerOptions) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(o.Path)
	if o.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else if o.Path == "" {
		return nil, fmt.Errorf("tracker path is required unless running in memory")
	}
	opts.SyncWrites = o.SyncWrites
	opts.Compression = options.Snappy

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", o.Path).
		Bool("in_memory", o.InMemory).
		Bool("sync_writes", o.SyncWrites).
		Msg("Tracker store opened")
	return &BadgerBackend{db: db}, nil
}

// Update runs fn in a read-write transaction, retrying on write conflicts.
func (b *BadgerBackend) Update(fn func(tx Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = b.db.Update(func(txn *badger.Txn) error {
			return fn(badgerTxn{txn: txn})
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// View runs fn in a read-only transaction.
func (b *BadgerBackend) View(fn func(tx Txn) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		return fn(badgerTxn{txn: txn})
	})
}

// RunGC runs value-log garbage collection until nothing more can be rewritten.
func (b *BadgerBackend) RunGC(discardRatio float64) error {
	for {
		err := b.db.RunValueLogGC(discardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Close closes the database.
func (b *BadgerBackend) Close() error {
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	return nil
}

type badgerTxn struct {
	txn *badger.Txn
}

func (t badgerTxn) Get(key []byte) ([]byte, error) {
	item, err := t.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t badgerTxn) Set(key, value []byte) error {
	return t.txn.SetEntry(badger.NewEntry(key, value))
}

func (t badgerTxn) SetWithTTL(key, value []byte, ttl time.Duration) error {
	return t.txn.SetEntry(badger.NewEntry(key, value).WithTTL(ttl))
}

func (t badgerTxn) Delete(key []byte) error {
	return t.txn.Delete(key)
}

func (t badgerTxn) Scan(prefix []byte, fn func(key, value []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(item.KeyCopy(nil), value); err != nil {
			return err
		}
	}
	return nil
}
