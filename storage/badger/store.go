// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/absmach/sparkplug-tck/storage"
	"github.com/absmach/sparkplug-tck/tck"
	"github.com/dgraph-io/badger/v4"
)

var _ storage.ReportStore = (*Store)(nil)

// Store implements storage.ReportStore using BadgerDB.
//
// Key format: report:{test}:{id}, with an index entry report-id:{id} -> test.
type Store struct {
	db          *badger.DB
	compression Compression

	gcStopCh chan struct{}
	gcDone   chan struct{}
	closed   bool
	mu       sync.Mutex
}

// Config holds BadgerDB configuration.
type Config struct {
	Dir        string // Directory for BadgerDB data
	SyncWrites bool
	GCInterval time.Duration // Value log GC period, defaults to 5 minutes

	Compression Compression
}

const (
	reportPrefix = "report:"
	indexPrefix  = "report-id:"
)

// New creates a new BadgerDB-backed report store.
func New(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Dir)
	opts.Logger = nil // Disable BadgerDB's internal logging
	opts.SyncWrites = cfg.SyncWrites
	opts.NumVersionsToKeep = 1

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open report store: %w", err)
	}

	if cfg.GCInterval <= 0 {
		cfg.GCInterval = 5 * time.Minute
	}

	s := &Store{
		db:          db,
		compression: cfg.Compression,
		gcStopCh:    make(chan struct{}),
		gcDone:      make(chan struct{}),
	}

	go s.runGC(cfg.GCInterval)

	return s, nil
}

func reportKey(test, id string) []byte {
	return []byte(reportPrefix + test + ":" + id)
}

func indexKey(id string) []byte {
	return []byte(indexPrefix + id)
}

// Save stores a report, replacing any report with the same id.
func (s *Store) Save(ctx context.Context, r *tck.Report) error {
	if err := storage.Validate(r); err != nil {
		return err
	}

	data, err := encodeReport(r, s.compression)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		// A report re-saved under another test name must not leave its old key behind.
		prev, err := lookupTest(txn, r.ID)
		switch {
		case err == nil && prev != r.Test:
			if err := txn.Delete(reportKey(prev, r.ID)); err != nil {
				return err
			}
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			return err
		}

		if err := txn.Set(indexKey(r.ID), []byte(r.Test)); err != nil {
			return err
		}
		return txn.Set(reportKey(r.Test, r.ID), data)
	})
}

// Get retrieves a report by id.
func (s *Store) Get(ctx context.Context, id string) (*tck.Report, error) {
	var r *tck.Report

	err := s.db.View(func(txn *badger.Txn) error {
		test, err := lookupTest(txn, id)
		if err != nil {
			return err
		}

		item, err := txn.Get(reportKey(test, id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}

		return item.Value(func(val []byte) error {
			r, err = decodeReport(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	return r, nil
}

// List returns the reports of a test ordered by start time.
func (s *Store) List(ctx context.Context, test string) ([]*tck.Report, error) {
	prefix := reportPrefix
	if test != "" {
		prefix += test + ":"
	}

	var reports []*tck.Report
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			err := it.Item().Value(func(val []byte) error {
				r, err := decodeReport(val)
				if err != nil {
					return err
				}
				// Test names containing ':' share a prefix with shorter names.
				if test == "" || r.Test == test {
					reports = append(reports, r)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	storage.SortByStart(reports)
	return reports, nil
}

// Delete removes a report by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		test, err := lookupTest(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(reportKey(test, id)); err != nil {
			return err
		}
		return txn.Delete(indexKey(id))
	})
}

func lookupTest(txn *badger.Txn, id string) (string, error) {
	item, err := txn.Get(indexKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return "", storage.ErrNotFound
		}
		return "", err
	}

	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(val), nil
}

// Close gracefully closes the BadgerDB database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.gcStopCh)
	<-s.gcDone

	return s.db.Close()
}

// runGC runs BadgerDB's value log garbage collection periodically.
func (s *Store) runGC(interval time.Duration) {
	defer close(s.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Returns an error when there was nothing to collect.
			_ = s.db.RunValueLogGC(0.5)
		case <-s.gcStopCh:
			return
		}
	}
}
