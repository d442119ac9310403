// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"sync"

	"github.com/absmach/sparkplug-tck/storage"
	"github.com/absmach/sparkplug-tck/tck"
)

var _ storage.ReportStore = (*Store)(nil)

// Store is an in-memory implementation of storage.ReportStore.
type Store struct {
	mu   sync.RWMutex
	data map[string]*tck.Report // report id -> report
}

// New creates a new in-memory report store.
func New() *Store {
	return &Store{
		data: make(map[string]*tck.Report),
	}
}

// Save stores a copy of the report.
func (s *Store) Save(ctx context.Context, r *tck.Report) error {
	if err := storage.Validate(r); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[r.ID] = storage.CopyReport(r)
	return nil
}

// Get retrieves a report by id.
func (s *Store) Get(ctx context.Context, id string) (*tck.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return storage.CopyReport(r), nil
}

// List returns the reports of a test ordered by start time.
func (s *Store) List(ctx context.Context, test string) ([]*tck.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*tck.Report
	for _, r := range s.data {
		if test != "" && r.Test != test {
			continue
		}
		out = append(out, storage.CopyReport(r))
	}
	storage.SortByStart(out)
	return out, nil
}

// Delete removes a report by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.data, id)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
