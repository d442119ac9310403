// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"context"
	"fmt"

	"github.com/absmach/sparkplug-tck/storage"
	"github.com/absmach/sparkplug-tck/tck"
)

// Store persists reports in a storage.ReportStore.
type Store struct {
	store storage.ReportStore
}

// NewStore creates a persisting reporter.
func NewStore(store storage.ReportStore) *Store {
	return &Store{store: store}
}

// Report implements tck.Reporter.
func (s *Store) Report(ctx context.Context, r *tck.Report) error {
	if err := s.store.Save(ctx, r); err != nil {
		return fmt.Errorf("failed to save report %s: %w", r.ID, err)
	}
	return nil
}
