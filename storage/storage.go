// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"errors"
	"sort"

	"github.com/absmach/sparkplug-tck/tck"
)

// Common errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidReport = errors.New("report must have an id and a test name")
)

// ReportStore persists reports of finished test sessions.
type ReportStore interface {
	// Save stores a report, replacing any report with the same id.
	Save(ctx context.Context, r *tck.Report) error

	// Get retrieves a report by id.
	Get(ctx context.Context, id string) (*tck.Report, error)

	// List returns the reports of a test ordered by start time.
	// An empty test name lists all reports.
	List(ctx context.Context, test string) ([]*tck.Report, error)

	// Delete removes a report by id.
	Delete(ctx context.Context, id string) error

	// Close releases the backend.
	Close() error
}

// Validate checks that a report can be stored.
func Validate(r *tck.Report) error {
	if r == nil || r.ID == "" || r.Test == "" {
		return ErrInvalidReport
	}
	return nil
}

// SortByStart orders reports by start time, then by id.
func SortByStart(reports []*tck.Report) {
	sort.Slice(reports, func(i, j int) bool {
		a, b := reports[i], reports[j]
		if !a.StartedAt.Equal(b.StartedAt) {
			return a.StartedAt.Before(b.StartedAt)
		}
		return a.ID < b.ID
	})
}

// CopyReport returns a deep copy of r.
func CopyReport(r *tck.Report) *tck.Report {
	if r == nil {
		return nil
	}
	c := *r
	if r.Parameters != nil {
		c.Parameters = append([]string(nil), r.Parameters...)
	}
	if r.Results != nil {
		c.Results = make(tck.Results, len(r.Results))
		for k, v := range r.Results {
			c.Results[k] = v
		}
	}
	if r.Evidence != nil {
		c.Evidence = make(map[string]string, len(r.Evidence))
		for k, v := range r.Evidence {
			c.Evidence[k] = v
		}
	}
	return &c
}
