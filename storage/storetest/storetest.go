// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package storetest holds behaviour tests shared by storage.ReportStore backends.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/absmach/sparkplug-tck/storage"
	"github.com/absmach/sparkplug-tck/tck"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// NewReport builds a report started offset after a fixed base time.
func NewReport(id, test string, offset time.Duration) *tck.Report {
	return &tck.Report{
		ID:         id,
		Test:       test,
		Parameters: []string{"H", "G1", "E1", "D1"},
		StartedAt:  base.Add(offset),
		EndedAt:    base.Add(offset + time.Second),
		Results: tck.Results{
			"topics-ddeath-mqtt":        tck.Pass,
			"payloads-ddeath-seq":       tck.Fail,
			"operational-behavior-edge": tck.Unset,
		},
		Evidence: map[string]string{
			"topics-ddeath-mqtt":  "spBv1.0/G1/DDEATH/E1/D1",
			"payloads-ddeath-seq": "spBv1.0/G1/DDEATH/E1/D1",
		},
	}
}

// Run exercises a ReportStore created by newStore.
func Run(t *testing.T, newStore func(t *testing.T) storage.ReportStore) {
	ctx := context.Background()

	t.Run("save and get", func(t *testing.T) {
		s := newStore(t)
		r := NewReport("run-1", "SessionTermination", 0)

		require.NoError(t, s.Save(ctx, r))

		got, err := s.Get(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, r.Test, got.Test)
		assert.Equal(t, r.Parameters, got.Parameters)
		assert.Equal(t, r.Results, got.Results)
		assert.Equal(t, r.Evidence, got.Evidence)
		assert.True(t, r.StartedAt.Equal(got.StartedAt))
	})

	t.Run("get not found", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("invalid report", func(t *testing.T) {
		s := newStore(t)
		assert.ErrorIs(t, s.Save(ctx, nil), storage.ErrInvalidReport)
		assert.ErrorIs(t, s.Save(ctx, &tck.Report{Test: "SessionTermination"}), storage.ErrInvalidReport)
		assert.ErrorIs(t, s.Save(ctx, &tck.Report{ID: "run-1"}), storage.ErrInvalidReport)
	})

	t.Run("stored copy is isolated", func(t *testing.T) {
		s := newStore(t)
		r := NewReport("run-1", "SessionTermination", 0)
		require.NoError(t, s.Save(ctx, r))

		r.Results["topics-ddeath-mqtt"] = tck.Fail

		got, err := s.Get(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, tck.Pass, got.Results["topics-ddeath-mqtt"])
	})

	t.Run("overwrite", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, NewReport("run-1", "SessionTermination", 0)))

		moved := NewReport("run-1", "Other", 0)
		require.NoError(t, s.Save(ctx, moved))

		got, err := s.Get(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, "Other", got.Test)

		old, err := s.List(ctx, "SessionTermination")
		require.NoError(t, err)
		assert.Empty(t, old)
	})

	t.Run("list by test in start order", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, NewReport("c", "SessionTermination", 2*time.Minute)))
		require.NoError(t, s.Save(ctx, NewReport("a", "SessionTermination", 0)))
		require.NoError(t, s.Save(ctx, NewReport("b", "Other", time.Minute)))

		reports, err := s.List(ctx, "SessionTermination")
		require.NoError(t, err)
		require.Len(t, reports, 2)
		assert.Equal(t, "a", reports[0].ID)
		assert.Equal(t, "c", reports[1].ID)

		all, err := s.List(ctx, "")
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].ID, all[1].ID, all[2].ID})
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, NewReport("run-1", "SessionTermination", 0)))

		require.NoError(t, s.Delete(ctx, "run-1"))
		_, err := s.Get(ctx, "run-1")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "run-1"), storage.ErrNotFound)
	})
}
