// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package report provides tck.Reporter implementations for finished test
// sessions.
package report

import (
	"context"
	"errors"

	"github.com/absmach/sparkplug-tck/tck"
)

var _ tck.Reporter = Multi(nil)

// Multi fans a report out to every reporter in order. All reporters run
// even if some fail; their errors are joined.
type Multi []tck.Reporter

// Report implements tck.Reporter.
func (m Multi) Report(ctx context.Context, r *tck.Report) error {
	var errs []error
	for _, rep := range m {
		if rep == nil {
			continue
		}
		if err := rep.Report(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Func adapts a function to tck.Reporter.
type Func func(ctx context.Context, r *tck.Report) error

// Report implements tck.Reporter.
func (f Func) Report(ctx context.Context, r *tck.Report) error {
	return f(ctx, r)
}
