// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/absmach/sparkplug-tck/events"
	"github.com/absmach/sparkplug-tck/tck"
	"github.com/absmach/sparkplug-tck/webhook"
)

// Notifier turns a report into webhook events: test.completed and one
// assertion.failed per failed clause.
type Notifier struct {
	notifier webhook.Notifier
}

// NewNotifier creates a webhook reporter.
func NewNotifier(n webhook.Notifier) *Notifier {
	return &Notifier{notifier: n}
}

// Report implements tck.Reporter.
func (n *Notifier) Report(ctx context.Context, r *tck.Report) error {
	var errs []error
	for _, ev := range events.FromReport(r) {
		if err := n.notifier.Notify(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("failed to notify %s: %w", ev.Type(), err))
		}
	}
	return errors.Join(errs...)
}
