// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/absmach/sparkplug-tck/sparkplug"
	"github.com/absmach/sparkplug-tck/tck"
)

// Text writes human-readable reports.
type Text struct {
	writer  io.Writer
	verbose bool
}

// NewText creates a text reporter. Verbose adds requirement texts and
// evidence topics.
func NewText(w io.Writer, verbose bool) *Text {
	return &Text{writer: w, verbose: verbose}
}

// Report implements tck.Reporter.
func (t *Text) Report(ctx context.Context, r *tck.Report) error {
	w := &errWriter{w: t.writer}

	w.printf("\n=== Test: %s ===\n", r.Test)
	w.printf("Report:   %s\n", r.ID)
	if len(r.Parameters) > 0 {
		w.printf("Params:   %v\n", r.Parameters)
	}
	w.printf("Duration: %s\n\n", r.EndedAt.Sub(r.StartedAt).Round(time.Millisecond))

	for _, id := range r.Results.IDs() {
		w.printf("[%s] %s\n", r.Results[id], id)
		if !t.verbose {
			continue
		}
		if req, ok := sparkplug.LookupRequirement(id); ok {
			w.printf("       %s: %s\n", req.Section, req.Text)
		}
		if topic := r.Evidence[id]; topic != "" {
			w.printf("       Topic: %s\n", topic)
		}
	}

	passed, failed, unset := r.Results.Count()
	w.printf("\n--- Summary ---\n")
	w.printf("Total:        %d\n", len(r.Results))
	w.printf("Passed:       %d\n", passed)
	w.printf("Failed:       %d\n", failed)
	w.printf("Not executed: %d\n", unset)
	if total := passed + failed; total > 0 {
		w.printf("Pass Rate:    %.1f%%\n", float64(passed)/float64(total)*100)
	}
	w.printf("Result:       %s\n", tck.VerdictOf(r.Passed()))

	return w.err
}

// JSON writes reports as JSON documents.
type JSON struct {
	writer io.Writer
	pretty bool
}

// NewJSON creates a JSON reporter.
func NewJSON(w io.Writer, pretty bool) *JSON {
	return &JSON{writer: w, pretty: pretty}
}

// Report implements tck.Reporter.
func (j *JSON) Report(ctx context.Context, r *tck.Report) error {
	enc := json.NewEncoder(j.writer)
	if j.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(r)
}

// errWriter keeps the first write error.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
