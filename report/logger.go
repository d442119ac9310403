// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"context"
	"log/slog"

	"github.com/absmach/sparkplug-tck/tck"
)

// Logger writes a report as structured log records: one per clause and a
// summary.
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a logging reporter.
func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

// Report implements tck.Reporter.
func (l *Logger) Report(ctx context.Context, r *tck.Report) error {
	for _, id := range r.Results.IDs() {
		v := r.Results[id]
		level := slog.LevelInfo
		if v == tck.Fail {
			level = slog.LevelWarn
		}
		attrs := []slog.Attr{
			slog.String("test", r.Test),
			slog.String("id", id),
			slog.String("verdict", v.String()),
		}
		if topic := r.Evidence[id]; topic != "" {
			attrs = append(attrs, slog.String("topic", topic))
		}
		l.logger.LogAttrs(ctx, level, "assertion", attrs...)
	}

	passed, failed, unset := r.Results.Count()
	l.logger.LogAttrs(ctx, slog.LevelInfo, "test report",
		slog.String("report_id", r.ID),
		slog.String("test", r.Test),
		slog.String("result", tck.VerdictOf(r.Passed()).String()),
		slog.Int("passed", passed),
		slog.Int("failed", failed),
		slog.Int("not_executed", unset),
		slog.Duration("duration", r.EndedAt.Sub(r.StartedAt)))

	return nil
}
