// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package otel

import (
	"context"
	"fmt"

	"github.com/absmach/sparkplug-tck/tck"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "sparkplug-tck"

var _ tck.Recorder = (*Metrics)(nil)

// Metrics holds OpenTelemetry metric instruments for conformance runs.
// A nil *Metrics records nothing.
type Metrics struct {
	meter metric.Meter

	messagesObserved   metric.Int64Counter
	deathCertificates  metric.Int64Counter
	assertionsRecorded metric.Int64Counter
	sessionsCompleted  metric.Int64Counter

	payloadSize metric.Int64Histogram
}

// NewMetrics creates Metrics on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithProvider(otel.GetMeterProvider())
}

// NewMetricsWithProvider creates Metrics on the given meter provider.
func NewMetricsWithProvider(mp metric.MeterProvider) (*Metrics, error) {
	m := &Metrics{
		meter: mp.Meter(meterName),
	}

	var err error

	m.messagesObserved, err = m.meter.Int64Counter(
		"sparkplug.messages.observed",
		metric.WithDescription("Sparkplug messages delivered to the observer"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messagesObserved counter: %w", err)
	}

	m.deathCertificates, err = m.meter.Int64Counter(
		"sparkplug.death.certificates",
		metric.WithDescription("NDEATH and DDEATH messages inspected by tests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create deathCertificates counter: %w", err)
	}

	m.assertionsRecorded, err = m.meter.Int64Counter(
		"tck.assertions.recorded",
		metric.WithDescription("Assertion verdicts recorded by tests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create assertionsRecorded counter: %w", err)
	}

	m.sessionsCompleted, err = m.meter.Int64Counter(
		"tck.sessions.completed",
		metric.WithDescription("Test sessions that ended"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sessionsCompleted counter: %w", err)
	}

	m.payloadSize, err = m.meter.Int64Histogram(
		"sparkplug.payload.size",
		metric.WithDescription("Size of observed Sparkplug payloads"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create payloadSize histogram: %w", err)
	}

	return m, nil
}

// RecordObserved records a message delivered to the observer.
func (m *Metrics) RecordObserved(messageType string, sizeBytes int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("message_type", messageType))
	m.messagesObserved.Add(context.Background(), 1, attrs)
	m.payloadSize.Record(context.Background(), sizeBytes, attrs)
}

// RecordMessage records a death certificate inspected by a test.
func (m *Metrics) RecordMessage(test, kind string) {
	if m == nil {
		return
	}
	m.deathCertificates.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("test", test),
		attribute.String("kind", kind),
	))
}

// RecordAssertion records a verdict written to a test ledger.
func (m *Metrics) RecordAssertion(test, id string, v tck.Verdict) {
	if m == nil {
		return
	}
	m.assertionsRecorded.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("test", test),
		attribute.String("id", id),
		attribute.String("verdict", v.String()),
	))
}

// RecordTestCompleted records the end of a test session.
func (m *Metrics) RecordTestCompleted(test string, passed bool) {
	if m == nil {
		return
	}
	m.sessionsCompleted.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("test", test),
		attribute.String("result", tck.VerdictOf(passed).String()),
	))
}
