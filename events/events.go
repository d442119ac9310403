// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"encoding/json"
	"time"

	"github.com/absmach/sparkplug-tck/sparkplug"
	"github.com/absmach/sparkplug-tck/tck"
	"github.com/google/uuid"
)

// Event type constants.
const (
	TypeTestCompleted   = "test.completed"
	TypeAssertionFailed = "assertion.failed"
)

// Event is the common interface for all webhook events.
type Event interface {
	// Type returns the event type identifier (e.g., "test.completed")
	Type() string

	// Topic returns the Sparkplug topic the event refers to, empty if none
	Topic() string

	// Wrap wraps the event in a common envelope with metadata
	Wrap(source string) *Envelope
}

// Envelope is the common wrapper for all webhook events.
type Envelope struct {
	EventType string `json:"event_type"`
	EventID   string `json:"event_id"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
	Data      any    `json:"data"`
}

// MarshalJSON serializes the envelope to JSON.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	type plain Envelope
	return json.Marshal((*plain)(e))
}

func wrap(e Event, source string) *Envelope {
	return &Envelope{
		EventType: e.Type(),
		EventID:   uuid.New().String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Source:    source,
		Data:      e,
	}
}

// TestCompleted is emitted when a test session ends.
type TestCompleted struct {
	ReportID   string            `json:"report_id"`
	TestName   string            `json:"test"`
	Parameters []string          `json:"parameters,omitempty"`
	Passed     int               `json:"passed"`
	Failed     int               `json:"failed"`
	NotRun     int               `json:"not_executed"`
	Result     string            `json:"result"` // "PASS" or "FAIL"
	Results    map[string]string `json:"results"`
	Duration   int64             `json:"duration_ms"`
}

func (e TestCompleted) Type() string                 { return TypeTestCompleted }
func (e TestCompleted) Topic() string                { return "" }
func (e TestCompleted) Wrap(source string) *Envelope { return wrap(e, source) }

// AssertionFailed is emitted for every clause that ended with a failing verdict.
type AssertionFailed struct {
	ReportID      string `json:"report_id"`
	TestName      string `json:"test"`
	RequirementID string `json:"requirement_id"`
	Section       string `json:"section,omitempty"`
	Requirement   string `json:"requirement,omitempty"`
	MessageTopic  string `json:"topic,omitempty"`
}

func (e AssertionFailed) Type() string                 { return TypeAssertionFailed }
func (e AssertionFailed) Topic() string                { return e.MessageTopic }
func (e AssertionFailed) Wrap(source string) *Envelope { return wrap(e, source) }

// FromReport builds the completion event and one failure event per failed
// clause, in clause id order.
func FromReport(r *tck.Report) []Event {
	passed, failed, unset := r.Results.Count()
	result := tck.VerdictOf(r.Passed()).String()

	results := make(map[string]string, len(r.Results))
	for id, v := range r.Results {
		results[id] = v.String()
	}

	evs := []Event{TestCompleted{
		ReportID:   r.ID,
		TestName:   r.Test,
		Parameters: r.Parameters,
		Passed:     passed,
		Failed:     failed,
		NotRun:     unset,
		Result:     result,
		Results:    results,
		Duration:   r.EndedAt.Sub(r.StartedAt).Milliseconds(),
	}}

	for _, id := range r.Results.IDs() {
		if r.Results[id] != tck.Fail {
			continue
		}
		ev := AssertionFailed{
			ReportID:      r.ID,
			TestName:      r.Test,
			RequirementID: id,
			MessageTopic:  r.Evidence[id],
		}
		if req, ok := sparkplug.LookupRequirement(id); ok {
			ev.Section = req.Section
			ev.Requirement = req.Text
		}
		evs = append(evs, ev)
	}

	return evs
}
