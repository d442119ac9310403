// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package tck

import (
	"testing"

	"github.com/absmach/sparkplug-tck/sparkplug"
	"github.com/stretchr/testify/assert"
)

func TestChecker_Evaluate(t *testing.T) {
	ts := uint64(1700000000000)

	tests := []struct {
		name    string
		payload *sparkplug.Payload
		want    Invariants
	}{
		{
			name:    "complete",
			payload: &sparkplug.Payload{Timestamp: &ts, Seq: seq(5)},
			want:    Invariants{HasTimestamp: true, HasSeq: true, SeqValid: true},
		},
		{
			name:    "missing seq",
			payload: &sparkplug.Payload{Timestamp: &ts},
			want:    Invariants{HasTimestamp: true},
		},
		{
			name:    "missing timestamp",
			payload: &sparkplug.Payload{Seq: seq(5)},
			want:    Invariants{HasSeq: true, SeqValid: true},
		},
		{
			name:    "seq out of range",
			payload: &sparkplug.Payload{Timestamp: &ts, Seq: seq(300)},
			want:    Invariants{HasTimestamp: true, HasSeq: true},
		},
		{
			name: "undecodable",
			want: Invariants{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(nil)
			assert.Equal(t, tt.want, c.Evaluate(DeviceOrigin("D"), tt.payload))
		})
	}
}

func TestChecker_DoesNotMutatePayload(t *testing.T) {
	ts := uint64(1)
	p := &sparkplug.Payload{Timestamp: &ts, Seq: seq(9)}

	NewChecker(nil).Evaluate(DeviceOrigin("D"), p)
	assert.Equal(t, uint64(1), *p.Timestamp)
	assert.Equal(t, uint64(9), *p.Seq)
}

func TestChecker_SharesTracker(t *testing.T) {
	tr := NewSequenceTracker()
	c := NewChecker(tr)

	assert.True(t, c.Evaluate(DeviceOrigin("D"), &sparkplug.Payload{Seq: seq(255)}).SeqValid)
	assert.True(t, c.Evaluate(DeviceOrigin("D"), &sparkplug.Payload{Seq: seq(0)}).SeqValid)
	assert.False(t, c.Evaluate(DeviceOrigin("D"), &sparkplug.Payload{Seq: seq(0)}).SeqValid)

	last, ok := tr.Last(DeviceOrigin("D"))
	assert.True(t, ok)
	assert.Equal(t, uint8(0), last)
}
