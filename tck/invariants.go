// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package tck

import "github.com/absmach/sparkplug-tck/sparkplug"

// Invariants holds the payload checks of a death certificate.
type Invariants struct {
	HasTimestamp bool
	HasSeq       bool
	SeqValid     bool
}

// Checker evaluates payload invariants, delegating sequence continuity to a
// SequenceTracker.
type Checker struct {
	seq *SequenceTracker
}

// NewChecker returns a checker backed by tracker.
func NewChecker(tracker *SequenceTracker) *Checker {
	if tracker == nil {
		tracker = NewSequenceTracker()
	}
	return &Checker{seq: tracker}
}

// Evaluate checks p as published by origin. A nil payload, as produced by
// a failed decode, has none of the fields.
func (c *Checker) Evaluate(origin Origin, p *sparkplug.Payload) Invariants {
	inv := Invariants{
		HasTimestamp: p.HasTimestamp(),
		HasSeq:       p.HasSeq(),
	}
	var seq *uint64
	if inv.HasSeq {
		seq = p.Seq
	}
	inv.SeqValid = c.seq.Valid(origin, seq)
	return inv
}
