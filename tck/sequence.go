// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package tck

// SeqModulus is the modulus of Sparkplug sequence numbers.
const SeqModulus = 256

// OriginKind tells node and device sequence streams apart.
type OriginKind uint8

const (
	OriginNode OriginKind = iota
	OriginDevice
)

// Origin identifies an independent sequence stream.
type Origin struct {
	Kind OriginKind
	ID   string
}

// NodeOrigin returns the sequence stream of an edge node.
func NodeOrigin(edgeNodeID string) Origin {
	return Origin{Kind: OriginNode, ID: edgeNodeID}
}

// DeviceOrigin returns the sequence stream of a device.
func DeviceOrigin(deviceID string) Origin {
	return Origin{Kind: OriginDevice, ID: deviceID}
}

// SequenceTracker validates sequence continuity per origin.
// It is not safe for concurrent use.
type SequenceTracker struct {
	last map[Origin]uint8
}

// NewSequenceTracker returns an empty tracker.
func NewSequenceTracker() *SequenceTracker {
	return &SequenceTracker{last: make(map[Origin]uint8)}
}

// ValidRange reports whether seq is present and within [0, 255].
func ValidRange(seq *uint64) bool {
	return seq != nil && *seq < SeqModulus
}

// Valid checks seq for origin and records it as the new baseline when it is
// in range. The first value of an origin is always accepted; afterwards seq
// must be exactly one more than the baseline, modulo 256.
func (t *SequenceTracker) Valid(origin Origin, seq *uint64) bool {
	if !ValidRange(seq) {
		return false
	}
	next := uint8(*seq)
	last, seen := t.last[origin]
	t.last[origin] = next
	if !seen {
		return true
	}
	return next == last+1
}

// Last returns the baseline of origin.
func (t *SequenceTracker) Last(origin Origin) (uint8, bool) {
	v, ok := t.last[origin]
	return v, ok
}

// Reset drops every baseline.
func (t *SequenceTracker) Reset() {
	clear(t.last)
}
