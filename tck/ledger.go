// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package tck

import (
	"fmt"
	"sort"
	"strings"
)

// Verdict is the outcome of a single assertion.
type Verdict uint8

const (
	// Unset means the assertion was never exercised.
	Unset Verdict = iota
	Pass
	Fail
)

func (v Verdict) String() string {
	switch v {
	case Pass:
		return "PASS"
	case Fail:
		return "FAIL"
	default:
		return "NOT EXECUTED"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Verdict) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "PASS":
		*v = Pass
	case "FAIL":
		*v = Fail
	case "NOT EXECUTED", "":
		*v = Unset
	default:
		return fmt.Errorf("unknown verdict %q", b)
	}
	return nil
}

// VerdictOf maps a check outcome to Pass or Fail.
func VerdictOf(passed bool) Verdict {
	if passed {
		return Pass
	}
	return Fail
}

// Results maps assertion ids to verdicts.
type Results map[string]Verdict

// Count returns the number of passed, failed and unset assertions.
func (r Results) Count() (passed, failed, unset int) {
	for _, v := range r {
		switch v {
		case Pass:
			passed++
		case Fail:
			failed++
		default:
			unset++
		}
	}
	return passed, failed, unset
}

// IDs returns the assertion ids in sorted order.
func (r Results) IDs() []string {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Ledger records verdicts for a fixed catalogue of assertion ids.
// The last write for an id wins. A Ledger is not safe for concurrent use.
type Ledger struct {
	ids      []string
	verdicts map[string]Verdict
}

// NewLedger creates a ledger for the given catalogue. Duplicate ids are
// recorded once.
func NewLedger(ids ...string) *Ledger {
	l := &Ledger{verdicts: make(map[string]Verdict, len(ids))}
	for _, id := range ids {
		if _, ok := l.verdicts[id]; ok {
			continue
		}
		l.ids = append(l.ids, id)
		l.verdicts[id] = Unset
	}
	return l
}

// Set records the verdict of id, replacing any earlier one. Ids outside the
// catalogue are ignored and Set returns false.
func (l *Ledger) Set(id string, passed bool) bool {
	if _, ok := l.verdicts[id]; !ok {
		return false
	}
	l.verdicts[id] = VerdictOf(passed)
	return true
}

// Get returns the current verdict of id.
func (l *Ledger) Get(id string) Verdict {
	return l.verdicts[id]
}

// IDs returns the catalogue in declaration order.
func (l *Ledger) IDs() []string {
	return append([]string(nil), l.ids...)
}

// Snapshot returns a copy holding every catalogue id.
func (l *Ledger) Snapshot() Results {
	out := make(Results, len(l.ids))
	for _, id := range l.ids {
		out[id] = l.verdicts[id]
	}
	return out
}

// Reset sets every verdict back to Unset.
func (l *Ledger) Reset() {
	for _, id := range l.ids {
		l.verdicts[id] = Unset
	}
}
