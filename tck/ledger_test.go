// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package tck

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_DefaultsToUnset(t *testing.T) {
	l := NewLedger("a", "b", "a")

	assert.Equal(t, []string{"a", "b"}, l.IDs())
	assert.Equal(t, Results{"a": Unset, "b": Unset}, l.Snapshot())
}

func TestLedger_LastWriteWins(t *testing.T) {
	l := NewLedger("a", "b")

	require.True(t, l.Set("a", true))
	require.True(t, l.Set("a", false))
	assert.Equal(t, Fail, l.Get("a"))

	require.True(t, l.Set("a", true))
	assert.Equal(t, Pass, l.Get("a"))
	assert.Equal(t, Unset, l.Get("b"))
}

func TestLedger_IgnoresUnknownIDs(t *testing.T) {
	l := NewLedger("a")

	assert.False(t, l.Set("x", true))
	assert.NotContains(t, l.Snapshot(), "x")
}

func TestLedger_SnapshotIsCopy(t *testing.T) {
	l := NewLedger("a")
	snap := l.Snapshot()
	snap["a"] = Fail

	assert.Equal(t, Unset, l.Get("a"))
}

func TestLedger_Reset(t *testing.T) {
	l := NewLedger("a", "b")
	l.Set("a", true)
	l.Set("b", false)

	l.Reset()
	assert.Equal(t, Results{"a": Unset, "b": Unset}, l.Snapshot())
}

func TestResults_Count(t *testing.T) {
	r := Results{"a": Pass, "b": Pass, "c": Fail, "d": Unset}

	passed, failed, unset := r.Count()
	assert.Equal(t, 2, passed)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, unset)
}

func TestVerdict_Text(t *testing.T) {
	r := Results{"a": Pass, "b": Fail, "c": Unset}

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"PASS","b":"FAIL","c":"NOT EXECUTED"}`, string(data))

	var back Results
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, r, back)

	var v Verdict
	assert.Error(t, v.UnmarshalText([]byte("maybe")))
}

func TestResults_IDs(t *testing.T) {
	r := Results{"c": Pass, "a": Fail, "b": Unset}
	assert.Equal(t, []string{"a", "b", "c"}, r.IDs())
	assert.Empty(t, Results{}.IDs())
}
