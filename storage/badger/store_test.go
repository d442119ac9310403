// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package badger

import (
	"context"
	"testing"

	"github.com/absmach/sparkplug-tck/storage"
	"github.com/absmach/sparkplug-tck/storage/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T, dir string) *Store {
	t.Helper()

	s, err := New(Config{Dir: dir})
	require.NoError(t, err)
	return s
}

func TestStore(t *testing.T) {
	for _, name := range []string{"none", "s2", "zstd"} {
		t.Run(name, func(t *testing.T) {
			c, err := ParseCompression(name)
			require.NoError(t, err)

			storetest.Run(t, func(t *testing.T) storage.ReportStore {
				s, err := New(Config{Dir: t.TempDir(), Compression: c})
				require.NoError(t, err)
				t.Cleanup(func() { s.Close() })
				return s
			})
		})
	}
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, c)

	_, err = ParseCompression("lz4")
	assert.Error(t, err)
}

func TestDecodeReportErrors(t *testing.T) {
	_, err := decodeReport(nil)
	assert.Error(t, err)

	_, err = decodeReport([]byte{9, '{', '}'})
	assert.Error(t, err)

	_, err = decodeReport([]byte{byte(CompressionZstd), 1, 2, 3})
	assert.Error(t, err)
}

func TestStore_CompressionChangeKeepsReadable(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := New(Config{Dir: dir, Compression: CompressionS2})
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, storetest.NewReport("run-1", "SessionTermination", 0)))
	require.NoError(t, s.Close())

	s, err = New(Config{Dir: dir, Compression: CompressionZstd})
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.ID)
}

func TestStore_Reopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s := setupStore(t, dir)
	require.NoError(t, s.Save(ctx, storetest.NewReport("run-1", "SessionTermination", 0)))
	require.NoError(t, s.Close())

	s = setupStore(t, dir)
	defer s.Close()

	got, err := s.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "SessionTermination", got.Test)
}

func TestStore_CloseIdempotent(t *testing.T) {
	s := setupStore(t, t.TempDir())
	require.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}
