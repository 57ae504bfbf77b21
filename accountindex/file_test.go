package accountindex

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlabs/snapstream/ledger"
	"github.com/ledgerlabs/snapstream/snapshottest"
)

func TestDumpLoad(t *testing.T) {
	ix := NewIndex(3)
	ix.Observe(snapshottest.Key(1), Location{Slot: 100, ID: 7})
	ix.Observe(snapshottest.Key(2), Location{Slot: 101, ID: 8})
	ix.Observe(snapshottest.Key(3), Location{Slot: 99, ID: 1})

	var buf bytes.Buffer
	require.NoError(t, ix.Dump(&buf, 101))

	got, slot, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(101), slot)
	assert.Equal(t, ix.Len(), got.Len())
	ix.Range(func(pk ledger.Pubkey, want Location) bool {
		loc, ok := got.Get(pk)
		assert.True(t, ok)
		assert.Equal(t, want, loc)
		return true
	})
}

func TestLoad_NotGzip(t *testing.T) {
	_, _, err := Load(bytes.NewReader([]byte("definitely not gzip")))
	assert.Error(t, err)
}

func TestLoad_BadMagic(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(make([]byte, 8+4+8+8))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, _, err = Load(&buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad magic")
}

func TestLoad_Truncated(t *testing.T) {
	ix := NewIndex(2)
	ix.Observe(snapshottest.Key(1), Location{Slot: 1, ID: 1})
	ix.Observe(snapshottest.Key(2), Location{Slot: 2, ID: 2})

	var buf bytes.Buffer
	require.NoError(t, ix.Dump(&buf, 2))

	// Drop the gzip trailer and part of the payload.
	data := buf.Bytes()
	_, _, err := Load(bytes.NewReader(data[:len(data)/2]))
	assert.Error(t, err)
}

func TestWriteLoadFile(t *testing.T) {
	ix := NewIndex(1)
	ix.Observe(snapshottest.Key(7), Location{Slot: 42, ID: 3})

	path := filepath.Join(t.TempDir(), "accounts.idx")
	require.NoError(t, ix.WriteFile(path, 42))

	got, slot, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), slot)
	loc, ok := got.Get(snapshottest.Key(7))
	require.True(t, ok)
	assert.Equal(t, Location{Slot: 42, ID: 3}, loc)
}
