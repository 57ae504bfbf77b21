package snapshotdir_test

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/PowerDNS/simpleblob/backends/memory"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlabs/snapstream/snapshotdir"
	"github.com/ledgerlabs/snapstream/snapshottest"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func fixtureSegments() []snapshottest.Segment {
	return []snapshottest.Segment{
		{Slot: 100, ID: 7, Accounts: []snapshottest.Account{
			{Pubkey: snapshottest.Key(1), Lamports: 10, Owner: snapshottest.Key(9)},
			{Pubkey: snapshottest.Key(2), Lamports: 20, Owner: snapshottest.Key(9)},
		}},
		{Slot: 101, ID: 8, Accounts: []snapshottest.Account{
			{Pubkey: snapshottest.Key(3), Lamports: 30, Owner: snapshottest.Key(8)},
		}},
	}
}

func TestOpen_DirSource(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, snapshottest.WriteUnpacked(root, 101, fixtureSegments()))

	ctx := context.Background()
	snap, err := snapshotdir.Open(ctx, testLogger(), snapshotdir.NewDirSource(root), nil)
	require.NoError(t, err)

	assert.Equal(t, uint64(101), snap.Slot())
	assert.Equal(t, uint64(101), snap.Bank().Slot)
	assert.Equal(t, []uint64{100, 101}, snap.SlotsWithSegments())

	files, err := snap.Segments(ctx)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "100.7", files[0].Name)
	assert.Equal(t, uint64(100), files[0].Slot)
	assert.Equal(t, uint64(7), files[0].ID)

	var total int
	for _, f := range files {
		av, err := snap.OpenSegment(ctx, f)
		require.NoError(t, err)
		var offset uint64
		for {
			_, next, ok := av.GetAccount(offset)
			if !ok {
				break
			}
			total++
			offset = next
		}
		require.NoError(t, av.Close())
	}
	assert.Equal(t, 3, total)
}

func TestOpen_NoStatusCache(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, snapshottest.WriteUnpacked(root, 101, fixtureSegments()))
	require.NoError(t, os.Remove(filepath.Join(root, "snapshots", "status_cache")))

	_, err := snapshotdir.Open(context.Background(), testLogger(), snapshotdir.NewDirSource(root), nil)
	assert.True(t, errors.Is(err, snapshotdir.ErrNoStatusCache))
}

func TestOpen_NoManifest(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, snapshottest.WriteUnpacked(root, 101, fixtureSegments()))
	require.NoError(t, os.Remove(filepath.Join(root, "snapshots", "101")))

	_, err := snapshotdir.Open(context.Background(), testLogger(), snapshotdir.NewDirSource(root), nil)
	assert.True(t, errors.Is(err, snapshotdir.ErrNoManifest))
}

func TestSegments_SkipsUnparsableNames(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, snapshottest.WriteUnpacked(root, 101, fixtureSegments()))
	require.NoError(t, os.WriteFile(filepath.Join(root, "accounts", "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "accounts", "102.bad"), []byte("x"), 0o644))

	ctx := context.Background()
	snap, err := snapshotdir.Open(ctx, testLogger(), snapshotdir.NewDirSource(root), nil)
	require.NoError(t, err)

	files, err := snap.Segments(ctx)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestOpenSegmentAt_Undeclared(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, snapshottest.WriteUnpacked(root, 101, fixtureSegments()))

	ctx := context.Background()
	snap, err := snapshotdir.Open(ctx, testLogger(), snapshotdir.NewDirSource(root), nil)
	require.NoError(t, err)

	_, err = snap.OpenSegmentAt(ctx, 999, 1)
	assert.True(t, errors.Is(err, snapshotdir.ErrUnexpectedSegment))

	// Same slot, unknown id.
	_, err = snap.OpenSegmentAt(ctx, 100, 99)
	assert.True(t, errors.Is(err, snapshotdir.ErrUnexpectedSegment))
}

func TestOpen_BlobSource(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, snapshottest.WriteUnpacked(root, 101, fixtureSegments()))

	ctx := context.Background()
	st := memory.New()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		return st.Store(ctx, "ledger/mainnet/"+filepath.ToSlash(rel), data)
	})
	require.NoError(t, err)

	src := snapshotdir.NewBlobSource(st, "ledger/mainnet")
	snap, err := snapshotdir.Open(ctx, testLogger(), src, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(101), snap.Slot())

	av, err := snap.OpenSegmentAt(ctx, 100, 7)
	require.NoError(t, err)
	sa, _, ok := av.GetAccount(0)
	require.True(t, ok)
	assert.Equal(t, snapshottest.Key(1), sa.Meta.Pubkey)
}

func TestOpen_WithProgress(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, snapshottest.WriteUnpacked(root, 101, fixtureSegments()))

	progress := snapshotdir.NewLogProgress(testLogger(), 0)
	_, err := snapshotdir.Open(context.Background(), testLogger(), snapshotdir.NewDirSource(root), progress)
	require.NoError(t, err)
}
