package dump_test

import (
	"context"
	"database/sql"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/ledgerlabs/snapstream/dump"
	"github.com/ledgerlabs/snapstream/snapshotdir"
	"github.com/ledgerlabs/snapstream/snapshottest"
)

func TestToSQLite(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	root := t.TempDir()
	segments := []snapshottest.Segment{
		{Slot: 100, ID: 7, Accounts: []snapshottest.Account{
			{Pubkey: snapshottest.Key(1), Lamports: 10, Owner: snapshottest.Key(9), Data: []byte("abc")},
			{Pubkey: snapshottest.Key(2), Lamports: 20, Owner: snapshottest.Key(9)},
		}},
		{Slot: 101, ID: 8, Accounts: []snapshottest.Account{
			{Pubkey: snapshottest.Key(1), Lamports: 15, Owner: snapshottest.Key(9), Data: []byte("abcd")},
		}},
	}
	require.NoError(t, snapshottest.WriteUnpacked(root, 101, segments))

	ctx := context.Background()
	snap, err := snapshotdir.Open(ctx, log, snapshotdir.NewDirSource(root), nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "accounts.db")
	require.NoError(t, dump.ToSQLite(ctx, log, snap, path))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM account").Scan(&count))
	assert.Equal(t, 3, count)

	// Every version of Key(1) is present; the freshest has slot 101.
	pk := snapshottest.Key(1)
	var lamports int64
	err = db.QueryRow(
		"SELECT lamports FROM account WHERE pubkey = ? ORDER BY slot DESC LIMIT 1",
		pk[:],
	).Scan(&lamports)
	require.NoError(t, err)
	assert.Equal(t, int64(15), lamports)

	var data []byte
	err = db.QueryRow(
		"SELECT data FROM account WHERE pubkey = ? AND slot = 100", pk[:],
	).Scan(&data)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)
}
