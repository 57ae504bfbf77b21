// Package dump exports every account record of a snapshot into a
// SQLite database for ad-hoc querying.
package dump

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/ledgerlabs/snapstream/appendvec"
	"github.com/ledgerlabs/snapstream/snapshotdir"
)

const schema = `
CREATE TABLE account (
	pubkey        BLOB    NOT NULL,
	slot          INTEGER NOT NULL,
	segment_id    INTEGER NOT NULL,
	write_version INTEGER NOT NULL,
	lamports      INTEGER NOT NULL,
	owner         BLOB    NOT NULL,
	executable    INTEGER NOT NULL,
	rent_epoch    INTEGER NOT NULL,
	data          BLOB,
	PRIMARY KEY (pubkey, slot, segment_id, write_version)
);
CREATE INDEX account_owner ON account (owner);
`

// ToSQLite writes all account records of the snapshot to a new SQLite
// database at path. Every record is written, including stale versions
// of accounts that also appear in later slots; the slot column lets
// queries pick the freshest one.
func ToSQLite(ctx context.Context, log logrus.FieldLogger, snap *snapshotdir.Snapshot, path string) error {
	if log == nil {
		log = logrus.StandardLogger()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return errors.Wrap(err, "open database")
	}
	defer func() {
		_ = db.Close()
	}()

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=OFF", // bulk export, the file is disposable on failure
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return errors.Wrapf(err, "apply %q", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "create schema")
	}

	files, err := snap.Segments(ctx)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"segments": len(files),
		"path":     path,
	}).Info("Dumping snapshot to SQLite")

	var total uint64
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}
		n, err := dumpSegment(ctx, db, snap, f)
		if errors.Is(err, snapshotdir.ErrUnexpectedSegment) {
			log.WithField("segment", f.Name).Warn("Skipping segment not declared in manifest")
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "segment %s", f.Name)
		}
		total += n
	}

	log.WithField("records", total).Info("Snapshot dump complete")
	return nil
}

// dumpSegment writes one segment's records in a single transaction.
func dumpSegment(ctx context.Context, db *sql.DB, snap *snapshotdir.Snapshot, f snapshotdir.SegmentFile) (uint64, error) {
	av, err := snap.OpenSegment(ctx, f)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = av.Close()
	}()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
INSERT OR REPLACE INTO account
	(pubkey, slot, segment_id, write_version, lamports, owner, executable, rent_epoch, data)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	var n uint64
	it := appendvec.Records(av)
	for {
		h, ok := it.Next()
		if !ok {
			break
		}
		sa, ok := h.Access()
		if !ok {
			break
		}
		_, err := stmt.ExecContext(ctx,
			sa.Meta.Pubkey[:],
			int64(f.Slot),
			int64(f.ID),
			int64(sa.Meta.WriteVersion),
			int64(sa.Account.Lamports),
			sa.Account.Owner[:],
			sa.Account.Executable,
			int64(sa.Account.RentEpoch),
			sa.Data,
		)
		if err != nil {
			return 0, errors.WithStack(err)
		}
		n++
	}
	return n, errors.WithStack(tx.Commit())
}
