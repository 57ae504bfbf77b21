package commands

import (
	"context"

	"github.com/PowerDNS/simpleblob"
	"github.com/sirupsen/logrus"

	"github.com/ledgerlabs/snapstream/snapshotdir"
)

// openSnapshot opens the configured snapshot source and loads its
// manifest.
func openSnapshot(ctx context.Context) (*snapshotdir.Snapshot, error) {
	log := logrus.WithField("component", "snapshot")

	var src snapshotdir.Source
	if conf.Snapshot.Path != "" {
		log.WithField("path", conf.Snapshot.Path).Info("Using local snapshot directory")
		src = snapshotdir.NewDirSource(conf.Snapshot.Path)
	} else {
		st, err := simpleblob.GetBackend(ctx, conf.Snapshot.Storage.Type, conf.Snapshot.Storage.Options)
		if err != nil {
			return nil, err
		}
		log.WithField("storage_type", conf.Snapshot.Storage.Type).Info("Storage backend initialised")
		src = snapshotdir.NewBlobSource(st, conf.Snapshot.Storage.Prefix)
	}

	return snapshotdir.Open(ctx, log, src, snapshotdir.NewLogProgress(log, 0))
}
