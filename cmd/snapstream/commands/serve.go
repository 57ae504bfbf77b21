package commands

import (
	"context"
	"io/fs"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/wojas/go-healthz"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerlabs/snapstream/accountindex"
	"github.com/ledgerlabs/snapstream/rpcserver"
	"github.com/ledgerlabs/snapstream/snapshotdir"
	"github.com/ledgerlabs/snapstream/status"
	"github.com/ledgerlabs/snapstream/status/healthtracker"
	"github.com/ledgerlabs/snapstream/utils"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve historical JSON-RPC queries from the snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(rootCtx)
		defer cancel()
		log := logrus.WithField("component", "serve")

		snap, err := openSnapshot(ctx)
		if err != nil {
			return err
		}
		segments, err := snap.Segments(ctx)
		if err != nil {
			return err
		}
		status.SetSnapshotInfo(status.SnapshotInfo{
			Slot:        snap.Slot(),
			SegmentsLen: len(segments),
		})

		healthz.AddBuildInfo()
		if hostname, err := os.Hostname(); err == nil {
			healthz.SetMeta("hostname", hostname)
		}
		healthz.SetMeta("version", version)
		healthz.SetMeta("slot", snap.Slot())
		status.StartHTTPServer(conf)

		ix, err := loadOrBuildIndex(ctx, log, snap)
		if err != nil {
			return err
		}
		status.SetSnapshotInfo(status.SnapshotInfo{
			Slot:        snap.Slot(),
			SegmentsLen: len(segments),
			Accounts:    ix.Len(),
			IndexReady:  true,
		})
		utils.GC()

		var health rpcserver.Health
		if conf.RPC.TransactionForwardURL != "" {
			health = healthtracker.New(healthtracker.HealthConfig{
				EvaluationInterval: 5 * time.Second,
				WarnSequence:       3,
				ErrorSequence:      10,
				WarnDuration:       time.Minute,
				ErrorDuration:      5 * time.Minute,
			}, "transaction_forward", "forward transaction upstream")
		}

		srv := rpcserver.New(log, conf.RPC, snap, ix, health)
		eg, ctx := errgroup.WithContext(ctx)
		eg.Go(func() error {
			return srv.Run(ctx)
		})
		log.Info("Serving")
		return eg.Wait()
	},
}

// loadOrBuildIndex reuses a previously dumped index when one exists
// for this exact slot, and falls back to a full segment scan.
func loadOrBuildIndex(ctx context.Context, log logrus.FieldLogger, snap *snapshotdir.Snapshot) (*accountindex.Index, error) {
	if path := conf.Scan.IndexPath; path != "" {
		ix, slot, err := accountindex.LoadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.WithField("path", path).Info("No index file yet, scanning")
		case err != nil:
			log.WithError(err).WithField("path", path).Warn("Failed to load index file, scanning")
		case slot != snap.Slot():
			log.WithFields(logrus.Fields{
				"index_slot":    slot,
				"snapshot_slot": snap.Slot(),
			}).Warn("Index file is for another snapshot, scanning")
		default:
			log.WithFields(logrus.Fields{
				"path":     path,
				"accounts": ix.Len(),
			}).Info("Index loaded from file")
			return ix, nil
		}
	}

	ix, err := accountindex.Build(ctx, log, snap, conf.Scan.ExpectedAccounts, nil)
	if err != nil {
		return nil, err
	}
	if path := conf.Scan.IndexPath; path != "" {
		if err := ix.WriteFile(path, snap.Slot()); err != nil {
			log.WithError(err).WithField("path", path).Warn("Failed to write index file")
		} else {
			log.WithField("path", path).Info("Index written")
		}
	}
	return ix, nil
}
