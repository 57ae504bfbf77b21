package accountindex

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/ledgerlabs/snapstream/appendvec"
	"github.com/ledgerlabs/snapstream/snapshotdir"
	"github.com/ledgerlabs/snapstream/utils"
)

// BuildStats counts what a Build pass saw. The counters are atomic so
// a status page can read them while the build runs.
type BuildStats struct {
	Segments        atomic.Uint64
	SegmentsSkipped atomic.Uint64
	Records         atomic.Uint64
	Updated         atomic.Uint64
}

// progressInterval is the time between build progress lines.
const progressInterval = 10 * time.Second

// Build walks every segment of the snapshot in listing order and
// returns the pubkey index. expectedAccounts pre-sizes the map and may
// be zero.
//
// Segment files the manifest does not declare are skipped with a
// warning rather than failing the build. stats may be nil.
func Build(ctx context.Context, log logrus.FieldLogger, snap *snapshotdir.Snapshot, expectedAccounts int, stats *BuildStats) (*Index, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if stats == nil {
		stats = new(BuildStats)
	}

	files, err := snap.Segments(ctx)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"segments": len(files),
		"slot":     snap.Slot(),
	}).Info("Building account index")

	progressCtx, stopProgress := context.WithCancel(ctx)
	defer stopProgress()
	go reportProgress(progressCtx, log, stats)

	ix := NewIndex(expectedAccounts)
	for _, f := range files {
		if utils.IsCanceled(ctx) {
			return nil, errors.WithStack(ctx.Err())
		}
		if err := buildSegment(ctx, log, snap, f, ix, stats); err != nil {
			return nil, err
		}
	}

	metricAccountsIndexed.Set(float64(ix.Len()))
	log.WithFields(logrus.Fields{
		"accounts": ix.Len(),
		"records":  stats.Records.Load(),
		"segments": stats.Segments.Load(),
		"skipped":  stats.SegmentsSkipped.Load(),
	}).Info("Account index built")
	return ix, nil
}

func buildSegment(ctx context.Context, log logrus.FieldLogger, snap *snapshotdir.Snapshot, f snapshotdir.SegmentFile, ix *Index, stats *BuildStats) error {
	av, err := snap.OpenSegment(ctx, f)
	if errors.Is(err, snapshotdir.ErrUnexpectedSegment) {
		stats.SegmentsSkipped.Inc()
		metricSegmentsSkipped.Inc()
		log.WithField("segment", f.Name).Warn("Skipping segment not declared in manifest")
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "segment %s", f.Name)
	}
	defer func() {
		if err := av.Close(); err != nil {
			log.WithError(err).WithField("segment", f.Name).Warn("Failed to close segment")
		}
	}()

	loc := Location{Slot: f.Slot, ID: f.ID}
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
		if ix.Observe(sa.Meta.Pubkey, loc) {
			stats.Updated.Inc()
		}
		stats.Records.Inc()
		metricRecordsScanned.Inc()
	}
	stats.Segments.Inc()
	return nil
}

// reportProgress logs build throughput every progressInterval until its
// context is cancelled. It only reads the atomic counters, never the
// index itself.
func reportProgress(ctx context.Context, log logrus.FieldLogger, stats *BuildStats) {
	start := time.Now()
	for {
		if err := utils.SleepContext(ctx, progressInterval); err != nil {
			return
		}
		log.WithFields(logrus.Fields{
			"records":  stats.Records.Load(),
			"segments": stats.Segments.Load(),
			"elapsed":  utils.TimeDiff(time.Now(), start),
		}).Info("Account index progress")
	}
}
