// Package snapshotdir opens unpacked snapshot directory trees: it
// validates the layout, loads the manifest and resolves segment files
// against the manifest's registry.
//
// An unpacked snapshot looks like:
//
//	root/snapshots/status_cache   completeness marker
//	root/snapshots/<slot>         manifest, named after its slot
//	root/accounts/<slot>.<id>     one file per segment
package snapshotdir

import (
	"context"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/ledgerlabs/snapstream/appendvec"
	"github.com/ledgerlabs/snapstream/manifest"
)

// SegmentFile identifies one segment file found under accounts/.
type SegmentFile struct {
	Name string
	Slot uint64
	ID   uint64
}

// Snapshot is an opened unpacked snapshot: validated layout, loaded
// manifest, and access to its segments.
type Snapshot struct {
	log    logrus.FieldLogger
	src    Source
	bank   *manifest.Bank
	fields *manifest.AccountsDBFields
}

// Open validates the snapshot layout offered by src and loads its
// manifest. progress receives manifest read progress and may be nil.
func Open(ctx context.Context, log logrus.FieldLogger, src Source, progress ReadProgress) (*Snapshot, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if progress == nil {
		progress = NopProgress{}
	}

	names, err := src.List(ctx, snapshotsDir)
	if err != nil {
		return nil, err
	}
	manifestName, err := findManifest(log, names)
	if err != nil {
		return nil, err
	}

	log.WithField("manifest", manifestName).Info("Loading snapshot manifest")
	r, err := src.Open(ctx, snapshotsDir, manifestName)
	if err != nil {
		return nil, errors.Wrap(err, "open manifest")
	}
	defer func() {
		_ = r.Close()
	}()

	pr := newProgressReader(r, progress)
	bank, err := manifest.LoadBank(pr)
	if err != nil {
		return nil, err
	}
	fields, err := manifest.LoadAccountsDB(pr)
	if err != nil {
		return nil, err
	}
	progress.Done()

	if name := strconv.FormatUint(fields.Slot, 10); name != manifestName {
		log.WithFields(logrus.Fields{
			"manifest": manifestName,
			"slot":     fields.Slot,
		}).Warn("Manifest file name does not match its slot")
	}
	log.WithFields(logrus.Fields{
		"slot":       fields.Slot,
		"slot_files": len(fields.Storages),
	}).Info("Snapshot manifest loaded")

	return &Snapshot{
		log:    log,
		src:    src,
		bank:   bank,
		fields: fields,
	}, nil
}

// findManifest checks the completeness marker and picks the manifest
// file: the integer-named entry under snapshots/. If several are
// present, the highest slot wins.
func findManifest(log logrus.FieldLogger, names []string) (string, error) {
	hasStatusCache := false
	best := ""
	var bestSlot uint64
	for _, name := range names {
		if name == "status_cache" {
			hasStatusCache = true
			continue
		}
		slot, err := strconv.ParseUint(name, 10, 64)
		if err != nil {
			log.WithField("file", name).Debug("Ignoring non-manifest file under snapshots")
			continue
		}
		if best == "" || slot > bestSlot {
			best, bestSlot = name, slot
		}
	}
	if !hasStatusCache {
		return "", errors.WithStack(ErrNoStatusCache)
	}
	if best == "" {
		return "", errors.WithStack(ErrNoManifest)
	}
	return best, nil
}

// Slot returns the snapshot's slot as declared by the manifest.
func (s *Snapshot) Slot() uint64 { return s.fields.Slot }

// Bank returns the decoded bank state.
func (s *Snapshot) Bank() *manifest.Bank { return s.bank }

// Fields returns the accounts-database field set.
func (s *Snapshot) Fields() *manifest.AccountsDBFields { return s.fields }

// Segments lists the segment files present under accounts/, in name
// order. Files whose name does not parse as "slot.id" are logged and
// skipped; their presence does not fail the listing.
func (s *Snapshot) Segments(ctx context.Context) ([]SegmentFile, error) {
	names, err := s.src.List(ctx, accountsDir)
	if err != nil {
		return nil, err
	}
	out := make([]SegmentFile, 0, len(names))
	for _, name := range names {
		slot, id, err := parseSegmentName(name)
		if err != nil {
			metricUnparsableSegmentNames.Inc()
			s.log.WithError(err).WithField("file", name).
				Warn("Skipping unparsable file under accounts")
			continue
		}
		out = append(out, SegmentFile{Name: name, Slot: slot, ID: id})
	}
	return out, nil
}

// OpenSegment opens one listed segment. The manifest registry must
// declare it; an on-disk file without a registry entry yields
// ErrUnexpectedSegment.
func (s *Snapshot) OpenSegment(ctx context.Context, f SegmentFile) (*appendvec.AppendVec, error) {
	return s.OpenSegmentAt(ctx, f.Slot, f.ID)
}

// OpenSegmentAt opens the segment for (slot, id) by registry lookup.
func (s *Snapshot) OpenSegmentAt(ctx context.Context, slot, id uint64) (*appendvec.AppendVec, error) {
	declaredLen, ok := s.declaredLen(slot, id)
	if !ok {
		return nil, errors.Wrapf(ErrUnexpectedSegment, "segment %d.%d", slot, id)
	}
	av, err := s.src.OpenSegment(ctx, slot, id, declaredLen)
	if err != nil {
		return nil, err
	}
	metricSegmentsOpened.Inc()
	return av, nil
}

func (s *Snapshot) declaredLen(slot, id uint64) (uint64, bool) {
	for _, e := range s.fields.Storages[slot] {
		if e.ID == id {
			return e.AccountsCurrentLen, true
		}
	}
	return 0, false
}

// SlotsWithSegments returns the slots the registry declares segments
// for, ascending.
func (s *Snapshot) SlotsWithSegments() []uint64 {
	slots := lo.Keys(s.fields.Storages)
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	return slots
}
