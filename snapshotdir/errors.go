package snapshotdir

import "github.com/pkg/errors"

var (
	// ErrNoStatusCache is returned when the unpacked tree lacks the
	// status-cache marker file, meaning it is not a complete snapshot.
	ErrNoStatusCache = errors.New("no status cache in snapshot")

	// ErrNoManifest is returned when no integer-named manifest file is
	// present under snapshots/.
	ErrNoManifest = errors.New("no manifest in snapshot")

	// ErrUnexpectedSegment is returned when a segment file exists on
	// disk but the manifest's registry has no entry for it. Without a
	// declared length its contents cannot be bounded.
	ErrUnexpectedSegment = errors.New("segment not declared in manifest")
)
