// Package status serves the HTTP status page, Prometheus metrics and
// the health endpoint.
package status

import (
	"sync"
)

// SnapshotInfo is what the status page shows about the served snapshot.
type SnapshotInfo struct {
	Slot        uint64
	SegmentsLen int
	Accounts    int
	IndexReady  bool
}

type info struct {
	mu   sync.Mutex
	snap SnapshotInfo
}

var gi info

// SetSnapshotInfo publishes snapshot details for the status page. Safe
// to call again when the index finishes building.
func SetSnapshotInfo(si SnapshotInfo) {
	gi.mu.Lock()
	defer gi.mu.Unlock()
	gi.snap = si
}

func getSnapshotInfo() SnapshotInfo {
	gi.mu.Lock()
	defer gi.mu.Unlock()
	return gi.snap
}
