// Package accountindex maps account pubkeys to the segment holding
// their freshest version. The index stores locations, not account
// contents: resolving an account later re-reads its record from the
// segment.
package accountindex

import (
	"github.com/ledgerlabs/snapstream/ledger"
)

// Location points at the segment a pubkey's freshest record was seen
// in.
type Location struct {
	Slot uint64
	ID   uint64
}

// Index is the pubkey to location map. It is not safe for concurrent
// mutation; once built it is safe for concurrent reads.
type Index struct {
	m map[ledger.Pubkey]Location
}

// NewIndex returns an empty index pre-sized for sizeHint accounts.
func NewIndex(sizeHint int) *Index {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &Index{m: make(map[ledger.Pubkey]Location, sizeHint)}
}

// Observe records that pk has a record in the segment at loc. A pubkey
// seen in multiple slots keeps the highest slot. Between segments of
// the same slot the first observation wins: the snapshot format does
// not order same-slot duplicates, so this is explicitly arbitrary but
// stable for a fixed observation order.
//
// It reports whether the observation was stored.
func (ix *Index) Observe(pk ledger.Pubkey, loc Location) bool {
	old, ok := ix.m[pk]
	if ok && old.Slot >= loc.Slot {
		return false
	}
	ix.m[pk] = loc
	return true
}

// Get returns the stored location for pk.
func (ix *Index) Get(pk ledger.Pubkey) (Location, bool) {
	loc, ok := ix.m[pk]
	return loc, ok
}

// Len returns the number of indexed accounts.
func (ix *Index) Len() int {
	return len(ix.m)
}

// Range calls fn for every entry in unspecified order until fn returns
// false.
func (ix *Index) Range(fn func(pk ledger.Pubkey, loc Location) bool) {
	for pk, loc := range ix.m {
		if !fn(pk, loc) {
			return
		}
	}
}
