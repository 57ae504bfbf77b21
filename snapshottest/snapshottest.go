// Package snapshottest builds tiny snapshot fixtures for tests: encoded
// manifests, encoded segments and complete unpacked directory trees.
// The encoders mirror the on-disk format the production code only ever
// reads.
package snapshottest

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"

	"github.com/ledgerlabs/snapstream/ledger"
	"github.com/ledgerlabs/snapstream/manifest"
)

// Account describes one account record to place in a segment.
type Account struct {
	Pubkey     ledger.Pubkey
	Lamports   uint64
	Owner      ledger.Pubkey
	Executable bool
	RentEpoch  uint64
	Data       []byte
}

// Segment describes one segment file of a fixture snapshot.
type Segment struct {
	Slot     uint64
	ID       uint64
	Accounts []Account
}

func appendU64(b []byte, v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return append(b, buf[:]...)
}

func appendBool(b []byte, v bool) []byte {
	if v {
		return append(b, 1)
	}
	return append(b, 0)
}

// EncodeSegment serializes accounts into the append-vec record layout:
// metadata header, attributes header, hash, payload, padded to the
// next 64-byte boundary. The returned slice's length is the segment's
// declared length.
func EncodeSegment(accounts []Account) []byte {
	var b []byte
	for i, a := range accounts {
		b = appendU64(b, uint64(i)) // write version
		b = appendU64(b, uint64(len(a.Data)))
		b = append(b, a.Pubkey[:]...)

		b = appendU64(b, a.Lamports)
		b = appendU64(b, a.RentEpoch)
		b = append(b, a.Owner[:]...)
		b = appendBool(b, a.Executable)
		b = append(b, make([]byte, 7)...) // attributes header padding

		var hash ledger.Hash
		b = append(b, hash[:]...)

		b = append(b, a.Data...)
		if pad := (64 - len(b)%64) % 64; pad > 0 {
			b = append(b, make([]byte, pad)...)
		}
	}
	return b
}

// EncodeBank serializes a minimal versioned bank state carrying the
// given slot, with every collection empty.
func EncodeBank(slot uint64) []byte {
	var b []byte
	// blockhash queue: last hash index, no last hash, no ages, max age
	b = appendU64(b, 0)
	b = appendBool(b, false)
	b = appendU64(b, 0)
	b = appendU64(b, 0)
	// ancestors
	b = appendU64(b, 0)
	// hash, parent hash
	b = append(b, make([]byte, 64)...)
	// parent slot
	b = appendU64(b, slot-1)
	// hard forks
	b = appendU64(b, 0)
	// transaction count, tick height, signature count, capitalization,
	// max tick height
	for i := 0; i < 5; i++ {
		b = appendU64(b, 0)
	}
	// hashes per tick: none
	b = appendBool(b, false)
	// ticks per slot
	b = appendU64(b, 64)
	// ns per slot (u128)
	b = append(b, make([]byte, 16)...)
	// genesis creation time, slots per year, accounts data len
	for i := 0; i < 3; i++ {
		b = appendU64(b, 0)
	}
	b = appendU64(b, slot)
	// epoch, block height
	b = appendU64(b, 0)
	b = appendU64(b, slot)
	// collector id, collector fees, fee calculator
	b = append(b, make([]byte, 32)...)
	b = appendU64(b, 0)
	b = appendU64(b, 0)
	// fee rate governor
	for i := 0; i < 5; i++ {
		b = appendU64(b, 0)
	}
	b = append(b, 50)
	// collected rent
	b = appendU64(b, 0)
	// rent collector: epoch, epoch schedule, slots per year, rent
	b = appendU64(b, 0)
	b = appendEpochSchedule(b)
	b = appendU64(b, 0)
	b = appendU64(b, 0)
	b = appendU64(b, 0)
	b = append(b, 50)
	// epoch schedule
	b = appendEpochSchedule(b)
	// inflation: 6 floats
	for i := 0; i < 6; i++ {
		b = appendU64(b, 0)
	}
	// stakes: vote accounts, delegations, unused, epoch, history
	b = appendU64(b, 0)
	b = appendU64(b, 0)
	b = appendU64(b, 0)
	b = appendU64(b, 0)
	b = appendU64(b, 0)
	// unused accounts: two sets and a map
	b = appendU64(b, 0)
	b = appendU64(b, 0)
	b = appendU64(b, 0)
	// epoch stakes
	b = appendU64(b, 0)
	// is delta
	b = appendBool(b, false)
	return b
}

func appendEpochSchedule(b []byte) []byte {
	b = appendU64(b, 432000)
	b = appendU64(b, 432000)
	b = appendBool(b, false)
	b = appendU64(b, 0)
	b = appendU64(b, 0)
	return b
}

// EncodeAccountsDB serializes the accounts-database field set with the
// given segment registry and slot. includeRoots controls whether the
// trailing optional root lists are present, as they are absent in
// older manifest versions.
func EncodeAccountsDB(storages map[uint64][]manifest.StorageEntry, slot uint64, includeRoots bool) []byte {
	var b []byte
	b = appendU64(b, uint64(len(storages)))
	for s, entries := range storages {
		b = appendU64(b, s)
		b = appendU64(b, uint64(len(entries)))
		for _, e := range entries {
			b = appendU64(b, e.ID)
			b = appendU64(b, e.AccountsCurrentLen)
		}
	}
	// write version
	b = appendU64(b, 1)
	b = appendU64(b, slot)
	// bank hash info: hash, snapshot hash, stats
	b = append(b, make([]byte, 64)...)
	for i := 0; i < 5; i++ {
		b = appendU64(b, 0)
	}
	if includeRoots {
		b = appendU64(b, 0)
		b = appendU64(b, 0)
	}
	return b
}

// EncodeManifest produces a complete manifest stream: bank state
// followed by accounts-database fields.
func EncodeManifest(slot uint64, storages map[uint64][]manifest.StorageEntry) []byte {
	b := EncodeBank(slot)
	return append(b, EncodeAccountsDB(storages, slot, true)...)
}

// WriteUnpacked lays out a complete unpacked snapshot under root: the
// status-cache marker, the manifest named after the slot, and one file
// per segment under accounts/.
func WriteUnpacked(root string, slot uint64, segments []Segment) error {
	snapshotsDir := filepath.Join(root, "snapshots")
	accountsDir := filepath.Join(root, "accounts")
	for _, dir := range []string{snapshotsDir, accountsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.WithStack(err)
		}
	}
	if err := os.WriteFile(filepath.Join(snapshotsDir, "status_cache"), nil, 0o644); err != nil {
		return errors.WithStack(err)
	}

	storages := make(map[uint64][]manifest.StorageEntry)
	for _, seg := range segments {
		data := EncodeSegment(seg.Accounts)
		name := strconv.FormatUint(seg.Slot, 10) + "." + strconv.FormatUint(seg.ID, 10)
		if err := os.WriteFile(filepath.Join(accountsDir, name), data, 0o644); err != nil {
			return errors.WithStack(err)
		}
		storages[seg.Slot] = append(storages[seg.Slot], manifest.StorageEntry{
			ID:                 seg.ID,
			AccountsCurrentLen: uint64(len(data)),
		})
	}

	manifestPath := filepath.Join(snapshotsDir, strconv.FormatUint(slot, 10))
	return errors.WithStack(os.WriteFile(manifestPath, EncodeManifest(slot, storages), 0o644))
}

// Key returns a deterministic pubkey for tests.
func Key(seed byte) ledger.Pubkey {
	var pk ledger.Pubkey
	for i := range pk {
		pk[i] = seed
	}
	return pk
}
