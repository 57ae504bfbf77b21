// Package manifest deserializes the snapshot's leading binary blobs:
// the versioned bank state followed by the accounts-database field
// set. Both are fixed-encoding structures read sequentially off the
// same stream.
//
// Only the fields this pipeline needs are retained. The bank is
// decoded in full so the stream lands exactly at the accounts-database
// fields, but everything except a handful of structural fields is
// discarded as it is read, which bounds peak memory.
package manifest

import "github.com/ledgerlabs/snapstream/ledger"

// Bank holds the structural fields retained from the versioned bank
// state. The canonical slot is the only field the rest of the pipeline
// depends on.
type Bank struct {
	ParentSlot       uint64
	TransactionCount uint64
	Capitalization   uint64
	Slot             uint64
	Epoch            uint64
	BlockHeight      uint64
}

// StorageEntry describes one segment declared by the manifest: its id
// within the slot and the number of bytes holding valid records.
type StorageEntry struct {
	ID                 uint64
	AccountsCurrentLen uint64
}

// BankHashStats are aggregate counters carried in the bank hash info.
type BankHashStats struct {
	NumUpdatedAccounts    uint64
	NumRemovedAccounts    uint64
	NumLamportsStored     uint64
	TotalDataLen          uint64
	NumExecutableAccounts uint64
}

// BankHashInfo is consumed for structural validation only.
type BankHashInfo struct {
	Hash         ledger.Hash
	SnapshotHash ledger.Hash
	Stats        BankHashStats
}

// RootHash pairs a rooted slot with its hash.
type RootHash struct {
	Slot uint64
	Hash ledger.Hash
}

// AccountsDBFields is the accounts-database field set: the registry of
// segments per slot plus auxiliary state. The trailing root lists are
// optional in older manifest versions and default to empty.
type AccountsDBFields struct {
	Storages     map[uint64][]StorageEntry
	WriteVersion uint64
	Slot         uint64
	BankHash     BankHashInfo

	HistoricalRoots         []uint64
	HistoricalRootsWithHash []RootHash
}
