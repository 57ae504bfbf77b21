// Package appendvec implements a read-only reader for append-vec
// segment files: memory-mapped, bounds-checked access to the
// variable-length account records stored inside one segment.
//
// A segment is identified by its (slot, id) pair. The manifest declares
// how many bytes of the file actually contain valid records (the
// declared length); the physical file may be larger due to
// over-allocation by the writer.
package appendvec

import (
	"os"
	"unsafe"

	"github.com/c2h5oh/datasize"
	"github.com/outofforest/photon"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/ledgerlabs/snapstream/ledger"
)

// MaxFileSize is the largest segment file this reader will accept.
const MaxFileSize = 16 * datasize.GB

// alignBoundary is the record alignment: each record's total footprint
// is rounded up to the next multiple of this to find the next record.
const alignBoundary = 64

// ErrStructural marks open-time validation failures. A file failing
// this validation cannot be trusted as a segment at all; there is no
// partial or recoverable state.
var ErrStructural = errors.New("segment structural validation failed")

// StoredMeta is the fixed metadata header leading every record.
// The field order and sizes mirror the on-disk layout exactly.
type StoredMeta struct {
	WriteVersion uint64
	DataLen      uint64
	Pubkey       ledger.Pubkey
}

// AccountMeta is the fixed account-attributes header following
// StoredMeta. The trailing padding is part of the stored layout.
type AccountMeta struct {
	Lamports   uint64
	RentEpoch  uint64
	Owner      ledger.Pubkey
	Executable bool
	_          [7]byte
}

var (
	storedMetaSize  = uint64(unsafe.Sizeof(StoredMeta{}))
	accountMetaSize = uint64(unsafe.Sizeof(AccountMeta{}))
	hashSize        = uint64(unsafe.Sizeof(ledger.Hash{}))
)

// StoredAccount is a decoded view of one record. All reference fields
// borrow the segment's memory: a StoredAccount must not outlive the
// AppendVec it came from. Use CloneAccount for an owned copy.
type StoredAccount struct {
	Meta    *StoredMeta
	Account *AccountMeta
	Hash    *ledger.Hash
	Data    []byte

	// Offset is where this record starts inside the segment.
	Offset uint64
	// StoredSize is the full aligned footprint of the record,
	// i.e. the distance to the next record. Diagnostic only.
	StoredSize uint64
}

// CloneAccount returns an owned Account copying all data referenced by
// the view.
func (sa StoredAccount) CloneAccount() ledger.Account {
	return ledger.Account{
		Lamports:   sa.Account.Lamports,
		Owner:      sa.Account.Owner,
		Executable: sa.Account.Executable,
		RentEpoch:  sa.Account.RentEpoch,
		Data:       append([]byte(nil), sa.Data...),
	}
}

// AppendVec is a read-only, file-backed block of memory holding
// sequential account records. It is safe for concurrent reads from
// multiple goroutines; it never mutates the underlying file.
type AppendVec struct {
	data   []byte
	length uint64 // declared length: bytes holding valid records
	slot   uint64
	id     uint64
	mapped bool
}

func sanitizeLenAndSize(declaredLen, fileSize uint64) error {
	switch {
	case fileSize == 0:
		return errors.Wrap(ErrStructural, "empty segment file")
	case fileSize > MaxFileSize.Bytes():
		return errors.Wrapf(ErrStructural, "file size %s exceeds maximum %s",
			datasize.ByteSize(fileSize), MaxFileSize)
	case declaredLen > fileSize:
		return errors.Wrapf(ErrStructural, "declared length %d exceeds file size %d",
			declaredLen, fileSize)
	}
	return nil
}

// Open maps the segment file at path read-only. declaredLen is the
// manifest-declared number of valid bytes, which must not exceed the
// physical file size. Close must be called to release the mapping.
func Open(path string, declaredLen, slot, id uint64) (*AppendVec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open segment")
	}
	defer func() {
		_ = f.Close()
	}()

	fi, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "stat segment")
	}
	fileSize := uint64(fi.Size())
	if err := sanitizeLenAndSize(declaredLen, fileSize); err != nil {
		return nil, errors.Wrapf(err, "segment %q", path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(fileSize), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrapf(err, "mmap segment %q", path)
	}

	return &AppendVec{
		data:   data,
		length: declaredLen,
		slot:   slot,
		id:     id,
		mapped: true,
	}, nil
}

// NewFromBytes creates a reader over an in-memory copy of a segment,
// for segments loaded from a blob store rather than a local file. The
// same declared-length validation applies, with len(data) standing in
// for the physical file size.
func NewFromBytes(data []byte, declaredLen, slot, id uint64) (*AppendVec, error) {
	if err := sanitizeLenAndSize(declaredLen, uint64(len(data))); err != nil {
		return nil, err
	}
	return &AppendVec{
		data:   data,
		length: declaredLen,
		slot:   slot,
		id:     id,
	}, nil
}

// Close releases the file mapping, if any. Views handed out earlier
// must no longer be used.
func (av *AppendVec) Close() error {
	if !av.mapped {
		return nil
	}
	av.mapped = false
	data := av.data
	av.data = nil
	return errors.Wrap(unix.Munmap(data), "munmap segment")
}

// Len returns the declared length: the number of bytes used to store
// records, not the physical file size.
func (av *AppendVec) Len() uint64 { return av.length }

// Slot returns the slot this segment belongs to.
func (av *AppendVec) Slot() uint64 { return av.slot }

// ID returns the segment id within its slot.
func (av *AppendVec) ID() uint64 { return av.id }

// getSlice returns the size bytes at offset if the range lies fully
// within the declared length, together with the offset just past it.
// Every reference into the mapping is produced through this check; no
// out-of-range view is constructible.
func (av *AppendVec) getSlice(offset, size uint64) ([]byte, uint64, bool) {
	next := offset + size
	if next < offset || next > av.length {
		return nil, 0, false
	}
	return av.data[offset:next:next], next, true
}

func align(offset uint64) uint64 {
	return (offset + alignBoundary - 1) &^ (alignBoundary - 1)
}

// GetAccount decodes the record starting at offset. It returns the
// record view and the aligned offset of the following record. ok is
// false when no record fits at offset; iteration treats that as the
// end of the segment, not as an error.
func (av *AppendVec) GetAccount(offset uint64) (StoredAccount, uint64, bool) {
	metaBuf, next, ok := av.getSlice(offset, storedMetaSize)
	if !ok {
		return StoredAccount{}, 0, false
	}
	meta := photon.FromBytes[StoredMeta](metaBuf)

	acctBuf, next, ok := av.getSlice(next, accountMetaSize)
	if !ok {
		return StoredAccount{}, 0, false
	}
	hashBuf, next, ok := av.getSlice(next, hashSize)
	if !ok {
		return StoredAccount{}, 0, false
	}
	data, next, ok := av.getSlice(next, meta.DataLen)
	if !ok {
		return StoredAccount{}, 0, false
	}

	next = align(next)
	return StoredAccount{
		Meta:       meta,
		Account:    photon.FromBytes[AccountMeta](acctBuf),
		Hash:       photon.FromBytes[ledger.Hash](hashBuf),
		Data:       data,
		Offset:     offset,
		StoredSize: next - offset,
	}, next, true
}
