package accountindex

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"github.com/ledgerlabs/snapstream/ledger"
)

// Index file format, gzip-compressed:
//
//	magic    [8]byte  "snapidx\x00"
//	version  uint32
//	slot     uint64   snapshot slot the index was built from
//	count    uint64
//	entries  count x (pubkey [32]byte, slot uint64, id uint64)
//
// All integers little-endian.

var fileMagic = [8]byte{'s', 'n', 'a', 'p', 'i', 'd', 'x', 0}

const fileVersion = 1

const entrySize = 32 + 8 + 8

// Dump writes the index to w in the index file format. slot is the
// snapshot slot the index belongs to.
func (ix *Index) Dump(w io.Writer, slot uint64) error {
	zw := gzip.NewWriter(w)
	bw := bufio.NewWriter(zw)

	if _, err := bw.Write(fileMagic[:]); err != nil {
		return errors.WithStack(err)
	}
	var hdr [4 + 8 + 8]byte
	binary.LittleEndian.PutUint32(hdr[0:], fileVersion)
	binary.LittleEndian.PutUint64(hdr[4:], slot)
	binary.LittleEndian.PutUint64(hdr[12:], uint64(ix.Len()))
	if _, err := bw.Write(hdr[:]); err != nil {
		return errors.WithStack(err)
	}

	var entry [entrySize]byte
	var werr error
	ix.Range(func(pk ledger.Pubkey, loc Location) bool {
		copy(entry[:32], pk[:])
		binary.LittleEndian.PutUint64(entry[32:], loc.Slot)
		binary.LittleEndian.PutUint64(entry[40:], loc.ID)
		_, werr = bw.Write(entry[:])
		return werr == nil
	})
	if werr != nil {
		return errors.WithStack(werr)
	}
	if err := bw.Flush(); err != nil {
		return errors.WithStack(err)
	}
	return errors.Wrap(zw.Close(), "close gzip stream")
}

// Load reads an index in the file format, returning the index and the
// slot it was built from.
func Load(r io.Reader) (*Index, uint64, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, 0, errors.Wrap(err, "open gzip stream")
	}
	defer func() {
		_ = zr.Close()
	}()
	br := bufio.NewReader(zr)

	var hdr [8 + 4 + 8 + 8]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, 0, errors.Wrap(err, "read index header")
	}
	if [8]byte(hdr[:8]) != fileMagic {
		return nil, 0, errors.New("not an index file: bad magic")
	}
	if v := binary.LittleEndian.Uint32(hdr[8:]); v != fileVersion {
		return nil, 0, errors.Errorf("unsupported index file version %d", v)
	}
	slot := binary.LittleEndian.Uint64(hdr[12:])
	count := binary.LittleEndian.Uint64(hdr[20:])

	// The count is read from the file, so it bounds pre-allocation but
	// not trust: a short stream still fails below.
	sizeHint := count
	if sizeHint > 1<<24 {
		sizeHint = 1 << 24
	}
	ix := NewIndex(int(sizeHint))

	var entry [entrySize]byte
	for i := uint64(0); i < count; i++ {
		if _, err := io.ReadFull(br, entry[:]); err != nil {
			return nil, 0, errors.Wrapf(err, "read index entry %d of %d", i, count)
		}
		var pk ledger.Pubkey
		copy(pk[:], entry[:32])
		ix.m[pk] = Location{
			Slot: binary.LittleEndian.Uint64(entry[32:]),
			ID:   binary.LittleEndian.Uint64(entry[40:]),
		}
	}
	return ix, slot, nil
}

// WriteFile dumps the index to path, replacing any previous file only
// after the new one is fully written.
func (ix *Index) WriteFile(path string, slot uint64) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := ix.Dump(f, slot); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return errors.WithStack(err)
	}
	return errors.WithStack(os.Rename(tmp, path))
}

// LoadFile reads an index file written by WriteFile.
func LoadFile(path string) (*Index, uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	defer func() {
		_ = f.Close()
	}()
	return Load(f)
}
