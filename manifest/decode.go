package manifest

import (
	"io"

	"github.com/pkg/errors"

	"github.com/ledgerlabs/snapstream/bincode"
)

// MaxStreamSize caps each of the two deserializations. A corrupt or
// hostile manifest cannot make the loader read more than this.
const MaxStreamSize = 32 << 30 // 32 GiB

// LoadBank decodes the versioned bank state from r. Any decode failure
// is fatal to the whole extraction; there is no partial bank state.
func LoadBank(r io.Reader) (*Bank, error) {
	d := bincode.NewDecoder(r, MaxStreamSize)
	b := &Bank{}
	if err := decodeBank(d, b); err != nil {
		return nil, errors.Wrap(err, "decode bank state")
	}
	return b, nil
}

// LoadAccountsDB decodes the accounts-database field set from r. It
// must be called directly after LoadBank on the same stream. Trailing
// bytes after the structure are permitted and ignored.
func LoadAccountsDB(r io.Reader) (*AccountsDBFields, error) {
	d := bincode.NewDecoder(r, MaxStreamSize)
	f, err := decodeAccountsDB(d)
	if err != nil {
		return nil, errors.Wrap(err, "decode accounts db fields")
	}
	return f, nil
}

func decodeBank(d *bincode.Decoder, b *Bank) error {
	if err := skipBlockhashQueue(d); err != nil {
		return errors.Wrap(err, "blockhash queue")
	}
	// ancestors: map slot -> index
	if err := skipPairs(d, 8, 8); err != nil {
		return errors.Wrap(err, "ancestors")
	}
	// hash, parent hash
	if err := d.Skip(32 + 32); err != nil {
		return err
	}
	var err error
	if b.ParentSlot, err = d.Uint64(); err != nil {
		return err
	}
	// hard forks: vec of (slot, count)
	if err := skipPairs(d, 8, 8); err != nil {
		return errors.Wrap(err, "hard forks")
	}
	if b.TransactionCount, err = d.Uint64(); err != nil {
		return err
	}
	// tick height, signature count
	if err := d.Skip(8 + 8); err != nil {
		return err
	}
	if b.Capitalization, err = d.Uint64(); err != nil {
		return err
	}
	// max tick height
	if err := d.Skip(8); err != nil {
		return err
	}
	// hashes per tick: Option<u64>
	if err := skipOption(d, 8); err != nil {
		return err
	}
	// ticks per slot
	if err := d.Skip(8); err != nil {
		return err
	}
	// ns per slot: u128
	if err := d.SkipUint128(); err != nil {
		return err
	}
	// genesis creation time (i64), slots per year (f64), accounts data len
	if err := d.Skip(8 + 8 + 8); err != nil {
		return err
	}
	if b.Slot, err = d.Uint64(); err != nil {
		return err
	}
	if b.Epoch, err = d.Uint64(); err != nil {
		return err
	}
	if b.BlockHeight, err = d.Uint64(); err != nil {
		return err
	}
	// collector id, collector fees, fee calculator
	if err := d.Skip(32 + 8 + 8); err != nil {
		return err
	}
	// fee rate governor: 5 x u64 + burn percent
	if err := d.Skip(5*8 + 1); err != nil {
		return errors.Wrap(err, "fee rate governor")
	}
	// collected rent
	if err := d.Skip(8); err != nil {
		return err
	}
	if err := skipRentCollector(d); err != nil {
		return errors.Wrap(err, "rent collector")
	}
	if err := skipEpochSchedule(d); err != nil {
		return errors.Wrap(err, "epoch schedule")
	}
	// inflation: 6 x f64
	if err := d.Skip(6 * 8); err != nil {
		return errors.Wrap(err, "inflation")
	}
	if err := skipStakes(d); err != nil {
		return errors.Wrap(err, "stakes")
	}
	if err := skipUnusedAccounts(d); err != nil {
		return errors.Wrap(err, "unused accounts")
	}
	if err := skipEpochStakes(d); err != nil {
		return errors.Wrap(err, "epoch stakes")
	}
	// is delta
	if _, err := d.Bool(); err != nil {
		return err
	}
	return nil
}

func decodeAccountsDB(d *bincode.Decoder) (*AccountsDBFields, error) {
	f := &AccountsDBFields{}

	n, err := d.SeqLen()
	if err != nil {
		return nil, errors.Wrap(err, "storages")
	}
	f.Storages = make(map[uint64][]StorageEntry, capHint(n))
	for i := uint64(0); i < n; i++ {
		slot, err := d.Uint64()
		if err != nil {
			return nil, err
		}
		cnt, err := d.SeqLen()
		if err != nil {
			return nil, err
		}
		entries := make([]StorageEntry, 0, capHint(cnt))
		for j := uint64(0); j < cnt; j++ {
			var e StorageEntry
			if e.ID, err = d.Uint64(); err != nil {
				return nil, err
			}
			if e.AccountsCurrentLen, err = d.Uint64(); err != nil {
				return nil, err
			}
			entries = append(entries, e)
		}
		f.Storages[slot] = entries
	}

	if f.WriteVersion, err = d.Uint64(); err != nil {
		return nil, errors.Wrap(err, "write version")
	}
	if f.Slot, err = d.Uint64(); err != nil {
		return nil, errors.Wrap(err, "slot")
	}
	if f.BankHash.Hash, err = d.Bytes32(); err != nil {
		return nil, errors.Wrap(err, "bank hash")
	}
	if f.BankHash.SnapshotHash, err = d.Bytes32(); err != nil {
		return nil, errors.Wrap(err, "snapshot hash")
	}
	s := &f.BankHash.Stats
	for _, dst := range []*uint64{
		&s.NumUpdatedAccounts, &s.NumRemovedAccounts, &s.NumLamportsStored,
		&s.TotalDataLen, &s.NumExecutableAccounts,
	} {
		if *dst, err = d.Uint64(); err != nil {
			return nil, errors.Wrap(err, "bank hash stats")
		}
	}

	// The root lists were added later; older manifests simply end
	// here, so EOF means empty rather than failure.
	roots, err := decodeRoots(d)
	if isEOF(err) {
		return f, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "historical roots")
	}
	f.HistoricalRoots = roots

	rootsWithHash, err := decodeRootsWithHash(d)
	if isEOF(err) {
		return f, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "historical roots with hash")
	}
	f.HistoricalRootsWithHash = rootsWithHash

	return f, nil
}

func decodeRoots(d *bincode.Decoder) ([]uint64, error) {
	n, err := d.SeqLen()
	if err != nil {
		return nil, err
	}
	out := make([]uint64, 0, capHint(n))
	for i := uint64(0); i < n; i++ {
		v, err := d.Uint64()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeRootsWithHash(d *bincode.Decoder) ([]RootHash, error) {
	n, err := d.SeqLen()
	if err != nil {
		return nil, err
	}
	out := make([]RootHash, 0, capHint(n))
	for i := uint64(0); i < n; i++ {
		var rh RootHash
		if rh.Slot, err = d.Uint64(); err != nil {
			return nil, err
		}
		if rh.Hash, err = d.Bytes32(); err != nil {
			return nil, err
		}
		out = append(out, rh)
	}
	return out, nil
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// capHint bounds pre-allocation by declared lengths, which are
// untrusted; decoding still fails later if the stream is short.
func capHint(n uint64) int {
	const max = 4096
	if n > max {
		return max
	}
	return int(n)
}
