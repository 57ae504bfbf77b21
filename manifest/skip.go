package manifest

import (
	"github.com/pkg/errors"

	"github.com/ledgerlabs/snapstream/bincode"
)

// Helpers for consuming bank sub-structures whose contents the
// pipeline does not retain. The stream has no framing, so every field
// must be read exactly to land at the accounts-database fields.

// skipPairs consumes a length-prefixed sequence of fixed-size pairs.
// Both maps and vecs of pairs share this shape.
func skipPairs(d *bincode.Decoder, keySize, valSize uint64) error {
	return skipFixedSeqSized(d, keySize+valSize)
}

// skipFixedSeq consumes a length-prefixed sequence of fixed-size
// elements.
func skipFixedSeq(d *bincode.Decoder, elemSize uint64) error {
	return skipFixedSeqSized(d, elemSize)
}

func skipFixedSeqSized(d *bincode.Decoder, elemSize uint64) error {
	n, err := d.SeqLen()
	if err != nil {
		return err
	}
	if elemSize != 0 && n > MaxStreamSize/elemSize {
		return errors.Errorf("sequence of %d elements exceeds stream budget", n)
	}
	return d.Skip(n * elemSize)
}

// skipOption consumes an Option of a fixed-size value.
func skipOption(d *bincode.Decoder, size uint64) error {
	some, err := d.Option()
	if err != nil {
		return err
	}
	if !some {
		return nil
	}
	return d.Skip(size)
}

// skipBlockhashQueue: last hash index, Option<hash>, map of hash ->
// (fee calculator, hash index, timestamp), max age.
func skipBlockhashQueue(d *bincode.Decoder) error {
	if err := d.Skip(8); err != nil {
		return err
	}
	if err := skipOption(d, 32); err != nil {
		return err
	}
	if err := skipPairs(d, 32, 8+8+8); err != nil {
		return err
	}
	return d.Skip(8)
}

// skipEpochSchedule: slots per epoch, leader schedule slot offset,
// warmup flag, first normal epoch, first normal slot.
func skipEpochSchedule(d *bincode.Decoder) error {
	if err := d.Skip(8 + 8); err != nil {
		return err
	}
	if _, err := d.Bool(); err != nil {
		return err
	}
	return d.Skip(8 + 8)
}

// skipRentCollector: epoch, epoch schedule, slots per year, rent
// (lamports per byte-year, exemption threshold, burn percent).
func skipRentCollector(d *bincode.Decoder) error {
	if err := d.Skip(8); err != nil {
		return err
	}
	if err := skipEpochSchedule(d); err != nil {
		return err
	}
	if err := d.Skip(8); err != nil {
		return err
	}
	return d.Skip(8 + 8 + 1)
}

// skipAccount: lamports, data vec, owner, executable, rent epoch.
func skipAccount(d *bincode.Decoder) error {
	if err := d.Skip(8); err != nil {
		return err
	}
	if err := d.SkipByteVec(); err != nil {
		return err
	}
	if err := d.Skip(32); err != nil {
		return err
	}
	if _, err := d.Bool(); err != nil {
		return err
	}
	return d.Skip(8)
}

// skipStakes: vote accounts (pubkey -> (stake, account)), stake
// delegations (pubkey -> delegation), unused, epoch, stake history.
func skipStakes(d *bincode.Decoder) error {
	n, err := d.SeqLen()
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		// pubkey + stake
		if err := d.Skip(32 + 8); err != nil {
			return err
		}
		if err := skipAccount(d); err != nil {
			return err
		}
	}
	// delegation: voter pubkey, stake, activation epoch,
	// deactivation epoch, warmup/cooldown rate
	if err := skipPairs(d, 32, 32+8+8+8+8); err != nil {
		return err
	}
	if err := d.Skip(8 + 8); err != nil {
		return err
	}
	// stake history: (epoch, (effective, activating, deactivating))
	return skipPairs(d, 8, 8+8+8)
}

// skipUnusedAccounts: two pubkey sets and a pubkey -> u64 map, all
// historically unused.
func skipUnusedAccounts(d *bincode.Decoder) error {
	if err := skipFixedSeq(d, 32); err != nil {
		return err
	}
	if err := skipFixedSeq(d, 32); err != nil {
		return err
	}
	return skipPairs(d, 32, 8)
}

// skipEpochStakes: epoch -> (stakes, total stake, node vote accounts,
// epoch authorized voters).
func skipEpochStakes(d *bincode.Decoder) error {
	n, err := d.SeqLen()
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		// epoch key
		if err := d.Skip(8); err != nil {
			return err
		}
		if err := skipStakes(d); err != nil {
			return err
		}
		// total stake
		if err := d.Skip(8); err != nil {
			return err
		}
		// node id -> (vote account list, total stake)
		m, err := d.SeqLen()
		if err != nil {
			return err
		}
		for j := uint64(0); j < m; j++ {
			if err := d.Skip(32); err != nil {
				return err
			}
			if err := skipFixedSeq(d, 32); err != nil {
				return err
			}
			if err := d.Skip(8); err != nil {
				return err
			}
		}
		// epoch authorized voters
		if err := skipPairs(d, 32, 32); err != nil {
			return err
		}
	}
	return nil
}
