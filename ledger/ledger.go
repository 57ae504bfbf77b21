// Package ledger holds the value types shared across the snapshot
// extraction pipeline: account public keys, content hashes and owned
// account state.
package ledger

import (
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/pkg/errors"
)

// PubkeySize is the fixed size of an account public key in bytes.
const PubkeySize = 32

// Pubkey is the fixed-size public key naming an account.
type Pubkey [PubkeySize]byte

// ParsePubkey decodes a base58-encoded public key.
func ParsePubkey(s string) (Pubkey, error) {
	var pk Pubkey
	b := base58.Decode(s)
	if len(b) != PubkeySize {
		return pk, errors.Errorf("invalid pubkey %q: decoded to %d bytes, want %d",
			s, len(b), PubkeySize)
	}
	copy(pk[:], b)
	return pk, nil
}

// String returns the base58 representation of the key.
func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

// Hash is a 32-byte content hash.
type Hash [32]byte

// Account is an owned copy of one account's state, fully detached from
// any segment mapping. Decoding a stored record into an Account is an
// explicit copy.
type Account struct {
	Lamports   uint64
	Owner      Pubkey
	Executable bool
	RentEpoch  uint64
	Data       []byte
}
