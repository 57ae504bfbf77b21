// Package bincode implements the subset of the bincode fixed-integer
// little-endian encoding needed to read snapshot manifests. It is a
// pure decoder: the snapshot format is produced elsewhere and this
// system never writes it.
package bincode

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// ErrBudget is returned when a decode would read more bytes than the
// decoder's budget allows. It protects against unbounded memory or
// time consumption from a corrupt or hostile stream.
var ErrBudget = errors.New("bincode: stream budget exceeded")

// Decoder reads fixed-encoding values from a stream, enforcing a total
// byte budget. It is not safe for concurrent use.
type Decoder struct {
	r      io.Reader
	budget uint64
	buf    [16]byte
}

// NewDecoder returns a Decoder that will read at most budget bytes
// from r.
func NewDecoder(r io.Reader, budget uint64) *Decoder {
	return &Decoder{r: r, budget: budget}
}

// ReadFull fills b from the stream, counting against the budget.
// io.EOF and io.ErrUnexpectedEOF pass through wrapped, so callers can
// detect end-of-stream with errors.Is.
func (d *Decoder) ReadFull(b []byte) error {
	if uint64(len(b)) > d.budget {
		return errors.WithStack(ErrBudget)
	}
	d.budget -= uint64(len(b))
	_, err := io.ReadFull(d.r, b)
	return errors.WithStack(err)
}

// Skip discards n bytes.
func (d *Decoder) Skip(n uint64) error {
	if n > d.budget {
		return errors.WithStack(ErrBudget)
	}
	d.budget -= n
	_, err := io.CopyN(io.Discard, d.r, int64(n))
	return errors.WithStack(err)
}

func (d *Decoder) Uint8() (uint8, error) {
	if err := d.ReadFull(d.buf[:1]); err != nil {
		return 0, err
	}
	return d.buf[0], nil
}

func (d *Decoder) Uint64() (uint64, error) {
	if err := d.ReadFull(d.buf[:8]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(d.buf[:8]), nil
}

func (d *Decoder) Int64() (int64, error) {
	v, err := d.Uint64()
	return int64(v), err
}

func (d *Decoder) Float64() (float64, error) {
	v, err := d.Uint64()
	return math.Float64frombits(v), err
}

// SkipUint128 discards one u128 value.
func (d *Decoder) SkipUint128() error {
	return d.ReadFull(d.buf[:16])
}

// Bool reads a strict bool: exactly 0 or 1.
func (d *Decoder) Bool() (bool, error) {
	v, err := d.Uint8()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, errors.Errorf("bincode: invalid bool value %d", v)
	}
}

// Option reads an Option tag: false means None.
func (d *Decoder) Option() (bool, error) {
	return d.Bool()
}

// Bytes32 reads a fixed 32-byte array.
func (d *Decoder) Bytes32() ([32]byte, error) {
	var out [32]byte
	err := d.ReadFull(out[:])
	return out, err
}

// SeqLen reads a sequence or map length prefix.
func (d *Decoder) SeqLen() (uint64, error) {
	return d.Uint64()
}

// ByteVec reads a length-prefixed byte vector. The length is bounded
// by the remaining budget before any allocation happens.
func (d *Decoder) ByteVec() ([]byte, error) {
	n, err := d.SeqLen()
	if err != nil {
		return nil, err
	}
	if n > d.budget {
		return nil, errors.WithStack(ErrBudget)
	}
	out := make([]byte, n)
	if err := d.ReadFull(out); err != nil {
		return nil, err
	}
	return out, nil
}

// SkipByteVec discards a length-prefixed byte vector without
// materializing it.
func (d *Decoder) SkipByteVec() error {
	n, err := d.SeqLen()
	if err != nil {
		return err
	}
	return d.Skip(n)
}
