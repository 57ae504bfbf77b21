package appendvec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlabs/snapstream/snapshottest"
)

func writeSegmentFile(t *testing.T, accounts []snapshottest.Account, extraPadding int) (string, uint64) {
	t.Helper()
	data := snapshottest.EncodeSegment(accounts)
	declared := uint64(len(data))
	// Physical files are often over-allocated beyond the declared length.
	data = append(data, make([]byte, extraPadding)...)
	path := filepath.Join(t.TempDir(), "100.7")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path, declared
}

func testAccounts() []snapshottest.Account {
	return []snapshottest.Account{
		{
			Pubkey:    snapshottest.Key(1),
			Lamports:  5000,
			Owner:     snapshottest.Key(9),
			RentEpoch: 361,
			Data:      []byte("hello account data"),
		},
		{
			Pubkey:     snapshottest.Key(2),
			Lamports:   1,
			Owner:      snapshottest.Key(9),
			Executable: true,
		},
		{
			Pubkey:   snapshottest.Key(3),
			Lamports: 0,
			Owner:    snapshottest.Key(8),
			Data:     make([]byte, 200),
		},
	}
}

func TestOpen_DecodesRecords(t *testing.T) {
	accounts := testAccounts()
	path, declared := writeSegmentFile(t, accounts, 4096)

	av, err := Open(path, declared, 100, 7)
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, av.Close())
	}()

	assert.Equal(t, declared, av.Len())
	assert.Equal(t, uint64(100), av.Slot())
	assert.Equal(t, uint64(7), av.ID())

	var offset uint64
	for i, want := range accounts {
		sa, next, ok := av.GetAccount(offset)
		require.True(t, ok, "record %d", i)
		assert.Equal(t, want.Pubkey, sa.Meta.Pubkey)
		assert.Equal(t, uint64(len(want.Data)), sa.Meta.DataLen)
		assert.Equal(t, want.Lamports, sa.Account.Lamports)
		assert.Equal(t, want.Owner, sa.Account.Owner)
		assert.Equal(t, want.Executable, sa.Account.Executable)
		assert.Equal(t, want.RentEpoch, sa.Account.RentEpoch)
		if len(want.Data) > 0 {
			assert.Equal(t, want.Data, sa.Data)
		}
		assert.Equal(t, offset, sa.Offset)
		assert.Equal(t, uint64(0), next%64, "next offset must be 64-byte aligned")
		offset = next
	}
	_, _, ok := av.GetAccount(offset)
	assert.False(t, ok)
}

func TestGetAccount_StoredSizesSumToDeclaredLength(t *testing.T) {
	path, declared := writeSegmentFile(t, testAccounts(), 0)
	av, err := Open(path, declared, 100, 7)
	require.NoError(t, err)
	defer av.Close()

	var offset, total uint64
	for {
		sa, next, ok := av.GetAccount(offset)
		if !ok {
			break
		}
		assert.Equal(t, next-offset, sa.StoredSize)
		total += sa.StoredSize
		offset = next
	}
	assert.Equal(t, declared, total)
}

func TestGetAccount_BoundaryOffset(t *testing.T) {
	path, declared := writeSegmentFile(t, testAccounts(), 0)
	av, err := Open(path, declared, 100, 7)
	require.NoError(t, err)
	defer av.Close()

	// Exactly at the declared length: must terminate, not decode.
	_, _, ok := av.GetAccount(declared)
	assert.False(t, ok)

	// Far past the end, including offsets that would overflow.
	_, _, ok = av.GetAccount(declared + 1)
	assert.False(t, ok)
	_, _, ok = av.GetAccount(^uint64(0) - 8)
	assert.False(t, ok)
}

func TestSanitizeLenAndSize(t *testing.T) {
	cases := []struct {
		name        string
		declaredLen uint64
		fileSize    uint64
		wantErr     bool
	}{
		{"empty file", 0, 0, true},
		{"over maximum", 0, MaxFileSize.Bytes() + 1, true},
		{"declared exceeds physical", 1025, 1024, true},
		{"valid", 1024, 4096, false},
		{"declared equals physical", 4096, 4096, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := sanitizeLenAndSize(tc.declaredLen, tc.fileSize)
			if tc.wantErr {
				assert.True(t, errors.Is(err, ErrStructural))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOpen_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "1.1")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	_, err := Open(path, 0, 1, 1)
	assert.True(t, errors.Is(err, ErrStructural))
}

func TestOpen_DeclaredExceedsPhysical(t *testing.T) {
	path := filepath.Join(t.TempDir(), "1.1")
	require.NoError(t, os.WriteFile(path, make([]byte, 128), 0o644))
	_, err := Open(path, 129, 1, 1)
	assert.True(t, errors.Is(err, ErrStructural))
}

func TestNewFromBytes(t *testing.T) {
	data := snapshottest.EncodeSegment(testAccounts())
	av, err := NewFromBytes(data, uint64(len(data)), 100, 7)
	require.NoError(t, err)

	sa, _, ok := av.GetAccount(0)
	require.True(t, ok)
	assert.Equal(t, snapshottest.Key(1), sa.Meta.Pubkey)
	assert.NoError(t, av.Close())

	_, err = NewFromBytes(nil, 0, 1, 1)
	assert.True(t, errors.Is(err, ErrStructural))
}

func TestCloneAccount_Independent(t *testing.T) {
	data := snapshottest.EncodeSegment(testAccounts())
	av, err := NewFromBytes(data, uint64(len(data)), 100, 7)
	require.NoError(t, err)

	sa, _, ok := av.GetAccount(0)
	require.True(t, ok)
	acct := sa.CloneAccount()
	assert.Equal(t, uint64(5000), acct.Lamports)
	assert.Equal(t, []byte("hello account data"), acct.Data)

	// The clone must not alias the backing buffer.
	data[136] ^= 0xff
	assert.Equal(t, []byte("hello account data"), acct.Data)
}

func TestTruncatedRecordTerminatesIteration(t *testing.T) {
	// Declared length cuts through the last record's payload: the
	// walk must stop cleanly before it.
	accounts := testAccounts()
	data := snapshottest.EncodeSegment(accounts)
	av, err := NewFromBytes(data, uint64(len(data))-64, 100, 7)
	require.NoError(t, err)

	var count int
	var offset uint64
	for {
		_, next, ok := av.GetAccount(offset)
		if !ok {
			break
		}
		count++
		offset = next
	}
	assert.Equal(t, len(accounts)-1, count)
}
