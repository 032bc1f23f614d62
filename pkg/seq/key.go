package seq

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/rzbill/seglog/pkg/dberrors"
)

// Size is the width of an encoded sequence key.
const Size = 8

// Key is a sequence number encoded big-endian.
type Key [Size]byte

// Encode returns the key for n.
func Encode(n int64) Key {
	var k Key
	binary.BigEndian.PutUint64(k[:], uint64(n))
	return k
}

// Decode parses an 8-byte key. Any other width is a DecodeError.
func Decode(b []byte) (int64, error) {
	if len(b) != Size {
		return 0, dberrors.New(dberrors.KindDecode, "decode_key", errors.Newf("invalid key format: want %d bytes, got %d", Size, len(b)))
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// FromBytes copies an encoded key. Any width other than Size is a DecodeError.
func FromBytes(b []byte) (Key, error) {
	var k Key
	if len(b) != Size {
		_, err := Decode(b)
		return k, err
	}
	copy(k[:], b)
	return k, nil
}

// Valid reports whether b has the width of a sequence key.
func Valid(b []byte) bool { return len(b) == Size }

// Seq returns the sequence number held by k.
func (k Key) Seq() int64 { return int64(binary.BigEndian.Uint64(k[:])) }

// Bytes returns a copy of the raw 8-byte form.
func (k Key) Bytes() []byte { b := make([]byte, Size); copy(b, k[:]); return b }

// String returns the decimal sequence number.
func (k Key) String() string { return fmt.Sprintf("%d", k.Seq()) }

// Compare returns -1, 0, 1 based on lexical comparison.
func (k Key) Compare(other Key) int {
	for i := 0; i < Size; i++ {
		if k[i] < other[i] {
			return -1
		}
		if k[i] > other[i] {
			return 1
		}
	}
	return 0
}
