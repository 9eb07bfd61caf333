package core

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/blake2b"
)

// MaxValueSize bounds a single storage value or call payload.
const MaxValueSize = 16 * 1024

// HashBytes returns the blake2b-256 digest of the concatenated inputs.
func HashBytes(data ...[]byte) Hash {
	h, _ := blake2b.New256(nil)
	for _, d := range data {
		h.Write(d)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Encode returns the canonical encoding of v.
func Encode(v any) ([]byte, error) {
	b, err := rlp.EncodeToBytes(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return b, nil
}

// MustEncode is Encode that traps instead of returning an error.
func MustEncode(v any) []byte {
	b, err := Encode(v)
	if err != nil {
		panic(NewTrapErr(TrapEncoding, err))
	}
	return b
}

// Decode parses the canonical encoding in data into v. The whole input must
// be consumed.
func Decode(data []byte, v any) error {
	if err := rlp.DecodeBytes(data, v); err != nil {
		return fmt.Errorf("%w: %T: %v", ErrDecode, v, err)
	}
	return nil
}
