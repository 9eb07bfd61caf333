package core

import (
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// BalanceBits is the width of a Balance.
const BalanceBits = 128

var errBalanceRange = errors.New("balance exceeds 128 bits")

// Balance is an unsigned 128-bit amount of value. The zero value is zero.
//
// Arithmetic helpers never wrap: Add and Sub trap on overflow and underflow,
// CheckedAdd and CheckedSub report it to the caller.
type Balance struct {
	v uint256.Int
}

// NewBalance returns a balance holding x.
func NewBalance(x uint64) Balance {
	var b Balance
	b.v.SetUint64(x)
	return b
}

// BalanceFromBig converts x, failing when it is negative or wider than 128 bits.
func BalanceFromBig(x *big.Int) (Balance, error) {
	var b Balance
	if x.Sign() < 0 {
		return b, fmt.Errorf("negative balance %s", x)
	}
	v, overflow := uint256.FromBig(x)
	if overflow || v.BitLen() > BalanceBits {
		return b, errBalanceRange
	}
	b.v = *v
	return b, nil
}

// ParseBalance parses a base-10 amount.
func ParseBalance(s string) (Balance, error) {
	x, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Balance{}, fmt.Errorf("invalid balance %q", s)
	}
	return BalanceFromBig(x)
}

// MaxBalance returns 2^128-1.
func MaxBalance() Balance {
	var b Balance
	b.v.Lsh(uint256.NewInt(1), BalanceBits)
	b.v.SubUint64(&b.v, 1)
	return b
}

func (b Balance) IsZero() bool {
	return b.v.IsZero()
}

// Cmp returns -1, 0 or +1 depending on whether b is less than, equal to or greater than o.
func (b Balance) Cmp(o Balance) int {
	return b.v.Cmp(&o.v)
}

func (b Balance) Lt(o Balance) bool {
	return b.v.Lt(&o.v)
}

// Uint64 returns the low 64 bits and whether the balance fits in them.
func (b Balance) Uint64() (uint64, bool) {
	return b.v.Uint64(), b.v.IsUint64()
}

// CheckedAdd returns b+o, or false when the sum does not fit in 128 bits.
func (b Balance) CheckedAdd(o Balance) (Balance, bool) {
	var r Balance
	r.v.Add(&b.v, &o.v)
	if r.v.BitLen() > BalanceBits {
		return Balance{}, false
	}
	return r, true
}

// CheckedSub returns b-o, or false when o is larger than b.
func (b Balance) CheckedSub(o Balance) (Balance, bool) {
	if b.v.Lt(&o.v) {
		return Balance{}, false
	}
	var r Balance
	r.v.Sub(&b.v, &o.v)
	return r, true
}

// Add returns b+o and traps on overflow.
func (b Balance) Add(o Balance) Balance {
	r, ok := b.CheckedAdd(o)
	if !ok {
		panic(NewTrap(TrapOverflow, "balance overflow: %s + %s", b, o))
	}
	return r
}

// Sub returns b-o and traps on underflow.
func (b Balance) Sub(o Balance) Balance {
	r, ok := b.CheckedSub(o)
	if !ok {
		panic(NewTrap(TrapOverflow, "balance underflow: %s - %s", b, o))
	}
	return r
}

func (b Balance) Big() *big.Int {
	return b.v.ToBig()
}

func (b Balance) String() string {
	return b.v.ToBig().String()
}

// LittleEndian returns the 16-byte little-endian form used at the wasm boundary.
func (b Balance) LittleEndian() [16]byte {
	be := b.v.Bytes32()
	var out [16]byte
	for i := 0; i < 16; i++ {
		out[i] = be[31-i]
	}
	return out
}

// BalanceFromLittleEndian is the inverse of Balance.LittleEndian.
func BalanceFromLittleEndian(le []byte) (Balance, error) {
	if len(le) != 16 {
		return Balance{}, ErrInvalidArgument
	}
	be := make([]byte, 16)
	for i := 0; i < 16; i++ {
		be[i] = le[15-i]
	}
	var b Balance
	b.v.SetBytes(be)
	return b, nil
}

// EncodeRLP writes the balance as a canonical unsigned integer.
func (b Balance) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, b.v.ToBig())
}

// DecodeRLP reads a canonical unsigned integer of at most 128 bits.
func (b *Balance) DecodeRLP(s *rlp.Stream) error {
	x := new(big.Int)
	if err := s.Decode(x); err != nil {
		return err
	}
	v, err := BalanceFromBig(x)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// MarshalText implements encoding.TextMarshaler using base 10.
func (b Balance) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Balance) UnmarshalText(text []byte) error {
	v, err := ParseBalance(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}
