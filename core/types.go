package core

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AccountId is an opaque 32-byte principal identifier.
type AccountId [32]byte

// Hash is an opaque 32-byte digest.
type Hash [32]byte

// Unit is the empty value. It encodes as an empty list.
type Unit struct{}

var (
	ZeroAccount = AccountId{}
	ZeroHash    = Hash{}
)

func (a AccountId) String() string {
	return hex.EncodeToString(a[:])
}

// IsZero reports whether a is the all-zero account.
func (a AccountId) IsZero() bool {
	return a == ZeroAccount
}

// MarshalText implements encoding.TextMarshaler.
func (a AccountId) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AccountId) UnmarshalText(text []byte) error {
	v, err := AccountIdFromString(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// AccountIdFromString parses a hex encoded account, with or without 0x prefix.
func AccountIdFromString(s string) (AccountId, error) {
	var a AccountId
	b, err := decodeHex32(s)
	if err != nil {
		return a, fmt.Errorf("account id: %w", err)
	}
	copy(a[:], b)
	return a, nil
}

// AccountIdFromSeed derives a deterministic account from a human readable seed.
// It is used by test harnesses for well known accounts such as "alice".
func AccountIdFromSeed(seed string) AccountId {
	return AccountId(HashBytes([]byte("account:" + seed)))
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns a copy of the hash as a slice.
func (h Hash) Bytes() []byte {
	return append([]byte(nil), h[:]...)
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	v, err := HashFromString(string(text))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

// HashFromString parses a hex encoded hash, with or without 0x prefix.
func HashFromString(s string) (Hash, error) {
	var h Hash
	b, err := decodeHex32(s)
	if err != nil {
		return h, fmt.Errorf("hash: %w", err)
	}
	copy(h[:], b)
	return h, nil
}

func decodeHex32(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != 64 {
		return nil, ErrInvalidArgument
	}
	return hex.DecodeString(s)
}
