// Package contract turns typed Go functions into a dispatchable contract.
//
// A contract is described once with a Builder: storage fields are declared on
// a storage.Layout, constructors and messages are registered with the generic
// helpers Constructor, Message and View, and events with Event. Build returns
// a Descriptor, which is both the static metadata of the contract and its
// core.Module implementation.
package contract

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/govm-net/contractkit/core"
)

// Selector identifies an entry point: the first 4 bytes of blake2b-256 of
// the entry label.
type Selector [4]byte

// SelectorOf returns the selector of label. Trait messages use "Trait::label".
func SelectorOf(label string) Selector {
	h := core.HashBytes([]byte(label))
	var s Selector
	copy(s[:], h[:4])
	return s
}

func (s Selector) String() string {
	return "0x" + hex.EncodeToString(s[:])
}

// ParseSelector parses the 0x-prefixed hex form produced by String.
func ParseSelector(text string) (Selector, error) {
	var s Selector
	b, err := hex.DecodeString(strings.TrimPrefix(text, "0x"))
	if err != nil {
		return s, err
	}
	if len(b) != len(s) {
		return s, fmt.Errorf("selector must be 4 bytes, got %d", len(b))
	}
	copy(s[:], b)
	return s, nil
}

// MarshalText implements encoding.TextMarshaler.
func (s Selector) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Selector) UnmarshalText(text []byte) error {
	v, err := ParseSelector(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Input builds a call input: sel || canonical(args).
func Input(sel Selector, args any) ([]byte, error) {
	enc, err := core.Encode(args)
	if err != nil {
		return nil, err
	}
	return append(sel[:], enc...), nil
}
