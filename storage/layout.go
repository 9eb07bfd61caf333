// Package storage maps typed contract fields onto the flat key/value store of
// a contract instance.
//
// Every declared field gets a 4-byte tag derived from "Contract::field".
// A cell lives at its tag; a mapping entry lives at tag || canonical(key).
package storage

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/govm-net/contractkit/core"
)

// ErrDuplicateKey is reported when two fields of a layout derive the same tag.
var ErrDuplicateKey = errors.New("duplicate storage key")

// Key is the tag of a declared field.
type Key [4]byte

// KeyOf returns the tag of a qualified field name.
func KeyOf(name string) Key {
	h := core.HashBytes([]byte(name))
	var k Key
	copy(k[:], h[:4])
	return k
}

func (k Key) String() string {
	return fmt.Sprintf("0x%x", k[:])
}

// Kind distinguishes cells from mappings.
type Kind string

const (
	KindCell    Kind = "cell"
	KindMapping Kind = "mapping"
)

// Field describes one declared storage field.
type Field struct {
	Name  string
	Kind  Kind
	Key   Key
	Type  string
	Value string
}

// Reader is read access to a contract's own storage.
type Reader interface {
	GetStorage(key []byte) ([]byte, bool)
}

// Writer is read/write access to a contract's own storage.
type Writer interface {
	Reader
	SetStorage(key, value []byte)
	ClearStorage(key []byte)
}

// Layout collects the fields of one contract.
type Layout struct {
	contract string
	fields   []Field
	byKey    map[Key]string
	errs     []error
}

// NewLayout starts the layout of the named contract.
func NewLayout(contract string) *Layout {
	return &Layout{contract: contract, byKey: make(map[Key]string)}
}

// Contract returns the contract name the tags are derived from.
func (l *Layout) Contract() string {
	return l.contract
}

// Fields returns the declared fields in declaration order.
func (l *Layout) Fields() []Field {
	return append([]Field(nil), l.fields...)
}

// Err returns the layout errors collected while declaring fields.
func (l *Layout) Err() error {
	return errors.Join(l.errs...)
}

func (l *Layout) declare(name string, kind Kind, typ, value reflect.Type) Key {
	k := KeyOf(l.contract + "::" + name)
	if prev, ok := l.byKey[k]; ok {
		l.errs = append(l.errs, fmt.Errorf("%w: %s and %s share %s", ErrDuplicateKey, prev, name, k))
	}
	l.byKey[k] = name
	f := Field{Name: name, Kind: kind, Key: k, Type: typ.String()}
	if value != nil {
		f.Value = value.String()
	}
	l.fields = append(l.fields, f)
	return k
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func encodeValue(v any) []byte {
	b, err := core.Encode(v)
	if err != nil {
		panic(core.NewTrapErr(core.TrapEncoding, err))
	}
	if len(b) > core.MaxValueSize {
		panic(core.NewTrap(core.TrapAllocation, "value of %d bytes exceeds %d", len(b), core.MaxValueSize))
	}
	return b
}

func decodeValue(raw []byte, v any) {
	if err := core.Decode(raw, v); err != nil {
		panic(core.NewTrapErr(core.TrapStorageCorrupt, err))
	}
}
