// Package statedb defines the ordered key/value store behind contract state,
// a backend registry, and the journaled overlay used by invocations.
package statedb

import (
	"bytes"
	"errors"
	"sort"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("not found")

// ErrClosed is returned by operations on a closed database.
var ErrClosed = errors.New("database closed")

// Reader is the read half of a database.
type Reader interface {
	// Get returns the value stored under key or ErrNotFound.
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
}

// Writer is the write half of a database.
type Writer interface {
	Put(key, value []byte) error
	Delete(key []byte) error
}

// Iterator walks keys in ascending byte order. Key and Value return copies.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Close()
}

// Iteratee opens iterators over [start, end). A nil bound is unbounded.
type Iteratee interface {
	Iterator(start, end []byte) (Iterator, error)
}

// Batch buffers writes and applies them atomically on Write.
type Batch interface {
	Writer
	Write() error
	Reset()
}

// Database is the full backend contract.
type Database interface {
	Reader
	Writer
	Iteratee
	NewBatch() Batch
	Close() error
}

// KV is a materialised key/value pair.
type KV struct {
	Key   []byte
	Value []byte
}

// sliceIterator iterates a pre-sorted snapshot.
type sliceIterator struct {
	kvs []KV
	pos int
}

// NewSliceIterator returns an iterator over kvs, which it sorts by key.
func NewSliceIterator(kvs []KV) Iterator {
	sort.Slice(kvs, func(i, j int) bool {
		return bytes.Compare(kvs[i].Key, kvs[j].Key) < 0
	})
	return &sliceIterator{kvs: kvs, pos: -1}
}

func (it *sliceIterator) Next() bool {
	if it.pos+1 >= len(it.kvs) {
		it.pos = len(it.kvs)
		return false
	}
	it.pos++
	return true
}

func (it *sliceIterator) Key() []byte {
	if it.pos < 0 || it.pos >= len(it.kvs) {
		return nil
	}
	return bytes.Clone(it.kvs[it.pos].Key)
}

func (it *sliceIterator) Value() []byte {
	if it.pos < 0 || it.pos >= len(it.kvs) {
		return nil
	}
	return bytes.Clone(it.kvs[it.pos].Value)
}

func (it *sliceIterator) Error() error { return nil }

func (it *sliceIterator) Close() { it.kvs = nil }

// InRange reports whether key lies in [start, end).
func InRange(key, start, end []byte) bool {
	if start != nil && bytes.Compare(key, start) < 0 {
		return false
	}
	if end != nil && bytes.Compare(key, end) >= 0 {
		return false
	}
	return true
}

// ForEach calls fn for every pair under prefix until fn returns false.
func ForEach(db Iteratee, prefix []byte, fn func(key, value []byte) bool) error {
	start, end := PrefixRange(prefix)
	it, err := db.Iterator(start, end)
	if err != nil {
		return err
	}
	defer it.Close()
	for it.Next() {
		if !fn(it.Key(), it.Value()) {
			break
		}
	}
	return it.Error()
}
