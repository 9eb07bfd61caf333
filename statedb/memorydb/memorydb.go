// Package memorydb is the in-process map backend of statedb.
package memorydb

import (
	"bytes"
	"sync"

	"github.com/govm-net/contractkit/statedb"
)

func init() {
	if err := statedb.Register(statedb.Memory, func(map[string]any) (statedb.Database, error) {
		return New(), nil
	}); err != nil {
		panic(err)
	}
}

// Database is a map guarded by a RWMutex.
type Database struct {
	mu     sync.RWMutex
	kv     map[string][]byte
	closed bool
}

// New returns an empty in-memory database.
func New() *Database {
	return &Database{kv: make(map[string][]byte)}
}

func (d *Database) Get(key []byte) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, statedb.ErrClosed
	}
	v, ok := d.kv[string(key)]
	if !ok {
		return nil, statedb.ErrNotFound
	}
	return bytes.Clone(v), nil
}

func (d *Database) Has(key []byte) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return false, statedb.ErrClosed
	}
	_, ok := d.kv[string(key)]
	return ok, nil
}

func (d *Database) Put(key, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return statedb.ErrClosed
	}
	d.kv[string(key)] = bytes.Clone(value)
	return nil
}

func (d *Database) Delete(key []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return statedb.ErrClosed
	}
	delete(d.kv, string(key))
	return nil
}

// Iterator snapshots the pairs in [start, end).
func (d *Database) Iterator(start, end []byte) (statedb.Iterator, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, statedb.ErrClosed
	}
	var kvs []statedb.KV
	for k, v := range d.kv {
		key := []byte(k)
		if statedb.InRange(key, start, end) {
			kvs = append(kvs, statedb.KV{Key: key, Value: bytes.Clone(v)})
		}
	}
	return statedb.NewSliceIterator(kvs), nil
}

// Len returns the number of stored keys.
func (d *Database) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.kv)
}

func (d *Database) NewBatch() statedb.Batch {
	return &batch{db: d}
}

func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

type op struct {
	key    []byte
	value  []byte
	delete bool
}

type batch struct {
	db  *Database
	ops []op
}

func (b *batch) Put(key, value []byte) error {
	b.ops = append(b.ops, op{key: bytes.Clone(key), value: bytes.Clone(value)})
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.ops = append(b.ops, op{key: bytes.Clone(key), delete: true})
	return nil
}

func (b *batch) Write() error {
	b.db.mu.Lock()
	defer b.db.mu.Unlock()

	if b.db.closed {
		return statedb.ErrClosed
	}
	for _, o := range b.ops {
		if o.delete {
			delete(b.db.kv, string(o.key))
		} else {
			b.db.kv[string(o.key)] = o.value
		}
	}
	return nil
}

func (b *batch) Reset() {
	b.ops = b.ops[:0]
}
