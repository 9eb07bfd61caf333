// Package badgerdb is the badger v3 backend of statedb.
package badgerdb

import (
	"bytes"
	"errors"

	"github.com/dgraph-io/badger/v3"

	"github.com/govm-net/contractkit/statedb"
)

func init() {
	if err := statedb.Register(statedb.Badger, func(params map[string]any) (statedb.Database, error) {
		return New(statedb.StringParam(params, "path", ""))
	}); err != nil {
		panic(err)
	}
}

// Database wraps a badger handle.
type Database struct {
	db *badger.DB
}

// New opens a badger database in path. An empty path keeps everything in
// memory.
func New(path string) (*Database, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, err
	}
	return &Database{db: db}, nil
}

func (d *Database) Get(key []byte) ([]byte, error) {
	var value []byte
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, statedb.ErrNotFound
	}
	return value, err
}

func (d *Database) Has(key []byte) (bool, error) {
	_, err := d.Get(key)
	if errors.Is(err, statedb.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (d *Database) Put(key, value []byte) error {
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(bytes.Clone(key), bytes.Clone(value))
	})
}

func (d *Database) Delete(key []byte) error {
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(bytes.Clone(key))
	})
}

// Iterator snapshots the pairs in [start, end) inside one read transaction.
func (d *Database) Iterator(start, end []byte) (statedb.Iterator, error) {
	var kvs []statedb.KV
	err := d.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(start); it.Valid(); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			if end != nil && bytes.Compare(key, end) >= 0 {
				break
			}
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			kvs = append(kvs, statedb.KV{Key: key, Value: value})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return statedb.NewSliceIterator(kvs), nil
}

func (d *Database) NewBatch() statedb.Batch {
	return &batch{db: d.db}
}

func (d *Database) Close() error {
	return d.db.Close()
}

type op struct {
	key    []byte
	value  []byte
	delete bool
}

type batch struct {
	db  *badger.DB
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

// Write applies the batch in a single transaction.
func (b *batch) Write() error {
	return b.db.Update(func(txn *badger.Txn) error {
		for _, o := range b.ops {
			var err error
			if o.delete {
				err = txn.Delete(o.key)
			} else {
				err = txn.Set(o.key, o.value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *batch) Reset() {
	b.ops = b.ops[:0]
}
