// Package leveldb is the goleveldb backend of statedb.
package leveldb

import (
	"bytes"
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/govm-net/contractkit/statedb"
)

func init() {
	if err := statedb.Register(statedb.LevelDB, func(params map[string]any) (statedb.Database, error) {
		path := statedb.StringParam(params, "path", "")
		if path == "" {
			return NewMem()
		}
		return New(path)
	}); err != nil {
		panic(err)
	}
}

// Database wraps a goleveldb handle.
type Database struct {
	db *leveldb.DB
}

// New opens or creates a database in the directory path.
func New(path string) (*Database, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &Database{db: db}, nil
}

// NewMem opens a database on goleveldb's in-memory storage.
func NewMem() (*Database, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &Database{db: db}, nil
}

func (d *Database) Get(key []byte) ([]byte, error) {
	v, err := d.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, statedb.ErrNotFound
	}
	return v, err
}

func (d *Database) Has(key []byte) (bool, error) {
	return d.db.Has(key, nil)
}

func (d *Database) Put(key, value []byte) error {
	return d.db.Put(key, value, nil)
}

func (d *Database) Delete(key []byte) error {
	return d.db.Delete(key, nil)
}

func (d *Database) Iterator(start, end []byte) (statedb.Iterator, error) {
	return &iter{it: d.db.NewIterator(&util.Range{Start: start, Limit: end}, nil)}, nil
}

func (d *Database) NewBatch() statedb.Batch {
	return &batch{db: d.db, b: new(leveldb.Batch)}
}

func (d *Database) Close() error {
	return d.db.Close()
}

type iter struct {
	it iterator.Iterator
}

func (i *iter) Next() bool    { return i.it.Next() }
func (i *iter) Key() []byte   { return bytes.Clone(i.it.Key()) }
func (i *iter) Value() []byte { return bytes.Clone(i.it.Value()) }
func (i *iter) Error() error  { return i.it.Error() }
func (i *iter) Close()        { i.it.Release() }

type batch struct {
	db *leveldb.DB
	b  *leveldb.Batch
}

func (b *batch) Put(key, value []byte) error {
	b.b.Put(key, value)
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.b.Delete(key)
	return nil
}

func (b *batch) Write() error {
	return b.db.Write(b.b, nil)
}

func (b *batch) Reset() {
	b.b.Reset()
}
