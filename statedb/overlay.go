package statedb

import (
	"bytes"
	"errors"
	"sort"
	"strings"
)

// Overlay buffers writes over a Database for the duration of one top-level
// invocation. Nested frames take snapshots and roll back to them on failure;
// nothing reaches the underlying database until Commit.
type Overlay struct {
	db      Database
	dirty   map[string]*entry
	journal []change
}

type entry struct {
	value   []byte
	deleted bool
}

type change struct {
	key  string
	prev *entry
}

// NewOverlay returns an empty overlay on top of db.
func NewOverlay(db Database) *Overlay {
	return &Overlay{db: db, dirty: make(map[string]*entry)}
}

// Get returns the effective value of key.
func (o *Overlay) Get(key []byte) ([]byte, bool, error) {
	if e, ok := o.dirty[string(key)]; ok {
		if e.deleted {
			return nil, false, nil
		}
		return bytes.Clone(e.value), true, nil
	}
	v, err := o.db.Get(key)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Put records a write.
func (o *Overlay) Put(key, value []byte) {
	o.set(string(key), &entry{value: bytes.Clone(value)})
}

// Delete records a removal.
func (o *Overlay) Delete(key []byte) {
	o.set(string(key), &entry{deleted: true})
}

func (o *Overlay) set(key string, e *entry) {
	o.journal = append(o.journal, change{key: key, prev: o.dirty[key]})
	o.dirty[key] = e
}

// DeletePrefix removes every key under prefix, whether committed or buffered.
func (o *Overlay) DeletePrefix(prefix []byte) error {
	var keys [][]byte
	err := o.ForEach(prefix, func(key, _ []byte) bool {
		keys = append(keys, key)
		return true
	})
	if err != nil {
		return err
	}
	for _, k := range keys {
		o.Delete(k)
	}
	return nil
}

// ForEach visits the effective pairs under prefix in ascending key order.
func (o *Overlay) ForEach(prefix []byte, fn func(key, value []byte) bool) error {
	merged := make(map[string][]byte)
	err := ForEach(o.db, prefix, func(key, value []byte) bool {
		merged[string(key)] = value
		return true
	})
	if err != nil {
		return err
	}
	p := string(prefix)
	for k, e := range o.dirty {
		if !strings.HasPrefix(k, p) {
			continue
		}
		if e.deleted {
			delete(merged, k)
		} else {
			merged[k] = e.value
		}
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !fn([]byte(k), bytes.Clone(merged[k])) {
			break
		}
	}
	return nil
}

// Snapshot returns an identifier for the current buffered state.
func (o *Overlay) Snapshot() int {
	return len(o.journal)
}

// RevertToSnapshot undoes every write made after the snapshot was taken.
func (o *Overlay) RevertToSnapshot(id int) {
	for i := len(o.journal) - 1; i >= id; i-- {
		c := o.journal[i]
		if c.prev == nil {
			delete(o.dirty, c.key)
		} else {
			o.dirty[c.key] = c.prev
		}
	}
	o.journal = o.journal[:id]
}

// Dirty returns the number of buffered keys.
func (o *Overlay) Dirty() int {
	return len(o.dirty)
}

// Commit writes the buffered changes in key order in a single batch and
// resets the overlay.
func (o *Overlay) Commit() error {
	keys := make([]string, 0, len(o.dirty))
	for k := range o.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	batch := o.db.NewBatch()
	for _, k := range keys {
		e := o.dirty[k]
		var err error
		if e.deleted {
			err = batch.Delete([]byte(k))
		} else {
			err = batch.Put([]byte(k), e.value)
		}
		if err != nil {
			return err
		}
	}
	if err := batch.Write(); err != nil {
		return err
	}
	o.Discard()
	return nil
}

// Discard drops all buffered changes.
func (o *Overlay) Discard() {
	o.dirty = make(map[string]*entry)
	o.journal = o.journal[:0]
}
