package storage

import "github.com/govm-net/contractkit/core"

// Mapping is a lazily materialised map. Only inserted keys occupy storage.
type Mapping[K, V any] struct {
	key Key
}

// NewMapping declares a mapping field in l.
func NewMapping[K, V any](l *Layout, name string) Mapping[K, V] {
	return Mapping[K, V]{key: l.declare(name, KindMapping, typeOf[K](), typeOf[V]())}
}

func (m Mapping[K, V]) Key() Key {
	return m.key
}

// Slot returns the physical key of k: tag || canonical(k).
func (m Mapping[K, V]) Slot(k K) []byte {
	enc, err := core.Encode(k)
	if err != nil {
		panic(core.NewTrapErr(core.TrapEncoding, err))
	}
	return append(m.key[:], enc...)
}

// Get returns the value under k and whether it exists.
func (m Mapping[K, V]) Get(r Reader, k K) (V, bool) {
	var v V
	raw, ok := r.GetStorage(m.Slot(k))
	if !ok {
		return v, false
	}
	decodeValue(raw, &v)
	return v, true
}

// GetOrZero returns the value under k or the zero value of V.
func (m Mapping[K, V]) GetOrZero(r Reader, k K) V {
	v, _ := m.Get(r, k)
	return v
}

func (m Mapping[K, V]) Contains(r Reader, k K) bool {
	_, ok := r.GetStorage(m.Slot(k))
	return ok
}

// Insert stores v under k, replacing any previous value.
func (m Mapping[K, V]) Insert(w Writer, k K, v V) {
	w.SetStorage(m.Slot(k), encodeValue(v))
}

// Remove deletes k. Removing an absent key is a no-op.
func (m Mapping[K, V]) Remove(w Writer, k K) {
	w.ClearStorage(m.Slot(k))
}
