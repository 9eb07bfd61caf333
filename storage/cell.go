package storage

// Cell is a single typed value at a fixed key.
type Cell[T any] struct {
	key Key
}

// NewCell declares a cell field in l.
func NewCell[T any](l *Layout, name string) Cell[T] {
	return Cell[T]{key: l.declare(name, KindCell, typeOf[T](), nil)}
}

func (c Cell[T]) Key() Key {
	return c.key
}

// Get returns the stored value or the zero value of T when the cell was
// never written.
func (c Cell[T]) Get(r Reader) T {
	var v T
	raw, ok := r.GetStorage(c.key[:])
	if !ok {
		return v
	}
	decodeValue(raw, &v)
	return v
}

// Exists reports whether the cell holds a value.
func (c Cell[T]) Exists(r Reader) bool {
	_, ok := r.GetStorage(c.key[:])
	return ok
}

func (c Cell[T]) Set(w Writer, v T) {
	w.SetStorage(c.key[:], encodeValue(v))
}

// Clear removes the value; a later Get returns the zero value.
func (c Cell[T]) Clear(w Writer) {
	w.ClearStorage(c.key[:])
}
