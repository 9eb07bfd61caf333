package contract

import (
	"errors"
	"fmt"

	"github.com/govm-net/contractkit/core"
	"github.com/govm-net/contractkit/storage"
)

// Builder collects the entries of a contract with storage struct S.
type Builder[S any] struct {
	name    string
	docs    string
	layout  *storage.Layout
	state   *S
	entries []*Entry
	events  []EventSpec
	traits  []*Trait
	errs    []error
}

// New starts a contract. bind declares the storage fields of S on the layout
// and returns the storage struct shared by all entries.
func New[S any](name string, bind func(l *storage.Layout) *S) *Builder[S] {
	l := storage.NewLayout(name)
	return &Builder[S]{name: name, layout: l, state: bind(l)}
}

// Docs sets the contract level documentation.
func (b *Builder[S]) Docs(text string) *Builder[S] {
	b.docs = text
	return b
}

// Implements records that the contract implements t. Build fails unless
// every message of t is registered with InTrait(t) and a matching signature.
func (b *Builder[S]) Implements(t *Trait) *Builder[S] {
	b.traits = append(b.traits, t)
	return b
}

// State returns the storage struct passed to entries.
func (b *Builder[S]) State() *S {
	return b.state
}

func (b *Builder[S]) add(e *Entry, err error) {
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("%s: %w", e.QualifiedLabel(), err))
	}
	b.entries = append(b.entries, e)
}

// Constructor registers a constructor. A returned error reverts the
// deployment with the error as payload.
func Constructor[S, A any](b *Builder[S], label string, fn func(env Env, s *S, args A) error, opts ...Option) {
	params, err := paramsOf[A]()
	e := newEntry(KindConstructor, label, true, params, "", opts)
	state := b.state
	e.invoke = func(h core.Host, input []byte) ([]byte, bool) {
		args := decodeArgs[A](input)
		if err := fn(newEnv(h), state, args); err != nil {
			return failure(err), true
		}
		return nil, false
	}
	b.add(e, err)
}

// Message registers a state changing message. A returned error reverts all
// of the message's state changes and reaches the caller as payload.
func Message[S, A, R any](b *Builder[S], label string, fn func(env Env, s *S, args A) (R, error), opts ...Option) {
	params, err := paramsOf[A]()
	e := newEntry(KindMessage, label, true, params, typeName[R](), opts)
	state := b.state
	e.invoke = func(h core.Host, input []byte) ([]byte, bool) {
		args := decodeArgs[A](input)
		r, err := fn(newEnv(h), state, args)
		if err != nil {
			return failure(err), true
		}
		return core.MustEncode(r), false
	}
	b.add(e, err)
}

// View registers a read-only message. Its environment cannot change state.
func View[S, A, R any](b *Builder[S], label string, fn func(env ReadEnv, s *S, args A) R, opts ...Option) {
	params, err := paramsOf[A]()
	e := newEntry(KindMessage, label, false, params, typeName[R](), opts)
	state := b.state
	e.invoke = func(h core.Host, input []byte) ([]byte, bool) {
		args := decodeArgs[A](input)
		return core.MustEncode(fn(newReadEnv(h), state, args)), false
	}
	b.add(e, err)
}

// failure turns an entry error into a revert payload. Traps returned as
// errors stay traps.
func failure(err error) []byte {
	var trap *core.Trap
	if errors.As(err, &trap) {
		panic(trap)
	}
	return revertPayload(err)
}

// Build validates the contract and returns its descriptor.
func (b *Builder[S]) Build() (*Descriptor, error) {
	errs := append([]error(nil), b.errs...)
	if err := b.layout.Err(); err != nil {
		errs = append(errs, err)
	}

	d := &Descriptor{
		Name:       b.name,
		Docs:       b.docs,
		Entries:    b.entries,
		Events:     b.events,
		Storage:    b.layout.Fields(),
		Traits:     b.traits,
		bySelector: make(map[Selector]*Entry, len(b.entries)),
	}

	defaults := map[Kind]int{}
	constructors := 0
	for _, e := range b.entries {
		if prev, ok := d.bySelector[e.Selector]; ok {
			errs = append(errs, fmt.Errorf("%w: %s and %s share %s",
				ErrDuplicateSelector, prev.QualifiedLabel(), e.QualifiedLabel(), e.Selector))
			continue
		}
		d.bySelector[e.Selector] = e
		if e.Kind == KindConstructor {
			constructors++
		}
		if e.Default {
			defaults[e.Kind]++
		}
	}
	if constructors == 0 {
		errs = append(errs, ErrNoConstructor)
	}
	for kind, n := range defaults {
		if n > 1 {
			errs = append(errs, fmt.Errorf("%w: %d %ss", ErrMultipleDefaults, n, kind))
		}
	}
	for _, t := range b.traits {
		errs = append(errs, t.check(b.entries)...)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("contract %s: %w", b.name, errors.Join(errs...))
	}
	return d, nil
}

// MustBuild is Build for package level declarations. It panics on error.
func (b *Builder[S]) MustBuild() *Descriptor {
	d, err := b.Build()
	if err != nil {
		panic(err)
	}
	return d
}
