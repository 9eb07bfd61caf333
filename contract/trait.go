package contract

import (
	"fmt"
	"slices"
)

// TraitMessage is one message of a trait schema.
type TraitMessage struct {
	Label    string
	Selector Selector
	Mutates  bool
	Args     []Param
	Returns  string

	err error
}

// Trait is a named interface schema. Any contract that implements it
// exposes the same selectors, so callers can address it without knowing the
// concrete contract.
type Trait struct {
	Name     string
	Messages []TraitMessage
}

// NewTrait builds a trait and derives its selectors from "name::label".
func NewTrait(name string, msgs ...TraitMessage) *Trait {
	t := &Trait{Name: name, Messages: msgs}
	for i := range t.Messages {
		t.Messages[i].Selector = SelectorOf(name + "::" + t.Messages[i].Label)
	}
	return t
}

// TraitMutating declares a state changing trait message.
func TraitMutating[A, R any](label string) TraitMessage {
	args, err := paramsOf[A]()
	return TraitMessage{Label: label, Mutates: true, Args: args, Returns: typeName[R](), err: err}
}

// TraitView declares a read-only trait message.
func TraitView[A, R any](label string) TraitMessage {
	args, err := paramsOf[A]()
	return TraitMessage{Label: label, Args: args, Returns: typeName[R](), err: err}
}

// Selector returns the selector of the named message.
func (t *Trait) Selector(label string) (Selector, bool) {
	for _, m := range t.Messages {
		if m.Label == label {
			return m.Selector, true
		}
	}
	return Selector{}, false
}

// check verifies that entries implement every message of t.
func (t *Trait) check(entries []*Entry) []error {
	var errs []error
	for _, m := range t.Messages {
		if m.err != nil {
			errs = append(errs, fmt.Errorf("%s::%s: %w", t.Name, m.Label, m.err))
			continue
		}
		idx := slices.IndexFunc(entries, func(e *Entry) bool {
			return e.Kind == KindMessage && e.Trait == t.Name && e.Label == m.Label
		})
		if idx < 0 {
			errs = append(errs, fmt.Errorf("%w: %s::%s missing", ErrTraitMismatch, t.Name, m.Label))
			continue
		}
		e := entries[idx]
		switch {
		case e.Selector != m.Selector:
			errs = append(errs, fmt.Errorf("%w: %s::%s selector %s, want %s", ErrTraitMismatch, t.Name, m.Label, e.Selector, m.Selector))
		case e.Mutates != m.Mutates:
			errs = append(errs, fmt.Errorf("%w: %s::%s mutability differs", ErrTraitMismatch, t.Name, m.Label))
		case !slices.Equal(e.Args, m.Args):
			errs = append(errs, fmt.Errorf("%w: %s::%s arguments differ", ErrTraitMismatch, t.Name, m.Label))
		case e.Returns != m.Returns:
			errs = append(errs, fmt.Errorf("%w: %s::%s returns %s, want %s", ErrTraitMismatch, t.Name, m.Label, e.Returns, m.Returns))
		}
	}
	return errs
}
