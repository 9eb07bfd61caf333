package contract

import (
	"fmt"

	"github.com/govm-net/contractkit/core"
	"github.com/govm-net/contractkit/storage"
)

// Descriptor is a built contract: static metadata plus the dispatcher.
type Descriptor struct {
	Name    string
	Docs    string
	Entries []*Entry
	Events  []EventSpec
	Storage []storage.Field
	Traits  []*Trait

	bySelector map[Selector]*Entry
}

// Lookup finds an entry by label or by "Trait::label".
func (d *Descriptor) Lookup(label string) (*Entry, bool) {
	for _, e := range d.Entries {
		if e.Label == label || e.QualifiedLabel() == label {
			return e, true
		}
	}
	return nil, false
}

// BySelector finds an entry by selector.
func (d *Descriptor) BySelector(sel Selector) (*Entry, bool) {
	e, ok := d.bySelector[sel]
	return e, ok
}

// Constructors returns the constructors in registration order.
func (d *Descriptor) Constructors() []*Entry {
	return d.filter(KindConstructor)
}

// Messages returns the messages in registration order.
func (d *Descriptor) Messages() []*Entry {
	return d.filter(KindMessage)
}

func (d *Descriptor) filter(kind Kind) []*Entry {
	var out []*Entry
	for _, e := range d.Entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Input builds the call input of the named entry.
func (d *Descriptor) Input(label string, args any) ([]byte, error) {
	e, ok := d.Lookup(label)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrNoMatchingEntry, d.Name, label)
	}
	return Input(e.Selector, args)
}

// Deploy implements core.Module.
func (d *Descriptor) Deploy(h core.Host) {
	d.dispatch(h, KindConstructor)
}

// Call implements core.Module.
func (d *Descriptor) Call(h core.Host) {
	d.dispatch(h, KindMessage)
}

// dispatch reads the selector, finds the entry, checks payability, runs the
// entry and hands its result to the host.
func (d *Descriptor) dispatch(h core.Host, kind Kind) {
	input := h.Input()
	if len(input) < len(Selector{}) {
		panic(dispatchTrap(fmt.Errorf("%w: %d bytes", ErrCouldNotReadInput, len(input))))
	}
	var sel Selector
	copy(sel[:], input)

	e, ok := d.bySelector[sel]
	if !ok || e.Kind != kind {
		panic(dispatchTrap(fmt.Errorf("%w: %s %s", ErrNoMatchingEntry, kind, sel)))
	}
	if !e.Payable && !h.ValueTransferred().IsZero() {
		panic(dispatchTrap(fmt.Errorf("%w: %s", ErrNonPayable, e.QualifiedLabel())))
	}

	out, revert := e.invoke(h, input[len(sel):])
	var flags core.ReturnFlags
	if revert {
		flags = core.FlagRevert
	}
	h.Return(flags, out)
}
