package contract

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/govm-net/contractkit/core"
)

// Kind tells constructors from messages.
type Kind uint8

const (
	KindConstructor Kind = iota + 1
	KindMessage
)

func (k Kind) String() string {
	switch k {
	case KindConstructor:
		return "constructor"
	case KindMessage:
		return "message"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Param is one positional argument.
type Param struct {
	Name string
	Type string
}

// Entry is one dispatchable constructor or message.
type Entry struct {
	Label    string
	Trait    string
	Selector Selector
	Kind     Kind
	Mutates  bool
	Payable  bool
	Default  bool
	Args     []Param
	Returns  string
	Docs     string

	explicit bool
	invoke   func(h core.Host, input []byte) (out []byte, revert bool)
}

// QualifiedLabel returns "Trait::label" for trait messages and the label
// otherwise.
func (e *Entry) QualifiedLabel() string {
	if e.Trait != "" {
		return e.Trait + "::" + e.Label
	}
	return e.Label
}

// Option adjusts an entry at registration.
type Option func(*Entry)

// Payable allows the entry to receive value.
func Payable() Option {
	return func(e *Entry) { e.Payable = true }
}

// Default marks the entry as the default constructor or message.
func Default() Option {
	return func(e *Entry) { e.Default = true }
}

// InTrait places a message in the namespace of t.
func InTrait(t *Trait) Option {
	return func(e *Entry) { e.Trait = t.Name }
}

// WithSelector overrides the derived selector.
func WithSelector(sel Selector) Option {
	return func(e *Entry) {
		e.Selector = sel
		e.explicit = true
	}
}

// Docs attaches documentation shown in metadata.
func Docs(text string) Option {
	return func(e *Entry) { e.Docs = text }
}

func newEntry(kind Kind, label string, mutates bool, args []Param, returns string, opts []Option) *Entry {
	e := &Entry{Label: label, Kind: kind, Mutates: mutates, Args: args, Returns: returns}
	for _, opt := range opts {
		opt(e)
	}
	if !e.explicit {
		e.Selector = SelectorOf(e.QualifiedLabel())
	}
	return e
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func typeName[T any]() string {
	return typeOf[T]().String()
}

// paramsOf lists the exported fields of the argument struct A.
func paramsOf[A any]() ([]Param, error) {
	t := typeOf[A]()
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s", ErrInvalidArgs, t)
	}
	var params []Param
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Tag.Get("abi")
		if name == "" {
			name = snakeCase(f.Name)
		}
		params = append(params, Param{Name: name, Type: f.Type.String()})
	}
	return params, nil
}

func decodeArgs[A any](input []byte) A {
	var a A
	t := typeOf[A]()
	if len(input) == 0 && t.Kind() == reflect.Struct && t.NumField() == 0 {
		return a
	}
	if err := core.Decode(input, &a); err != nil {
		panic(dispatchTrap(fmt.Errorf("%w: %v", ErrDecodeArgs, err)))
	}
	return a
}

func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
