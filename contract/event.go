package contract

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/govm-net/contractkit/core"
)

// EventField describes one field of an event.
type EventField struct {
	Name  string
	Type  string
	Topic bool
}

// EventSpec is the static description of an event type.
type EventSpec struct {
	Label     string
	Signature core.Hash
	Fields    []EventField
}

// SignatureOf returns the first topic of events with the given label.
func SignatureOf(label string) core.Hash {
	return core.HashBytes([]byte(label))
}

type eventLayout struct {
	spec   EventSpec
	topics []int
	data   []int
}

var eventLayouts sync.Map // reflect.Type -> *eventLayout

func layoutOf(t reflect.Type) (*eventLayout, error) {
	if l, ok := eventLayouts.Load(t); ok {
		return l.(*eventLayout), nil
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("event %s is not a struct", t)
	}
	l := &eventLayout{spec: EventSpec{Label: t.Name(), Signature: SignatureOf(t.Name())}}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Tag.Get("abi")
		if name == "" {
			name = snakeCase(f.Name)
		}
		topic := f.Tag.Get("event") == "topic"
		l.spec.Fields = append(l.spec.Fields, EventField{Name: name, Type: f.Type.String(), Topic: topic})
		if topic {
			l.topics = append(l.topics, i)
		} else {
			l.data = append(l.data, i)
		}
	}
	actual, _ := eventLayouts.LoadOrStore(t, l)
	return actual.(*eventLayout), nil
}

// Event registers the event type E with b.
func Event[S, E any](b *Builder[S]) {
	l, err := layoutOf(typeOf[E]())
	if err != nil {
		b.errs = append(b.errs, err)
		return
	}
	b.events = append(b.events, l.spec)
}

// EncodeEvent returns the topics and data of ev. The first topic is the
// event signature, followed by the hash of the canonical encoding of each
// field tagged `event:"topic"`. Data is the canonical list of the remaining
// fields.
func EncodeEvent(ev any) ([]core.Hash, []byte, error) {
	v := reflect.ValueOf(ev)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	l, err := layoutOf(v.Type())
	if err != nil {
		return nil, nil, err
	}

	topics := make([]core.Hash, 0, len(l.topics)+1)
	topics = append(topics, l.spec.Signature)
	for _, i := range l.topics {
		enc, err := core.Encode(v.Field(i).Interface())
		if err != nil {
			return nil, nil, err
		}
		topics = append(topics, core.HashBytes(enc))
	}

	values := make([]any, 0, len(l.data))
	for _, i := range l.data {
		values = append(values, v.Field(i).Interface())
	}
	data, err := core.Encode(values)
	if err != nil {
		return nil, nil, err
	}
	return topics, data, nil
}

// TopicOf returns the topic a topic field holding v produces.
func TopicOf(v any) (core.Hash, error) {
	enc, err := core.Encode(v)
	if err != nil {
		return core.Hash{}, err
	}
	return core.HashBytes(enc), nil
}
