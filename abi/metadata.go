// Package abi renders contract descriptors as JSON metadata and generates Go
// bindings from that metadata.
package abi

import (
	"encoding/json"
	"fmt"

	"github.com/govm-net/contractkit/contract"
	"github.com/govm-net/contractkit/core"
)

// Version of the metadata format.
const Version = "1"

// Metadata is the static description of a contract.
type Metadata struct {
	Version      string   `json:"version"`
	Contract     string   `json:"contract"`
	Docs         string   `json:"docs,omitempty"`
	Constructors []Entry  `json:"constructors"`
	Messages     []Entry  `json:"messages"`
	Events       []Event  `json:"events,omitempty"`
	Storage      []Field  `json:"storage,omitempty"`
	Traits       []string `json:"traits,omitempty"`
}

// Entry is a constructor or message.
type Entry struct {
	Label    string            `json:"label"`
	Trait    string            `json:"trait,omitempty"`
	Selector contract.Selector `json:"selector"`
	Mutates  bool              `json:"mutates"`
	Payable  bool              `json:"payable"`
	Default  bool              `json:"default,omitempty"`
	Args     []Parameter       `json:"args"`
	Returns  string            `json:"returns,omitempty"`
	Docs     string            `json:"docs,omitempty"`
}

// Parameter is a named argument or event field.
type Parameter struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Topic bool   `json:"topic,omitempty"`
}

type Event struct {
	Label     string      `json:"label"`
	Signature core.Hash   `json:"signature"`
	Fields    []Parameter `json:"fields"`
}

// Field is one storage field.
type Field struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Key   string `json:"key"`
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}

// FromDescriptor extracts the metadata of d.
func FromDescriptor(d *contract.Descriptor) *Metadata {
	m := &Metadata{
		Version:      Version,
		Contract:     d.Name,
		Docs:         d.Docs,
		Constructors: make([]Entry, 0),
		Messages:     make([]Entry, 0),
	}
	for _, e := range d.Entries {
		entry := Entry{
			Label:    e.Label,
			Trait:    e.Trait,
			Selector: e.Selector,
			Mutates:  e.Mutates,
			Payable:  e.Payable,
			Default:  e.Default,
			Args:     make([]Parameter, 0, len(e.Args)),
			Returns:  e.Returns,
			Docs:     e.Docs,
		}
		for _, a := range e.Args {
			entry.Args = append(entry.Args, Parameter{Name: a.Name, Type: a.Type})
		}
		if e.Kind == contract.KindConstructor {
			m.Constructors = append(m.Constructors, entry)
		} else {
			m.Messages = append(m.Messages, entry)
		}
	}
	for _, ev := range d.Events {
		out := Event{Label: ev.Label, Signature: ev.Signature}
		for _, f := range ev.Fields {
			out.Fields = append(out.Fields, Parameter{Name: f.Name, Type: f.Type, Topic: f.Topic})
		}
		m.Events = append(m.Events, out)
	}
	for _, f := range d.Storage {
		m.Storage = append(m.Storage, Field{
			Name:  f.Name,
			Kind:  string(f.Kind),
			Key:   f.Key.String(),
			Type:  f.Type,
			Value: f.Value,
		})
	}
	for _, t := range d.Traits {
		m.Traits = append(m.Traits, t.Name)
	}
	return m
}

// JSON returns the indented JSON form of m.
func (m *Metadata) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// Parse reads metadata produced by JSON.
func Parse(data []byte) (*Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if m.Version != Version {
		return nil, fmt.Errorf("unsupported metadata version %q", m.Version)
	}
	if m.Contract == "" {
		return nil, fmt.Errorf("metadata has no contract name")
	}
	return &m, nil
}

// Lookup finds an entry by label or "Trait::label".
func (m *Metadata) Lookup(label string) (Entry, bool) {
	for _, list := range [][]Entry{m.Constructors, m.Messages} {
		for _, e := range list {
			if e.Label == label || (e.Trait != "" && e.Trait+"::"+e.Label == label) {
				return e, true
			}
		}
	}
	return Entry{}, false
}
