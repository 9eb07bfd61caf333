// Package events keeps the log of committed contract events and fans them out
// to subscribers.
package events

import (
	"github.com/govm-net/contractkit/core"
)

// Record is one committed event.
type Record struct {
	// Seq orders all records of a log. It is assigned by the store.
	Seq         uint64         `json:"seq"`
	BlockNumber uint64         `json:"block_number"`
	Contract    core.AccountId `json:"contract"`
	Topics      []core.Hash    `json:"topics"`
	Data        []byte         `json:"data"`
}

// Signature returns the first topic, which identifies the event type.
func (r Record) Signature() (core.Hash, bool) {
	if len(r.Topics) == 0 {
		return core.Hash{}, false
	}
	return r.Topics[0], true
}

// HasTopic reports whether topic is one of the record's topics.
func (r Record) HasTopic(topic core.Hash) bool {
	for _, t := range r.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// Filter selects records. Zero fields match everything.
type Filter struct {
	Contract  *core.AccountId
	Topic     *core.Hash
	FromBlock uint64
	// ToBlock is inclusive; zero means no upper bound.
	ToBlock uint64
}

// Match reports whether r passes the filter.
func (f Filter) Match(r Record) bool {
	if f.Contract != nil && r.Contract != *f.Contract {
		return false
	}
	if f.Topic != nil && !r.HasTopic(*f.Topic) {
		return false
	}
	if r.BlockNumber < f.FromBlock {
		return false
	}
	if f.ToBlock != 0 && r.BlockNumber > f.ToBlock {
		return false
	}
	return true
}

// Store is an append-only event log.
type Store interface {
	// Append assigns sequence numbers to recs in order and persists them.
	Append(recs []Record) ([]Record, error)
	// Query returns matching records in sequence order.
	Query(f Filter) ([]Record, error)
	// Truncate removes every record whose sequence number is above seq.
	Truncate(seq uint64) error
	Close() error
}
