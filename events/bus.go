package events

import (
	evbus "github.com/asaskevich/EventBus"

	"github.com/govm-net/contractkit/core"
)

const allTopic = "events:all"

// Handler receives committed records.
type Handler func(Record)

// Bus delivers committed records to subscribers synchronously, in commit
// order. It is built on asaskevich/EventBus.
type Bus struct {
	bus evbus.Bus
}

// NewBus returns a bus without subscribers.
func NewBus() *Bus {
	return &Bus{bus: evbus.New()}
}

func contractTopic(addr core.AccountId) string {
	return "contract:" + addr.String()
}

func signatureTopic(sig core.Hash) string {
	return "topic:" + sig.String()
}

// SubscribeAll registers fn for every record.
func (b *Bus) SubscribeAll(fn Handler) error {
	return b.bus.Subscribe(allTopic, fn)
}

// SubscribeContract registers fn for records emitted by addr.
func (b *Bus) SubscribeContract(addr core.AccountId, fn Handler) error {
	return b.bus.Subscribe(contractTopic(addr), fn)
}

// SubscribeTopic registers fn for records carrying topic.
func (b *Bus) SubscribeTopic(topic core.Hash, fn Handler) error {
	return b.bus.Subscribe(signatureTopic(topic), fn)
}

// Publish delivers r to matching subscribers.
func (b *Bus) Publish(r Record) {
	b.bus.Publish(allTopic, r)
	if b.bus.HasCallback(contractTopic(r.Contract)) {
		b.bus.Publish(contractTopic(r.Contract), r)
	}
	seen := make(map[core.Hash]bool, len(r.Topics))
	for _, t := range r.Topics {
		if seen[t] {
			continue
		}
		seen[t] = true
		if b.bus.HasCallback(signatureTopic(t)) {
			b.bus.Publish(signatureTopic(t), r)
		}
	}
}
