// Package gas meters the work done by one top-level invocation.
package gas

import (
	"github.com/govm-net/contractkit/core"
)

// DefaultLimit is the budget of an invocation that does not name one.
const DefaultLimit uint64 = 10_000_000

// Schedule prices host operations.
type Schedule struct {
	HostCall     uint64 `mapstructure:"host_call"`
	StorageRead  uint64 `mapstructure:"storage_read"`
	StorageWrite uint64 `mapstructure:"storage_write"`
	StorageByte  uint64 `mapstructure:"storage_byte"`
	EventBase    uint64 `mapstructure:"event_base"`
	EventTopic   uint64 `mapstructure:"event_topic"`
	EventByte    uint64 `mapstructure:"event_byte"`
	Transfer     uint64 `mapstructure:"transfer"`
	Call         uint64 `mapstructure:"call"`
	Instantiate  uint64 `mapstructure:"instantiate"`
	InputByte    uint64 `mapstructure:"input_byte"`
}

// DefaultSchedule returns the built-in prices.
func DefaultSchedule() Schedule {
	return Schedule{
		HostCall:     10,
		StorageRead:  100,
		StorageWrite: 500,
		StorageByte:  2,
		EventBase:    200,
		EventTopic:   100,
		EventByte:    1,
		Transfer:     300,
		Call:         1000,
		Instantiate:  5000,
		InputByte:    1,
	}
}

// StorageWriteCost prices writing n bytes.
func (s Schedule) StorageWriteCost(n int) uint64 {
	return s.StorageWrite + s.StorageByte*uint64(n)
}

// StorageReadCost prices reading n bytes.
func (s Schedule) StorageReadCost(n int) uint64 {
	return s.StorageRead + s.StorageByte*uint64(n)
}

// EventCost prices an event with the given number of topics and data bytes.
func (s Schedule) EventCost(topics, n int) uint64 {
	return s.EventBase + s.EventTopic*uint64(topics) + s.EventByte*uint64(n)
}

// Meter tracks gas of one invocation. It is shared by all nested frames and
// is not safe for concurrent use.
type Meter struct {
	limit uint64
	used  uint64
}

// NewMeter returns a meter with the given budget.
func NewMeter(limit uint64) *Meter {
	return &Meter{limit: limit}
}

// Consume charges amount and traps with TrapOutOfGas when the budget would be
// exceeded. An exhausted meter stays exhausted.
func (m *Meter) Consume(amount uint64) {
	if amount == 0 {
		return
	}
	if amount > m.limit-m.used {
		m.used = m.limit
		panic(core.NewTrap(core.TrapOutOfGas, "limit=%d", m.limit))
	}
	m.used += amount
}

func (m *Meter) Used() uint64 { return m.used }

func (m *Meter) Limit() uint64 { return m.limit }

// Remaining returns the unconsumed budget.
func (m *Meter) Remaining() uint64 { return m.limit - m.used }
