package gas

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/govm-net/contractkit/core"
)

func TestMeter(t *testing.T) {
	m := NewMeter(1000)
	assert.Equal(t, uint64(1000), m.Remaining())

	// Test consume
	m.Consume(500)
	assert.Equal(t, uint64(500), m.Used())
	assert.Equal(t, uint64(500), m.Remaining())
	assert.Equal(t, uint64(1000), m.Limit())
}

func TestMeterOutOfGas(t *testing.T) {
	m := NewMeter(100)
	m.Consume(60)

	assert.PanicsWithError(t, core.NewTrap(core.TrapOutOfGas, "limit=100").Error(), func() {
		m.Consume(50)
	})
	// Exhausted meters keep trapping
	assert.Equal(t, uint64(100), m.Used())
	assert.Panics(t, func() { m.Consume(1) })

	// Zero charges are free even when exhausted
	assert.NotPanics(t, func() { m.Consume(0) })
}

func TestSchedule(t *testing.T) {
	s := DefaultSchedule()
	assert.Equal(t, s.StorageWrite+10*s.StorageByte, s.StorageWriteCost(10))
	assert.Equal(t, s.StorageRead, s.StorageReadCost(0))
	assert.Equal(t, s.EventBase+3*s.EventTopic+4*s.EventByte, s.EventCost(3, 4))
}
