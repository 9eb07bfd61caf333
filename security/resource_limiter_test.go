package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/contractkit/core"
)

func TestCallTracer(t *testing.T) {
	alice := core.AccountIdFromSeed("alice")
	a := core.AccountIdFromSeed("contract-a")
	b := core.AccountIdFromSeed("contract-b")

	tracer := NewCallTracer(0)
	require.NoError(t, tracer.BeginCall(alice, a))
	require.NoError(t, tracer.BeginCall(a, b))
	assert.Equal(t, 2, tracer.Depth())

	cur, ok := tracer.Current()
	require.True(t, ok)
	assert.Equal(t, CallFrame{Caller: a, Contract: b}, cur)

	// Test reentrancy
	err := tracer.BeginCall(b, a)
	assert.ErrorIs(t, err, ErrReentrancy)
	assert.Equal(t, 2, tracer.Depth())

	tracer.EndCall()
	tracer.EndCall()
	tracer.EndCall()
	assert.Equal(t, 0, tracer.Depth())
	_, ok = tracer.Current()
	assert.False(t, ok)
}

func TestCallDepthLimit(t *testing.T) {
	tracer := NewCallTracer(2)
	require.NoError(t, tracer.BeginCall(core.AccountIdFromSeed("x"), core.AccountIdFromSeed("c1")))
	require.NoError(t, tracer.BeginCall(core.AccountIdFromSeed("c1"), core.AccountIdFromSeed("c2")))

	err := tracer.BeginCall(core.AccountIdFromSeed("c2"), core.AccountIdFromSeed("c3"))
	assert.ErrorIs(t, err, ErrCallDepthExceeded)
	assert.Len(t, tracer.Stack(), 2)
}
