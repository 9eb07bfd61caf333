// Package security guards the contract call stack.
package security

import (
	"errors"
	"fmt"

	"github.com/govm-net/contractkit/core"
)

// DefaultMaxCallDepth bounds nested calls when no limit is configured.
const DefaultMaxCallDepth = 64

var (
	// ErrCallDepthExceeded is returned when a call would exceed the depth limit.
	ErrCallDepthExceeded = errors.New("call depth exceeded")
	// ErrReentrancy is returned when a contract already on the stack is called again.
	ErrReentrancy = errors.New("reentrant call")
)

// CallFrame is one entry of the call stack.
type CallFrame struct {
	Caller   core.AccountId
	Contract core.AccountId
}

// CallTracer tracks the active call chain of one invocation.
type CallTracer struct {
	maxDepth  int
	callStack []CallFrame
}

// NewCallTracer creates a tracer. A non-positive maxDepth selects the default.
func NewCallTracer(maxDepth int) *CallTracer {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxCallDepth
	}
	return &CallTracer{maxDepth: maxDepth}
}

// BeginCall pushes a frame. It refuses calls past the depth limit and calls
// into a contract that is already executing.
func (t *CallTracer) BeginCall(caller, contract core.AccountId) error {
	if len(t.callStack) >= t.maxDepth {
		return fmt.Errorf("%w: max=%d", ErrCallDepthExceeded, t.maxDepth)
	}
	if t.OnStack(contract) {
		return fmt.Errorf("%w: %s", ErrReentrancy, contract)
	}
	t.callStack = append(t.callStack, CallFrame{Caller: caller, Contract: contract})
	return nil
}

// EndCall pops the innermost frame.
func (t *CallTracer) EndCall() {
	if len(t.callStack) > 0 {
		t.callStack = t.callStack[:len(t.callStack)-1]
	}
}

// OnStack reports whether contract has an active frame.
func (t *CallTracer) OnStack(contract core.AccountId) bool {
	for _, f := range t.callStack {
		if f.Contract == contract {
			return true
		}
	}
	return false
}

// Depth returns the number of active frames.
func (t *CallTracer) Depth() int {
	return len(t.callStack)
}

// Current returns the innermost frame.
func (t *CallTracer) Current() (CallFrame, bool) {
	if len(t.callStack) == 0 {
		return CallFrame{}, false
	}
	return t.callStack[len(t.callStack)-1], true
}

// Stack returns a copy of the active frames, outermost first.
func (t *CallTracer) Stack() []CallFrame {
	return append([]CallFrame(nil), t.callStack...)
}
