// Package core provides the fundamental types shared by contracts, the
// dispatch layer and the host: identifiers, balances, the canonical codec,
// traps and the Host/Module interfaces.
package core

import (
	"errors"
	"fmt"
)

// Common errors surfaced by the host interface.
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrTransferFailed     = errors.New("transfer failed")
	ErrCalleeTrapped      = errors.New("callee trapped")
	ErrCalleeReverted     = errors.New("callee reverted")
	ErrContractNotFound   = errors.New("contract not found")
	ErrCodeNotFound       = errors.New("code not found")
	ErrAlreadyInitialized = errors.New("contract already initialized")
	ErrDecode             = errors.New("decode failed")
)

// CalleeRevertedError carries the payload of a nested call that reverted.
type CalleeRevertedError struct {
	Data []byte
}

func (e *CalleeRevertedError) Error() string {
	return fmt.Sprintf("callee reverted with %d bytes", len(e.Data))
}

// Is makes errors.Is(err, ErrCalleeReverted) hold.
func (e *CalleeRevertedError) Is(target error) bool {
	return target == ErrCalleeReverted
}

// TrapReason classifies an abnormal termination.
type TrapReason uint8

const (
	TrapAbort TrapReason = iota + 1
	TrapOutOfGas
	TrapOverflow
	TrapStorageCorrupt
	TrapEncoding
	TrapAllocation
	TrapReadOnlyWrite
	TrapDispatch
	TrapCallStack
	TrapWasm
	TrapPanic
)

var trapNames = map[TrapReason]string{
	TrapAbort:          "abort",
	TrapOutOfGas:       "out of gas",
	TrapOverflow:       "arithmetic overflow",
	TrapStorageCorrupt: "storage corrupt",
	TrapEncoding:       "encoding",
	TrapAllocation:     "allocation",
	TrapReadOnlyWrite:  "write in read-only context",
	TrapDispatch:       "dispatch",
	TrapCallStack:      "call stack",
	TrapWasm:           "wasm",
	TrapPanic:          "panic",
}

func (r TrapReason) String() string {
	if s, ok := trapNames[r]; ok {
		return s
	}
	return fmt.Sprintf("trap(%d)", uint8(r))
}

// Trap aborts the current invocation. All of its state changes and events
// are discarded and no payload is returned to the caller.
//
// Traps travel as panics inside a frame and are recovered by the host.
type Trap struct {
	Reason TrapReason
	Detail string
	Err    error
}

// NewTrap builds a trap with a formatted detail message.
func NewTrap(reason TrapReason, format string, args ...any) *Trap {
	return &Trap{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// NewTrapErr builds a trap wrapping err.
func NewTrapErr(reason TrapReason, err error) *Trap {
	return &Trap{Reason: reason, Detail: err.Error(), Err: err}
}

func (t *Trap) Error() string {
	if t.Detail == "" {
		return "trap: " + t.Reason.String()
	}
	return "trap: " + t.Reason.String() + ": " + t.Detail
}

func (t *Trap) Unwrap() error {
	return t.Err
}

// Abort traps the current invocation with an explicit message.
func Abort(format string, args ...any) {
	panic(NewTrap(TrapAbort, format, args...))
}

// Halt is the panic value used by Host.Return and Host.Terminate to stop a
// frame normally.
type Halt struct{}
