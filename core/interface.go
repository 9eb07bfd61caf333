package core

import "context"

// ReturnFlags qualifies the payload handed to Host.Return.
type ReturnFlags uint32

// FlagRevert marks the payload as a revert: state changes of the frame are
// discarded but the payload still reaches the caller.
const FlagRevert ReturnFlags = 1

// Reverted reports whether the revert flag is set.
func (f ReturnFlags) Reverted() bool {
	return f&FlagRevert != 0
}

// Host is the environment a contract invocation runs against. One Host value
// serves exactly one call frame.
//
// Host methods never return transport errors: failures of the underlying
// state database abort the whole invocation.
type Host interface {
	// Context returns the context of the enclosing top-level invocation.
	Context() context.Context

	// Input returns the raw call input: a 4-byte selector followed by the
	// canonically encoded arguments.
	Input() []byte

	// Return ends the frame with the given payload. It does not return.
	Return(flags ReturnFlags, data []byte)

	// Caller returns the immediate caller of this frame.
	Caller() AccountId

	// Address returns the account of the executing contract.
	Address() AccountId

	// ValueTransferred returns the value attached to this frame.
	ValueTransferred() Balance

	// Balance returns the current balance of the executing contract.
	Balance() Balance

	BlockNumber() uint64
	BlockTimestamp() uint64

	// GetStorage returns the value stored under key in the contract's own
	// storage.
	GetStorage(key []byte) ([]byte, bool)
	SetStorage(key, value []byte)
	ClearStorage(key []byte)

	// DepositEvent appends an event. It is only observable if the top-level
	// invocation succeeds.
	DepositEvent(topics []Hash, data []byte)

	// Transfer moves value from the executing contract to another account.
	// It fails with ErrInsufficientFunds.
	Transfer(to AccountId, value Balance) error

	// Call invokes another contract in a nested frame. A callee revert is
	// reported as *CalleeRevertedError, a callee trap as ErrCalleeTrapped and
	// a failed value transfer as ErrTransferFailed.
	Call(target AccountId, input []byte, value Balance) ([]byte, error)

	// Terminate destroys the executing contract, moves its balance to
	// beneficiary and ends the frame successfully. It does not return.
	Terminate(beneficiary AccountId)

	// ChargeGas consumes gas from the invocation budget and traps when the
	// budget is exhausted.
	ChargeGas(amount uint64)
}

// Module is executable contract code. Deploy runs a constructor, Call runs a
// message. Both read the selector from h.Input and finish by calling
// h.Return, by trapping, or by returning normally with an empty payload.
type Module interface {
	Deploy(h Host)
	Call(h Host)
}
