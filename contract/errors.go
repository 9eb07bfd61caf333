package contract

import (
	"errors"

	"github.com/govm-net/contractkit/core"
)

// Dispatch errors. At run time they reach the caller wrapped in a
// core.Trap with reason core.TrapDispatch.
var (
	ErrNoMatchingEntry   = errors.New("no matching entry")
	ErrCouldNotReadInput = errors.New("could not read input")
	ErrDecodeArgs        = errors.New("could not decode arguments")
	ErrNonPayable        = errors.New("value transferred to non-payable entry")
)

// Build errors.
var (
	ErrDuplicateSelector = errors.New("duplicate selector")
	ErrNoConstructor     = errors.New("contract has no constructor")
	ErrMultipleDefaults  = errors.New("more than one default entry")
	ErrInvalidArgs       = errors.New("arguments must be a struct")
	ErrTraitMismatch     = errors.New("trait not implemented")
)

// CodedError is a domain error with a stable numeric code. Its revert
// payload is the canonical encoding of the code.
type CodedError interface {
	error
	Code() uint8
}

// revertPayload encodes a domain error for the caller.
func revertPayload(err error) []byte {
	var coded CodedError
	if errors.As(err, &coded) {
		return core.MustEncode(coded.Code())
	}
	return core.MustEncode(err.Error())
}

func dispatchTrap(err error) *core.Trap {
	return core.NewTrapErr(core.TrapDispatch, err)
}
