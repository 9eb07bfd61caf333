package host

import (
	"fmt"

	"github.com/govm-net/contractkit/core"
	"github.com/govm-net/contractkit/events"
)

// Status is the final state of an invocation.
type Status uint8

const (
	// StatusSuccess means state changes and events were committed.
	StatusSuccess Status = iota
	// StatusReverted means the entry reverted with a payload.
	StatusReverted
	// StatusTrapped means execution aborted without a payload.
	StatusTrapped
	// StatusFailed means the host refused the invocation before or while
	// moving value: unknown contract, existing instance, insufficient funds.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusReverted:
		return "reverted"
	case StatusTrapped:
		return "trapped"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Result reports a top-level invocation.
type Result struct {
	Status Status
	// Address is the new instance of an Instantiate.
	Address core.AccountId
	// Output is the success value or the revert payload.
	Output  []byte
	Trap    *core.Trap
	Err     error
	GasUsed uint64
	// Events holds the committed records; empty unless Status is success.
	Events []events.Record
}

// Succeeded reports whether the invocation committed.
func (r *Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Error returns nil on success and an error describing the failure
// otherwise. Reverts are reported as *core.CalleeRevertedError.
func (r *Result) Error() error {
	switch r.Status {
	case StatusSuccess:
		return nil
	case StatusReverted:
		return &core.CalleeRevertedError{Data: r.Output}
	case StatusTrapped:
		return r.Trap
	default:
		return r.Err
	}
}

// Decode decodes a successful output into v.
func (r *Result) Decode(v any) error {
	if err := r.Error(); err != nil {
		return err
	}
	return core.Decode(r.Output, v)
}

// outcome is the result of one frame.
type outcome struct {
	status Status
	output []byte
	trap   *core.Trap
	err    error
}
