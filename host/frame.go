package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/govm-net/contractkit/core"
	"github.com/govm-net/contractkit/events"
	"github.com/govm-net/contractkit/statedb"
)

// MaxTopics bounds the topics of a single event.
const MaxTopics = 8

// frame implements core.Host for one call frame.
type frame struct {
	inv     *invocation
	caller  core.AccountId
	address core.AccountId
	value   core.Balance
	input   []byte

	output []byte
	flags  core.ReturnFlags
	trap   *core.Trap
	failed error
}

var _ core.Host = (*frame)(nil)

// run executes the module and classifies how it stopped.
func (f *frame) run(m core.Module, deploy bool) {
	defer func() {
		switch r := recover().(type) {
		case nil, core.Halt:
		case *core.Trap:
			f.trap = r
		case hostFailure:
			panic(r)
		default:
			f.trap = core.NewTrap(core.TrapPanic, "%v", r)
		}
	}()

	sched := f.inv.host.schedule
	base := sched.Call
	if deploy {
		base = sched.Instantiate
	}
	f.ChargeGas(base + sched.InputByte*uint64(len(f.input)))

	if !f.value.IsZero() {
		if err := f.inv.moveBalance(f.caller, f.address, f.value); err != nil {
			f.failed = fmt.Errorf("%w: %w", core.ErrTransferFailed, err)
			return
		}
	}

	if deploy {
		m.Deploy(f)
	} else {
		m.Call(f)
	}
}

func (f *frame) outcome() outcome {
	switch {
	case f.trap != nil:
		return outcome{status: StatusTrapped, trap: f.trap}
	case f.failed != nil:
		return outcome{status: StatusFailed, err: f.failed}
	case f.flags.Reverted():
		return outcome{status: StatusReverted, output: f.output}
	default:
		return outcome{status: StatusSuccess, output: f.output}
	}
}

func (f *frame) Context() context.Context {
	return f.inv.ctx
}

func (f *frame) Input() []byte {
	return bytes.Clone(f.input)
}

func (f *frame) Return(flags core.ReturnFlags, data []byte) {
	if len(data) > core.MaxValueSize {
		panic(core.NewTrap(core.TrapAllocation, "return data of %d bytes", len(data)))
	}
	f.output = bytes.Clone(data)
	f.flags = flags
	panic(core.Halt{})
}

func (f *frame) Caller() core.AccountId {
	f.ChargeGas(f.inv.host.schedule.HostCall)
	return f.caller
}

func (f *frame) Address() core.AccountId {
	f.ChargeGas(f.inv.host.schedule.HostCall)
	return f.address
}

func (f *frame) ValueTransferred() core.Balance {
	f.ChargeGas(f.inv.host.schedule.HostCall)
	return f.value
}

func (f *frame) Balance() core.Balance {
	f.ChargeGas(f.inv.host.schedule.HostCall)
	return f.inv.balance(f.address)
}

func (f *frame) BlockNumber() uint64 {
	f.ChargeGas(f.inv.host.schedule.HostCall)
	return f.inv.block.Number
}

func (f *frame) BlockTimestamp() uint64 {
	f.ChargeGas(f.inv.host.schedule.HostCall)
	return f.inv.block.Timestamp
}

func (f *frame) GetStorage(key []byte) ([]byte, bool) {
	v, ok := f.inv.get(statedb.StorageKey(f.address, key))
	f.ChargeGas(f.inv.host.schedule.StorageReadCost(len(v)))
	return v, ok
}

func (f *frame) SetStorage(key, value []byte) {
	if len(value) > core.MaxValueSize {
		panic(core.NewTrap(core.TrapAllocation, "storage value of %d bytes", len(value)))
	}
	f.ChargeGas(f.inv.host.schedule.StorageWriteCost(len(key) + len(value)))
	f.inv.put(statedb.StorageKey(f.address, key), value)
}

func (f *frame) ClearStorage(key []byte) {
	f.ChargeGas(f.inv.host.schedule.StorageWriteCost(len(key)))
	f.inv.state.Delete(statedb.StorageKey(f.address, key))
}

func (f *frame) DepositEvent(topics []core.Hash, data []byte) {
	if len(topics) > MaxTopics {
		panic(core.NewTrap(core.TrapAllocation, "%d topics, max %d", len(topics), MaxTopics))
	}
	f.ChargeGas(f.inv.host.schedule.EventCost(len(topics), len(data)))
	f.inv.pending = append(f.inv.pending, events.Record{
		BlockNumber: f.inv.block.Number,
		Contract:    f.address,
		Topics:      append([]core.Hash(nil), topics...),
		Data:        bytes.Clone(data),
	})
}

func (f *frame) Transfer(to core.AccountId, value core.Balance) error {
	f.ChargeGas(f.inv.host.schedule.Transfer)
	return f.inv.moveBalance(f.address, to, value)
}

func (f *frame) Call(target core.AccountId, input []byte, value core.Balance) ([]byte, error) {
	f.ChargeGas(f.inv.host.schedule.HostCall)
	out := f.inv.execute(call{
		caller: f.address,
		target: target,
		input:  bytes.Clone(input),
		value:  value,
	})
	switch out.status {
	case StatusSuccess:
		return out.output, nil
	case StatusReverted:
		return nil, &core.CalleeRevertedError{Data: out.output}
	case StatusTrapped:
		return nil, fmt.Errorf("%w: %w", core.ErrCalleeTrapped, out.trap)
	default:
		if errors.Is(out.err, core.ErrTransferFailed) {
			return nil, out.err
		}
		return nil, fmt.Errorf("%w: %w", core.ErrCalleeTrapped, out.err)
	}
}

func (f *frame) Terminate(beneficiary core.AccountId) {
	f.ChargeGas(f.inv.host.schedule.Transfer)
	if beneficiary == f.address {
		panic(core.NewTrap(core.TrapAbort, "terminate: beneficiary %s is the terminating contract", beneficiary))
	}

	rest := f.inv.balance(f.address)
	f.inv.state.Delete(statedb.InstanceKey(f.address))
	if err := f.inv.state.DeletePrefix(statedb.StoragePrefix(f.address)); err != nil {
		panic(hostFailure{err})
	}
	f.inv.setBalance(f.address, core.Balance{})
	if !rest.IsZero() {
		f.inv.setBalance(beneficiary, f.inv.balance(beneficiary).Add(rest))
	}
	f.inv.host.log.Infow("contract terminated", "address", f.address, "beneficiary", beneficiary, "balance", rest)

	f.output = nil
	f.flags = 0
	panic(core.Halt{})
}

func (f *frame) ChargeGas(amount uint64) {
	f.inv.meter.Consume(amount)
}
