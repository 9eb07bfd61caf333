package contract

import (
	"context"

	"github.com/govm-net/contractkit/core"
)

// ReadEnv is the environment of a read-only message. It can observe the
// chain and read storage but has no way to change state.
type ReadEnv struct {
	h core.Host
}

func (e ReadEnv) Context() context.Context { return e.h.Context() }

// Caller returns the immediate caller.
func (e ReadEnv) Caller() core.AccountId { return e.h.Caller() }

// Address returns the executing contract.
func (e ReadEnv) Address() core.AccountId { return e.h.Address() }

func (e ReadEnv) ValueTransferred() core.Balance { return e.h.ValueTransferred() }

// Balance returns the executing contract's balance.
func (e ReadEnv) Balance() core.Balance { return e.h.Balance() }

func (e ReadEnv) BlockNumber() uint64 { return e.h.BlockNumber() }

func (e ReadEnv) BlockTimestamp() uint64 { return e.h.BlockTimestamp() }

// GetStorage makes ReadEnv a storage.Reader.
func (e ReadEnv) GetStorage(key []byte) ([]byte, bool) { return e.h.GetStorage(key) }

// Host exposes the raw host. Inside a read-only message every state
// changing call on it traps.
func (e ReadEnv) Host() core.Host { return e.h }

// Env is the environment of constructors and mutating messages.
type Env struct {
	ReadEnv
}

func newEnv(h core.Host) Env {
	return Env{ReadEnv{h: h}}
}

func newReadEnv(h core.Host) ReadEnv {
	return ReadEnv{h: readOnlyHost{h}}
}

// SetStorage makes Env a storage.Writer.
func (e Env) SetStorage(key, value []byte) { e.h.SetStorage(key, value) }

func (e Env) ClearStorage(key []byte) { e.h.ClearStorage(key) }

// Emit deposits ev, a struct registered with Event.
func (e Env) Emit(ev any) {
	topics, data, err := EncodeEvent(ev)
	if err != nil {
		panic(core.NewTrapErr(core.TrapEncoding, err))
	}
	e.h.DepositEvent(topics, data)
}

// Transfer moves value from the contract to another account.
func (e Env) Transfer(to core.AccountId, value core.Balance) error {
	return e.h.Transfer(to, value)
}

// Call invokes sel on target with canonically encoded args.
func (e Env) Call(target core.AccountId, sel Selector, args any, value core.Balance) ([]byte, error) {
	input, err := Input(sel, args)
	if err != nil {
		panic(core.NewTrapErr(core.TrapEncoding, err))
	}
	return e.h.Call(target, input, value)
}

// Terminate destroys the contract and sends its balance to beneficiary.
// It does not return.
func (e Env) Terminate(beneficiary core.AccountId) { e.h.Terminate(beneficiary) }

// ChargeGas consumes extra gas from the invocation budget.
func (e Env) ChargeGas(amount uint64) { e.h.ChargeGas(amount) }

// Invoke calls sel on target and decodes a successful result into R.
func Invoke[R any](env Env, target core.AccountId, sel Selector, args any, value core.Balance) (R, error) {
	var r R
	out, err := env.Call(target, sel, args, value)
	if err != nil {
		return r, err
	}
	if err := core.Decode(out, &r); err != nil {
		return r, err
	}
	return r, nil
}

// readOnlyHost traps on every state change.
type readOnlyHost struct {
	core.Host
}

func (h readOnlyHost) deny(op string) {
	panic(core.NewTrap(core.TrapReadOnlyWrite, "%s", op))
}

func (h readOnlyHost) SetStorage(key, value []byte)              { h.deny("set_storage") }
func (h readOnlyHost) ClearStorage(key []byte)                   { h.deny("clear_storage") }
func (h readOnlyHost) DepositEvent(topics []core.Hash, d []byte) { h.deny("deposit_event") }
func (h readOnlyHost) Terminate(beneficiary core.AccountId)      { h.deny("terminate") }

func (h readOnlyHost) Transfer(to core.AccountId, value core.Balance) error {
	h.deny("transfer")
	return nil
}

func (h readOnlyHost) Call(target core.AccountId, input []byte, value core.Balance) ([]byte, error) {
	h.deny("call")
	return nil, nil
}
