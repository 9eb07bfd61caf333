package host

import (
	"context"
	"errors"
	"fmt"

	"github.com/govm-net/contractkit/core"
	"github.com/govm-net/contractkit/events"
	"github.com/govm-net/contractkit/gas"
	"github.com/govm-net/contractkit/security"
	"github.com/govm-net/contractkit/statedb"
)

const (
	kindInstantiate = "instantiate"
	kindCall        = "call"
	kindQuery       = "query"
)

// InstantiateRequest deploys a new instance of registered code.
type InstantiateRequest struct {
	Caller   core.AccountId
	CodeHash core.Hash
	// Input is the constructor selector followed by its arguments.
	Input []byte
	Value core.Balance
	Salt  []byte
	// GasLimit of zero selects the host default.
	GasLimit uint64
}

// CallRequest invokes a message of an existing instance.
type CallRequest struct {
	Caller   core.AccountId
	Target   core.AccountId
	Input    []byte
	Value    core.Balance
	GasLimit uint64
}

// hostFailure carries a state database error out of the frames. It is
// never turned into a trap.
type hostFailure struct {
	err error
}

// invocation is the state of one top-level invocation.
type invocation struct {
	host    *Host
	ctx     context.Context
	state   *statedb.Overlay
	meter   *gas.Meter
	tracer  *security.CallTracer
	block   Block
	pending []events.Record
}

func (h *Host) begin(ctx context.Context, gasLimit uint64) *invocation {
	if gasLimit == 0 {
		gasLimit = h.gasLimit
	}
	return &invocation{
		host:   h,
		ctx:    ctx,
		state:  statedb.NewOverlay(h.db),
		meter:  gas.NewMeter(gasLimit),
		tracer: security.NewCallTracer(h.maxDepth),
		block:  h.block,
	}
}

// Instantiate deploys code at ContractAddress(caller, code, salt) and runs
// the constructor named by the input selector.
func (h *Host) Instantiate(ctx context.Context, req InstantiateRequest) (res *Result, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := h.module(ctx, req.CodeHash); err != nil {
		return nil, err
	}
	addr := ContractAddress(req.Caller, req.CodeHash, req.Salt)
	inv := h.begin(ctx, req.GasLimit)
	defer inv.recoverFailure(&res, &err)

	var out outcome
	if _, exists := inv.instance(addr); exists {
		out = outcome{status: StatusFailed, err: fmt.Errorf("%w: %s", core.ErrAlreadyInitialized, addr)}
	} else {
		out = inv.execute(call{
			caller: req.Caller,
			target: addr,
			input:  req.Input,
			value:  req.Value,
			deploy: true,
			code:   req.CodeHash,
		})
	}
	res, err = h.finish(inv, kindInstantiate, out, true)
	if res != nil {
		res.Address = addr
		if res.Succeeded() {
			h.log.Infow("contract instantiated", "address", addr, "code_hash", req.CodeHash, "gas", res.GasUsed)
		}
	}
	return res, err
}

// Call runs a message and commits it when it succeeds.
func (h *Host) Call(ctx context.Context, req CallRequest) (res *Result, err error) {
	return h.call(ctx, req, kindCall, true)
}

// Query runs a message as a dry run: nothing is ever committed. Events the
// message would emit are reported in the result.
func (h *Host) Query(ctx context.Context, req CallRequest) (res *Result, err error) {
	return h.call(ctx, req, kindQuery, false)
}

func (h *Host) call(ctx context.Context, req CallRequest, kind string, commit bool) (res *Result, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	inv := h.begin(ctx, req.GasLimit)
	defer inv.recoverFailure(&res, &err)

	out := inv.execute(call{
		caller: req.Caller,
		target: req.Target,
		input:  req.Input,
		value:  req.Value,
	})
	return h.finish(inv, kind, out, commit)
}

func (inv *invocation) recoverFailure(res **Result, err *error) {
	r := recover()
	if r == nil {
		return
	}
	hf, ok := r.(hostFailure)
	if !ok {
		panic(r)
	}
	inv.state.Discard()
	inv.host.log.Errorw("state database failure", "error", hf.err)
	*res = nil
	*err = hf.err
}

// finish commits or discards the invocation and builds the result.
func (h *Host) finish(inv *invocation, kind string, out outcome, commit bool) (*Result, error) {
	res := &Result{
		Status:  out.status,
		Output:  out.output,
		Trap:    out.trap,
		Err:     out.err,
		GasUsed: inv.meter.Used(),
	}

	switch {
	case out.status != StatusSuccess:
		inv.state.Discard()
	case !commit:
		inv.state.Discard()
		res.Events = inv.pending
	default:
		// Events go first so a failed state commit can take them back out.
		recs, err := h.eventLog.Append(inv.pending)
		if err != nil {
			inv.state.Discard()
			return nil, fmt.Errorf("append events: %w", err)
		}
		if err := inv.state.Commit(); err != nil {
			inv.state.Discard()
			if len(recs) > 0 {
				if terr := h.eventLog.Truncate(recs[0].Seq - 1); terr != nil {
					err = errors.Join(err, fmt.Errorf("truncate events: %w", terr))
				}
			}
			return nil, fmt.Errorf("commit state: %w", err)
		}
		for _, r := range recs {
			h.bus.Publish(r)
		}
		res.Events = recs
	}

	h.metrics.observe(kind, res)
	switch res.Status {
	case StatusTrapped:
		h.log.Warnw("invocation trapped", "kind", kind, "trap", res.Trap, "gas", res.GasUsed)
	default:
		h.log.Debugw("invocation finished", "kind", kind, "status", res.Status, "gas", res.GasUsed, "events", len(res.Events))
	}
	return res, nil
}

// call describes one frame to execute.
type call struct {
	caller core.AccountId
	target core.AccountId
	input  []byte
	value  core.Balance
	deploy bool
	code   core.Hash
}

// execute runs one frame. On any outcome other than success the frame's
// state changes and events are rolled back.
func (inv *invocation) execute(c call) outcome {
	code := c.code
	if !c.deploy {
		inst, ok := inv.instance(c.target)
		if !ok {
			return outcome{status: StatusFailed, err: fmt.Errorf("%w: %s", core.ErrContractNotFound, c.target)}
		}
		code = inst.CodeHash
	}
	module, err := inv.host.module(inv.ctx, code)
	if err != nil {
		return outcome{status: StatusFailed, err: err}
	}

	if err := inv.tracer.BeginCall(c.caller, c.target); err != nil {
		return outcome{status: StatusTrapped, trap: core.NewTrapErr(core.TrapCallStack, err)}
	}
	defer inv.tracer.EndCall()

	snap := inv.state.Snapshot()
	mark := len(inv.pending)
	if c.deploy {
		inv.put(statedb.InstanceKey(c.target), core.MustEncode(Instance{
			CodeHash: code,
			Deployer: c.caller,
			Block:    inv.block.Number,
		}))
	}

	f := &frame{inv: inv, caller: c.caller, address: c.target, value: c.value, input: c.input}
	f.run(module, c.deploy)

	out := f.outcome()
	if out.status != StatusSuccess {
		inv.state.RevertToSnapshot(snap)
		inv.pending = inv.pending[:mark]
	}
	return out
}

func (inv *invocation) get(key []byte) ([]byte, bool) {
	v, ok, err := inv.state.Get(key)
	if err != nil {
		panic(hostFailure{err})
	}
	return v, ok
}

func (inv *invocation) put(key, value []byte) {
	inv.state.Put(key, value)
}

func (inv *invocation) instance(addr core.AccountId) (Instance, bool) {
	var inst Instance
	raw, ok := inv.get(statedb.InstanceKey(addr))
	if !ok {
		return inst, false
	}
	if err := core.Decode(raw, &inst); err != nil {
		panic(hostFailure{fmt.Errorf("instance %s: %w", addr, err)})
	}
	return inst, true
}

func (inv *invocation) balance(account core.AccountId) core.Balance {
	var b core.Balance
	raw, ok := inv.get(statedb.BalanceKey(account))
	if !ok {
		return b
	}
	if err := core.Decode(raw, &b); err != nil {
		panic(hostFailure{fmt.Errorf("balance of %s: %w", account, err)})
	}
	return b
}

func (inv *invocation) setBalance(account core.AccountId, b core.Balance) {
	if b.IsZero() {
		inv.state.Delete(statedb.BalanceKey(account))
		return
	}
	inv.put(statedb.BalanceKey(account), core.MustEncode(b))
}

// moveBalance transfers value between accounts. Crediting past 128 bits
// traps.
func (inv *invocation) moveBalance(from, to core.AccountId, value core.Balance) error {
	if value.IsZero() || from == to {
		if inv.balance(from).Lt(value) {
			return core.ErrInsufficientFunds
		}
		return nil
	}
	src := inv.balance(from)
	rest, ok := src.CheckedSub(value)
	if !ok {
		return fmt.Errorf("%w: have %s, need %s", core.ErrInsufficientFunds, src, value)
	}
	inv.setBalance(from, rest)
	inv.setBalance(to, inv.balance(to).Add(value))
	return nil
}
