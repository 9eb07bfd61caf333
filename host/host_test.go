package host_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/contractkit/core"
	"github.com/govm-net/contractkit/events"
	"github.com/govm-net/contractkit/host"
	"github.com/govm-net/contractkit/statedb"
	"github.com/govm-net/contractkit/statedb/memorydb"
)

// scripted is a module whose entry points are plain functions.
type scripted struct {
	deploy func(h core.Host)
	call   func(h core.Host)
}

func (s scripted) Deploy(h core.Host) {
	if s.deploy != nil {
		s.deploy(h)
	}
}

func (s scripted) Call(h core.Host) {
	if s.call != nil {
		s.call(h)
	}
}

var (
	alice = core.AccountIdFromSeed("alice")
	bob   = core.AccountIdFromSeed("bob")
)

func newHost(t *testing.T, opts ...host.Option) *host.Host {
	h := host.New(memorydb.New(), opts...)
	t.Cleanup(func() { h.Close() })
	return h
}

// kv is a key/value module: deploy stores "k" = input; call with a one byte
// command reads, writes or fails.
var kv = scripted{
	deploy: func(h core.Host) {
		h.SetStorage([]byte("k"), h.Input())
	},
	call: func(h core.Host) {
		in := h.Input()
		switch {
		case len(in) == 0:
			v, _ := h.GetStorage([]byte("k"))
			h.Return(0, v)
		case in[0] == 'w':
			h.SetStorage([]byte("k"), in[1:])
			h.DepositEvent([]core.Hash{core.HashBytes([]byte("Written"))}, in[1:])
		case in[0] == 'r':
			h.SetStorage([]byte("k"), in[1:])
			h.DepositEvent([]core.Hash{core.HashBytes([]byte("Written"))}, in[1:])
			h.Return(core.FlagRevert, []byte("nope"))
		case in[0] == 'p':
			h.SetStorage([]byte("k"), in[1:])
			panic("boom")
		case in[0] == 'b':
			h.Return(0, core.MustEncode(h.Balance()))
		case in[0] == 'x':
			h.Terminate(bob)
		}
	},
}

func deploy(t *testing.T, h *host.Host, name string, m core.Module, input []byte) core.AccountId {
	t.Helper()
	code, err := h.RegisterNative(name, m)
	require.NoError(t, err)
	res, err := h.Instantiate(context.Background(), host.InstantiateRequest{
		Caller:   alice,
		CodeHash: code,
		Input:    input,
		Salt:     []byte(name),
	})
	require.NoError(t, err)
	require.True(t, res.Succeeded(), "deploy %s: %v", name, res.Error())
	return res.Address
}

func call(t *testing.T, h *host.Host, target core.AccountId, input []byte) *host.Result {
	t.Helper()
	res, err := h.Call(context.Background(), host.CallRequest{Caller: alice, Target: target, Input: input})
	require.NoError(t, err)
	return res
}

func TestBlocks(t *testing.T) {
	h := newHost(t)
	assert.Equal(t, host.Block{}, h.Block())

	require.NoError(t, h.SetBlock(10, 1000))
	b, err := h.AdvanceBlock(6)
	require.NoError(t, err)
	assert.Equal(t, host.Block{Number: 11, Timestamp: 1006}, b)

	assert.ErrorIs(t, h.SetBlock(10, 2000), host.ErrBlockRegression)
	assert.ErrorIs(t, h.SetBlock(12, 1000), host.ErrBlockRegression)
	require.NoError(t, h.SetBlock(11, 1006))

	// The clock never wraps
	require.NoError(t, h.SetBlock(12, math.MaxUint64-5))
	_, err = h.AdvanceBlock(6)
	assert.ErrorIs(t, err, host.ErrBlockRegression)
	require.NoError(t, h.SetBlock(math.MaxUint64, math.MaxUint64-5))
	_, err = h.AdvanceBlock(0)
	assert.ErrorIs(t, err, host.ErrBlockRegression)
	assert.Equal(t, host.Block{Number: math.MaxUint64, Timestamp: math.MaxUint64 - 5}, h.Block())
}

func TestMint(t *testing.T) {
	h := newHost(t)
	require.NoError(t, h.Mint(alice, core.NewBalance(100)))
	require.NoError(t, h.Mint(alice, core.NewBalance(50)))

	b, err := h.BalanceOf(alice)
	require.NoError(t, err)
	assert.Equal(t, core.NewBalance(150), b)

	assert.Error(t, h.Mint(alice, core.MaxBalance()))

	b, err = h.BalanceOf(bob)
	require.NoError(t, err)
	assert.True(t, b.IsZero())
}

func TestInstantiate(t *testing.T) {
	ctx := context.Background()
	h := newHost(t)
	require.NoError(t, h.SetBlock(7, 70))

	code, err := h.RegisterNative("kv", kv)
	require.NoError(t, err)
	assert.Equal(t, host.NativeCodeHash("kv"), code)

	req := host.InstantiateRequest{Caller: alice, CodeHash: code, Input: []byte("v1"), Salt: []byte{1}}
	res, err := h.Instantiate(ctx, req)
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	assert.Equal(t, host.ContractAddress(alice, code, []byte{1}), res.Address)

	inst, found, err := h.Instance(res.Address)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, host.Instance{CodeHash: code, Deployer: alice, Block: 7}, inst)

	out := call(t, h, res.Address, nil)
	assert.Equal(t, []byte("v1"), out.Output)

	// Same deployer, code and salt
	again, err := h.Instantiate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, host.StatusFailed, again.Status)
	assert.ErrorIs(t, again.Error(), core.ErrAlreadyInitialized)
	assert.Equal(t, []byte("v1"), call(t, h, res.Address, nil).Output)

	_, err = h.Instantiate(ctx, host.InstantiateRequest{Caller: alice, CodeHash: core.HashBytes([]byte("nothing"))})
	assert.ErrorIs(t, err, core.ErrCodeNotFound)
}

func TestCallUnknownContract(t *testing.T) {
	h := newHost(t)
	res := call(t, h, bob, nil)
	assert.Equal(t, host.StatusFailed, res.Status)
	assert.ErrorIs(t, res.Error(), core.ErrContractNotFound)
}

func TestRevertAndTrapRollBack(t *testing.T) {
	h := newHost(t)
	addr := deploy(t, h, "kv", kv, []byte("v1"))

	before, err := h.StateFingerprint(addr)
	require.NoError(t, err)

	res := call(t, h, addr, []byte("rv2"))
	assert.Equal(t, host.StatusReverted, res.Status)
	assert.Equal(t, []byte("nope"), res.Output)
	assert.Empty(t, res.Events)
	var reverted *core.CalleeRevertedError
	require.ErrorAs(t, res.Error(), &reverted)
	assert.Equal(t, []byte("nope"), reverted.Data)

	res = call(t, h, addr, []byte("pv3"))
	require.Equal(t, host.StatusTrapped, res.Status)
	assert.Equal(t, core.TrapPanic, res.Trap.Reason)
	assert.Contains(t, res.Trap.Detail, "boom")

	after, err := h.StateFingerprint(addr)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, []byte("v1"), call(t, h, addr, nil).Output)

	recs, err := h.Events().Query(events.Filter{})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestEventsCommitted(t *testing.T) {
	h := newHost(t)
	addr := deploy(t, h, "kv", kv, nil)

	var seen []events.Record
	require.NoError(t, h.Bus().SubscribeContract(addr, func(r events.Record) { seen = append(seen, r) }))

	require.NoError(t, h.SetBlock(3, 30))
	res := call(t, h, addr, []byte("wa"))
	require.True(t, res.Succeeded())
	res = call(t, h, addr, []byte("wb"))
	require.True(t, res.Succeeded())
	require.Len(t, res.Events, 1)
	assert.Equal(t, uint64(2), res.Events[0].Seq)

	recs, err := h.Events().Query(events.Filter{Contract: &addr})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, []byte("a"), recs[0].Data)
	assert.Equal(t, uint64(3), recs[0].BlockNumber)
	assert.Equal(t, recs, seen)
}

func TestQueryDoesNotCommit(t *testing.T) {
	ctx := context.Background()
	h := newHost(t)
	addr := deploy(t, h, "kv", kv, []byte("v1"))

	res, err := h.Query(ctx, host.CallRequest{Caller: alice, Target: addr, Input: []byte("wv2")})
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	require.Len(t, res.Events, 1)
	assert.Zero(t, res.Events[0].Seq)

	assert.Equal(t, []byte("v1"), call(t, h, addr, nil).Output)
	recs, err := h.Events().Query(events.Filter{})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestValueTransfer(t *testing.T) {
	ctx := context.Background()
	h := newHost(t)
	addr := deploy(t, h, "kv", kv, nil)
	require.NoError(t, h.Mint(alice, core.NewBalance(100)))

	res, err := h.Call(ctx, host.CallRequest{Caller: alice, Target: addr, Input: []byte("b"), Value: core.NewBalance(40)})
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	var seen core.Balance
	require.NoError(t, res.Decode(&seen))
	assert.Equal(t, core.NewBalance(40), seen)

	b, err := h.BalanceOf(alice)
	require.NoError(t, err)
	assert.Equal(t, core.NewBalance(60), b)

	res, err = h.Call(ctx, host.CallRequest{Caller: alice, Target: addr, Input: []byte("b"), Value: core.NewBalance(61)})
	require.NoError(t, err)
	assert.Equal(t, host.StatusFailed, res.Status)
	assert.ErrorIs(t, res.Error(), core.ErrTransferFailed)
	assert.ErrorIs(t, res.Error(), core.ErrInsufficientFunds)

	b, err = h.BalanceOf(alice)
	require.NoError(t, err)
	assert.Equal(t, core.NewBalance(60), b)
}

func TestTerminate(t *testing.T) {
	h := newHost(t)
	addr := deploy(t, h, "kv", kv, []byte("v1"))
	require.NoError(t, h.Mint(addr, core.NewBalance(25)))

	res := call(t, h, addr, []byte("x"))
	require.True(t, res.Succeeded())

	_, found, err := h.Instance(addr)
	require.NoError(t, err)
	assert.False(t, found)

	b, err := h.BalanceOf(bob)
	require.NoError(t, err)
	assert.Equal(t, core.NewBalance(25), b)
	b, err = h.BalanceOf(addr)
	require.NoError(t, err)
	assert.True(t, b.IsZero())

	empty, err := h.StateFingerprint(core.AccountIdFromSeed("never used"))
	require.NoError(t, err)
	fp, err := h.StateFingerprint(addr)
	require.NoError(t, err)
	assert.Equal(t, empty, fp)

	assert.Equal(t, host.StatusFailed, call(t, h, addr, nil).Status)
}

func TestTerminateToSelfTraps(t *testing.T) {
	h := newHost(t)
	addr := deploy(t, h, "suicide", scripted{
		call: func(h core.Host) { h.Terminate(h.Address()) },
	}, nil)
	require.NoError(t, h.Mint(addr, core.NewBalance(25)))

	res := call(t, h, addr, nil)
	require.Equal(t, host.StatusTrapped, res.Status)
	assert.Equal(t, core.TrapAbort, res.Trap.Reason)

	_, found, err := h.Instance(addr)
	require.NoError(t, err)
	assert.True(t, found)
	b, err := h.BalanceOf(addr)
	require.NoError(t, err)
	assert.Equal(t, core.NewBalance(25), b)
}

var errDiskFull = errors.New("disk full")

// brokenLog refuses to append while broken is set.
type brokenLog struct {
	*events.MemoryStore
	broken bool
}

func (l *brokenLog) Append(recs []events.Record) ([]events.Record, error) {
	if l.broken && len(recs) > 0 {
		return nil, errDiskFull
	}
	return l.MemoryStore.Append(recs)
}

// brokenDB fails batch writes while broken is set.
type brokenDB struct {
	*memorydb.Database
	broken bool
}

func (d *brokenDB) NewBatch() statedb.Batch {
	return brokenBatch{Batch: d.Database.NewBatch(), db: d}
}

type brokenBatch struct {
	statedb.Batch
	db *brokenDB
}

func (b brokenBatch) Write() error {
	if b.db.broken {
		return errDiskFull
	}
	return b.Batch.Write()
}

func TestEventAppendFailureKeepsState(t *testing.T) {
	log := &brokenLog{MemoryStore: events.NewMemoryStore()}
	h := newHost(t, host.WithEventStore(log))
	addr := deploy(t, h, "kv", kv, []byte("old"))

	log.broken = true
	_, err := h.Call(context.Background(), host.CallRequest{Caller: alice, Target: addr, Input: []byte("wNEW")})
	require.ErrorIs(t, err, errDiskFull)
	log.broken = false

	assert.Equal(t, []byte("old"), call(t, h, addr, nil).Output)
	recs, err := h.Events().Query(events.Filter{})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestStateCommitFailureDropsEvents(t *testing.T) {
	db := &brokenDB{Database: memorydb.New()}
	h := host.New(db)
	t.Cleanup(func() { h.Close() })
	addr := deploy(t, h, "kv", kv, []byte("old"))

	// one committed event before the failure
	require.True(t, call(t, h, addr, []byte("wmid")).Succeeded())

	var published int
	require.NoError(t, h.Bus().SubscribeAll(func(events.Record) { published++ }))

	db.broken = true
	_, err := h.Call(context.Background(), host.CallRequest{Caller: alice, Target: addr, Input: []byte("wNEW")})
	require.ErrorIs(t, err, errDiskFull)
	db.broken = false

	assert.Equal(t, []byte("mid"), call(t, h, addr, nil).Output)
	recs, err := h.Events().Query(events.Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, []byte("mid"), recs[0].Data)
	assert.Zero(t, published)

	// sequence numbers continue from the surviving record
	res := call(t, h, addr, []byte("wlast"))
	require.True(t, res.Succeeded())
	require.Len(t, res.Events, 1)
	assert.Equal(t, uint64(2), res.Events[0].Seq)
}

func TestOutOfGas(t *testing.T) {
	ctx := context.Background()
	h := newHost(t, host.WithGasLimit(1_000_000))
	addr := deploy(t, h, "kv", kv, nil)

	res, err := h.Call(ctx, host.CallRequest{Caller: alice, Target: addr, Input: []byte("wv"), GasLimit: 1200})
	require.NoError(t, err)
	require.Equal(t, host.StatusTrapped, res.Status)
	assert.Equal(t, core.TrapOutOfGas, res.Trap.Reason)
	assert.Equal(t, uint64(1200), res.GasUsed)

	res, err = h.Call(ctx, host.CallRequest{Caller: alice, Target: addr, Input: []byte("wv")})
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	assert.Greater(t, res.GasUsed, uint64(1200))
}

// forwarder calls the first address of its input with the rest, and
// reports what the callee did.
var forwarder = scripted{
	call: func(h core.Host) {
		in := h.Input()
		if len(in) == 0 {
			h.SetStorage([]byte("reached"), []byte{1})
			h.Return(0, []byte("done"))
		}
		var next core.AccountId
		copy(next[:], in)
		h.SetStorage([]byte("visited"), []byte{1})
		out, err := h.Call(next, in[32:], core.Balance{})
		switch {
		case err == nil:
			h.Return(0, out)
		case errors.Is(err, core.ErrCalleeReverted):
			h.Return(0, []byte("reverted"))
		case errors.Is(err, core.ErrCalleeTrapped):
			h.Return(0, []byte("trapped"))
		default:
			h.Return(0, []byte(err.Error()))
		}
	},
}

func route(addrs ...core.AccountId) []byte {
	var out []byte
	for _, a := range addrs {
		out = append(out, a[:]...)
	}
	return out
}

func TestNestedCalls(t *testing.T) {
	h := newHost(t)
	code, err := h.RegisterNative("forwarder", forwarder)
	require.NoError(t, err)

	var fw []core.AccountId
	for i := byte(0); i < 4; i++ {
		res, err := h.Instantiate(context.Background(), host.InstantiateRequest{Caller: alice, CodeHash: code, Salt: []byte{i}})
		require.NoError(t, err)
		require.True(t, res.Succeeded())
		fw = append(fw, res.Address)
	}
	kvAddr := deploy(t, h, "kv", kv, []byte("v1"))

	res := call(t, h, fw[0], route(fw[1], fw[2]))
	require.True(t, res.Succeeded())
	assert.Equal(t, []byte("done"), res.Output)

	// The callee's revert rolls back only the callee frame
	res = call(t, h, fw[3], append(route(kvAddr), "rv2"...))
	require.True(t, res.Succeeded())
	assert.Equal(t, []byte("reverted"), res.Output)
	assert.Equal(t, []byte("v1"), call(t, h, kvAddr, nil).Output)

	res = call(t, h, fw[3], append(route(kvAddr), 'p'))
	assert.Equal(t, []byte("trapped"), res.Output)

	// Reentering an instance on the stack
	res = call(t, h, fw[0], route(fw[1], fw[0]))
	require.True(t, res.Succeeded())
	assert.Equal(t, []byte("trapped"), res.Output)
}

func TestCallDepth(t *testing.T) {
	h := newHost(t, host.WithMaxCallDepth(3))
	code, err := h.RegisterNative("forwarder", forwarder)
	require.NoError(t, err)

	var fw []core.AccountId
	for i := byte(0); i < 4; i++ {
		res, err := h.Instantiate(context.Background(), host.InstantiateRequest{Caller: alice, CodeHash: code, Salt: []byte{i}})
		require.NoError(t, err)
		fw = append(fw, res.Address)
	}

	res := call(t, h, fw[0], route(fw[1], fw[2]))
	assert.Equal(t, []byte("done"), res.Output)

	res = call(t, h, fw[0], route(fw[1], fw[2], fw[3]))
	require.True(t, res.Succeeded())
	assert.Equal(t, []byte("trapped"), res.Output)
}

func TestNestedTransferFailure(t *testing.T) {
	h := newHost(t)
	kvAddr := deploy(t, h, "kv", kv, nil)
	payer := deploy(t, h, "payer", scripted{call: func(h core.Host) {
		_, err := h.Call(kvAddr, []byte("b"), core.NewBalance(5))
		if errors.Is(err, core.ErrTransferFailed) {
			h.Return(0, []byte("transfer failed"))
		}
		h.Return(0, []byte("paid"))
	}}, nil)

	assert.Equal(t, []byte("transfer failed"), call(t, h, payer, nil).Output)

	require.NoError(t, h.Mint(payer, core.NewBalance(5)))
	assert.Equal(t, []byte("paid"), call(t, h, payer, nil).Output)
	b, err := h.BalanceOf(kvAddr)
	require.NoError(t, err)
	assert.Equal(t, core.NewBalance(5), b)
}

func TestWorldFingerprintIsDeterministic(t *testing.T) {
	run := func() core.Hash {
		h := newHost(t)
		require.NoError(t, h.Mint(alice, core.NewBalance(10)))
		addr := deploy(t, h, "kv", kv, []byte("v1"))
		call(t, h, addr, []byte("wv2"))
		call(t, h, addr, []byte("rv3"))
		fp, err := h.WorldFingerprint()
		require.NoError(t, err)
		return fp
	}
	assert.Equal(t, run(), run())
}

func TestReturnTooLarge(t *testing.T) {
	h := newHost(t)
	addr := deploy(t, h, "big", scripted{call: func(h core.Host) {
		h.Return(0, bytes.Repeat([]byte{1}, core.MaxValueSize+1))
	}}, nil)

	res := call(t, h, addr, nil)
	require.Equal(t, host.StatusTrapped, res.Status)
	assert.Equal(t, core.TrapAllocation, res.Trap.Reason)
}
