package wasm_test

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/contractkit/core"
	"github.com/govm-net/contractkit/host"
	"github.com/govm-net/contractkit/wasm"
)

// Import indices of the guest built by guestModule.
const (
	fnInput byte = iota
	fnReturn
	fnCaller
	fnAddress
	fnValueTransferred
	fnBalance
	fnBlockNumber
	fnNow
	fnDepositEvent
	fnTransfer
	fnCall
	fnTerminate
	fnGas
)

// Guest memory: the input length slot at 16, an output length slot at 20,
// input at 256 (1024 bytes), output at 2048.
const (
	inputLenSlot  = 16
	outputLenSlot = 20
	inputBuf      = 256
	outputBuf     = 2048
)

func sleb(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func ops(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func i32c(v int32) []byte { return append([]byte{0x41}, sleb(int64(v))...) }

func i64c(v int64) []byte { return append([]byte{0x42}, sleb(v)...) }

func callFn(idx byte) []byte { return []byte{0x10, idx} }

func store32(addr int32, value []byte) []byte {
	return ops(i32c(addr), value, []byte{0x36, 0x02, 0x00})
}

func load32(addr int32) []byte {
	return ops(i32c(addr), []byte{0x28, 0x02, 0x00})
}

var (
	readInput = ops(store32(inputLenSlot, i32c(1024)), i32c(inputBuf), i32c(inputLenSlot), callFn(fnInput))
	inputLen  = load32(inputLenSlot)
)

func ret(flags, ptr int32, length []byte) []byte {
	return ops(i32c(flags), i32c(ptr), length, callFn(fnReturn))
}

type segment struct {
	offset int32
	data   string
}

// guestModule builds a contract importing every seal0 function. deploy does
// nothing; call runs body.
func guestModule(body []byte, data ...segment) []byte {
	types := vec(
		[]byte{0x60, 2, i32, i32, 0},                          // 0: (i32 i32)
		[]byte{0x60, 3, i32, i32, i32, 0},                     // 1: (i32 i32 i32)
		[]byte{0x60, 4, i32, i32, i32, i32, 0},                // 2: (i32 i32 i32 i32)
		[]byte{0x60, 2, i32, i32, 1, i32},                     // 3: (i32 i32) -> i32
		[]byte{0x60, 6, i32, i32, i32, i32, i32, i32, 1, i32}, // 4: (i32 x6) -> i32
		[]byte{0x60, 1, i32, 0},                               // 5: (i32)
		[]byte{0x60, 1, 0x7e, 0},                              // 6: (i64)
		[]byte{0x60, 0, 0},                                    // 7: export
	)
	imp := func(field string, typ byte) []byte {
		return append(append(name("seal0"), name(field)...), 0x00, typ)
	}
	imports := vec(
		imp("seal_input", 0),
		imp("seal_return", 1),
		imp("seal_caller", 0),
		imp("seal_address", 0),
		imp("seal_value_transferred", 0),
		imp("seal_balance", 0),
		imp("seal_block_number", 0),
		imp("seal_now", 0),
		imp("seal_deposit_event", 2),
		imp("seal_transfer", 3),
		imp("seal_call", 4),
		imp("seal_terminate", 5),
		imp("seal_gas", 6),
	)
	exports := vec(
		append(name("memory"), 0x02, 0x00),
		append(name("deploy"), 0x00, 13),
		append(name("call"), 0x00, 14),
	)

	mod := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	mod = append(mod, section(1, types)...)
	mod = append(mod, section(2, imports)...)
	mod = append(mod, section(3, vec([]byte{7}, []byte{7}))...)
	mod = append(mod, section(5, vec([]byte{0x00, 0x01}))...)
	mod = append(mod, section(7, exports)...)
	mod = append(mod, section(10, vec(funcBody(), funcBody(body...)))...)
	if len(data) > 0 {
		var segs [][]byte
		for _, d := range data {
			segs = append(segs, ops([]byte{0x00}, i32c(d.offset), []byte{0x0b}, name(d.data)))
		}
		mod = append(mod, section(11, vec(segs...))...)
	}
	return mod
}

// echo is a native callee: input[0] selects return (0), revert (1) or trap.
type echo struct{}

func (echo) Deploy(core.Host) {}

func (echo) Call(h core.Host) {
	in := h.Input()
	switch {
	case len(in) > 0 && in[0] == 0:
		h.Return(0, in[1:])
	case len(in) > 0 && in[0] == 1:
		h.Return(core.FlagRevert, in[1:])
	default:
		core.Abort("echo")
	}
}

var bob = core.AccountIdFromSeed("bob")

type guestEnv struct {
	t     *testing.T
	ctx   context.Context
	h     *host.Host
	alice core.AccountId
}

func newGuestEnv(t *testing.T) *guestEnv {
	h, _ := newHost(t)
	alice := core.AccountIdFromSeed("alice")
	require.NoError(t, h.Mint(alice, core.NewBalance(1000)))
	return &guestEnv{t: t, ctx: context.Background(), h: h, alice: alice}
}

// deploy uploads and instantiates code with an endowment.
func (e *guestEnv) deploy(code []byte, endowment uint64) core.AccountId {
	e.t.Helper()
	hash, err := e.h.UploadWasm(e.ctx, code)
	require.NoError(e.t, err)
	res, err := e.h.Instantiate(e.ctx, host.InstantiateRequest{
		Caller:   e.alice,
		CodeHash: hash,
		Value:    core.NewBalance(endowment),
	})
	require.NoError(e.t, err)
	require.True(e.t, res.Succeeded(), "%v", res.Error())
	return res.Address
}

func (e *guestEnv) call(target core.AccountId, input []byte, value uint64) *host.Result {
	e.t.Helper()
	res, err := e.h.Call(e.ctx, host.CallRequest{
		Caller: e.alice,
		Target: target,
		Input:  input,
		Value:  core.NewBalance(value),
	})
	require.NoError(e.t, err)
	return res
}

func (e *guestEnv) balance(account core.AccountId) core.Balance {
	e.t.Helper()
	b, err := e.h.BalanceOf(account)
	require.NoError(e.t, err)
	return b
}

func le(b core.Balance) []byte {
	v := b.LittleEndian()
	return v[:]
}

func returnCode(t *testing.T, res *host.Result) uint32 {
	t.Helper()
	require.True(t, res.Succeeded(), "%v", res.Error())
	require.GreaterOrEqual(t, len(res.Output), 4)
	return binary.LittleEndian.Uint32(res.Output)
}

func TestGetters(t *testing.T) {
	e := newGuestEnv(t)

	// Each getter writes at its own offset from 512, then all 112 bytes are returned
	var body []byte
	offset := int32(512)
	for _, g := range []struct {
		fn   byte
		size int32
	}{
		{fnCaller, 32}, {fnAddress, 32}, {fnValueTransferred, 16},
		{fnBalance, 16}, {fnBlockNumber, 8}, {fnNow, 8},
	} {
		body = append(body, ops(store32(outputLenSlot, i32c(64)), i32c(offset), i32c(outputLenSlot), callFn(g.fn))...)
		offset += g.size
	}
	body = append(body, ret(0, 512, i32c(offset-512))...)
	addr := e.deploy(guestModule(body), 0)

	require.NoError(t, e.h.SetBlock(5, 12345))
	res := e.call(addr, nil, 7)
	require.True(t, res.Succeeded(), "%v", res.Error())

	out := res.Output
	require.Len(t, out, 112)
	assert.Equal(t, e.alice[:], out[0:32])
	assert.Equal(t, addr[:], out[32:64])
	assert.Equal(t, le(core.NewBalance(7)), out[64:80])
	assert.Equal(t, le(core.NewBalance(7)), out[80:96])
	assert.Equal(t, uint64(5), binary.LittleEndian.Uint64(out[96:104]))
	assert.Equal(t, uint64(12345), binary.LittleEndian.Uint64(out[104:112]))
}

func TestOutputBufferTooSmall(t *testing.T) {
	e := newGuestEnv(t)
	body := ops(store32(outputLenSlot, i32c(16)), i32c(512), i32c(outputLenSlot), callFn(fnCaller))
	addr := e.deploy(guestModule(body), 0)

	res := e.call(addr, nil, 0)
	require.Equal(t, host.StatusTrapped, res.Status)
	assert.Equal(t, core.TrapAllocation, res.Trap.Reason)
}

func TestDepositEvent(t *testing.T) {
	e := newGuestEnv(t)
	// topics are the call input, data is "ev" from offset 128
	body := ops(readInput, i32c(inputBuf), inputLen, i32c(128), i32c(2), callFn(fnDepositEvent))
	addr := e.deploy(guestModule(body, segment{offset: 128, data: "ev"}), 0)

	a := core.HashBytes([]byte("a"))
	b := core.HashBytes([]byte("b"))
	res := e.call(addr, append(a[:], b[:]...), 0)
	require.True(t, res.Succeeded(), "%v", res.Error())
	require.Len(t, res.Events, 1)
	assert.Equal(t, []core.Hash{a, b}, res.Events[0].Topics)
	assert.Equal(t, []byte("ev"), res.Events[0].Data)
	assert.Equal(t, addr, res.Events[0].Contract)

	// a partial topic
	res = e.call(addr, make([]byte, 33), 0)
	require.Equal(t, host.StatusTrapped, res.Status)
	assert.Equal(t, core.TrapWasm, res.Trap.Reason)

	// too many topics
	res = e.call(addr, make([]byte, (host.MaxTopics+1)*32), 0)
	require.Equal(t, host.StatusTrapped, res.Status)
	assert.Equal(t, core.TrapAllocation, res.Trap.Reason)
	assert.Empty(t, res.Events)
}

func TestTransfer(t *testing.T) {
	e := newGuestEnv(t)
	// seal_transfer(input[0:32], input[32:48]); return the code
	body := ops(
		i32c(0), i32c(inputBuf), i32c(inputBuf+32), callFn(fnTransfer), []byte{0x36, 0x02, 0x00},
		ret(0, 0, i32c(4)),
	)
	addr := e.deploy(guestModule(ops(readInput, body)), 50)
	assert.Equal(t, core.NewBalance(50), e.balance(addr))

	res := e.call(addr, append(bob[:], le(core.NewBalance(20))...), 0)
	assert.Equal(t, uint32(wasm.Success), returnCode(t, res))
	assert.Equal(t, core.NewBalance(20), e.balance(bob))
	assert.Equal(t, core.NewBalance(30), e.balance(addr))

	res = e.call(addr, append(bob[:], le(core.NewBalance(1000))...), 0)
	assert.Equal(t, uint32(wasm.TransferFailed), returnCode(t, res))
	assert.Equal(t, core.NewBalance(20), e.balance(bob))
	assert.Equal(t, core.NewBalance(30), e.balance(addr))
}

func TestCall(t *testing.T) {
	e := newGuestEnv(t)
	code, err := e.h.RegisterNative("echo", echo{})
	require.NoError(t, err)
	inst, err := e.h.Instantiate(e.ctx, host.InstantiateRequest{Caller: e.alice, CodeHash: code})
	require.NoError(t, err)
	require.True(t, inst.Succeeded())
	callee := inst.Address

	// seal_call(input[0:32], input[32:48], input[48:], out 2048) and return
	// code || output
	body := ops(
		readInput,
		store32(outputLenSlot, i32c(1024)),
		i32c(outputBuf-4),
		i32c(inputBuf), i32c(inputBuf+32), i32c(inputBuf+48),
		inputLen, i32c(48), []byte{0x6b},
		i32c(outputBuf), i32c(outputLenSlot),
		callFn(fnCall),
		[]byte{0x36, 0x02, 0x00},
		ret(0, outputBuf-4, ops(load32(outputLenSlot), i32c(4), []byte{0x6a})),
	)
	addr := e.deploy(guestModule(body), 10)

	input := func(value uint64, payload ...byte) []byte {
		return ops(callee[:], le(core.NewBalance(value)), payload)
	}

	res := e.call(addr, input(3, 0, 'h', 'i'), 0)
	assert.Equal(t, uint32(wasm.Success), returnCode(t, res))
	assert.Equal(t, []byte("hi"), res.Output[4:])
	assert.Equal(t, core.NewBalance(3), e.balance(callee))
	assert.Equal(t, core.NewBalance(7), e.balance(addr))

	// a revert payload reaches the caller, the callee's value transfer is undone
	res = e.call(addr, input(2, 1, 'n', 'o'), 0)
	assert.Equal(t, uint32(wasm.CalleeReverted), returnCode(t, res))
	assert.Equal(t, []byte("no"), res.Output[4:])
	assert.Equal(t, core.NewBalance(3), e.balance(callee))

	res = e.call(addr, input(0, 2), 0)
	assert.Equal(t, uint32(wasm.CalleeTrapped), returnCode(t, res))

	res = e.call(addr, input(1000, 0), 0)
	assert.Equal(t, uint32(wasm.TransferFailed), returnCode(t, res))
	assert.Equal(t, core.NewBalance(7), e.balance(addr))
}

func TestTerminate(t *testing.T) {
	e := newGuestEnv(t)
	body := ops(readInput, i32c(inputBuf), callFn(fnTerminate))

	addr := e.deploy(guestModule(body), 25)
	res := e.call(addr, addr[:], 0)
	require.Equal(t, host.StatusTrapped, res.Status)
	assert.Equal(t, core.TrapAbort, res.Trap.Reason)
	_, found, err := e.h.Instance(addr)
	require.NoError(t, err)
	assert.True(t, found)

	res = e.call(addr, bob[:], 0)
	require.True(t, res.Succeeded(), "%v", res.Error())
	assert.Empty(t, res.Output)
	_, found, err = e.h.Instance(addr)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, core.NewBalance(25), e.balance(bob))
	assert.True(t, e.balance(addr).IsZero())
}

func TestChargeGas(t *testing.T) {
	e := newGuestEnv(t)
	addr := e.deploy(guestModule(ops(i64c(1_000_000), callFn(fnGas))), 0)

	res := e.call(addr, nil, 0)
	require.True(t, res.Succeeded(), "%v", res.Error())
	assert.Greater(t, res.GasUsed, uint64(1_000_000))

	res, err := e.h.Call(e.ctx, host.CallRequest{Caller: e.alice, Target: addr, GasLimit: 500_000})
	require.NoError(t, err)
	require.Equal(t, host.StatusTrapped, res.Status)
	assert.Equal(t, core.TrapOutOfGas, res.Trap.Reason)
	assert.Equal(t, uint64(500_000), res.GasUsed)
}
