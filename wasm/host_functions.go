package wasm

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"

	"github.com/govm-net/contractkit/core"
)

// ReturnCode is the status returned by fallible host functions.
type ReturnCode uint32

const (
	Success        ReturnCode = 0
	CalleeTrapped  ReturnCode = 1
	CalleeReverted ReturnCode = 2
	KeyNotFound    ReturnCode = 3
	TransferFailed ReturnCode = 5
)

const (
	accountLen = 32
	balanceLen = 16
)

type sandboxKey struct{}

// sandbox links host function calls back to the frame that runs the guest.
type sandbox struct {
	host core.Host
	// halt is the panic raised by the host while the guest was running.
	halt any
}

func withSandbox(ctx context.Context, sb *sandbox) context.Context {
	return context.WithValue(ctx, sandboxKey{}, sb)
}

func sandboxFrom(ctx context.Context) *sandbox {
	sb, ok := ctx.Value(sandboxKey{}).(*sandbox)
	if !ok {
		panic(core.NewTrap(core.TrapWasm, "host function called outside a contract invocation"))
	}
	return sb
}

// guard turns a host panic (halt, trap or backend failure) into a guest
// exit, recording it so invoke can re-raise it.
func (sb *sandbox) guard() {
	if r := recover(); r != nil {
		sb.halt = r
		panic(sys.NewExitError(1))
	}
}

func read(m api.Module, ptr, n uint32) []byte {
	if n > core.MaxValueSize*4 {
		panic(core.NewTrap(core.TrapAllocation, "read of %d bytes", n))
	}
	b, ok := m.Memory().Read(ptr, n)
	if !ok {
		panic(core.NewTrap(core.TrapWasm, "memory access out of bounds: %d+%d", ptr, n))
	}
	return bytes.Clone(b)
}

func write(m api.Module, ptr uint32, data []byte) {
	if !m.Memory().Write(ptr, data) {
		panic(core.NewTrap(core.TrapWasm, "memory access out of bounds: %d+%d", ptr, len(data)))
	}
}

// writeOut copies data to an output buffer. The u32 at lenPtr holds the
// buffer capacity on entry and the written length on return.
func writeOut(m api.Module, ptr, lenPtr uint32, data []byte) {
	capacity, ok := m.Memory().ReadUint32Le(lenPtr)
	if !ok {
		panic(core.NewTrap(core.TrapWasm, "memory access out of bounds: %d", lenPtr))
	}
	if uint32(len(data)) > capacity {
		panic(core.NewTrap(core.TrapAllocation, "output buffer of %d bytes, need %d", capacity, len(data)))
	}
	write(m, ptr, data)
	if !m.Memory().WriteUint32Le(lenPtr, uint32(len(data))) {
		panic(core.NewTrap(core.TrapWasm, "memory access out of bounds: %d", lenPtr))
	}
}

func readAccount(m api.Module, ptr uint32) core.AccountId {
	var a core.AccountId
	copy(a[:], read(m, ptr, accountLen))
	return a
}

func readBalance(m api.Module, ptr uint32) core.Balance {
	b, err := core.BalanceFromLittleEndian(read(m, ptr, balanceLen))
	if err != nil {
		panic(core.NewTrapErr(core.TrapWasm, err))
	}
	return b
}

func balanceBytes(b core.Balance) []byte {
	le := b.LittleEndian()
	return le[:]
}

func u64Bytes(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, v)
}

// installHostFunctions registers the seal0 module on the runtime.
func installHostFunctions(ctx context.Context, r wazero.Runtime) error {
	b := r.NewHostModuleBuilder(HostModule)

	b.NewFunctionBuilder().
		WithParameterNames("out_ptr", "out_len_ptr").
		WithFunc(func(ctx context.Context, m api.Module, outPtr, outLenPtr uint32) {
			sb := sandboxFrom(ctx)
			defer sb.guard()
			writeOut(m, outPtr, outLenPtr, sb.host.Input())
		}).Export("seal_input")

	b.NewFunctionBuilder().
		WithParameterNames("flags", "data_ptr", "data_len").
		WithFunc(func(ctx context.Context, m api.Module, flags, dataPtr, dataLen uint32) {
			sb := sandboxFrom(ctx)
			defer sb.guard()
			sb.host.Return(core.ReturnFlags(flags), read(m, dataPtr, dataLen))
		}).Export("seal_return")

	b.NewFunctionBuilder().
		WithParameterNames("key_ptr", "key_len", "value_ptr", "value_len").
		WithFunc(func(ctx context.Context, m api.Module, keyPtr, keyLen, valuePtr, valueLen uint32) {
			sb := sandboxFrom(ctx)
			defer sb.guard()
			sb.host.SetStorage(read(m, keyPtr, keyLen), read(m, valuePtr, valueLen))
		}).Export("seal_set_storage")

	b.NewFunctionBuilder().
		WithParameterNames("key_ptr", "key_len").
		WithFunc(func(ctx context.Context, m api.Module, keyPtr, keyLen uint32) {
			sb := sandboxFrom(ctx)
			defer sb.guard()
			sb.host.ClearStorage(read(m, keyPtr, keyLen))
		}).Export("seal_clear_storage")

	b.NewFunctionBuilder().
		WithParameterNames("key_ptr", "key_len", "out_ptr", "out_len_ptr").
		WithResultNames("return_code").
		WithFunc(func(ctx context.Context, m api.Module, keyPtr, keyLen, outPtr, outLenPtr uint32) uint32 {
			sb := sandboxFrom(ctx)
			defer sb.guard()
			v, ok := sb.host.GetStorage(read(m, keyPtr, keyLen))
			if !ok {
				return uint32(KeyNotFound)
			}
			writeOut(m, outPtr, outLenPtr, v)
			return uint32(Success)
		}).Export("seal_get_storage")

	// Fixed size getters share the out_ptr/out_len_ptr convention.
	getters := map[string]func(core.Host) []byte{
		"seal_caller":            func(h core.Host) []byte { a := h.Caller(); return a[:] },
		"seal_address":           func(h core.Host) []byte { a := h.Address(); return a[:] },
		"seal_value_transferred": func(h core.Host) []byte { return balanceBytes(h.ValueTransferred()) },
		"seal_balance":           func(h core.Host) []byte { return balanceBytes(h.Balance()) },
		"seal_block_number":      func(h core.Host) []byte { return u64Bytes(h.BlockNumber()) },
		"seal_now":               func(h core.Host) []byte { return u64Bytes(h.BlockTimestamp()) },
	}
	for name, get := range getters {
		get := get
		b.NewFunctionBuilder().
			WithParameterNames("out_ptr", "out_len_ptr").
			WithFunc(func(ctx context.Context, m api.Module, outPtr, outLenPtr uint32) {
				sb := sandboxFrom(ctx)
				defer sb.guard()
				writeOut(m, outPtr, outLenPtr, get(sb.host))
			}).Export(name)
	}

	b.NewFunctionBuilder().
		WithParameterNames("topics_ptr", "topics_len", "data_ptr", "data_len").
		WithFunc(func(ctx context.Context, m api.Module, topicsPtr, topicsLen, dataPtr, dataLen uint32) {
			sb := sandboxFrom(ctx)
			defer sb.guard()
			if topicsLen%32 != 0 {
				panic(core.NewTrap(core.TrapWasm, "topics buffer of %d bytes", topicsLen))
			}
			raw := read(m, topicsPtr, topicsLen)
			topics := make([]core.Hash, len(raw)/32)
			for i := range topics {
				copy(topics[i][:], raw[i*32:])
			}
			sb.host.DepositEvent(topics, read(m, dataPtr, dataLen))
		}).Export("seal_deposit_event")

	b.NewFunctionBuilder().
		WithParameterNames("account_ptr", "value_ptr").
		WithResultNames("return_code").
		WithFunc(func(ctx context.Context, m api.Module, accountPtr, valuePtr uint32) uint32 {
			sb := sandboxFrom(ctx)
			defer sb.guard()
			if err := sb.host.Transfer(readAccount(m, accountPtr), readBalance(m, valuePtr)); err != nil {
				return uint32(TransferFailed)
			}
			return uint32(Success)
		}).Export("seal_transfer")

	b.NewFunctionBuilder().
		WithParameterNames("callee_ptr", "value_ptr", "input_ptr", "input_len", "out_ptr", "out_len_ptr").
		WithResultNames("return_code").
		WithFunc(func(ctx context.Context, m api.Module, calleePtr, valuePtr, inputPtr, inputLen, outPtr, outLenPtr uint32) uint32 {
			sb := sandboxFrom(ctx)
			defer sb.guard()
			out, err := sb.host.Call(readAccount(m, calleePtr), read(m, inputPtr, inputLen), readBalance(m, valuePtr))
			var reverted *core.CalleeRevertedError
			switch {
			case err == nil:
				writeOut(m, outPtr, outLenPtr, out)
				return uint32(Success)
			case errors.As(err, &reverted):
				writeOut(m, outPtr, outLenPtr, reverted.Data)
				return uint32(CalleeReverted)
			case errors.Is(err, core.ErrTransferFailed):
				return uint32(TransferFailed)
			default:
				return uint32(CalleeTrapped)
			}
		}).Export("seal_call")

	b.NewFunctionBuilder().
		WithParameterNames("beneficiary_ptr").
		WithFunc(func(ctx context.Context, m api.Module, beneficiaryPtr uint32) {
			sb := sandboxFrom(ctx)
			defer sb.guard()
			sb.host.Terminate(readAccount(m, beneficiaryPtr))
		}).Export("seal_terminate")

	b.NewFunctionBuilder().
		WithParameterNames("amount").
		WithFunc(func(ctx context.Context, amount uint64) {
			sb := sandboxFrom(ctx)
			defer sb.guard()
			sb.host.ChargeGas(amount)
		}).Export("seal_gas")

	_, err := b.Instantiate(ctx)
	return err
}
