// Package wasm runs WebAssembly contracts on wazero.
//
// A guest module imports its host functions from the "seal0" namespace and
// exports a linear memory named "memory" plus two functions without
// parameters or results: "deploy" and "call". Each invocation gets a fresh
// instance; compiled code is cached by code hash.
package wasm

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/govm-net/contractkit/core"
)

const (
	// HostModule is the import namespace of the host functions.
	HostModule = "seal0"

	ExportDeploy = "deploy"
	ExportCall   = "call"
	ExportMemory = "memory"

	DefaultCacheSize = 64
	// DefaultMemoryPages limits guest memory to 2 MiB.
	DefaultMemoryPages = 32
)

var (
	// ErrInvalidModule is returned by Load for code that is not a usable
	// contract.
	ErrInvalidModule = errors.New("invalid contract module")
)

// Option configures an Engine.
type Option func(*Engine)

// WithCacheSize bounds the number of compiled modules kept.
func WithCacheSize(n int) Option {
	return func(e *Engine) { e.cacheSize = n }
}

// WithMemoryPages bounds the linear memory of each instance.
func WithMemoryPages(pages uint32) Option {
	return func(e *Engine) { e.memoryPages = pages }
}

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(e *Engine) { e.log = l }
}

// Engine compiles and runs contract modules.
type Engine struct {
	runtime     wazero.Runtime
	cache       *lru.Cache
	cacheSize   int
	memoryPages uint32
	log         *zap.SugaredLogger
	seq         atomic.Uint64
}

// NewEngine creates a wazero runtime with the host functions installed.
func NewEngine(ctx context.Context, opts ...Option) (*Engine, error) {
	e := &Engine{
		cacheSize:   DefaultCacheSize,
		memoryPages: DefaultMemoryPages,
		log:         zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(e)
	}

	cfg := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(e.memoryPages).
		WithCloseOnContextDone(true)
	e.runtime = wazero.NewRuntimeWithConfig(ctx, cfg)

	if err := installHostFunctions(ctx, e.runtime); err != nil {
		e.runtime.Close(ctx)
		return nil, fmt.Errorf("install host functions: %w", err)
	}

	cache, err := lru.NewWithEvict(e.cacheSize, func(key, value interface{}) {
		e.log.Debugw("compiled module evicted", "code_hash", key)
		value.(wazero.CompiledModule).Close(context.Background())
	})
	if err != nil {
		e.runtime.Close(ctx)
		return nil, err
	}
	e.cache = cache
	return e, nil
}

// Load validates code and returns a module that runs it.
func (e *Engine) Load(ctx context.Context, code []byte) (core.Module, error) {
	hash := core.HashBytes(code)
	if _, err := e.compile(ctx, hash, code); err != nil {
		return nil, err
	}
	return &module{engine: e, hash: hash, code: code}, nil
}

// Close releases the runtime and every compiled module.
func (e *Engine) Close(ctx context.Context) error {
	e.cache.Purge()
	return e.runtime.Close(ctx)
}

// compile returns the cached compiled module of code, compiling it on a
// miss.
func (e *Engine) compile(ctx context.Context, hash core.Hash, code []byte) (wazero.CompiledModule, error) {
	if v, ok := e.cache.Get(hash); ok {
		return v.(wazero.CompiledModule), nil
	}

	compiled, err := e.runtime.CompileModule(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModule, err)
	}
	if err := checkInterface(compiled); err != nil {
		compiled.Close(ctx)
		return nil, err
	}
	e.cache.Add(hash, compiled)
	e.log.Debugw("module compiled", "code_hash", hash, "size", len(code))
	return compiled, nil
}

func checkInterface(compiled wazero.CompiledModule) error {
	exports := compiled.ExportedFunctions()
	for _, name := range []string{ExportDeploy, ExportCall} {
		def, ok := exports[name]
		if !ok {
			return fmt.Errorf("%w: missing export %q", ErrInvalidModule, name)
		}
		if len(def.ParamTypes()) != 0 || len(def.ResultTypes()) != 0 {
			return fmt.Errorf("%w: export %q must take and return nothing", ErrInvalidModule, name)
		}
	}
	if _, ok := compiled.ExportedMemories()[ExportMemory]; !ok {
		return fmt.Errorf("%w: missing exported memory", ErrInvalidModule)
	}
	for _, def := range compiled.ImportedFunctions() {
		mod, name, _ := def.Import()
		if mod != HostModule {
			return fmt.Errorf("%w: import %s.%s outside %s", ErrInvalidModule, mod, name, HostModule)
		}
	}
	return nil
}

// module is a loaded contract. It refers to its compiled form by hash so
// cache eviction never leaves it dangling.
type module struct {
	engine *Engine
	hash   core.Hash
	code   []byte
}

var _ core.Module = (*module)(nil)

func (m *module) Deploy(h core.Host) {
	m.invoke(h, ExportDeploy)
}

func (m *module) Call(h core.Host) {
	m.invoke(h, ExportCall)
}

// invoke runs one export in a fresh instance. A halt raised by a host
// function is re-raised here once wazero has unwound the guest stack.
func (m *module) invoke(h core.Host, export string) {
	ctx := h.Context()
	compiled, err := m.engine.compile(ctx, m.hash, m.code)
	if err != nil {
		panic(core.NewTrapErr(core.TrapWasm, err))
	}

	sb := &sandbox{host: h}
	ctx = withSandbox(ctx, sb)

	name := fmt.Sprintf("%x-%d", m.hash[:8], m.engine.seq.Add(1))
	cfg := wazero.NewModuleConfig().WithName(name).WithStartFunctions()
	inst, err := m.engine.runtime.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		panic(core.NewTrapErr(core.TrapWasm, err))
	}
	defer inst.Close(ctx)

	_, err = inst.ExportedFunction(export).Call(ctx)
	if sb.halt != nil {
		panic(sb.halt)
	}
	if err != nil {
		panic(core.NewTrapErr(core.TrapWasm, err))
	}
}
