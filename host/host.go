// Package host runs contract modules against a persistent world state.
//
// A Host owns balances, contract instances, contract storage and the event
// log. Every top-level invocation executes in a journaled overlay and is
// committed atomically when it succeeds; nested calls push frames that roll
// back on their own.
package host

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/govm-net/contractkit/core"
	"github.com/govm-net/contractkit/events"
	"github.com/govm-net/contractkit/gas"
	"github.com/govm-net/contractkit/security"
	"github.com/govm-net/contractkit/statedb"
)

var (
	// ErrBlockRegression is returned when block number or time would go back.
	ErrBlockRegression = errors.New("block number and timestamp must not decrease")
	// ErrWasmDisabled is returned by UploadWasm without a loader.
	ErrWasmDisabled = errors.New("wasm support not configured")
)

// Loader compiles guest code into a module.
type Loader interface {
	Load(ctx context.Context, code []byte) (core.Module, error)
}

// CodeStore persists uploaded guest code by hash.
type CodeStore interface {
	RegisterCode(code []byte) (core.Hash, error)
	GetCode(hash core.Hash) ([]byte, error)
}

// Block is the chain context visible to contracts.
type Block struct {
	Number    uint64
	Timestamp uint64
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(h *Host) { h.log = l }
}

// WithEventStore sets the event log. The default is in memory.
func WithEventStore(s events.Store) Option {
	return func(h *Host) { h.eventLog = s }
}

// WithSchedule sets gas prices.
func WithSchedule(s gas.Schedule) Option {
	return func(h *Host) { h.schedule = s }
}

// WithGasLimit sets the budget of invocations that do not name one.
func WithGasLimit(limit uint64) Option {
	return func(h *Host) { h.gasLimit = limit }
}

// WithMaxCallDepth bounds nested calls.
func WithMaxCallDepth(n int) Option {
	return func(h *Host) { h.maxDepth = n }
}

// WithMetrics enables prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(h *Host) { h.metrics = m }
}

// WithRegisterer is where NewFromConfig registers metrics.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(h *Host) { h.registerer = reg }
}

// WithWasm enables guest code uploads.
func WithWasm(loader Loader, codes CodeStore) Option {
	return func(h *Host) {
		h.loader = loader
		h.codes = codes
	}
}

// WithCloser registers a resource released by Close.
func WithCloser(fn func() error) Option {
	return func(h *Host) { h.closers = append(h.closers, fn) }
}

// Host is the contract execution environment. It is safe for concurrent
// use; invocations are serialised.
type Host struct {
	mu sync.Mutex

	db         statedb.Database
	log        *zap.SugaredLogger
	schedule   gas.Schedule
	gasLimit   uint64
	maxDepth   int
	metrics    *Metrics
	registerer prometheus.Registerer
	eventLog   events.Store
	bus        *events.Bus
	natives    map[core.Hash]core.Module
	loader     Loader
	codes      CodeStore
	block      Block
	closers    []func() error
}

// New creates a Host over db. The Host takes ownership of db.
func New(db statedb.Database, opts ...Option) *Host {
	h := &Host{
		db:       db,
		log:      zap.NewNop().Sugar(),
		schedule: gas.DefaultSchedule(),
		gasLimit: gas.DefaultLimit,
		maxDepth: security.DefaultMaxCallDepth,
		bus:      events.NewBus(),
		natives:  make(map[core.Hash]core.Module),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.eventLog == nil {
		h.eventLog = events.NewMemoryStore()
	}
	return h
}

// Block returns the current block.
func (h *Host) Block() Block {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.block
}

// SetBlock moves the chain to the given block. Number and timestamp are
// monotonic.
func (h *Host) SetBlock(number, timestamp uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if number < h.block.Number || timestamp < h.block.Timestamp {
		return fmt.Errorf("%w: %d@%d -> %d@%d", ErrBlockRegression,
			h.block.Number, h.block.Timestamp, number, timestamp)
	}
	h.block = Block{Number: number, Timestamp: timestamp}
	return nil
}

// AdvanceBlock moves to the next block, dt milliseconds later. It fails
// with ErrBlockRegression when the number or timestamp would wrap.
func (h *Host) AdvanceBlock(dt uint64) (Block, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.block.Number == math.MaxUint64 || h.block.Timestamp > math.MaxUint64-dt {
		return h.block, fmt.Errorf("%w: %d@%d advanced by %d overflows",
			ErrBlockRegression, h.block.Number, h.block.Timestamp, dt)
	}
	h.block = Block{Number: h.block.Number + 1, Timestamp: h.block.Timestamp + dt}
	return h.block, nil
}

// Mint credits amount to account outside of any invocation.
func (h *Host) Mint(account core.AccountId, amount core.Balance) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	cur, err := readBalance(h.db, account)
	if err != nil {
		return err
	}
	next, ok := cur.CheckedAdd(amount)
	if !ok {
		return fmt.Errorf("mint %s to %s: balance overflow", amount, account)
	}
	if next.IsZero() {
		return nil
	}
	return h.db.Put(statedb.BalanceKey(account), core.MustEncode(next))
}

// BalanceOf returns the committed balance of account.
func (h *Host) BalanceOf(account core.AccountId) (core.Balance, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return readBalance(h.db, account)
}

// NativeCodeHash is the code hash of a module registered under name.
func NativeCodeHash(name string) core.Hash {
	return core.HashBytes([]byte("native:" + name))
}

// RegisterNative makes a Go module instantiable under NativeCodeHash(name).
func (h *Host) RegisterNative(name string, m core.Module) (core.Hash, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	hash := NativeCodeHash(name)
	h.natives[hash] = m
	if err := h.db.Put(statedb.CodeKey(hash), []byte("native:"+name)); err != nil {
		return hash, err
	}
	h.log.Infow("native code registered", "name", name, "code_hash", hash)
	return hash, nil
}

// UploadWasm validates and stores guest code and returns its hash.
func (h *Host) UploadWasm(ctx context.Context, code []byte) (core.Hash, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.loader == nil || h.codes == nil {
		return core.Hash{}, ErrWasmDisabled
	}
	if _, err := h.loader.Load(ctx, code); err != nil {
		return core.Hash{}, fmt.Errorf("load code: %w", err)
	}
	hash, err := h.codes.RegisterCode(code)
	if err != nil {
		return core.Hash{}, err
	}
	if err := h.db.Put(statedb.CodeKey(hash), []byte("wasm")); err != nil {
		return hash, err
	}
	h.log.Infow("wasm code uploaded", "code_hash", hash, "size", len(code))
	return hash, nil
}

// module resolves a code hash to an executable module.
func (h *Host) module(ctx context.Context, hash core.Hash) (core.Module, error) {
	if m, ok := h.natives[hash]; ok {
		return m, nil
	}
	if h.loader != nil && h.codes != nil {
		code, err := h.codes.GetCode(hash)
		if err == nil {
			return h.loader.Load(ctx, code)
		}
	}
	return nil, fmt.Errorf("%w: %s", core.ErrCodeNotFound, hash)
}

// Instance returns the committed instance record of addr.
func (h *Host) Instance(addr core.AccountId) (Instance, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return readInstance(h.db, addr)
}

// StateFingerprint hashes the committed storage of addr.
func (h *Host) StateFingerprint(addr core.AccountId) (core.Hash, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return statedb.Fingerprint(statedb.NewOverlay(h.db), statedb.StoragePrefix(addr))
}

// WorldFingerprint hashes the whole committed world state.
func (h *Host) WorldFingerprint() (core.Hash, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return statedb.Fingerprint(statedb.NewOverlay(h.db), nil)
}

// Events returns the event log.
func (h *Host) Events() events.Store {
	return h.eventLog
}

// Bus returns the bus committed events are published on.
func (h *Host) Bus() *events.Bus {
	return h.bus
}

// Close releases the event log, the database and registered resources.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	errs := []error{h.eventLog.Close(), h.db.Close()}
	for _, fn := range h.closers {
		errs = append(errs, fn())
	}
	return errors.Join(errs...)
}

func readBalance(db statedb.Reader, account core.AccountId) (core.Balance, error) {
	var b core.Balance
	raw, err := db.Get(statedb.BalanceKey(account))
	if errors.Is(err, statedb.ErrNotFound) {
		return b, nil
	}
	if err != nil {
		return b, err
	}
	if err := core.Decode(raw, &b); err != nil {
		return b, fmt.Errorf("balance of %s: %w", account, err)
	}
	return b, nil
}
