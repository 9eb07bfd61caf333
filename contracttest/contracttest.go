// Package contracttest runs contracts on an in-memory host for tests.
//
// It mirrors the off-chain test environment of ink!: a fresh chain with a
// set of funded default accounts, helpers to deploy and call contracts by
// label, and assertions on emitted events.
package contracttest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/govm-net/contractkit/contract"
	"github.com/govm-net/contractkit/core"
	"github.com/govm-net/contractkit/events"
	"github.com/govm-net/contractkit/host"
	"github.com/govm-net/contractkit/statedb/memorydb"
)

// InitialBalance is credited to every default account.
var InitialBalance = core.NewBalance(1_000_000)

// BlockTime is the timestamp step of AdvanceBlock, in milliseconds.
const BlockTime = 6000

// Accounts are the well known test accounts.
type Accounts struct {
	Alice   core.AccountId
	Bob     core.AccountId
	Charlie core.AccountId
	Dave    core.AccountId
	Eve     core.AccountId
	Frank   core.AccountId
}

// DefaultAccounts derives the test accounts from their names.
func DefaultAccounts() Accounts {
	return Accounts{
		Alice:   core.AccountIdFromSeed("alice"),
		Bob:     core.AccountIdFromSeed("bob"),
		Charlie: core.AccountIdFromSeed("charlie"),
		Dave:    core.AccountIdFromSeed("dave"),
		Eve:     core.AccountIdFromSeed("eve"),
		Frank:   core.AccountIdFromSeed("frank"),
	}
}

func (a Accounts) all() []core.AccountId {
	return []core.AccountId{a.Alice, a.Bob, a.Charlie, a.Dave, a.Eve, a.Frank}
}

// Env is a test chain.
type Env struct {
	t        testing.TB
	ctx      context.Context
	Host     *host.Host
	Accounts Accounts
	salt     uint64
}

// New creates a chain at block 1 with funded default accounts. It is closed
// when the test ends.
func New(t testing.TB, opts ...host.Option) *Env {
	t.Helper()
	h := host.New(memorydb.New(), opts...)
	t.Cleanup(func() { h.Close() })

	e := &Env{t: t, ctx: context.Background(), Host: h, Accounts: DefaultAccounts()}
	for _, acct := range e.Accounts.all() {
		require.NoError(t, h.Mint(acct, InitialBalance))
	}
	require.NoError(t, h.SetBlock(1, BlockTime))
	return e
}

// AdvanceBlock moves to the next block.
func (e *Env) AdvanceBlock() host.Block {
	e.t.Helper()
	b, err := e.Host.AdvanceBlock(BlockTime)
	require.NoError(e.t, err)
	return b
}

// Balance returns the native balance of account.
func (e *Env) Balance(account core.AccountId) core.Balance {
	e.t.Helper()
	b, err := e.Host.BalanceOf(account)
	require.NoError(e.t, err)
	return b
}

type callOptions struct {
	value    core.Balance
	gasLimit uint64
}

// CallOption adjusts a single deployment or call.
type CallOption func(*callOptions)

// WithValue sends value along with the invocation.
func WithValue(v core.Balance) CallOption {
	return func(o *callOptions) { o.value = v }
}

// WithGasLimit sets the gas budget of the invocation.
func WithGasLimit(limit uint64) CallOption {
	return func(o *callOptions) { o.gasLimit = limit }
}

func applyOptions(opts []CallOption) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Instance is a deployed contract.
type Instance struct {
	env     *Env
	Desc    *contract.Descriptor
	Address core.AccountId
}

// Instantiate deploys d through the named constructor and returns the raw
// result. The instance is only usable when the result succeeded.
func (e *Env) Instantiate(d *contract.Descriptor, caller core.AccountId, constructor string, args any, opts ...CallOption) (*Instance, *host.Result) {
	e.t.Helper()
	code, err := e.Host.RegisterNative(d.Name, d)
	require.NoError(e.t, err)
	input, err := d.Input(constructor, args)
	require.NoError(e.t, err)

	o := applyOptions(opts)
	e.salt++
	res, err := e.Host.Instantiate(e.ctx, host.InstantiateRequest{
		Caller:   caller,
		CodeHash: code,
		Input:    input,
		Value:    o.value,
		Salt:     []byte(fmt.Sprintf("%d", e.salt)),
		GasLimit: o.gasLimit,
	})
	require.NoError(e.t, err)
	return &Instance{env: e, Desc: d, Address: res.Address}, res
}

// Deploy is Instantiate that fails the test unless the deployment succeeds.
func (e *Env) Deploy(d *contract.Descriptor, caller core.AccountId, constructor string, args any, opts ...CallOption) *Instance {
	e.t.Helper()
	inst, res := e.Instantiate(d, caller, constructor, args, opts...)
	require.True(e.t, res.Succeeded(), "deploy %s.%s: %v", d.Name, constructor, res.Error())
	return inst
}

func (i *Instance) request(caller core.AccountId, label string, args any, opts []CallOption) host.CallRequest {
	i.env.t.Helper()
	input, err := i.Desc.Input(label, args)
	require.NoError(i.env.t, err)
	o := applyOptions(opts)
	return host.CallRequest{
		Caller:   caller,
		Target:   i.Address,
		Input:    input,
		Value:    o.value,
		GasLimit: o.gasLimit,
	}
}

// Call invokes a message as caller and commits it when it succeeds.
func (i *Instance) Call(caller core.AccountId, label string, args any, opts ...CallOption) *host.Result {
	i.env.t.Helper()
	res, err := i.env.Host.Call(i.env.ctx, i.request(caller, label, args, opts))
	require.NoError(i.env.t, err)
	return res
}

// Query runs a message without committing anything.
func (i *Instance) Query(caller core.AccountId, label string, args any, opts ...CallOption) *host.Result {
	i.env.t.Helper()
	res, err := i.env.Host.Query(i.env.ctx, i.request(caller, label, args, opts))
	require.NoError(i.env.t, err)
	return res
}

// Events returns the committed events of the instance.
func (i *Instance) Events() []events.Record {
	i.env.t.Helper()
	recs, err := i.env.Host.Events().Query(events.Filter{Contract: &i.Address})
	require.NoError(i.env.t, err)
	return recs
}

// Fingerprint hashes the committed storage of the instance.
func (i *Instance) Fingerprint() core.Hash {
	i.env.t.Helper()
	fp, err := i.env.Host.StateFingerprint(i.Address)
	require.NoError(i.env.t, err)
	return fp
}

// Decode fails the test unless res succeeded and decodes its output.
func Decode[T any](t testing.TB, res *host.Result) T {
	t.Helper()
	var v T
	require.NoError(t, res.Decode(&v))
	return v
}

// Get queries a read-only message and decodes its result.
func Get[T any](t testing.TB, i *Instance, label string, args any) T {
	t.Helper()
	return Decode[T](t, i.Query(i.env.Accounts.Alice, label, args))
}

// RevertPayload fails the test unless res reverted and decodes the payload.
func RevertPayload[T any](t testing.TB, res *host.Result) T {
	t.Helper()
	require.Equal(t, host.StatusReverted, res.Status, "expected a revert, got %s: %v", res.Status, res.Error())
	var v T
	require.NoError(t, core.Decode(res.Output, &v))
	return v
}

// AssertEvents checks that recs are exactly the encodings of want, in order.
func AssertEvents(t testing.TB, recs []events.Record, want ...any) {
	t.Helper()
	require.Len(t, recs, len(want))
	for n, ev := range want {
		topics, data, err := contract.EncodeEvent(ev)
		require.NoError(t, err)
		require.Equal(t, topics, recs[n].Topics, "topics of event %d (%T)", n, ev)
		require.Equal(t, data, recs[n].Data, "data of event %d (%T)", n, ev)
	}
}
