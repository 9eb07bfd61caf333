package events

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/contractkit/core"
)

func setupStores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := NewSQLiteStore(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sq,
	}
}

func sampleRecords() []Record {
	token := core.AccountIdFromSeed("token")
	other := core.AccountIdFromSeed("other")
	transfer := core.HashBytes([]byte("Transfer"))
	approval := core.HashBytes([]byte("Approval"))
	alice := core.HashBytes([]byte("alice"))
	return []Record{
		{BlockNumber: 1, Contract: token, Topics: []core.Hash{transfer, alice}, Data: []byte{1}},
		{BlockNumber: 2, Contract: token, Topics: []core.Hash{approval, alice}, Data: []byte{2}},
		{BlockNumber: 3, Contract: other, Topics: []core.Hash{transfer}, Data: []byte{}},
	}
}

func TestStores(t *testing.T) {
	for name, store := range setupStores(t) {
		t.Run(name, func(t *testing.T) {
			recs, err := store.Append(sampleRecords())
			require.NoError(t, err)
			require.Len(t, recs, 3)
			assert.Equal(t, uint64(1), recs[0].Seq)
			assert.Equal(t, uint64(3), recs[2].Seq)

			// Test unfiltered query keeps commit order
			all, err := store.Query(Filter{})
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, recs[1].Topics, all[1].Topics)
			assert.Equal(t, []byte{2}, all[1].Data)

			// Test contract filter
			token := core.AccountIdFromSeed("token")
			got, err := store.Query(Filter{Contract: &token})
			require.NoError(t, err)
			assert.Len(t, got, 2)

			// Test topic filter
			transfer := core.HashBytes([]byte("Transfer"))
			got, err = store.Query(Filter{Topic: &transfer})
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, uint64(3), got[1].BlockNumber)

			// Test block range
			got, err = store.Query(Filter{FromBlock: 2, ToBlock: 2})
			require.NoError(t, err)
			require.Len(t, got, 1)

			// Sequence numbers continue across appends
			more, err := store.Append(sampleRecords()[:1])
			require.NoError(t, err)
			assert.Equal(t, uint64(4), more[0].Seq)

			// Test truncate drops the tail and frees its sequence numbers
			require.NoError(t, store.Truncate(2))
			all, err = store.Query(Filter{})
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, uint64(2), all[1].Seq)
			require.NoError(t, store.Truncate(10))
			more, err = store.Append(sampleRecords()[2:])
			require.NoError(t, err)
			assert.Equal(t, uint64(3), more[0].Seq)
		})
	}
}

func TestBus(t *testing.T) {
	bus := NewBus()
	recs := sampleRecords()
	token := core.AccountIdFromSeed("token")
	transfer := core.HashBytes([]byte("Transfer"))

	var all, byContract, byTopic []Record
	require.NoError(t, bus.SubscribeAll(func(r Record) { all = append(all, r) }))
	require.NoError(t, bus.SubscribeContract(token, func(r Record) { byContract = append(byContract, r) }))
	require.NoError(t, bus.SubscribeTopic(transfer, func(r Record) { byTopic = append(byTopic, r) }))

	for _, r := range recs {
		bus.Publish(r)
	}

	assert.Len(t, all, 3)
	assert.Len(t, byContract, 2)
	require.Len(t, byTopic, 2)
	assert.Equal(t, recs[2].Contract, byTopic[1].Contract)
}

func TestRecordSignature(t *testing.T) {
	_, ok := Record{}.Signature()
	assert.False(t, ok)

	r := sampleRecords()[0]
	sig, ok := r.Signature()
	require.True(t, ok)
	assert.Equal(t, core.HashBytes([]byte("Transfer")), sig)
}
