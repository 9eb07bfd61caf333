package host_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/contractkit/config"
	"github.com/govm-net/contractkit/events"
	"github.com/govm-net/contractkit/host"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newHost(t, host.WithMetrics(host.NewMetrics(reg)))
	addr := deploy(t, h, "kv", kv, nil)

	call(t, h, addr, []byte("wa"))
	call(t, h, addr, []byte("rb"))
	_, err := h.Query(context.Background(), host.CallRequest{Caller: alice, Target: addr, Input: []byte("wc")})
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(reg, "contractkit_invocations_total")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	families, err := reg.Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if mf.GetName() != "contractkit_invocations_total" {
				continue
			}
			labels := ""
			for _, lp := range m.GetLabel() {
				labels += lp.GetName() + "=" + lp.GetValue() + ";"
			}
			counts[labels] = m.GetCounter().GetValue()
		}
	}
	// the query's event is not committed
	assert.Equal(t, float64(1), counterValue(t, reg, "contractkit_events_total"))
	assert.Equal(t, map[string]float64{
		"kind=instantiate;status=success;": 1,
		"kind=call;status=success;":        1,
		"kind=call;status=reverted;":       1,
		"kind=query;status=success;":       1,
	}, counts)
}

// counterValue sums the counters of a metric family.
func counterValue(t *testing.T, g prometheus.Gatherer, name string) float64 {
	t.Helper()
	families, err := g.Gather()
	require.NoError(t, err)
	var sum float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			sum += m.GetCounter().GetValue()
		}
	}
	return sum
}

func TestNewFromConfig(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Storage.Backend = "sqlite"
	cfg.Storage.Path = filepath.Join(dir, "state.db")
	cfg.Events.Backend = "sqlite"
	cfg.Events.Path = filepath.Join(dir, "events.db")
	cfg.Wasm.CodeDir = filepath.Join(dir, "code")
	cfg.Log.Level = "error"
	cfg.Metrics.Enabled = true

	reg := prometheus.NewRegistry()
	h, err := host.NewFromConfig(ctx, cfg, host.WithRegisterer(reg))
	require.NoError(t, err)

	addr := deploy(t, h, "kv", kv, []byte("v1"))
	require.True(t, call(t, h, addr, []byte("wv2")).Succeeded())
	fp, err := h.StateFingerprint(addr)
	require.NoError(t, err)

	_, err = h.UploadWasm(ctx, []byte("not wasm"))
	assert.Error(t, err)
	assert.Equal(t, float64(1), counterValue(t, reg, "contractkit_events_total"))
	require.NoError(t, h.Close())

	// State and events survive a restart; natives are registered again.
	h, err = host.NewFromConfig(ctx, cfg)
	require.NoError(t, err)
	defer h.Close()
	_, err = h.RegisterNative("kv", kv)
	require.NoError(t, err)

	again, err := h.StateFingerprint(addr)
	require.NoError(t, err)
	assert.Equal(t, fp, again)
	assert.Equal(t, []byte("v2"), call(t, h, addr, nil).Output)

	recs, err := h.Events().Query(events.Filter{Contract: &addr})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, []byte("v2"), recs[0].Data)
}

func TestNewFromConfigRejectsInvalid(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "tape"
	_, err := host.NewFromConfig(context.Background(), cfg)
	assert.Error(t, err)
}

func TestUploadWasmDisabled(t *testing.T) {
	h := newHost(t)
	_, err := h.UploadWasm(context.Background(), []byte{0x00, 0x61, 0x73, 0x6d})
	assert.ErrorIs(t, err, host.ErrWasmDisabled)
}
