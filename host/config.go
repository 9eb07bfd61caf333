package host

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/govm-net/contractkit/config"
	"github.com/govm-net/contractkit/events"
	"github.com/govm-net/contractkit/logging"
	"github.com/govm-net/contractkit/repository"
	"github.com/govm-net/contractkit/statedb"
	"github.com/govm-net/contractkit/wasm"

	_ "github.com/govm-net/contractkit/statedb/badgerdb"
	_ "github.com/govm-net/contractkit/statedb/leveldb"
	_ "github.com/govm-net/contractkit/statedb/memorydb"
	_ "github.com/govm-net/contractkit/statedb/sqlitedb"
)

// NewFromConfig opens the configured backends and builds a Host over them.
// Options are applied after the configured ones and take precedence.
func NewFromConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*Host, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}
	log := logger.Sugar()

	db, err := statedb.Open(statedb.Backend(cfg.Storage.Backend), map[string]any{"path": cfg.Storage.Path})
	if err != nil {
		return nil, err
	}

	var store events.Store = events.NewMemoryStore()
	if cfg.Events.Backend == "sqlite" {
		store, err = events.NewSQLiteStore(cfg.Events.Path)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("open event store: %w", err)
		}
	}

	base := []Option{
		WithLogger(log),
		WithEventStore(store),
		WithGasLimit(cfg.Gas.Limit),
		WithSchedule(cfg.Gas.Schedule),
		WithMaxCallDepth(cfg.Runtime.MaxCallDepth),
		// Sync fails on terminals and pipes; the error carries no information
		WithCloser(func() error { _ = logger.Sync(); return nil }),
	}

	if cfg.Wasm.CodeDir != "" {
		codes, err := repository.NewManager(cfg.Wasm.CodeDir)
		if err != nil {
			store.Close()
			db.Close()
			return nil, err
		}
		engine, err := wasm.NewEngine(ctx,
			wasm.WithCacheSize(cfg.Wasm.CacheSize),
			wasm.WithLogger(log.Named("wasm")))
		if err != nil {
			store.Close()
			db.Close()
			return nil, err
		}
		base = append(base,
			WithWasm(engine, codes),
			WithCloser(func() error { return engine.Close(context.Background()) }))
	}

	h := New(db, append(base, opts...)...)
	if cfg.Metrics.Enabled && h.metrics == nil {
		reg := h.registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		h.metrics = NewMetrics(reg)
	}

	h.log.Infow("host started",
		"storage", cfg.Storage.Backend,
		"events", cfg.Events.Backend,
		"wasm", cfg.Wasm.CodeDir != "",
		"gas_limit", cfg.Gas.Limit)
	return h, nil
}
