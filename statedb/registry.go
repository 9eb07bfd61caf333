package statedb

import (
	"fmt"
	"sort"
	"sync"
)

// Backend names a Database implementation.
type Backend string

const (
	// Memory is the in-process map backend.
	Memory Backend = "memory"
	// LevelDB is the goleveldb backend.
	LevelDB Backend = "leveldb"
	// Badger is the badger v3 backend.
	Badger Backend = "badger"
	// SQLite is the gorm/sqlite backend.
	SQLite Backend = "sqlite"
)

// Constructor opens a Database from backend specific parameters.
type Constructor func(params map[string]any) (Database, error)

// Registry manages Database implementations by name.
type Registry interface {
	// Register adds a backend. Registering a name twice fails.
	Register(b Backend, constructor Constructor) error
	// Open returns a new Database of the given backend.
	Open(b Backend, params map[string]any) (Database, error)
	// ListRegistered returns the registered backends in name order.
	ListRegistered() []Backend
}

type registry struct {
	mu       sync.RWMutex
	backends map[Backend]Constructor
}

var defaultRegistry Registry = &registry{backends: make(map[Backend]Constructor)}

// GetRegistry returns the global Registry instance.
func GetRegistry() Registry {
	return defaultRegistry
}

func (r *registry) Register(b Backend, constructor Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[b]; exists {
		return fmt.Errorf("backend %s already registered", b)
	}
	r.backends[b] = constructor
	return nil
}

func (r *registry) Open(b Backend, params map[string]any) (Database, error) {
	r.mu.RLock()
	constructor, exists := r.backends[b]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("backend %s not registered", b)
	}
	db, err := constructor(params)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", b, err)
	}
	return db, nil
}

func (r *registry) ListRegistered() []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Backend, 0, len(r.backends))
	for b := range r.backends {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Register adds a backend to the global registry.
func Register(b Backend, constructor Constructor) error {
	return GetRegistry().Register(b, constructor)
}

// Open opens a Database from the global registry. An empty name means Memory.
func Open(b Backend, params map[string]any) (Database, error) {
	if b == "" {
		b = Memory
	}
	return GetRegistry().Open(b, params)
}

// ListRegistered returns the backends of the global registry.
func ListRegistered() []Backend {
	return GetRegistry().ListRegistered()
}

// StringParam reads a string parameter, returning def when absent.
func StringParam(params map[string]any, name, def string) string {
	if v, ok := params[name].(string); ok && v != "" {
		return v
	}
	return def
}
