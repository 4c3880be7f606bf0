package datasource

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/apperrors"
)

// AdapterInfo describes a registered dialect adapter.
type AdapterInfo struct {
	Dialect     Dialect `json:"dialect"`
	DisplayName string  `json:"display_name"`
	Description string  `json:"description"`
	// Introspection is true when the adapter can reflect schemas.
	Introspection bool `json:"introspection"`
}

// OpenFunc opens a connection pool from a flattened option map.
type OpenFunc func(ctx context.Context, options map[string]any, settings PoolSettings) (PoolConnector, error)

// AdapterRegistration contains info plus factories for one dialect.
type AdapterRegistration struct {
	Info AdapterInfo
	Open OpenFunc
	// NewIntrospector is nil for dialects that can be connected to but not
	// introspected.
	NewIntrospector func(schema string) SchemaIntrospector
}

var (
	registryMu sync.RWMutex
	registry   = make(map[Dialect]AdapterRegistration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg AdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	reg.Info.Introspection = reg.NewIntrospector != nil
	registry[reg.Info.Dialect] = reg
}

// RegisteredAdapters returns info for all registered adapters sorted by dialect.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Dialect < result[j].Dialect })
	return result
}

func lookup(d Dialect) (AdapterRegistration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	reg, ok := registry[d]
	return reg, ok
}

// IntrospectorFor returns the introspector for d bound to schema. Dialects
// without one fail with apperrors.ErrUnsupportedDialect.
func IntrospectorFor(d Dialect, schema string) (SchemaIntrospector, error) {
	reg, ok := lookup(d)
	if !ok || reg.NewIntrospector == nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedDialect, d)
	}
	return reg.NewIntrospector(schema), nil
}

// Open opens a pool for d through its registered adapter.
func Open(ctx context.Context, d Dialect, options map[string]any, settings PoolSettings) (PoolConnector, error) {
	reg, ok := lookup(d)
	if !ok || reg.Open == nil {
		return nil, fmt.Errorf("%w: %s (not compiled in)", apperrors.ErrUnsupportedDialect, d)
	}
	return reg.Open(ctx, options, settings)
}
