package datasource

import (
	"sort"
	"sync"

	"github.com/ekaya-inc/querypad/pkg/apperrors"
	"github.com/ekaya-inc/querypad/pkg/models"
)

// DriverInfo describes a registered driver for UI discovery.
type DriverInfo struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Persistent bool        `json:"supportsPersistent"`
	Fields     []FieldSpec `json:"fields"`
}

// Adapter is a driver with its capabilities resolved at registration time.
type Adapter struct {
	Driver Driver

	// Persistent is nil when the driver only supports one-shot execution.
	Persistent PersistentDriver
}

// SupportsPersistent reports whether the driver can hold a session open.
func (a Adapter) SupportsPersistent() bool {
	return a.Persistent != nil
}

// Registry maps driver ids to adapters. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds or replaces a driver. The persistent capability is resolved once here.
func (r *Registry) Register(d Driver) {
	a := Adapter{Driver: d}
	if p, ok := d.(PersistentDriver); ok {
		a.Persistent = p
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[d.ID()] = a
}

// Lookup returns the adapter for a driver id.
// Unknown ids are a validation error: the connection names a driver that is not compiled in.
func (r *Registry) Lookup(id string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[id]
	if !ok {
		return Adapter{}, apperrors.NewValidationError("unsupported driver %q", id)
	}
	return a, nil
}

// List returns info for all registered drivers, sorted by id.
func (r *Registry) List() []DriverInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]DriverInfo, 0, len(r.adapters))
	for _, a := range r.adapters {
		result = append(result, DriverInfo{
			ID:         a.Driver.ID(),
			Name:       a.Driver.Name(),
			Persistent: a.SupportsPersistent(),
			Fields:     a.Driver.Fields(),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// ValidateConnection dispatches to the driver named by cfg.Driver.
func (r *Registry) ValidateConnection(cfg models.ConnectionConfig) (models.ConnectionConfig, error) {
	if cfg.Driver == "" {
		return cfg, apperrors.NewValidationError("driver is required")
	}
	if cfg.Name == "" {
		return cfg, apperrors.NewValidationError("name is required")
	}
	a, err := r.Lookup(cfg.Driver)
	if err != nil {
		return cfg, err
	}
	return a.Driver.ValidateConnection(cfg)
}

var defaultRegistry = NewRegistry()

// Register is called by each driver package's init() function.
func Register(d Driver) {
	defaultRegistry.Register(d)
}

// Default returns the registry populated by driver packages' init().
func Default() *Registry {
	return defaultRegistry
}
