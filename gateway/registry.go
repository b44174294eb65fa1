package gateway

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages all gateway implementations
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry creates a new gateway registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a gateway factory to the registry
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get retrieves a gateway factory by name
func (r *Registry) Get(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.factories[name]
	if !exists {
		return nil, fmt.Errorf("gateway '%s' is not registered", name)
	}
	return factory, nil
}

// New creates an uninitialized gateway instance
func (r *Registry) New(name string) (Gateway, error) {
	factory, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return factory(), nil
}

// Names returns the sorted names of all registered gateways
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the registry adapters add themselves to in init()
var DefaultRegistry = NewRegistry()

// Register registers a gateway with the default registry
func Register(name string, factory Factory) {
	DefaultRegistry.Register(name, factory)
}

// New creates a gateway from the default registry
func New(name string) (Gateway, error) {
	return DefaultRegistry.New(name)
}
