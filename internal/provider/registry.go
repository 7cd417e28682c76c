package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tjfontaine/promptgate/internal/domain"
)

// Factory builds a generator bound to one model identifier.
type Factory func(model string) (domain.Generator, error)

// Registry maps provider families to generator factories.
// Tests replace factories to inject fake backends.
type Registry struct {
	mu        sync.RWMutex
	factories map[Family]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[Family]Factory)}
}

// Register sets the factory for family, replacing any previous one.
// Panics if f is nil.
func (r *Registry) Register(family Family, f Factory) {
	if f == nil {
		panic(fmt.Sprintf("provider factory %q must not be nil", family))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[family] = f
}

// IsRegistered returns true if family has a factory.
func (r *Registry) IsRegistered(family Family) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[family]
	return ok
}

// Families returns registered families sorted by name.
func (r *Registry) Families() []Family {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Family, 0, len(r.factories))
	for f := range r.factories {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NewGenerator builds a generator for model using the family's factory.
// A family with no factory yields a *domain.ConfigurationError.
func (r *Registry) NewGenerator(family Family, model string) (domain.Generator, error) {
	r.mu.RLock()
	f, ok := r.factories[family]
	r.mu.RUnlock()

	if !ok {
		return nil, &domain.ConfigurationError{
			Component: string(family),
			Reason:    "no provider factory registered",
		}
	}
	return f(model)
}
