// Package registry holds the set of available verification sources and
// capability providers. Entries are registered at process start and are
// read-only afterwards.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"truthengine/internal/logging"
	"truthengine/internal/types"
)

// ErrSourceUnavailable is returned when a named source is requested but
// not registered. Fatal to that source only, never to the session.
var ErrSourceUnavailable = fmt.Errorf("source unavailable")

// Registry indexes verification sources by name and capability providers
// by kind.
type Registry struct {
	mu        sync.RWMutex
	sources   map[string]types.Source
	providers map[types.CapabilityKind][]types.CapabilityProvider
	sealed    bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		sources:   make(map[string]types.Source),
		providers: make(map[types.CapabilityKind][]types.CapabilityProvider),
	}
}

// Register adds a source. Capability providers are additionally indexed
// under their kind (multiple providers per kind fan out at plan time).
// Registration after Seal is a programming error.
func (r *Registry) Register(src types.Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("registry is sealed")
	}

	desc := src.Descriptor()
	if desc.Name == "" {
		return fmt.Errorf("source has no name")
	}
	if !desc.Tier.Valid() {
		return fmt.Errorf("source %s has invalid tier %d", desc.Name, desc.Tier)
	}
	if _, exists := r.sources[desc.Name]; exists {
		return fmt.Errorf("source %s already registered", desc.Name)
	}

	r.sources[desc.Name] = src
	if provider, ok := src.(types.CapabilityProvider); ok {
		kind := provider.Kind()
		r.providers[kind] = append(r.providers[kind], provider)
	}

	logging.Registry("registered source %s (tier %d, kind %s)", desc.Name, desc.Tier, desc.Kind)
	return nil
}

// Seal marks the registry read-only. Called once after startup wiring.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Get returns the source registered under name.
func (r *Registry) Get(name string) (types.Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, name)
	}
	return src, nil
}

// List returns every registered source descriptor in stable name order.
func (r *Registry) List() []types.VerificationSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.VerificationSource, 0, len(r.sources))
	for _, src := range r.sources {
		out = append(out, src.Descriptor())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Traditional returns the traditional (non-capability) sources in stable
// name order.
func (r *Registry) Traditional() []types.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Source, 0, len(r.sources))
	for _, src := range r.sources {
		if src.Descriptor().Kind == types.SourceTraditional {
			out = append(out, src)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Descriptor().Name < out[j].Descriptor().Name
	})
	return out
}

// Providers returns every provider registered for the given kind.
func (r *Registry) Providers(kind types.CapabilityKind) []types.CapabilityProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.CapabilityProvider, len(r.providers[kind]))
	copy(out, r.providers[kind])
	return out
}

// Capabilities returns a count of providers per capability kind.
func (r *Registry) Capabilities() map[types.CapabilityKind]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[types.CapabilityKind]int, len(r.providers))
	for kind, list := range r.providers {
		out[kind] = len(list)
	}
	return out
}
