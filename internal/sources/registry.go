package sources

import (
	"fmt"
	"sort"
	"sync"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
)

// Registry holds the configured adapters keyed by source name.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	adapters map[domain.SourceName]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[domain.SourceName]Adapter),
	}
}

// Register adds an adapter. Registering a second adapter under the same name is an error.
func (r *Registry) Register(a Adapter) error {
	name := a.Name()
	if !name.IsValid() {
		return fmt.Errorf("%w: adapter name %q", domain.ErrInvalidInput, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("%w: adapter %q already registered", domain.ErrInvalidInput, name)
	}
	r.adapters[name] = a
	return nil
}

// MustRegister is Register for static wiring; it panics on error.
func (r *Registry) MustRegister(adapters ...Adapter) {
	for _, a := range adapters {
		if err := r.Register(a); err != nil {
			panic(err)
		}
	}
}

// Get returns the adapter registered under name, or nil.
func (r *Registry) Get(name domain.SourceName) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[name]
}

// Names returns the registered source names, sorted.
func (r *Registry) Names() []domain.SourceName {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]domain.SourceName, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Ordered returns the registered adapters in priority order. Names in priority with no
// registered adapter are returned in missing; duplicates in priority are ignored.
func (r *Registry) Ordered(priority []domain.SourceName) (ordered []Adapter, missing []domain.SourceName) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[domain.SourceName]struct{}, len(priority))
	for _, name := range priority {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		if a, ok := r.adapters[name]; ok {
			ordered = append(ordered, a)
		} else {
			missing = append(missing, name)
		}
	}
	return ordered, missing
}
