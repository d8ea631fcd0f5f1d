package hxstream

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the components and stores known to an Engine.
//
// Registration happens at startup; lookups happen on every render and are
// safe to run concurrently with each other.
type Registry struct {
	mu         sync.RWMutex
	components map[string]*Descriptor
	stores     map[string]Store
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		components: make(map[string]*Descriptor),
		stores:     make(map[string]Store),
	}
}

// Add registers component descriptors.
// Panics on an empty name, a missing template or a name collision.
func (reg *Registry) Add(descs ...*Descriptor) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for _, d := range descs {
		if d == nil || d.name == "" {
			panic("hxstream: component must have a name")
		}
		if d.template == nil {
			panic(fmt.Sprintf("hxstream: component %q has no template", d.name))
		}
		if _, exists := reg.components[d.name]; exists {
			panic(fmt.Sprintf("hxstream: component name collision for %q", d.name))
		}
		reg.components[d.name] = d
	}
}

// AddStore registers stores. Panics on an empty name or a name collision.
func (reg *Registry) AddStore(stores ...Store) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for _, s := range stores {
		name := s.Name()
		if name == "" {
			panic("hxstream: store must have a name")
		}
		if _, exists := reg.stores[name]; exists {
			panic(fmt.Sprintf("hxstream: store name collision for %q", name))
		}
		reg.stores[name] = s
	}
}

// Component resolves a tag name such as "cat-news", "CAT-NEWS" or "head" to
// its descriptor.
func (reg *Registry) Component(tagName string) (*Descriptor, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	d, ok := reg.components[canonicalName(tagName)]
	return d, ok
}

// Store returns the store registered under name.
func (reg *Registry) Store(name string) (Store, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	s, ok := reg.stores[name]
	return s, ok
}

// ComponentNames returns the registered component names, sorted.
func (reg *Registry) ComponentNames() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	names := make([]string, 0, len(reg.components))
	for name := range reg.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// storeList returns a snapshot of the registered stores.
func (reg *Registry) storeList() []Store {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]Store, 0, len(reg.stores))
	for _, s := range reg.stores {
		out = append(out, s)
	}
	return out
}
