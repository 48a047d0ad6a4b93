// ABOUTME: Registry of named custom bridges
// ABOUTME: Field declarations reference custom bridges by name

package bridge

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds custom bridges keyed by name
type Registry struct {
	mu      sync.RWMutex
	bridges map[string]FieldBridge
}

// NewRegistry creates an empty bridge registry
func NewRegistry() *Registry {
	return &Registry{bridges: make(map[string]FieldBridge)}
}

// Register adds a bridge under its own name
func (r *Registry) Register(b FieldBridge) error {
	if b == nil || b.Name() == "" {
		return fmt.Errorf("bridge: named bridge required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bridges[b.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateBridge, b.Name())
	}
	r.bridges[b.Name()] = b
	return nil
}

// Lookup returns the bridge registered under name
func (r *Registry) Lookup(name string) (FieldBridge, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bridges[name]
	return b, ok
}

// Names returns registered bridge names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.bridges))
	for name := range r.bridges {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
