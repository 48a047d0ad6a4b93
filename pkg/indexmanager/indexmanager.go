// ABOUTME: Index-manager type descriptors used to key metadata lookups
// ABOUTME: Each binding strategy carries the bridge provider it indexes with

package indexmanager

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/nainya/searchmeta/pkg/bridge"
)

var (
	// ErrUnknownType indicates no index-manager type is registered under a name
	ErrUnknownType = errors.New("indexmanager: unknown type")

	// ErrDuplicateType indicates a name was registered twice
	ErrDuplicateType = errors.New("indexmanager: duplicate type")
)

// Type identifies an index-manager binding strategy. Metadata built for
// one Type carries the field bridges of that Type's provider.
type Type interface {
	Name() string
	BridgeProvider() bridge.Provider
}

type binding struct {
	name    string
	bridges bridge.Provider
}

func (b *binding) Name() string                   { return b.name }
func (b *binding) BridgeProvider() bridge.Provider { return b.bridges }
func (b *binding) String() string                 { return b.name }

// New creates an index-manager type
func New(name string, bridges bridge.Provider) Type {
	return &binding{name: name, bridges: bridges}
}

var (
	// Local is the directory-based binding
	Local = New("local", bridge.LocalProvider())

	// Elasticsearch is the remote Elasticsearch binding
	Elasticsearch = New("elasticsearch", bridge.ElasticsearchProvider())
)

// Registry resolves index-manager types by name
type Registry struct {
	mu    sync.RWMutex
	types map[string]Type
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]Type)}
}

// DefaultRegistry returns a registry holding the built-in types
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(Local)
	_ = r.Register(Elasticsearch)
	return r
}

// Register adds t under its name
func (r *Registry) Register(t Type) error {
	if t == nil || t.Name() == "" {
		return fmt.Errorf("indexmanager: named type required")
	}
	if t.BridgeProvider() == nil {
		return fmt.Errorf("indexmanager: type %s has no bridge provider", t.Name())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[t.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateType, t.Name())
	}
	r.types[t.Name()] = t
	return nil
}

// Lookup returns the type registered under name
func (r *Registry) Lookup(name string) (Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
	return t, nil
}

// Names returns registered names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
