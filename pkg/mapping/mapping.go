// ABOUTME: Programmatic search mapping declarations
// ABOUTME: Entities, properties, fields, embeddings and contained-in links

package mapping

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/nainya/searchmeta/pkg/metadata"
)

// SearchMapping is the registry of declared entity mappings. It is safe for
// concurrent use; every mutation bumps Version.
type SearchMapping struct {
	mu       *lockedState
	entities map[reflect.Type]*EntityMapping
	order    []reflect.Type
}

// EntityMapping declares how one type is mapped
type EntityMapping struct {
	sm         *SearchMapping
	typ        reflect.Type
	name       string
	indexed    bool
	indexName  string
	boost      float64
	idProperty string
	properties []*PropertyMapping
}

// PropertyMapping declares the search behavior of one struct property
type PropertyMapping struct {
	entity      *EntityMapping
	name        string
	fields      []FieldDecl
	embedded    *EmbeddedDecl
	containedIn *ContainedInDecl
}

// EntityDecl is an immutable snapshot of an entity declaration
type EntityDecl struct {
	Type       reflect.Type
	Name       string
	Indexed    bool
	IndexName  string
	Boost      float64
	IDProperty string
	Properties []PropertyDecl
}

// PropertyDecl is an immutable snapshot of a property declaration
type PropertyDecl struct {
	Name        string
	Fields      []FieldDecl
	Embedded    *EmbeddedDecl
	ContainedIn *ContainedInDecl
}

// NewSearchMapping creates an empty mapping
func NewSearchMapping() *SearchMapping {
	return &SearchMapping{
		mu:       &lockedState{},
		entities: make(map[reflect.Type]*EntityMapping),
	}
}

// Entity declares (or returns the existing declaration of) the type of
// prototype. Pointers are dereferenced.
func (sm *SearchMapping) Entity(prototype any) *EntityMapping {
	return sm.EntityType(reflect.TypeOf(prototype))
}

// EntityType declares (or returns the existing declaration of) t
func (sm *SearchMapping) EntityType(t reflect.Type) *EntityMapping {
	t = metadata.Indirect(t)

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if em, ok := sm.entities[t]; ok {
		return em
	}

	em := &EntityMapping{sm: sm, typ: t, boost: 1}
	if t != nil {
		em.name = t.Name()
	}
	sm.entities[t] = em
	sm.order = append(sm.order, t)
	sm.mu.bump()
	return em
}

// Version changes whenever the mapping is mutated
func (sm *SearchMapping) Version() uint64 {
	return sm.mu.current()
}

// Lookup returns the declaration of t
func (sm *SearchMapping) Lookup(t reflect.Type) (EntityDecl, bool) {
	t = metadata.Indirect(t)

	sm.mu.RLock()
	defer sm.mu.RUnlock()

	em, ok := sm.entities[t]
	if !ok {
		return EntityDecl{}, false
	}
	return em.snapshot(), true
}

// LookupByName returns the type whose entity name is name
func (sm *SearchMapping) LookupByName(name string) (reflect.Type, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for _, t := range sm.order {
		if sm.entities[t].name == name {
			return t, true
		}
	}
	return nil, false
}

// Types returns declared types in declaration order
func (sm *SearchMapping) Types() []reflect.Type {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	out := make([]reflect.Type, len(sm.order))
	copy(out, sm.order)
	return out
}

// Validate checks every declaration against its Go type
func (sm *SearchMapping) Validate() error {
	var errs []error
	names := make(map[string]reflect.Type)

	for _, t := range sm.Types() {
		decl, _ := sm.Lookup(t)
		errs = append(errs, validateEntity(decl)...)

		if other, dup := names[decl.Name]; dup {
			errs = append(errs, fmt.Errorf("mapping: entity name %q used by %s and %s", decl.Name, other, t))
		}
		names[decl.Name] = t
	}

	return errors.Join(errs...)
}

func validateEntity(decl EntityDecl) []error {
	t := decl.Type
	if t == nil || t.Kind() != reflect.Struct {
		return []error{fmt.Errorf("mapping: %v is not a struct type", t)}
	}

	var errs []error
	if decl.Indexed && decl.IDProperty == "" {
		errs = append(errs, fmt.Errorf("%w in indexed type %s", metadata.ErrMissingDocumentID, t))
	}
	if decl.IDProperty != "" {
		if err := checkProperty(t, decl.IDProperty); err != nil {
			errs = append(errs, err)
		}
	}

	for _, p := range decl.Properties {
		if err := checkProperty(t, p.Name); err != nil {
			errs = append(errs, err)
			continue
		}
		if p.Embedded != nil && p.Embedded.Depth < UnboundedDepth {
			errs = append(errs, fmt.Errorf("mapping: %s.%s: negative depth %d", t.Name(), p.Name, p.Embedded.Depth))
		}
		if p.ContainedIn != nil && p.ContainedIn.MaxDepth < 0 {
			errs = append(errs, fmt.Errorf("mapping: %s.%s: negative max depth %d", t.Name(), p.Name, p.ContainedIn.MaxDepth))
		}
		if len(p.Fields) == 0 && p.Embedded == nil && p.ContainedIn == nil {
			errs = append(errs, fmt.Errorf("mapping: %s.%s declares nothing", t.Name(), p.Name))
		}
	}
	return errs
}

func checkProperty(t reflect.Type, name string) error {
	sf, ok := t.FieldByName(name)
	if !ok {
		return fmt.Errorf("%w %s.%s", metadata.ErrUnknownProperty, t.Name(), name)
	}
	if !sf.IsExported() {
		return fmt.Errorf("%w %s.%s: not exported", metadata.ErrUnknownProperty, t.Name(), name)
	}
	return nil
}

// Name sets the entity name (defaults to the Go type name)
func (em *EntityMapping) Name(name string) *EntityMapping {
	em.sm.mu.Lock()
	defer em.sm.mu.Unlock()
	em.name = name
	em.sm.mu.bump()
	return em
}

// Indexed gives the entity its own index. An empty indexName defaults to
// the entity name.
func (em *EntityMapping) Indexed(indexName string) *EntityMapping {
	em.sm.mu.Lock()
	defer em.sm.mu.Unlock()
	em.indexed = true
	em.indexName = indexName
	em.sm.mu.bump()
	return em
}

// Boost sets the document boost
func (em *EntityMapping) Boost(b float64) *EntityMapping {
	em.sm.mu.Lock()
	defer em.sm.mu.Unlock()
	em.boost = b
	em.sm.mu.bump()
	return em
}

// ID declares the document id property
func (em *EntityMapping) ID(property string) *EntityMapping {
	em.sm.mu.Lock()
	defer em.sm.mu.Unlock()
	em.idProperty = property
	em.sm.mu.bump()
	return em
}

// Property declares (or returns the existing declaration of) a property
func (em *EntityMapping) Property(name string) *PropertyMapping {
	em.sm.mu.Lock()
	defer em.sm.mu.Unlock()

	for _, p := range em.properties {
		if p.name == name {
			return p
		}
	}
	p := &PropertyMapping{entity: em, name: name}
	em.properties = append(em.properties, p)
	em.sm.mu.bump()
	return p
}

func (em *EntityMapping) snapshot() EntityDecl {
	decl := EntityDecl{
		Type:       em.typ,
		Name:       em.name,
		Indexed:    em.indexed,
		IndexName:  em.indexName,
		Boost:      em.boost,
		IDProperty: em.idProperty,
		Properties: make([]PropertyDecl, 0, len(em.properties)),
	}
	if decl.Indexed && decl.IndexName == "" {
		decl.IndexName = decl.Name
	}

	for _, p := range em.properties {
		pd := PropertyDecl{
			Name:   p.name,
			Fields: append([]FieldDecl(nil), p.fields...),
		}
		if p.embedded != nil {
			e := *p.embedded
			e.IncludePaths = append([]string(nil), p.embedded.IncludePaths...)
			pd.Embedded = &e
		}
		if p.containedIn != nil {
			c := *p.containedIn
			pd.ContainedIn = &c
		}
		decl.Properties = append(decl.Properties, pd)
	}
	return decl
}

// Field adds a document field for the property
func (pm *PropertyMapping) Field(opts ...FieldOption) *PropertyMapping {
	f := defaultField()
	for _, opt := range opts {
		opt(&f)
	}

	pm.entity.sm.mu.Lock()
	defer pm.entity.sm.mu.Unlock()
	pm.fields = append(pm.fields, f)
	pm.entity.sm.mu.bump()
	return pm
}

// IndexedEmbedded indexes the property's type inside the owning document
func (pm *PropertyMapping) IndexedEmbedded(opts ...EmbeddedOption) *PropertyMapping {
	e := EmbeddedDecl{Depth: UnboundedDepth}
	for _, opt := range opts {
		opt(&e)
	}

	pm.entity.sm.mu.Lock()
	defer pm.entity.sm.mu.Unlock()
	pm.embedded = &e
	pm.entity.sm.mu.bump()
	return pm
}

// ContainedIn marks the property as pointing at entities that embed this one
func (pm *PropertyMapping) ContainedIn(opts ...ContainedInOption) *PropertyMapping {
	c := ContainedInDecl{}
	for _, opt := range opts {
		opt(&c)
	}

	pm.entity.sm.mu.Lock()
	defer pm.entity.sm.mu.Unlock()
	pm.containedIn = &c
	pm.entity.sm.mu.bump()
	return pm
}

// Property continues with another property of the same entity
func (pm *PropertyMapping) Property(name string) *PropertyMapping {
	return pm.entity.Property(name)
}

// Entity returns the owning entity declaration
func (pm *PropertyMapping) Entity() *EntityMapping {
	return pm.entity
}
