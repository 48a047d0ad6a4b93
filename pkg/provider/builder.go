// ABOUTME: Turns mapping declarations into type metadata
// ABOUTME: Resolves bridges, embedded prefixes, depth bounds and include paths

package provider

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/nainya/searchmeta/pkg/bridge"
	"github.com/nainya/searchmeta/pkg/mapping"
	"github.com/nainya/searchmeta/pkg/metadata"
)

// maxNesting stops runaway embedding chains regardless of declared depth
const maxNesting = 64

type builder struct {
	p               *MappingProvider
	root            reflect.Type
	imName          string
	bridges         bridge.Provider
	containedInOnly bool
}

// level is the embedding context a type is built in
type level struct {
	prefix    string
	depth     int
	unbounded bool
	path      []reflect.Type
	filters   []*includeFilter
}

func rootLevel(t reflect.Type) level {
	return level{
		depth:     metadata.UnlimitedDepth,
		unbounded: true,
		path:      []reflect.Type{t},
	}
}

// includeFilter keeps only the listed fields below an embedding
type includeFilter struct {
	prefix   string
	declared []string
	paths    map[string]bool // absolute field names
	matched  map[string]bool
}

func newIncludeFilter(prefix string, declared []string) *includeFilter {
	f := &includeFilter{
		prefix:   prefix,
		declared: declared,
		paths:    make(map[string]bool, len(declared)),
		matched:  make(map[string]bool, len(declared)),
	}
	for _, p := range declared {
		f.paths[prefix+p] = true
	}
	return f
}

func (f *includeFilter) permitsPrefix(prefix string) bool {
	for p := range f.paths {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func (f *includeFilter) unmatched() []string {
	var missing []string
	for _, p := range f.declared {
		if !f.matched[f.prefix+p] {
			missing = append(missing, p)
		}
	}
	sort.Strings(missing)
	return missing
}

func (l level) accepts(name string) bool {
	for _, f := range l.filters {
		if !f.paths[name] {
			return false
		}
	}
	for _, f := range l.filters {
		f.matched[name] = true
	}
	return true
}

func (l level) permitsPrefix(prefix string) bool {
	for _, f := range l.filters {
		if !f.permitsPrefix(prefix) {
			return false
		}
	}
	return true
}

func (b *builder) buildType(decl mapping.EntityDecl, lvl level) (*metadata.TypeMetadata, error) {
	md := &metadata.TypeMetadata{
		Type:            decl.Type,
		Name:            decl.Name,
		Indexed:         decl.Indexed,
		IndexName:       decl.IndexName,
		Boost:           decl.Boost,
		IndexManager:    b.imName,
		ContainedInOnly: b.containedInOnly,
	}
	isRoot := len(lvl.path) == 1

	if decl.IDProperty != "" {
		id, err := b.buildID(decl, lvl, isRoot)
		if err != nil {
			return nil, err
		}
		md.ID = id
	}

	for _, prop := range decl.Properties {
		if prop.Name == decl.IDProperty && len(prop.Fields) == 0 && prop.Embedded == nil && prop.ContainedIn == nil {
			continue
		}

		sf, ok := decl.Type.FieldByName(prop.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", metadata.ErrUnknownProperty, decl.Name, prop.Name)
		}
		valueType, container := elementOf(sf.Type)

		if len(prop.Fields) > 0 {
			pm, err := b.buildProperty(decl, prop, sf, valueType, lvl)
			if err != nil {
				return nil, err
			}
			if len(pm.Fields) > 0 {
				md.Properties = append(md.Properties, pm)
			}
		}

		if prop.Embedded != nil {
			em, err := b.buildEmbedded(decl, prop, sf, valueType, container, lvl)
			if err != nil {
				return nil, err
			}
			if em != nil {
				md.Embedded = append(md.Embedded, em)
			}
		}

		// Contained-in links only matter for the type being resolved
		if prop.ContainedIn != nil && isRoot {
			if _, ok := b.p.resolveDecl(valueType); !ok {
				return nil, fmt.Errorf("%w: %s.%s is contained in %s", metadata.ErrUnmappedTarget, decl.Name, prop.Name, metadata.TypeName(valueType))
			}
			md.ContainedIn = append(md.ContainedIn, &metadata.ContainedInMetadata{
				PropertyName: prop.Name,
				Index:        sf.Index,
				MaxDepth:     prop.ContainedIn.MaxDepth,
				TargetType:   valueType,
				Container:    container,
			})
		}
	}

	return md, nil
}

func (b *builder) buildID(decl mapping.EntityDecl, lvl level, isRoot bool) (*metadata.PropertyMetadata, error) {
	sf, ok := decl.Type.FieldByName(decl.IDProperty)
	if !ok {
		return nil, fmt.Errorf("%w: id %s.%s", metadata.ErrUnknownProperty, decl.Name, decl.IDProperty)
	}

	pm := &metadata.PropertyMetadata{Name: decl.IDProperty, Index: sf.Index}
	name := lvl.prefix + decl.IDProperty
	if !lvl.accepts(name) {
		return pm, nil
	}

	f := &metadata.DocumentFieldMetadata{
		Name:         name,
		RelativeName: decl.IDProperty,
		Property:     decl.IDProperty,
		Store:        metadata.StoreYes,
		Index:        true,
		Boost:        1,
		ID:           isRoot,
	}
	if err := b.attachBridge(f, "", metadata.Indirect(sf.Type)); err != nil {
		return nil, fmt.Errorf("id %s.%s: %w", decl.Name, decl.IDProperty, err)
	}
	pm.Fields = append(pm.Fields, f)
	return pm, nil
}

func (b *builder) buildProperty(decl mapping.EntityDecl, prop mapping.PropertyDecl, sf reflect.StructField, valueType reflect.Type, lvl level) (*metadata.PropertyMetadata, error) {
	pm := &metadata.PropertyMetadata{Name: prop.Name, Index: sf.Index}

	for _, fd := range prop.Fields {
		rel := fd.Name
		if rel == "" {
			rel = prop.Name
		}
		name := lvl.prefix + rel
		if !lvl.accepts(name) {
			continue
		}

		f := &metadata.DocumentFieldMetadata{
			Name:         name,
			RelativeName: rel,
			Property:     prop.Name,
			Store:        fd.Store,
			Index:        fd.Index,
			Analyze:      fd.Analyze,
			Norms:        fd.Norms,
			TermVector:   fd.TermVector,
			Boost:        fd.Boost,
			Sortable:     fd.Sortable,
			NullMarker:   fd.NullMarker,
		}
		if err := b.attachBridge(f, fd.Bridge, valueType); err != nil {
			return nil, fmt.Errorf("field %s of %s.%s: %w", name, decl.Name, prop.Name, err)
		}
		pm.Fields = append(pm.Fields, f)
	}

	return pm, nil
}

// attachBridge resolves the field bridge and validates numeric null markers.
// Contained-in metadata carries no bridges.
func (b *builder) attachBridge(f *metadata.DocumentFieldMetadata, custom string, valueType reflect.Type) error {
	if b.containedInOnly {
		return nil
	}

	var fb bridge.FieldBridge
	if custom != "" {
		var ok bool
		fb, ok = b.p.bridges.Lookup(custom)
		if !ok {
			return fmt.Errorf("%w: custom bridge %q is not registered", metadata.ErrNoBridge, custom)
		}
	} else {
		var err error
		fb, err = b.bridges.Guess(valueType)
		if err != nil {
			return err
		}
	}

	f.Bridge = fb
	f.Numeric = bridge.EncodingOf(fb)
	if f.NullMarker != "" && f.Numeric != bridge.NumericNone {
		if _, err := bridge.ParseNumeric(f.Numeric, f.NullMarker); err != nil {
			return fmt.Errorf("%w: %q for %s field", metadata.ErrInvalidNullMarker, f.NullMarker, f.Numeric)
		}
	}
	return nil
}

func (b *builder) buildEmbedded(decl mapping.EntityDecl, prop mapping.PropertyDecl, sf reflect.StructField, valueType reflect.Type, container metadata.ContainerKind, lvl level) (*metadata.EmbeddedTypeMetadata, error) {
	ed := prop.Embedded

	depth := childDepth(lvl.depth, ed.Depth)
	if depth <= 0 {
		return nil, nil
	}

	prefix := prop.Name + "."
	if ed.PrefixSet {
		prefix = ed.Prefix
	}
	prefix = lvl.prefix + prefix

	if !lvl.permitsPrefix(prefix) {
		return nil, nil
	}

	target, ok := b.p.resolveDecl(valueType)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s embeds %s", metadata.ErrUnmappedTarget, decl.Name, prop.Name, metadata.TypeName(valueType))
	}

	child := level{
		prefix:    prefix,
		depth:     depth,
		unbounded: lvl.unbounded && ed.Depth == mapping.UnboundedDepth && len(ed.IncludePaths) == 0,
		path:      append(append([]reflect.Type(nil), lvl.path...), valueType),
		filters:   lvl.filters,
	}

	if child.unbounded && onPath(lvl.path, valueType) {
		return nil, fmt.Errorf("%w: %s reached again through %s", metadata.ErrCircularEmbedding, metadata.TypeName(valueType), pathString(lvl.path, prefix))
	}
	if len(child.path) > maxNesting {
		return nil, fmt.Errorf("%w: nesting deeper than %d at %s", metadata.ErrCircularEmbedding, maxNesting, prefix)
	}

	var own *includeFilter
	if len(ed.IncludePaths) > 0 {
		own = newIncludeFilter(prefix, ed.IncludePaths)
		child.filters = append(append([]*includeFilter(nil), lvl.filters...), own)
	}

	inner, err := b.buildType(target, child)
	if err != nil {
		return nil, err
	}

	if own != nil {
		if missing := own.unmatched(); len(missing) > 0 {
			return nil, fmt.Errorf("%w: %s.%s: %s", metadata.ErrInvalidIncludePath, decl.Name, prop.Name, strings.Join(missing, ", "))
		}
	}

	return &metadata.EmbeddedTypeMetadata{
		TypeMetadata: inner,
		PropertyName: prop.Name,
		Index:        sf.Index,
		Prefix:       prefix,
		Depth:        depth,
		Container:    container,
		NullMarker:   ed.NullMarker,
		IncludePaths: append([]string(nil), ed.IncludePaths...),
	}, nil
}

// childDepth returns the remaining depth below an embedding
func childDepth(parent, declared int) int {
	if parent == metadata.UnlimitedDepth {
		if declared == mapping.UnboundedDepth {
			return metadata.UnlimitedDepth
		}
		return declared
	}
	remaining := parent - 1
	if declared != mapping.UnboundedDepth && declared < remaining {
		return declared
	}
	return remaining
}

// elementOf returns the value type a property holds and its container kind
func elementOf(t reflect.Type) (reflect.Type, metadata.ContainerKind) {
	t = metadata.Indirect(t)
	if bridge.IsScalar(t) {
		return t, metadata.ContainerObject
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return metadata.Indirect(t.Elem()), metadata.ContainerSlice
	case reflect.Map:
		return metadata.Indirect(t.Elem()), metadata.ContainerMap
	}
	return t, metadata.ContainerObject
}

func onPath(path []reflect.Type, t reflect.Type) bool {
	for _, p := range path {
		if p == t {
			return true
		}
	}
	return false
}

func pathString(path []reflect.Type, prefix string) string {
	names := make([]string, 0, len(path))
	for _, t := range path {
		names = append(names, t.Name())
	}
	return strings.Join(names, " -> ") + " (" + strings.TrimSuffix(prefix, ".") + ")"
}
