// ABOUTME: Search metadata data model for mapped types
// ABOUTME: Describes document fields, embedded types and contained-in links

package metadata

import (
	"math"
	"reflect"
	"sort"

	"github.com/nainya/searchmeta/pkg/bridge"
)

// UnlimitedDepth marks an embedding without a depth bound
const UnlimitedDepth = math.MaxInt

// Store controls whether a field value is stored in the index
type Store int

const (
	StoreNo Store = iota
	StoreYes
	StoreCompress
)

func (s Store) String() string {
	switch s {
	case StoreYes:
		return "yes"
	case StoreCompress:
		return "compress"
	default:
		return "no"
	}
}

// TermVector controls term vector storage for a field
type TermVector int

const (
	TermVectorNo TermVector = iota
	TermVectorYes
	TermVectorWithPositions
	TermVectorWithOffsets
	TermVectorWithPositionOffsets
)

func (tv TermVector) String() string {
	switch tv {
	case TermVectorYes:
		return "yes"
	case TermVectorWithPositions:
		return "with_positions"
	case TermVectorWithOffsets:
		return "with_offsets"
	case TermVectorWithPositionOffsets:
		return "with_position_offsets"
	default:
		return "no"
	}
}

// ContainerKind describes how a property holds its values
type ContainerKind int

const (
	ContainerObject ContainerKind = iota
	ContainerSlice
	ContainerMap
)

func (c ContainerKind) String() string {
	switch c {
	case ContainerSlice:
		return "slice"
	case ContainerMap:
		return "map"
	default:
		return "object"
	}
}

// TypeMetadata describes how a type participates in indexing
type TypeMetadata struct {
	Type      reflect.Type
	Name      string  // Entity name
	Indexed   bool    // Whether the type has its own index
	IndexName string  // Index name, indexed types only
	Boost     float64 // Document boost

	// IndexManager is the name of the index-manager type the field bridges
	// were resolved for. Empty for contained-in metadata.
	IndexManager    string
	ContainedInOnly bool

	ID          *PropertyMetadata
	Properties  []*PropertyMetadata
	Embedded    []*EmbeddedTypeMetadata
	ContainedIn []*ContainedInMetadata
}

// PropertyMetadata describes the fields produced by one struct property
type PropertyMetadata struct {
	Name   string
	Index  []int // reflect field index path, promoted fields included
	Fields []*DocumentFieldMetadata
}

// DocumentFieldMetadata describes one document field
type DocumentFieldMetadata struct {
	Name         string // Absolute name, embedded prefix included
	RelativeName string // Name relative to the declaring type
	Property     string
	Store        Store
	Index        bool
	Analyze      bool
	Norms        bool
	TermVector   TermVector
	Boost        float64
	Sortable     bool
	ID           bool
	NullMarker   string // Empty when nulls are not indexed
	Numeric      bridge.NumericEncoding

	// Bridge is nil in contained-in metadata
	Bridge bridge.FieldBridge
}

// EmbeddedTypeMetadata is the metadata of a type indexed inside its owner
type EmbeddedTypeMetadata struct {
	*TypeMetadata

	PropertyName string
	Index        []int
	Prefix       string
	Depth        int // Remaining depth at this level, UnlimitedDepth if unbounded
	Container    ContainerKind
	NullMarker   string
	IncludePaths []string
}

// ContainedInMetadata links a type to the entities containing it
type ContainedInMetadata struct {
	PropertyName string
	Index        []int
	MaxDepth     int // 0 means unlimited
	TargetType   reflect.Type
	Container    ContainerKind
}

// Property returns the property metadata named name
func (m *TypeMetadata) Property(name string) *PropertyMetadata {
	for _, p := range m.Properties {
		if p.Name == name {
			return p
		}
	}
	if m.ID != nil && m.ID.Name == name {
		return m.ID
	}
	return nil
}

// FieldByName finds a field by absolute name, searching embedded types
func (m *TypeMetadata) FieldByName(name string) *DocumentFieldMetadata {
	var found *DocumentFieldMetadata
	m.walkFields(func(f *DocumentFieldMetadata) bool {
		if f.Name == name {
			found = f
			return false
		}
		return true
	})
	return found
}

// AllFieldNames returns every absolute field name, sorted
func (m *TypeMetadata) AllFieldNames() []string {
	var names []string
	m.walkFields(func(f *DocumentFieldMetadata) bool {
		names = append(names, f.Name)
		return true
	})
	sort.Strings(names)
	return names
}

// ContainingProperties returns the names of contained-in properties
func (m *TypeMetadata) ContainingProperties() []string {
	names := make([]string, 0, len(m.ContainedIn))
	for _, c := range m.ContainedIn {
		names = append(names, c.PropertyName)
	}
	return names
}

// HasBridges reports whether any field carries a bridge
func (m *TypeMetadata) HasBridges() bool {
	has := false
	m.walkFields(func(f *DocumentFieldMetadata) bool {
		if f.Bridge != nil {
			has = true
			return false
		}
		return true
	})
	return has
}

// walkFields visits fields in declaration order: id, properties, embedded.
// Returning false stops the walk.
func (m *TypeMetadata) walkFields(fn func(*DocumentFieldMetadata) bool) bool {
	if m.ID != nil {
		for _, f := range m.ID.Fields {
			if !fn(f) {
				return false
			}
		}
	}
	for _, p := range m.Properties {
		for _, f := range p.Fields {
			if !fn(f) {
				return false
			}
		}
	}
	for _, e := range m.Embedded {
		if !e.walkFields(fn) {
			return false
		}
	}
	return true
}
