// ABOUTME: Declaration records and functional options for mappings
// ABOUTME: Defaults mirror a plain indexed, analyzed, unstored field

package mapping

import "github.com/nainya/searchmeta/pkg/metadata"

// UnboundedDepth is the default embedding depth
const UnboundedDepth = -1

// FieldDecl declares one document field of a property
type FieldDecl struct {
	Name       string // Defaults to the property name
	Store      metadata.Store
	Index      bool
	Analyze    bool
	Norms      bool
	TermVector metadata.TermVector
	Boost      float64
	Sortable   bool
	NullMarker string
	Bridge     string // Named custom bridge, empty to guess
}

// EmbeddedDecl declares an indexed embedding of a property's type
type EmbeddedDecl struct {
	Prefix       string
	PrefixSet    bool // Prefix was given explicitly, possibly empty
	Depth        int  // UnboundedDepth or >= 0
	IncludePaths []string
	NullMarker   string
}

// ContainedInDecl declares that a property points at containing entities
type ContainedInDecl struct {
	MaxDepth int // 0 means unlimited
}

// FieldOption customizes a FieldDecl
type FieldOption func(*FieldDecl)

// EmbeddedOption customizes an EmbeddedDecl
type EmbeddedOption func(*EmbeddedDecl)

// ContainedInOption customizes a ContainedInDecl
type ContainedInOption func(*ContainedInDecl)

func defaultField() FieldDecl {
	return FieldDecl{
		Store:   metadata.StoreNo,
		Index:   true,
		Analyze: true,
		Norms:   true,
		Boost:   1,
	}
}

// FieldName overrides the field name
func FieldName(name string) FieldOption {
	return func(f *FieldDecl) { f.Name = name }
}

// Store sets how the value is stored
func Store(s metadata.Store) FieldOption {
	return func(f *FieldDecl) { f.Store = s }
}

// NoIndex keeps the field out of the inverted index
func NoIndex() FieldOption {
	return func(f *FieldDecl) { f.Index = false }
}

// NoAnalyze indexes the value as a single token
func NoAnalyze() FieldOption {
	return func(f *FieldDecl) { f.Analyze = false }
}

// NoNorms omits length norms
func NoNorms() FieldOption {
	return func(f *FieldDecl) { f.Norms = false }
}

// WithTermVector sets term vector storage
func WithTermVector(tv metadata.TermVector) FieldOption {
	return func(f *FieldDecl) { f.TermVector = tv }
}

// FieldBoost sets the field boost
func FieldBoost(b float64) FieldOption {
	return func(f *FieldDecl) { f.Boost = b }
}

// Sortable marks the field as usable for sorting
func Sortable() FieldOption {
	return func(f *FieldDecl) { f.Sortable = true }
}

// IndexNullAs indexes nil values as marker
func IndexNullAs(marker string) FieldOption {
	return func(f *FieldDecl) { f.NullMarker = marker }
}

// WithBridge selects a named custom bridge
func WithBridge(name string) FieldOption {
	return func(f *FieldDecl) { f.Bridge = name }
}

// Prefix overrides the embedded field prefix (default "<property>.")
func Prefix(p string) EmbeddedOption {
	return func(e *EmbeddedDecl) {
		e.Prefix = p
		e.PrefixSet = true
	}
}

// Depth bounds how many embedding levels are followed
func Depth(d int) EmbeddedOption {
	return func(e *EmbeddedDecl) { e.Depth = d }
}

// IncludePaths restricts the embedded fields to the given relative paths
func IncludePaths(paths ...string) EmbeddedOption {
	return func(e *EmbeddedDecl) { e.IncludePaths = append(e.IncludePaths, paths...) }
}

// EmbeddedNullAs indexes a nil embedded value as marker
func EmbeddedNullAs(marker string) EmbeddedOption {
	return func(e *EmbeddedDecl) { e.NullMarker = marker }
}

// MaxDepth bounds how far a change propagates through this link
func MaxDepth(d int) ContainedInOption {
	return func(c *ContainedInDecl) { c.MaxDepth = d }
}
