// Package metadata defines the search metadata model and the provider
// contract used to look it up by runtime type.
package metadata

import (
	"reflect"

	"github.com/nainya/searchmeta/pkg/indexmanager"
)

// MetadataProvider looks up search metadata for runtime types.
//
// TypeMetadataFor returns the complete metadata of an indexed type, with
// field bridges resolved for the index-manager type that will manage its
// instances. Types without search metadata fail with ErrNoSearchMetadata,
// mapped types without an index with ErrNotIndexed.
//
// TypeMetadataForContainedIn returns the metadata needed to resolve
// contained-in relationships, i.e. which other entities must be reindexed
// when an instance of the type changes. It is not comprehensive: it never
// carries field bridges, because a type reached only through contained-in
// links is not bound to an index manager. It also works for mapped types
// that are not indexed.
//
// ContainsSearchMetadata reports whether any search metadata exists for the
// type at all.
type MetadataProvider interface {
	TypeMetadataFor(t reflect.Type, imType indexmanager.Type) (*TypeMetadata, error)
	TypeMetadataForContainedIn(t reflect.Type) (*TypeMetadata, error)
	ContainsSearchMetadata(t reflect.Type) bool
}

// Indirect strips pointer indirections from t
func Indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// TypeName returns the fully qualified name of t, pointers stripped
func TypeName(t reflect.Type) string {
	t = Indirect(t)
	if t == nil {
		return ""
	}
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}
