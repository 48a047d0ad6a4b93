// ABOUTME: Index document model produced from mapped entities
// ABOUTME: Defines Document and Field with their indexing options

package document

import "github.com/nainya/searchmeta/pkg/metadata"

// Document is the indexable form of one entity instance
type Document struct {
	Type   string  // Entity name
	Index  string  // Target index name
	ID     any     // Encoded document id
	Fields []Field // In metadata order
}

// Field is one encoded value of a document field
type Field struct {
	Name       string
	Value      any
	Store      metadata.Store
	Indexed    bool
	Analyze    bool
	Norms      bool
	TermVector metadata.TermVector
	Boost      float64
	Sortable   bool
	Null       bool // Value is the field's null marker
}

// Get returns every value of the named field
func (d *Document) Get(name string) []any {
	var values []any
	for _, f := range d.Fields {
		if f.Name == name {
			values = append(values, f.Value)
		}
	}
	return values
}

// Names returns the distinct field names in order of first appearance
func (d *Document) Names() []string {
	seen := make(map[string]bool, len(d.Fields))
	var names []string
	for _, f := range d.Fields {
		if !seen[f.Name] {
			seen[f.Name] = true
			names = append(names, f.Name)
		}
	}
	return names
}
