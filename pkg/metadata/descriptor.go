// ABOUTME: Serializable view of type metadata
// ABOUTME: Bridges are named, reflect types are rendered as qualified names

package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/nainya/searchmeta/pkg/bridge"
)

// Descriptor is the JSON-friendly form of TypeMetadata. Its encoding is
// deterministic, so checksums are stable across runs.
type Descriptor struct {
	Entity          string                  `json:"entity"`
	Type            string                  `json:"type"`
	Indexed         bool                    `json:"indexed"`
	IndexName       string                  `json:"index_name,omitempty"`
	IndexManager    string                  `json:"index_manager,omitempty"`
	ContainedInOnly bool                    `json:"contained_in_only,omitempty"`
	Boost           float64                 `json:"boost"`
	Fields          []FieldDescriptor       `json:"fields"`
	Embedded        []EmbeddedDescriptor    `json:"embedded,omitempty"`
	ContainedIn     []ContainedInDescriptor `json:"contained_in,omitempty"`
}

// FieldDescriptor describes one document field
type FieldDescriptor struct {
	Name       string  `json:"name"`
	Property   string  `json:"property"`
	Store      string  `json:"store"`
	Index      bool    `json:"index"`
	Analyze    bool    `json:"analyze"`
	Norms      bool    `json:"norms"`
	TermVector string  `json:"term_vector"`
	Boost      float64 `json:"boost"`
	Sortable   bool    `json:"sortable,omitempty"`
	ID         bool    `json:"id,omitempty"`
	NullMarker string  `json:"null_marker,omitempty"`
	Numeric    string  `json:"numeric,omitempty"`
	Bridge     string  `json:"bridge,omitempty"`
}

// EmbeddedDescriptor describes an embedding, nested ones flattened by path
type EmbeddedDescriptor struct {
	Path         string   `json:"path"`
	Type         string   `json:"type"`
	Prefix       string   `json:"prefix"`
	Depth        int      `json:"depth"` // -1 when unbounded
	Container    string   `json:"container"`
	NullMarker   string   `json:"null_marker,omitempty"`
	IncludePaths []string `json:"include_paths,omitempty"`
}

// ContainedInDescriptor describes a contained-in link
type ContainedInDescriptor struct {
	Property  string `json:"property"`
	Target    string `json:"target"`
	MaxDepth  int    `json:"max_depth,omitempty"`
	Container string `json:"container"`
}

// Describe builds the descriptor of m
func (m *TypeMetadata) Describe() Descriptor {
	d := Descriptor{
		Entity:          m.Name,
		Type:            TypeName(m.Type),
		Indexed:         m.Indexed,
		IndexName:       m.IndexName,
		IndexManager:    m.IndexManager,
		ContainedInOnly: m.ContainedInOnly,
		Boost:           m.Boost,
		Fields:          []FieldDescriptor{},
	}

	m.walkFields(func(f *DocumentFieldMetadata) bool {
		d.Fields = append(d.Fields, describeField(f))
		return true
	})

	describeEmbedded(&d, m, "")

	for _, c := range m.ContainedIn {
		d.ContainedIn = append(d.ContainedIn, ContainedInDescriptor{
			Property:  c.PropertyName,
			Target:    TypeName(c.TargetType),
			MaxDepth:  c.MaxDepth,
			Container: c.Container.String(),
		})
	}

	return d
}

// Checksum returns the hex SHA-256 of the descriptor's JSON encoding
func (d Descriptor) Checksum() (string, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encode descriptor %s: %w", d.Entity, err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func describeField(f *DocumentFieldMetadata) FieldDescriptor {
	fd := FieldDescriptor{
		Name:       f.Name,
		Property:   f.Property,
		Store:      f.Store.String(),
		Index:      f.Index,
		Analyze:    f.Analyze,
		Norms:      f.Norms,
		TermVector: f.TermVector.String(),
		Boost:      f.Boost,
		Sortable:   f.Sortable,
		ID:         f.ID,
		NullMarker: f.NullMarker,
	}
	if f.Numeric != bridge.NumericNone {
		fd.Numeric = f.Numeric.String()
	}
	if f.Bridge != nil {
		fd.Bridge = f.Bridge.Name()
	}
	return fd
}

func describeEmbedded(d *Descriptor, m *TypeMetadata, path string) {
	for _, e := range m.Embedded {
		p := path + e.PropertyName
		depth := e.Depth
		if depth == UnlimitedDepth {
			depth = -1
		}
		d.Embedded = append(d.Embedded, EmbeddedDescriptor{
			Path:         p,
			Type:         TypeName(e.Type),
			Prefix:       e.Prefix,
			Depth:        depth,
			Container:    e.Container.String(),
			NullMarker:   e.NullMarker,
			IncludePaths: e.IncludePaths,
		})
		describeEmbedded(d, e.TypeMetadata, p+".")
	}
}
