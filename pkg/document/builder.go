// ABOUTME: Builds index documents from entity instances
// ABOUTME: Applies bridges, embedded prefixes, containers and null markers

package document

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nainya/searchmeta/pkg/bridge"
	"github.com/nainya/searchmeta/pkg/indexmanager"
	"github.com/nainya/searchmeta/pkg/metadata"
)

var (
	// ErrNilEntity is returned when Build is given a nil entity
	ErrNilEntity = errors.New("document: nil entity")

	// ErrNilID is returned when the document id property is nil
	ErrNilID = errors.New("document: nil document id")
)

// Builder turns entities into documents for one index-manager type
type Builder struct {
	provider metadata.MetadataProvider
	im       indexmanager.Type
	log      zerolog.Logger
}

// NewBuilder creates a document builder
func NewBuilder(provider metadata.MetadataProvider, im indexmanager.Type) *Builder {
	return &Builder{provider: provider, im: im, log: zerolog.Nop()}
}

// WithLogger returns a copy of b logging to log
func (b *Builder) WithLogger(log zerolog.Logger) *Builder {
	c := *b
	c.log = log
	return &c
}

// Build creates the document of entity
func (b *Builder) Build(entity any) (*Document, error) {
	if entity == nil {
		return nil, ErrNilEntity
	}
	v, ok := indirect(reflect.ValueOf(entity))
	if !ok {
		return nil, ErrNilEntity
	}

	md, err := b.provider.TypeMetadataFor(v.Type(), b.im)
	if err != nil {
		return nil, err
	}

	doc := &Document{Type: md.Name, Index: md.IndexName}

	idField := md.ID.Fields[0]
	idValue, err := v.FieldByIndexErr(md.ID.Index)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s", ErrNilID, md.Name, md.ID.Name)
	}
	idValue, ok = indirect(idValue)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrNilID, md.Name, md.ID.Name)
	}
	doc.ID, err = idField.Bridge.Encode(idValue)
	if err != nil {
		return nil, fmt.Errorf("encode id of %s: %w", md.Name, err)
	}

	if err := b.addType(doc, md, v); err != nil {
		return nil, err
	}

	b.log.Debug().
		Str("entity", md.Name).
		Interface("id", doc.ID).
		Int("fields", len(doc.Fields)).
		Msg("Built document")
	return doc, nil
}

func (b *Builder) addType(doc *Document, md *metadata.TypeMetadata, v reflect.Value) error {
	if md.ID != nil {
		if err := b.addProperty(doc, md.ID, v); err != nil {
			return err
		}
	}
	for _, pm := range md.Properties {
		if err := b.addProperty(doc, pm, v); err != nil {
			return err
		}
	}

	for _, e := range md.Embedded {
		ev, err := v.FieldByIndexErr(e.Index)
		if err != nil {
			addEmbeddedNull(doc, e)
			continue
		}
		values := elements(ev)
		if values == nil {
			addEmbeddedNull(doc, e)
			continue
		}
		for _, elem := range values {
			inner, ok := indirect(elem)
			if !ok || inner.Kind() != reflect.Struct {
				continue
			}
			if err := b.addType(doc, e.TypeMetadata, inner); err != nil {
				return err
			}
		}
	}
	return nil
}

func addEmbeddedNull(doc *Document, e *metadata.EmbeddedTypeMetadata) {
	if e.NullMarker == "" {
		return
	}
	doc.Fields = append(doc.Fields, Field{
		Name:    strings.TrimSuffix(e.Prefix, "."),
		Value:   e.NullMarker,
		Indexed: true,
		Boost:   1,
		Null:    true,
	})
}

func (b *Builder) addProperty(doc *Document, pm *metadata.PropertyMetadata, v reflect.Value) error {
	if len(pm.Fields) == 0 {
		return nil
	}

	var values []reflect.Value
	if pv, err := v.FieldByIndexErr(pm.Index); err == nil {
		values = elements(pv)
	}

	for _, f := range pm.Fields {
		if !f.Index && f.Store == metadata.StoreNo {
			continue
		}

		if values == nil {
			if err := addNull(doc, f); err != nil {
				return err
			}
			continue
		}

		for _, elem := range values {
			ev, ok := indirect(elem)
			if !ok {
				if err := addNull(doc, f); err != nil {
					return err
				}
				continue
			}
			encoded, err := f.Bridge.Encode(ev)
			if err != nil {
				return fmt.Errorf("encode field %s: %w", f.Name, err)
			}
			doc.Fields = append(doc.Fields, newField(f, encoded, false))
		}
	}
	return nil
}

func addNull(doc *Document, f *metadata.DocumentFieldMetadata) error {
	if f.NullMarker == "" {
		return nil
	}
	value, err := bridge.ParseNumeric(f.Numeric, f.NullMarker)
	if err != nil {
		return fmt.Errorf("%w: field %s: %v", metadata.ErrInvalidNullMarker, f.Name, err)
	}
	doc.Fields = append(doc.Fields, newField(f, value, true))
	return nil
}

func newField(f *metadata.DocumentFieldMetadata, value any, null bool) Field {
	return Field{
		Name:       f.Name,
		Value:      value,
		Store:      f.Store,
		Indexed:    f.Index,
		Analyze:    f.Analyze,
		Norms:      f.Norms,
		TermVector: f.TermVector,
		Boost:      f.Boost,
		Sortable:   f.Sortable,
		Null:       null,
	}
}

// indirect follows pointers and interfaces. It reports false for nil.
func indirect(v reflect.Value) (reflect.Value, bool) {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return v, false
		}
		v = v.Elem()
	}
	return v, v.IsValid()
}

// elements returns the values held by v: the elements of slices and arrays,
// map values in key order, or v itself. Nil values yield nil.
func elements(v reflect.Value) []reflect.Value {
	d, ok := indirect(v)
	if !ok {
		return nil
	}
	if bridge.IsScalar(d.Type()) {
		return []reflect.Value{v}
	}

	switch d.Kind() {
	case reflect.Slice:
		if d.IsNil() {
			return nil
		}
		fallthrough
	case reflect.Array:
		out := make([]reflect.Value, 0, d.Len())
		for i := 0; i < d.Len(); i++ {
			out = append(out, d.Index(i))
		}
		return out
	case reflect.Map:
		if d.IsNil() {
			return nil
		}
		keys := d.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j])
		})
		out := make([]reflect.Value, 0, len(keys))
		for _, k := range keys {
			out = append(out, d.MapIndex(k))
		}
		return out
	}
	return []reflect.Value{v}
}
