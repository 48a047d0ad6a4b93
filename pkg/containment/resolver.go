// ABOUTME: Contained-in resolution over search metadata
// ABOUTME: Finds the indexed types and instances to reindex after a change

package containment

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/rs/zerolog"

	"github.com/nainya/searchmeta/internal/metrics"
	"github.com/nainya/searchmeta/pkg/metadata"
)

// ErrNilEntity is returned when Resolve is given a nil entity
var ErrNilEntity = errors.New("containment: nil entity")

// Resolution kinds recorded in metrics
const (
	KindTypes     = "types"
	KindInstances = "instances"
)

// maxHops stops walks through reference cycles that identity tracking
// cannot see, such as shared maps of struct values
const maxHops = 64

const unlimited = math.MaxInt

// ContainedInSource is the part of a metadata provider the resolver needs
type ContainedInSource interface {
	TypeMetadataForContainedIn(t reflect.Type) (*metadata.TypeMetadata, error)
}

// Resolver follows contained-in links
type Resolver struct {
	source  ContainedInSource
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// Option configures a Resolver
type Option func(*Resolver)

// WithLogger sets the resolver logger
func WithLogger(log zerolog.Logger) Option {
	return func(r *Resolver) { r.log = log }
}

// WithMetrics records resolutions
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// NewResolver creates a resolver reading metadata from source
func NewResolver(source ContainedInSource, opts ...Option) *Resolver {
	r := &Resolver{source: source, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// nextRemaining returns the hop budget left after following link, or false
// when the link may not be followed
func nextRemaining(remaining int, link *metadata.ContainedInMetadata) (int, bool) {
	if remaining == 0 {
		return 0, false
	}
	next := remaining
	if next != unlimited {
		next--
	}
	if link.MaxDepth > 0 && link.MaxDepth-1 < next {
		next = link.MaxDepth - 1
	}
	return next, true
}

// AffectedTypes returns the indexed types that must be reindexed when an
// instance of t changes, sorted by entity name. t itself is never included.
func (r *Resolver) AffectedTypes(t reflect.Type) ([]reflect.Type, error) {
	types, err := r.affectedTypes(metadata.Indirect(t))
	r.metrics.RecordResolution(KindTypes, len(types), err)
	if err != nil {
		return nil, err
	}

	r.log.Debug().
		Str("type", metadata.TypeName(t)).
		Int("affected", len(types)).
		Msg("Resolved affected types")
	return types, nil
}

func (r *Resolver) affectedTypes(start reflect.Type) ([]reflect.Type, error) {
	type item struct {
		md        *metadata.TypeMetadata
		remaining int
		hops      int
	}

	md, err := r.source.TypeMetadataForContainedIn(start)
	if err != nil {
		return nil, err
	}

	best := map[reflect.Type]int{start: unlimited}
	found := make(map[reflect.Type]*metadata.TypeMetadata)
	queue := []item{{md: md, remaining: unlimited}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.hops >= maxHops {
			continue
		}

		for _, link := range cur.md.ContainedIn {
			next, ok := nextRemaining(cur.remaining, link)
			if !ok {
				continue
			}
			target := link.TargetType
			if prev, seen := best[target]; seen && prev >= next {
				continue
			}
			best[target] = next

			tmd, err := r.source.TypeMetadataForContainedIn(target)
			if err != nil {
				return nil, linkError(cur.md, link, target, err)
			}
			if tmd.Indexed && target != start {
				found[target] = tmd
			}
			queue = append(queue, item{md: tmd, remaining: next, hops: cur.hops + 1})
		}
	}

	types := make([]reflect.Type, 0, len(found))
	for typ := range found {
		types = append(types, typ)
	}
	sort.Slice(types, func(i, j int) bool {
		a, b := found[types[i]], found[types[j]]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return metadata.TypeName(a.Type) < metadata.TypeName(b.Type)
	})
	return types, nil
}

type identity struct {
	typ reflect.Type
	ptr uintptr
}

// instance is a struct value reached during a walk
type instance struct {
	value     reflect.Value // struct value
	ref       reflect.Value // pointer to value, invalid when not addressable
	remaining int
	hops      int
}

func (in instance) id() (identity, bool) {
	if !in.ref.IsValid() {
		return identity{}, false
	}
	return identity{typ: in.value.Type(), ptr: in.ref.Pointer()}, true
}

func (in instance) external() any {
	if in.ref.IsValid() {
		return in.ref.Interface()
	}
	return in.value.Interface()
}

func newInstance(v reflect.Value, remaining, hops int) (instance, bool) {
	var ref reflect.Value
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return instance{}, false
		}
		if v.Kind() == reflect.Pointer {
			ref = v
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return instance{}, false
	}
	if !ref.IsValid() && v.CanAddr() {
		ref = v.Addr()
	}
	return instance{value: v, ref: ref, remaining: remaining, hops: hops}, true
}

// Resolve returns the distinct indexed instances containing entity, in
// discovery order. Nil references are skipped and cycles are followed once.
// Pass entity as a pointer: a struct passed by value has no identity, so
// the first instance reached that is deeply equal to it stands in for it
// and is left out of the result.
func (r *Resolver) Resolve(entity any) ([]any, error) {
	out, err := r.resolve(entity)
	r.metrics.RecordResolution(KindInstances, len(out), err)
	if err != nil {
		return nil, err
	}

	r.log.Debug().
		Str("type", fmt.Sprintf("%T", entity)).
		Int("affected", len(out)).
		Msg("Resolved containing entities")
	return out, nil
}

func (r *Resolver) resolve(entity any) ([]any, error) {
	if entity == nil {
		return nil, ErrNilEntity
	}
	start, ok := newInstance(reflect.ValueOf(entity), unlimited, 0)
	if !ok {
		v := reflect.ValueOf(entity)
		if v.Kind() == reflect.Pointer && v.IsNil() {
			return nil, ErrNilEntity
		}
		return nil, fmt.Errorf("%w for type %T", metadata.ErrNoSearchMetadata, entity)
	}

	visited := make(map[identity]bool)
	startID, addressable := start.id()
	if addressable {
		visited[startID] = true
	}
	byValue := !addressable

	var out []any
	queue := []instance{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.hops >= maxHops {
			continue
		}

		md, err := r.source.TypeMetadataForContainedIn(cur.value.Type())
		if err != nil {
			return nil, err
		}

		for _, link := range md.ContainedIn {
			next, ok := nextRemaining(cur.remaining, link)
			if !ok {
				continue
			}
			fv, err := cur.value.FieldByIndexErr(link.Index)
			if err != nil {
				// nil embedded struct pointer on the way to the field
				continue
			}

			for _, target := range containedValues(fv, link.Container) {
				in, ok := newInstance(target, next, cur.hops+1)
				if !ok {
					continue
				}
				if id, ok := in.id(); ok {
					if visited[id] {
						continue
					}
					visited[id] = true
				}
				if byValue && isStart(in, start) {
					byValue = false
					continue
				}

				tmd, err := r.source.TypeMetadataForContainedIn(in.value.Type())
				if err != nil {
					return nil, linkError(md, link, in.value.Type(), err)
				}
				if tmd.Indexed {
					out = append(out, in.external())
				}
				queue = append(queue, in)
			}
		}
	}

	return out, nil
}

// isStart reports whether in is the by-value start reached again through a
// cycle
func isStart(in, start instance) bool {
	if in.value.Type() != start.value.Type() {
		return false
	}
	return reflect.DeepEqual(in.value.Interface(), start.value.Interface())
}

// linkError reports a failed target lookup. An unmapped target is a
// mapping error of the linking type, not of the entity asked about.
func linkError(md *metadata.TypeMetadata, link *metadata.ContainedInMetadata, target reflect.Type, err error) error {
	if errors.Is(err, metadata.ErrNoSearchMetadata) {
		return fmt.Errorf("%w: %s.%s is contained in %s", metadata.ErrUnmappedTarget, md.Name, link.PropertyName, metadata.TypeName(target))
	}
	return fmt.Errorf("%s.%s: %w", md.Name, link.PropertyName, err)
}

// containedValues lists the values a contained-in property points at. Map
// values come in key order.
func containedValues(v reflect.Value, container metadata.ContainerKind) []reflect.Value {
	for v.Kind() == reflect.Pointer && container != metadata.ContainerObject {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	switch container {
	case metadata.ContainerSlice:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil
		}
		values := make([]reflect.Value, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			values = append(values, v.Index(i))
		}
		return values
	case metadata.ContainerMap:
		if v.IsNil() {
			return nil
		}
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j])
		})
		values := make([]reflect.Value, 0, len(keys))
		for _, k := range keys {
			values = append(values, v.MapIndex(k))
		}
		return values
	default:
		return []reflect.Value{v}
	}
}
