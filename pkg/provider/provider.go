// ABOUTME: MetadataProvider backed by programmatic search mappings
// ABOUTME: Builds and caches type metadata per type and index-manager binding

package provider

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nainya/searchmeta/internal/metrics"
	"github.com/nainya/searchmeta/pkg/bridge"
	"github.com/nainya/searchmeta/pkg/indexmanager"
	"github.com/nainya/searchmeta/pkg/mapping"
	"github.com/nainya/searchmeta/pkg/metadata"
)

// MappingProvider implements metadata.MetadataProvider on top of a
// SearchMapping. It is safe for concurrent use. Returned metadata is shared
// between callers and must not be modified.
type MappingProvider struct {
	mapping  *mapping.SearchMapping
	bridges  *bridge.Registry
	managers *indexmanager.Registry
	log      zerolog.Logger
	metrics  *metrics.Metrics

	mu          sync.RWMutex
	version     uint64
	generation  uint64 // bumped whenever the caches are dropped
	full        map[fullKey]*metadata.TypeMetadata
	containedIn map[reflect.Type]*metadata.TypeMetadata
}

type fullKey struct {
	typ reflect.Type
	im  string
}

// Option configures a MappingProvider
type Option func(*MappingProvider)

// WithLogger sets the logger used for build events
func WithLogger(log zerolog.Logger) Option {
	return func(p *MappingProvider) { p.log = log }
}

// WithMetrics records lookups and builds
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *MappingProvider) { p.metrics = m }
}

// WithBridges sets the registry of named custom bridges
func WithBridges(r *bridge.Registry) Option {
	return func(p *MappingProvider) { p.bridges = r }
}

// WithIndexManagers restricts accepted index-manager types to those
// registered in r
func WithIndexManagers(r *indexmanager.Registry) Option {
	return func(p *MappingProvider) { p.managers = r }
}

// New creates a provider for sm
func New(sm *mapping.SearchMapping, opts ...Option) *MappingProvider {
	p := &MappingProvider{
		mapping:     sm,
		bridges:     bridge.NewRegistry(),
		log:         zerolog.Nop(),
		version:     sm.Version(),
		full:        make(map[fullKey]*metadata.TypeMetadata),
		containedIn: make(map[reflect.Type]*metadata.TypeMetadata),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ metadata.MetadataProvider = (*MappingProvider)(nil)

// TypeMetadataFor returns the full metadata of an indexed type
func (p *MappingProvider) TypeMetadataFor(t reflect.Type, imType indexmanager.Type) (*metadata.TypeMetadata, error) {
	t = metadata.Indirect(t)

	if err := p.checkIndexManager(imType); err != nil {
		p.metrics.RecordLookup(metrics.OpTypeMetadata, metrics.ResultError)
		return nil, fmt.Errorf("type %s: %w", metadata.TypeName(t), err)
	}

	key := fullKey{typ: t, im: imType.Name()}
	gen := p.syncVersion()

	p.mu.RLock()
	md, ok := p.full[key]
	p.mu.RUnlock()
	if ok {
		p.metrics.RecordLookup(metrics.OpTypeMetadata, metrics.ResultHit)
		return md, nil
	}

	start := time.Now()
	md, err := p.build(t, imType)
	p.metrics.RecordBuild(metrics.OpTypeMetadata, time.Since(start))
	if err != nil {
		p.metrics.RecordLookup(metrics.OpTypeMetadata, metrics.ResultError)
		p.log.Warn().
			Str("type", metadata.TypeName(t)).
			Str("index_manager", imType.Name()).
			Err(err).
			Msg("Failed to build type metadata")
		return nil, err
	}

	p.metrics.RecordLookup(metrics.OpTypeMetadata, metrics.ResultMiss)
	p.log.Debug().
		Str("type", metadata.TypeName(t)).
		Str("index_manager", imType.Name()).
		Int("fields", len(md.AllFieldNames())).
		Dur("duration", time.Since(start)).
		Msg("Built type metadata")

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.cacheable(gen) {
		return md, nil
	}
	if existing, ok := p.full[key]; ok {
		return existing, nil
	}
	p.full[key] = md
	p.metrics.SetCachedTypes(len(p.full) + len(p.containedIn))
	return md, nil
}

// TypeMetadataForContainedIn returns bridge-less metadata for contained-in
// resolution
func (p *MappingProvider) TypeMetadataForContainedIn(t reflect.Type) (*metadata.TypeMetadata, error) {
	t = metadata.Indirect(t)
	gen := p.syncVersion()

	p.mu.RLock()
	md, ok := p.containedIn[t]
	p.mu.RUnlock()
	if ok {
		p.metrics.RecordLookup(metrics.OpContainedInMetadata, metrics.ResultHit)
		return md, nil
	}

	start := time.Now()
	md, err := p.build(t, nil)
	p.metrics.RecordBuild(metrics.OpContainedInMetadata, time.Since(start))
	if err != nil {
		p.metrics.RecordLookup(metrics.OpContainedInMetadata, metrics.ResultError)
		p.log.Warn().
			Str("type", metadata.TypeName(t)).
			Err(err).
			Msg("Failed to build contained-in metadata")
		return nil, err
	}

	p.metrics.RecordLookup(metrics.OpContainedInMetadata, metrics.ResultMiss)
	p.log.Debug().
		Str("type", metadata.TypeName(t)).
		Int("contained_in", len(md.ContainedIn)).
		Dur("duration", time.Since(start)).
		Msg("Built contained-in metadata")

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.cacheable(gen) {
		return md, nil
	}
	if existing, ok := p.containedIn[t]; ok {
		return existing, nil
	}
	p.containedIn[t] = md
	p.metrics.SetCachedTypes(len(p.full) + len(p.containedIn))
	return md, nil
}

// ContainsSearchMetadata reports whether t, or a struct it embeds
// anonymously, is mapped
func (p *MappingProvider) ContainsSearchMetadata(t reflect.Type) bool {
	_, ok := p.resolveDecl(t)
	result := metrics.ResultHit
	if !ok {
		result = metrics.ResultMiss
	}
	p.metrics.RecordLookup(metrics.OpContainsMetadata, result)
	return ok
}

// Invalidate drops all cached metadata
func (p *MappingProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}

// CachedEntries returns the number of cached metadata entries
func (p *MappingProvider) CachedEntries() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.full) + len(p.containedIn)
}

// syncVersion drops caches built from an older mapping version and returns
// the cache generation a following build belongs to
func (p *MappingProvider) syncVersion() uint64 {
	v := p.mapping.Version()

	p.mu.RLock()
	current, gen := p.version == v, p.generation
	p.mu.RUnlock()
	if current {
		return gen
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.version != v {
		p.log.Debug().
			Uint64("from", p.version).
			Uint64("to", v).
			Msg("Mapping changed, dropping cached metadata")
		p.reset()
		p.version = v
	}
	return p.generation
}

// cacheable reports whether a build started in generation gen may be
// stored: no reset happened since and the mapping has not moved on. Must
// be called with the write lock held.
func (p *MappingProvider) cacheable(gen uint64) bool {
	return p.generation == gen && p.version == p.mapping.Version()
}

// reset must be called with the write lock held
func (p *MappingProvider) reset() {
	p.generation++
	p.full = make(map[fullKey]*metadata.TypeMetadata)
	p.containedIn = make(map[reflect.Type]*metadata.TypeMetadata)
	p.metrics.SetCachedTypes(0)
}

func (p *MappingProvider) checkIndexManager(imType indexmanager.Type) error {
	if imType == nil {
		return fmt.Errorf("%w: nil", metadata.ErrUnknownIndexManager)
	}
	if imType.BridgeProvider() == nil {
		return fmt.Errorf("%w: %s has no bridge provider", metadata.ErrUnknownIndexManager, imType.Name())
	}
	if p.managers != nil {
		if _, err := p.managers.Lookup(imType.Name()); err != nil {
			return fmt.Errorf("%w: %v", metadata.ErrUnknownIndexManager, err)
		}
	}
	return nil
}

// build creates metadata for t. A nil imType builds contained-in metadata.
func (p *MappingProvider) build(t reflect.Type, imType indexmanager.Type) (*metadata.TypeMetadata, error) {
	decl, ok := p.resolveDecl(t)
	if !ok {
		return nil, fmt.Errorf("%w for type %s", metadata.ErrNoSearchMetadata, metadata.TypeName(t))
	}

	b := &builder{p: p, root: t}
	if imType != nil {
		if !decl.Indexed {
			return nil, fmt.Errorf("%w: %s", metadata.ErrNotIndexed, metadata.TypeName(t))
		}
		if decl.IDProperty == "" {
			return nil, fmt.Errorf("%w in indexed type %s", metadata.ErrMissingDocumentID, metadata.TypeName(t))
		}
		b.imName = imType.Name()
		b.bridges = imType.BridgeProvider()
	} else {
		b.containedInOnly = true
	}

	return b.buildType(decl, rootLevel(decl.Type))
}

// resolveDecl returns the declaration of t merged with the declarations of
// anonymously embedded structs. Outer declarations win.
func (p *MappingProvider) resolveDecl(t reflect.Type) (mapping.EntityDecl, bool) {
	return p.resolveDeclSeen(metadata.Indirect(t), make(map[reflect.Type]bool))
}

func (p *MappingProvider) resolveDeclSeen(t reflect.Type, seen map[reflect.Type]bool) (mapping.EntityDecl, bool) {
	if t == nil || seen[t] {
		return mapping.EntityDecl{}, false
	}
	seen[t] = true

	decl, found := p.mapping.Lookup(t)
	if t.Kind() != reflect.Struct {
		return decl, found
	}
	if !found {
		decl = mapping.EntityDecl{Type: t, Name: t.Name(), Boost: 1}
	}

	declared := make(map[string]bool, len(decl.Properties))
	for _, prop := range decl.Properties {
		declared[prop.Name] = true
	}

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.Anonymous {
			continue
		}
		inner, ok := p.resolveDeclSeen(metadata.Indirect(sf.Type), seen)
		if !ok {
			continue
		}
		found = true
		if decl.IDProperty == "" {
			decl.IDProperty = inner.IDProperty
		}
		for _, prop := range inner.Properties {
			if !declared[prop.Name] {
				decl.Properties = append(decl.Properties, prop)
				declared[prop.Name] = true
			}
		}
	}

	return decl, found
}
