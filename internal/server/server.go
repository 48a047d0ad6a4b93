// Package server implements the gRPC searchmeta metadata service
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/nainya/searchmeta/internal/logger"
	"github.com/nainya/searchmeta/internal/metrics"
	"github.com/nainya/searchmeta/pkg/catalog"
	"github.com/nainya/searchmeta/pkg/containment"
	"github.com/nainya/searchmeta/pkg/indexmanager"
	"github.com/nainya/searchmeta/pkg/mapping"
	"github.com/nainya/searchmeta/pkg/metadata"
	"github.com/nainya/searchmeta/pkg/provider"
)

// ErrCatalogDisabled indicates a publish without a configured catalog
var ErrCatalogDisabled = errors.New("server: catalog disabled")

// Config wires the server's collaborators. Provider, Resolver and
// IndexManagers are created from Mapping when nil. A nil Catalog disables
// publishing.
type Config struct {
	Mapping             *mapping.SearchMapping
	Provider            *provider.MappingProvider
	Resolver            *containment.Resolver
	IndexManagers       *indexmanager.Registry
	Catalog             *catalog.Catalog
	DefaultIndexManager string
	Logger              *logger.Logger
	Metrics             *metrics.Metrics
}

// Server implements the MetadataServiceServer interface
type Server struct {
	UnimplementedMetadataServiceServer

	mapping   *mapping.SearchMapping
	provider  *provider.MappingProvider
	resolver  *containment.Resolver
	managers  *indexmanager.Registry
	catalog   *catalog.Catalog
	defaultIM indexmanager.Type
	log       *logger.Logger
}

// PublishResult is the outcome of publishing one descriptor. Err is set
// when the descriptor could not be built or stored.
type PublishResult struct {
	Entity       string
	IndexManager string
	Seq          int64
	Checksum     string
	Changed      bool
	Err          error
}

// NewServer creates a new gRPC server instance
func NewServer(cfg Config) (*Server, error) {
	if cfg.Mapping == nil {
		return nil, errors.New("server: mapping is required")
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	managers := cfg.IndexManagers
	if managers == nil {
		managers = indexmanager.DefaultRegistry()
	}

	name := cfg.DefaultIndexManager
	if name == "" {
		name = indexmanager.Local.Name()
	}
	defaultIM, err := managers.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("server: default index manager: %w", err)
	}

	p := cfg.Provider
	if p == nil {
		p = provider.New(cfg.Mapping,
			provider.WithIndexManagers(managers),
			provider.WithLogger(log.ProviderLogger()),
			provider.WithMetrics(cfg.Metrics),
		)
	}
	r := cfg.Resolver
	if r == nil {
		r = containment.NewResolver(p,
			containment.WithLogger(log.Component("containment")),
			containment.WithMetrics(cfg.Metrics),
		)
	}

	return &Server{
		mapping:   cfg.Mapping,
		provider:  p,
		resolver:  r,
		managers:  managers,
		catalog:   cfg.Catalog,
		defaultIM: defaultIM,
		log:       log,
	}, nil
}

// Close closes the catalog, if any
func (s *Server) Close() error {
	if s.catalog == nil {
		return nil
	}
	return s.catalog.Close()
}

// ========== Metadata Operations ==========

func (s *Server) GetTypeMetadata(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	t, err := s.lookupType(fields["type"].GetStringValue())
	if err != nil {
		return nil, err
	}

	im := s.defaultIM
	if name := fields["index_manager"].GetStringValue(); name != "" {
		im, err = s.managers.Lookup(name)
		if err != nil {
			return nil, toStatus(err)
		}
	}

	md, err := s.provider.TypeMetadataFor(t, im)
	if err != nil {
		return nil, toStatus(err)
	}
	return descriptorStruct(md.Describe())
}

func (s *Server) GetContainedInMetadata(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	t, err := s.lookupType(req.GetValue())
	if err != nil {
		return nil, err
	}

	md, err := s.provider.TypeMetadataForContainedIn(t)
	if err != nil {
		return nil, toStatus(err)
	}
	return descriptorStruct(md.Describe())
}

func (s *Server) ContainsSearchMetadata(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	t, ok := s.mapping.LookupByName(req.GetValue())
	if !ok {
		return wrapperspb.Bool(false), nil
	}
	return wrapperspb.Bool(s.provider.ContainsSearchMetadata(t)), nil
}

// ListTypes lists declared entities in declaration order
func (s *Server) ListTypes(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	var entries []any
	for _, t := range s.mapping.Types() {
		decl, ok := s.mapping.Lookup(t)
		if !ok {
			continue
		}
		entries = append(entries, map[string]any{
			"name":       decl.Name,
			"type":       metadata.TypeName(t),
			"indexed":    decl.Indexed,
			"index_name": decl.IndexName,
		})
	}

	list, err := structpb.NewList(entries)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode types: %v", err)
	}
	return list, nil
}

// AffectedTypes lists the entities to reindex when the named one changes
func (s *Server) AffectedTypes(ctx context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error) {
	t, err := s.lookupType(req.GetValue())
	if err != nil {
		return nil, err
	}

	types, err := s.resolver.AffectedTypes(t)
	if err != nil {
		return nil, toStatus(err)
	}

	names := make([]any, 0, len(types))
	for _, at := range types {
		names = append(names, s.entityName(at))
	}
	list, err := structpb.NewList(names)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode types: %v", err)
	}
	return list, nil
}

// ========== Catalog Operations ==========

// PublishCatalog publishes every descriptor. Failures are reported in the
// "errors" list alongside the snapshots that did publish; the call itself
// fails only when the catalog is disabled or the context ends.
func (s *Server) PublishCatalog(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	results, err := s.PublishAll(ctx)
	if errors.Is(err, ErrCatalogDisabled) {
		return nil, toStatus(err)
	}
	if cerr := ctx.Err(); err != nil && cerr != nil {
		return nil, toStatus(cerr)
	}

	published, changed := 0, 0
	snapshots := make([]any, 0, len(results))
	failures := []any{}
	for _, r := range results {
		if r.Err != nil {
			failures = append(failures, map[string]any{
				"entity":        r.Entity,
				"index_manager": r.IndexManager,
				"error":         r.Err.Error(),
			})
			continue
		}
		published++
		if r.Changed {
			changed++
		}
		snapshots = append(snapshots, map[string]any{
			"entity":        r.Entity,
			"index_manager": r.IndexManager,
			"seq":           r.Seq,
			"checksum":      r.Checksum,
			"changed":       r.Changed,
		})
	}

	out, err := structpb.NewStruct(map[string]any{
		"published": published,
		"changed":   changed,
		"failed":    len(failures),
		"snapshots": snapshots,
		"errors":    failures,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode publish result: %v", err)
	}
	return out, nil
}

// PublishAll publishes the descriptor of every indexed entity for every
// registered index manager. A failing descriptor does not stop the others:
// it is recorded in its result's Err and joined into the returned error.
// Only a done context stops the pass early.
func (s *Server) PublishAll(ctx context.Context) ([]PublishResult, error) {
	if s.catalog == nil {
		return nil, ErrCatalogDisabled
	}

	var (
		results []PublishResult
		errs    []error
	)
	for _, t := range s.mapping.Types() {
		decl, ok := s.mapping.Lookup(t)
		if !ok || !decl.Indexed {
			continue
		}

		for _, name := range s.managers.Names() {
			if err := ctx.Err(); err != nil {
				return results, errors.Join(append(errs, err)...)
			}

			r, err := s.publishOne(ctx, t, decl.Name, name)
			if err != nil {
				r.Err = fmt.Errorf("publish %s for %s: %w", decl.Name, name, err)
				errs = append(errs, r.Err)
			}
			results = append(results, r)
		}
	}
	return results, errors.Join(errs...)
}

func (s *Server) publishOne(ctx context.Context, t reflect.Type, entity, imName string) (PublishResult, error) {
	result := PublishResult{Entity: entity, IndexManager: imName}

	im, err := s.managers.Lookup(imName)
	if err != nil {
		return result, err
	}
	md, err := s.provider.TypeMetadataFor(t, im)
	if err != nil {
		s.log.LogPublish(entity, imName, 0, false, err)
		return result, err
	}

	snap, changed, err := s.catalog.Publish(ctx, md.Describe())
	s.log.LogPublish(entity, imName, snap.Seq, changed, err)
	if err != nil {
		return result, err
	}
	result.Entity = snap.Entity
	result.IndexManager = snap.IndexManager
	result.Seq = snap.Seq
	result.Checksum = snap.Checksum
	result.Changed = changed
	return result, nil
}

// ========== Helpers ==========

func (s *Server) lookupType(name string) (reflect.Type, error) {
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "type is required")
	}
	t, ok := s.mapping.LookupByName(name)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "unknown entity %q", name)
	}
	return t, nil
}

func (s *Server) entityName(t reflect.Type) string {
	if decl, ok := s.mapping.Lookup(t); ok {
		return decl.Name
	}
	return metadata.TypeName(t)
}

// descriptorStruct converts d through its JSON form
func descriptorStruct(d metadata.Descriptor) (*structpb.Struct, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode descriptor: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to decode descriptor: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to convert descriptor: %v", err)
	}
	return out, nil
}

// toStatus maps domain errors to gRPC status codes
func toStatus(err error) error {
	switch {
	case errors.Is(err, metadata.ErrNoSearchMetadata), errors.Is(err, catalog.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, metadata.ErrUnknownIndexManager), errors.Is(err, indexmanager.ErrUnknownType):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, metadata.ErrNotIndexed),
		errors.Is(err, metadata.ErrUnmappedTarget),
		errors.Is(err, metadata.ErrMissingDocumentID),
		errors.Is(err, metadata.ErrCircularEmbedding),
		errors.Is(err, metadata.ErrInvalidIncludePath),
		errors.Is(err, metadata.ErrNoBridge),
		errors.Is(err, metadata.ErrInvalidNullMarker),
		errors.Is(err, metadata.ErrUnknownProperty),
		errors.Is(err, ErrCatalogDisabled):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
