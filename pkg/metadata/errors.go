package metadata

import (
	"errors"

	"github.com/nainya/searchmeta/pkg/bridge"
)

var (
	// ErrNoSearchMetadata indicates the type carries no search metadata
	ErrNoSearchMetadata = errors.New("metadata: no search metadata")

	// ErrUnmappedTarget indicates an embedded or contained-in property whose
	// target type carries no search metadata
	ErrUnmappedTarget = errors.New("metadata: unmapped target type")

	// ErrNotIndexed indicates full metadata was requested for a type without an index
	ErrNotIndexed = errors.New("metadata: type is not indexed")

	// ErrUnknownIndexManager indicates a missing or unregistered index-manager type
	ErrUnknownIndexManager = errors.New("metadata: unknown index manager type")

	// ErrMissingDocumentID indicates an indexed type without a document id property
	ErrMissingDocumentID = errors.New("metadata: no document id")

	// ErrCircularEmbedding indicates an unbounded embedding cycle
	ErrCircularEmbedding = errors.New("metadata: circular embedding")

	// ErrInvalidIncludePath indicates include paths that match no field
	ErrInvalidIncludePath = errors.New("metadata: invalid include path")

	// ErrNoBridge indicates no field bridge could be resolved
	ErrNoBridge = bridge.ErrNoBridge

	// ErrInvalidNullMarker indicates a null marker not valid for the field encoding
	ErrInvalidNullMarker = errors.New("metadata: invalid null marker")

	// ErrUnknownProperty indicates a declared property missing from the struct
	ErrUnknownProperty = errors.New("metadata: unknown property")
)
