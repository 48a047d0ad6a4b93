package indexmanager

import (
	"errors"
	"testing"

	"github.com/nainya/searchmeta/pkg/bridge"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	names := r.Names()
	if len(names) != 2 || names[0] != "elasticsearch" || names[1] != "local" {
		t.Fatalf("Expected [elasticsearch local], got %v", names)
	}

	local, err := r.Lookup("local")
	if err != nil {
		t.Fatalf("Failed to look up local: %v", err)
	}
	if local != Local {
		t.Error("Expected the built-in Local type")
	}
	if local.BridgeProvider().Name() != "local" {
		t.Errorf("Expected local bridge provider, got %s", local.BridgeProvider().Name())
	}
}

func TestRegistryErrors(t *testing.T) {
	r := DefaultRegistry()

	if _, err := r.Lookup("solr"); !errors.Is(err, ErrUnknownType) {
		t.Errorf("Expected ErrUnknownType, got %v", err)
	}
	if err := r.Register(New("local", bridge.LocalProvider())); !errors.Is(err, ErrDuplicateType) {
		t.Errorf("Expected ErrDuplicateType, got %v", err)
	}
	if err := r.Register(New("", bridge.LocalProvider())); err == nil {
		t.Error("Expected error for unnamed type")
	}
	if err := r.Register(New("bare", nil)); err == nil {
		t.Error("Expected error for type without bridges")
	}
	if err := r.Register(nil); err == nil {
		t.Error("Expected error for nil type")
	}
}
