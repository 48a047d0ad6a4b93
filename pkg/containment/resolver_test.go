// ABOUTME: Tests for contained-in resolution
// ABOUTME: Covers affected types, instance walks, depth bounds and cycles

package containment

import (
	"errors"
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nainya/searchmeta/internal/metrics"
	"github.com/nainya/searchmeta/pkg/mapping"
	"github.com/nainya/searchmeta/pkg/metadata"
	"github.com/nainya/searchmeta/pkg/provider"
)

type library struct {
	ID      int
	Name    string
	Shelves []*shelf
}

type shelf struct {
	ID      int
	Label   string
	Library *library
}

type book struct {
	ID      int
	Title   string
	Shelf   *shelf
	Authors []*author
}

type author struct {
	ID    int
	Name  string
	Books []*book
}

type tag struct {
	Name  string
	Books map[string]*book
}

type stranger struct{}

func model(opts ...mapping.ContainedInOption) *mapping.SearchMapping {
	sm := mapping.NewSearchMapping()
	sm.Entity(library{}).Indexed("libraries").ID("ID").
		Property("Name").Field().
		Property("Shelves").IndexedEmbedded(mapping.Depth(1))
	sm.Entity(shelf{}).
		Property("Label").Field().
		Property("Library").ContainedIn()
	sm.Entity(book{}).Indexed("books").ID("ID").
		Property("Title").Field().
		Property("Shelf").ContainedIn().
		Property("Authors").IndexedEmbedded(mapping.Depth(1)).ContainedIn()
	sm.Entity(author{}).Indexed("authors").ID("ID").
		Property("Name").Field().
		Property("Books").ContainedIn(opts...)
	sm.Entity(tag{}).
		Property("Name").Field().
		Property("Books").ContainedIn()
	return sm
}

func names(types []reflect.Type) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, t.Name())
	}
	return out
}

func TestAffectedTypes(t *testing.T) {
	r := NewResolver(provider.New(model()))

	cases := []struct {
		start reflect.Type
		want  []string
	}{
		{reflect.TypeOf(author{}), []string{"book", "library"}},
		{reflect.TypeOf(&book{}), []string{"author", "library"}},
		{reflect.TypeOf(shelf{}), []string{"library"}},
		{reflect.TypeOf(library{}), []string{}},
		{reflect.TypeOf(tag{}), []string{"author", "book", "library"}},
	}

	for _, tc := range cases {
		got, err := r.AffectedTypes(tc.start)
		if err != nil {
			t.Fatalf("AffectedTypes(%v) failed: %v", tc.start, err)
		}
		if !reflect.DeepEqual(names(got), tc.want) {
			t.Errorf("AffectedTypes(%v): expected %v, got %v", tc.start, tc.want, names(got))
		}
	}
}

func TestAffectedTypesHonoursMaxDepth(t *testing.T) {
	r := NewResolver(provider.New(model(mapping.MaxDepth(1))))

	got, err := r.AffectedTypes(reflect.TypeOf(author{}))
	if err != nil {
		t.Fatalf("AffectedTypes failed: %v", err)
	}
	if !reflect.DeepEqual(names(got), []string{"book"}) {
		t.Errorf("Expected only book with max depth 1, got %v", names(got))
	}
}

func TestAffectedTypesUnmapped(t *testing.T) {
	r := NewResolver(provider.New(model()))

	if _, err := r.AffectedTypes(reflect.TypeOf(stranger{})); !errors.Is(err, metadata.ErrNoSearchMetadata) {
		t.Errorf("Expected ErrNoSearchMetadata, got %v", err)
	}
}

func fixture() (*author, *book, *book, *library) {
	l := &library{ID: 1, Name: "central"}
	s := &shelf{ID: 2, Label: "fiction", Library: l}
	l.Shelves = []*shelf{s}
	a := &author{ID: 3, Name: "ursula"}
	b1 := &book{ID: 4, Title: "earthsea", Shelf: s, Authors: []*author{a}}
	b2 := &book{ID: 5, Title: "lathe", Shelf: s, Authors: []*author{a}}
	a.Books = []*book{b1, nil, b2}
	return a, b1, b2, l
}

func TestResolve(t *testing.T) {
	r := NewResolver(provider.New(model()))
	a, b1, b2, l := fixture()

	got, err := r.Resolve(a)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	want := []any{b1, b2, l}
	if len(got) != len(want) {
		t.Fatalf("Expected %d entities, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Entity %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestResolveByValueSkipsItself(t *testing.T) {
	r := NewResolver(provider.New(model()))
	a, b1, b2, l := fixture()

	// b1 reaches itself again through its author
	got, err := r.Resolve(*b1)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	want := []any{a, l, b2}
	if len(got) != len(want) {
		t.Fatalf("Expected %d entities, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Entity %d: expected %v, got %v", i, want[i], got[i])
		}
	}
	for _, e := range got {
		if e == any(b1) {
			t.Error("Expected the changed book to be left out")
		}
	}
}

func TestResolveMapInKeyOrder(t *testing.T) {
	r := NewResolver(provider.New(model(mapping.MaxDepth(1))))
	_, b1, b2, l := fixture()
	b1.Authors, b2.Authors = nil, nil

	got, err := r.Resolve(&tag{Name: "classics", Books: map[string]*book{"z": b1, "a": b2, "n": nil}})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	want := []any{b2, b1, l}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestResolveHonoursMaxDepth(t *testing.T) {
	r := NewResolver(provider.New(model(mapping.MaxDepth(1))))
	a, b1, b2, _ := fixture()

	got, err := r.Resolve(a)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(got) != 2 || got[0] != b1 || got[1] != b2 {
		t.Errorf("Expected only the author's books, got %v", got)
	}
}

func TestResolveErrors(t *testing.T) {
	r := NewResolver(provider.New(model()))

	if _, err := r.Resolve(nil); !errors.Is(err, ErrNilEntity) {
		t.Errorf("Expected ErrNilEntity for nil, got %v", err)
	}
	if _, err := r.Resolve((*author)(nil)); !errors.Is(err, ErrNilEntity) {
		t.Errorf("Expected ErrNilEntity for nil pointer, got %v", err)
	}
	if _, err := r.Resolve(&stranger{}); !errors.Is(err, metadata.ErrNoSearchMetadata) {
		t.Errorf("Expected ErrNoSearchMetadata, got %v", err)
	}
	if _, err := r.Resolve(42); !errors.Is(err, metadata.ErrNoSearchMetadata) {
		t.Errorf("Expected ErrNoSearchMetadata for non-struct, got %v", err)
	}
}

func TestResolutionMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	r := NewResolver(provider.New(model()), WithMetrics(m))
	a, _, _, _ := fixture()

	_, _ = r.Resolve(a)
	_, _ = r.AffectedTypes(reflect.TypeOf(stranger{}))

	if got := testutil.ToFloat64(m.ResolutionsTotal.WithLabelValues(KindInstances, "success")); got != 1 {
		t.Errorf("Expected 1 successful instance resolution, got %v", got)
	}
	if got := testutil.ToFloat64(m.ResolutionsTotal.WithLabelValues(KindTypes, "error")); got != 1 {
		t.Errorf("Expected 1 failed type resolution, got %v", got)
	}
}
