// ABOUTME: Tests for metadata lookups and descriptors
// ABOUTME: Verifies recursive field search and stable checksums

package metadata

import (
	"reflect"
	"testing"
	"time"
)

type city struct {
	Name string
}

type venue struct {
	ID   int
	City city
	When time.Time
}

type nameBridge struct{}

func (nameBridge) Name() string                        { return "string" }
func (nameBridge) Encode(v reflect.Value) (any, error) { return v.String(), nil }

func venueMetadata() *TypeMetadata {
	cityMD := &TypeMetadata{
		Type: reflect.TypeOf(city{}),
		Name: "city",
		Properties: []*PropertyMetadata{{
			Name:  "Name",
			Index: []int{0},
			Fields: []*DocumentFieldMetadata{
				{Name: "City.Name", RelativeName: "Name", Property: "Name", Index: true, Analyze: true, Boost: 1},
			},
		}},
	}

	return &TypeMetadata{
		Type:      reflect.TypeOf(venue{}),
		Name:      "venue",
		Indexed:   true,
		IndexName: "venues",
		Boost:     1,
		ID: &PropertyMetadata{
			Name:  "ID",
			Index: []int{0},
			Fields: []*DocumentFieldMetadata{
				{Name: "ID", Property: "ID", Store: StoreYes, Index: true, ID: true, Boost: 1},
			},
		},
		Properties: []*PropertyMetadata{{
			Name:  "When",
			Index: []int{2},
			Fields: []*DocumentFieldMetadata{
				{Name: "When", Property: "When", Index: true, Boost: 1, Bridge: nameBridge{}},
			},
		}},
		Embedded: []*EmbeddedTypeMetadata{{
			TypeMetadata: cityMD,
			PropertyName: "City",
			Index:        []int{1},
			Prefix:       "City.",
			Depth:        UnlimitedDepth,
		}},
		ContainedIn: []*ContainedInMetadata{{
			PropertyName: "City",
			Index:        []int{1},
			TargetType:   reflect.TypeOf(city{}),
		}},
	}
}

func TestLookups(t *testing.T) {
	md := venueMetadata()

	if p := md.Property("ID"); p == nil || p != md.ID {
		t.Error("Expected Property to find the id property")
	}
	if p := md.Property("Missing"); p != nil {
		t.Errorf("Expected nil for missing property, got %+v", p)
	}
	if f := md.FieldByName("City.Name"); f == nil || f.RelativeName != "Name" {
		t.Errorf("Expected embedded field City.Name, got %+v", f)
	}

	want := []string{"City.Name", "ID", "When"}
	if got := md.AllFieldNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if got := md.ContainingProperties(); !reflect.DeepEqual(got, []string{"City"}) {
		t.Errorf("Expected [City], got %v", got)
	}
	if !md.HasBridges() {
		t.Error("Expected HasBridges to find the When bridge")
	}
}

func TestDescribe(t *testing.T) {
	d := venueMetadata().Describe()

	if d.Entity != "venue" || d.IndexName != "venues" || !d.Indexed {
		t.Errorf("Unexpected descriptor header: %+v", d)
	}
	if d.Type != "github.com/nainya/searchmeta/pkg/metadata.venue" {
		t.Errorf("Expected qualified type name, got %s", d.Type)
	}
	if len(d.Fields) != 3 {
		t.Fatalf("Expected 3 fields, got %d", len(d.Fields))
	}
	if d.Fields[0].Name != "ID" || d.Fields[0].Store != "yes" || !d.Fields[0].ID {
		t.Errorf("Unexpected id descriptor: %+v", d.Fields[0])
	}
	if d.Fields[1].Bridge != "string" {
		t.Errorf("Expected bridge name, got %q", d.Fields[1].Bridge)
	}
	if len(d.Embedded) != 1 || d.Embedded[0].Depth != -1 || d.Embedded[0].Container != "object" {
		t.Errorf("Unexpected embedded descriptor: %+v", d.Embedded)
	}
	if len(d.ContainedIn) != 1 || d.ContainedIn[0].Target != "github.com/nainya/searchmeta/pkg/metadata.city" {
		t.Errorf("Unexpected contained-in descriptor: %+v", d.ContainedIn)
	}
}

func TestChecksumIsStable(t *testing.T) {
	a, err := venueMetadata().Describe().Checksum()
	if err != nil {
		t.Fatalf("Checksum failed: %v", err)
	}
	b, _ := venueMetadata().Describe().Checksum()
	if a != b {
		t.Errorf("Expected identical checksums, got %s and %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("Expected hex SHA-256, got %q", a)
	}

	changed := venueMetadata()
	changed.Boost = 2
	c, _ := changed.Describe().Checksum()
	if c == a {
		t.Error("Expected checksum to change with the boost")
	}
}

func TestTypeName(t *testing.T) {
	if got := TypeName(reflect.TypeOf(&venue{})); got != "github.com/nainya/searchmeta/pkg/metadata.venue" {
		t.Errorf("Unexpected name %s", got)
	}
	if got := TypeName(reflect.TypeOf([]int{})); got != "[]int" {
		t.Errorf("Expected []int, got %s", got)
	}
	if got := TypeName(nil); got != "" {
		t.Errorf("Expected empty name for nil, got %s", got)
	}
}
