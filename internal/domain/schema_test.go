package domain

import (
	"reflect"
	"testing"

	"github.com/paulmach/orb"
)

func TestTypeOf(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  ValueType
	}{
		{"nil", nil, TypeUnknown},
		{"string", "a", TypeString},
		{"bool", true, TypeBoolean},
		{"int", 3, TypeInteger},
		{"whole float", float64(3), TypeInteger},
		{"float", 3.5, TypeFloat},
		{"object", map[string]interface{}{"a": 1}, TypeObject},
		{"array", []interface{}{1}, TypeObject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TypeOf(tt.value); got != tt.want {
				t.Errorf("TypeOf(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestSchemaObserveWidens(t *testing.T) {
	var s Schema
	s = s.Observe("a", 1)
	s = s.Observe("b", nil)
	s = s.Observe("a", 1.5)
	s = s.Observe("b", "x")
	s = s.Observe("c", true)
	s = s.Observe("c", "yes")

	want := Schema{
		{Name: "a", Type: TypeFloat},
		{Name: "b", Type: TypeString},
		{Name: "c", Type: TypeString},
	}
	if !reflect.DeepEqual(s, want) {
		t.Errorf("schema = %v, want %v", s, want)
	}
	if got := s.String(); got != "a:float, b:str, c:str" {
		t.Errorf("String() = %q", got)
	}
}

func TestInferSchemaOrder(t *testing.T) {
	features := []Feature{
		{Geometry: orb.Point{0, 0}, Properties: map[string]interface{}{"name": "a", "id": 1}},
		{Geometry: orb.Point{1, 1}, Properties: map[string]interface{}{"zone": "x", "name": "b"}},
	}

	t.Run("explicit key order", func(t *testing.T) {
		s := InferSchema(features, [][]string{{"name", "id"}, {"zone", "name"}})
		if got := s.Names(); !reflect.DeepEqual(got, []string{"name", "id", "zone"}) {
			t.Errorf("Names() = %v", got)
		}
	})

	t.Run("sorted fallback", func(t *testing.T) {
		s := InferSchema(features, nil)
		if got := s.Names(); !reflect.DeepEqual(got, []string{"id", "name", "zone"}) {
			t.Errorf("Names() = %v", got)
		}
	})
}

func TestSchemaIndex(t *testing.T) {
	s := Schema{{Name: "a"}, {Name: "b"}}
	if s.Index("b") != 1 || s.Index("z") != -1 {
		t.Error("Index() returned wrong positions")
	}
	if !s.Has("a") || s.Has("z") {
		t.Error("Has() returned wrong result")
	}
}

func TestDatasetGeometryTypesAndBounds(t *testing.T) {
	ds := &Dataset{
		Features: []Feature{
			{Geometry: orb.Polygon{{{0, 0}, {2, 0}, {2, 2}, {0, 0}}}},
			{Geometry: nil},
			{Geometry: orb.Point{5, -1}},
			{Geometry: orb.Polygon{{{1, 1}, {3, 1}, {3, 3}, {1, 1}}}},
		},
	}

	if got := ds.GeometryTypes(); !reflect.DeepEqual(got, []string{GeomPolygon, GeomPoint}) {
		t.Errorf("GeometryTypes() = %v", got)
	}

	b, ok := ds.Bounds()
	if !ok {
		t.Fatal("Bounds() should find geometries")
	}
	want := orb.Bound{Min: orb.Point{0, -1}, Max: orb.Point{5, 3}}
	if b != want {
		t.Errorf("Bounds() = %v, want %v", b, want)
	}

	empty := &Dataset{}
	if _, ok := empty.Bounds(); ok {
		t.Error("Bounds() on empty dataset should report false")
	}
	if !empty.IsEmpty() {
		t.Error("IsEmpty() should be true")
	}
}

func TestDeriveLayerName(t *testing.T) {
	if got := DeriveLayerName("/data/roads_2024.geojson"); got != "roads_2024" {
		t.Errorf("DeriveLayerName() = %q", got)
	}
}
