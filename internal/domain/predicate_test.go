package domain

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
)

func TestParsePredicate(t *testing.T) {
	tests := []struct {
		in      string
		want    Predicate
		wantErr bool
	}{
		{"", PredicateIntersects, false},
		{"intersects", PredicateIntersects, false},
		{" WITHIN ", PredicateWithin, false},
		{"contains", PredicateContains, false},
		{"touches", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePredicate(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePredicate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnsupportedPredicate) {
				t.Errorf("error should wrap ErrUnsupportedPredicate, got %v", err)
			}
			if got != tt.want {
				t.Errorf("ParsePredicate(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPredicateEvaluate(t *testing.T) {
	big := orb.Polygon{square(0, 0, 10, 10)}
	small := orb.Polygon{square(2, 2, 4, 4)}
	donut := orb.Polygon{square(0, 0, 10, 10), square(4, 4, 6, 6)}

	tests := []struct {
		name      string
		predicate Predicate
		left      orb.Geometry
		right     orb.Geometry
		want      bool
	}{
		{"overlapping squares intersect", PredicateIntersects, orb.Polygon{square(0, 0, 2, 2)}, orb.Polygon{square(1, 1, 3, 3)}, true},
		{"disjoint squares", PredicateIntersects, orb.Polygon{square(0, 0, 1, 1)}, orb.Polygon{square(5, 5, 6, 6)}, false},
		{"edge touching squares intersect", PredicateIntersects, orb.Polygon{square(0, 0, 2, 2)}, orb.Polygon{square(2, 0, 4, 2)}, true},
		{"nested squares intersect", PredicateIntersects, small, big, true},
		{"point in polygon", PredicateIntersects, orb.Point{5, 5}, big, true},
		{"point outside polygon", PredicateIntersects, orb.Point{11, 5}, big, false},
		{"point in hole", PredicateIntersects, orb.Point{5, 5}, donut, false},
		{"line crossing polygon", PredicateIntersects, orb.LineString{{-1, 5}, {11, 5}}, big, true},
		{"crossing lines", PredicateIntersects, orb.LineString{{0, 0}, {2, 2}}, orb.LineString{{0, 2}, {2, 0}}, true},
		{"bounding boxes overlap only", PredicateIntersects, orb.LineString{{0, 0}, {2, 2}}, orb.LineString{{1.5, 0}, {2, 0.5}}, false},
		{"null geometry", PredicateIntersects, nil, big, false},

		{"small within big", PredicateWithin, small, big, true},
		{"big within small", PredicateWithin, big, small, false},
		{"equal squares", PredicateWithin, big, big, true},
		{"point on boundary", PredicateWithin, orb.Point{0, 5}, big, false},
		{"point inside", PredicateWithin, orb.Point{5, 5}, big, true},
		{"line inside", PredicateWithin, orb.LineString{{1, 1}, {2, 2}}, big, true},
		{"square covering a hole", PredicateWithin, orb.Polygon{square(3, 3, 7, 7)}, donut, false},
		{"square beside a hole", PredicateWithin, small, donut, true},
		{"crossing square", PredicateWithin, orb.Polygon{square(8, 8, 12, 12)}, big, false},

		{"big contains small", PredicateContains, big, small, true},
		{"small contains big", PredicateContains, small, big, false},
		{"polygon contains point", PredicateContains, big, orb.Point{1, 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.predicate.Evaluate(tt.left, tt.right); got != tt.want {
				t.Errorf("%s.Evaluate() = %v, want %v", tt.predicate, got, tt.want)
			}
		})
	}
}
