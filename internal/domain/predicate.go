package domain

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
)

// Predicate is a binary spatial relationship used by joins.
type Predicate string

// Supported predicates.
const (
	PredicateIntersects Predicate = "intersects"
	PredicateContains   Predicate = "contains"
	PredicateWithin     Predicate = "within"
)

// DefaultPredicate is used when a caller does not name one.
const DefaultPredicate = PredicateIntersects

// SupportedPredicates lists the predicates in a stable order.
func SupportedPredicates() []Predicate {
	return []Predicate{PredicateIntersects, PredicateContains, PredicateWithin}
}

// ParsePredicate parses a predicate name. An empty name yields the default.
func ParsePredicate(s string) (Predicate, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultPredicate, nil
	}
	for _, p := range SupportedPredicates() {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnsupportedPredicate)
}

// Evaluate reports whether left relates to right under the predicate.
// Null or empty geometries never match.
func (p Predicate) Evaluate(left, right orb.Geometry) bool {
	if IsEmptyGeometry(left) || IsEmptyGeometry(right) {
		return false
	}
	if !left.Bound().Intersects(right.Bound()) {
		return false
	}
	switch p {
	case PredicateIntersects:
		return Intersects(left, right)
	case PredicateContains:
		return Within(right, left)
	case PredicateWithin:
		return Within(left, right)
	}
	return false
}

// parts is a geometry flattened into its points, lines and polygons.
// Polygon rings are also listed as lines.
type parts struct {
	points []orb.Point
	lines  []orb.LineString
	polys  []orb.Polygon
}

func flatten(g orb.Geometry) parts {
	var ps parts
	var walk func(orb.Geometry)
	walk = func(g orb.Geometry) {
		switch geom := g.(type) {
		case orb.Point:
			ps.points = append(ps.points, geom)
		case orb.MultiPoint:
			ps.points = append(ps.points, geom...)
		case orb.LineString:
			if len(geom) > 0 {
				ps.lines = append(ps.lines, geom)
			}
		case orb.MultiLineString:
			for _, ls := range geom {
				walk(ls)
			}
		case orb.Ring:
			walk(orb.Polygon{geom})
		case orb.Polygon:
			if len(geom) == 0 || len(geom[0]) == 0 {
				return
			}
			ps.polys = append(ps.polys, geom)
			for _, r := range geom {
				if len(r) > 0 {
					ps.lines = append(ps.lines, orb.LineString(r))
				}
			}
		case orb.MultiPolygon:
			for _, p := range geom {
				walk(p)
			}
		case orb.Collection:
			for _, c := range geom {
				walk(c)
			}
		case orb.Bound:
			walk(geom.ToPolygon())
		}
	}
	walk(g)
	return ps
}

// Intersects reports whether two geometries share at least one point.
func Intersects(a, b orb.Geometry) bool {
	pa, pb := flatten(a), flatten(b)
	return pointsTouch(pa, pb) || pointsTouch(pb, pa) ||
		linesIntersect(pa.lines, pb.lines) ||
		linesInside(pa.lines, pb.polys) || linesInside(pb.lines, pa.polys)
}

func pointsTouch(a, b parts) bool {
	for _, p := range a.points {
		for _, q := range b.points {
			if p == q {
				return true
			}
		}
		for _, ls := range b.lines {
			if pointOnLine(ls, p) {
				return true
			}
		}
		for _, poly := range b.polys {
			if locateInPolygon(poly, p) != locExterior {
				return true
			}
		}
	}
	return false
}

func linesIntersect(a, b []orb.LineString) bool {
	for _, la := range a {
		ba := la.Bound()
		for _, lb := range b {
			if !ba.Intersects(lb.Bound()) {
				continue
			}
			if len(la) == 1 || len(lb) == 1 {
				continue
			}
			for i := 0; i+1 < len(la); i++ {
				for j := 0; j+1 < len(lb); j++ {
					if rel, _ := intersectSegments(la[i], la[i+1], lb[j], lb[j+1]); rel != relNone {
						return true
					}
				}
			}
		}
	}
	return false
}

// linesInside reports whether any line has its first vertex inside a polygon.
func linesInside(lines []orb.LineString, polys []orb.Polygon) bool {
	for _, ls := range lines {
		for _, poly := range polys {
			if locateInPolygon(poly, ls[0]) != locExterior {
				return true
			}
		}
	}
	return false
}

func pointOnLine(ls orb.LineString, p orb.Point) bool {
	if len(ls) == 1 {
		return ls[0] == p
	}
	for i := 0; i+1 < len(ls); i++ {
		if pointOnSegment(ls[i], ls[i+1], p) {
			return true
		}
	}
	return false
}

// Within reports whether a lies in b: no point of a is outside b and at
// least one interior point of a is in the interior of b.
func Within(a, b orb.Geometry) bool {
	ab, bb := a.Bound(), b.Bound()
	if ab.Min[0] < bb.Min[0] || ab.Min[1] < bb.Min[1] || ab.Max[0] > bb.Max[0] || ab.Max[1] > bb.Max[1] {
		return false
	}

	pa, pb := flatten(a), flatten(b)
	samples := samplePoints(pa)
	if len(samples) == 0 {
		return false
	}

	if len(pb.polys) > 0 {
		return withinArea(pa, pb, samples)
	}
	if len(pb.lines) > 0 {
		if len(pa.polys) > 0 {
			return false
		}
		for _, s := range samples {
			covered := false
			for _, ls := range pb.lines {
				if pointOnLine(ls, s) {
					covered = true
					break
				}
			}
			if !covered {
				return false
			}
		}
		return true
	}

	if len(pa.lines) > 0 {
		return false
	}
	for _, p := range pa.points {
		found := false
		for _, q := range pb.points {
			if p == q {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// samplePoints returns the points, vertices and segment midpoints of a geometry.
func samplePoints(ps parts) []orb.Point {
	out := make([]orb.Point, 0, len(ps.points))
	out = append(out, ps.points...)
	for _, ls := range ps.lines {
		for i, p := range ls {
			out = append(out, p)
			if i+1 < len(ls) {
				q := ls[i+1]
				out = append(out, orb.Point{(p[0] + q[0]) / 2, (p[1] + q[1]) / 2})
			}
		}
	}
	return out
}

func withinArea(pa, pb parts, samples []orb.Point) bool {
	interior := false
	for _, s := range samples {
		loc := locateInAreas(pb.polys, s)
		if loc == locExterior {
			return false
		}
		if loc == locInterior {
			interior = true
		}
	}

	boundaries := make([]orb.LineString, 0, len(pb.lines))
	for _, poly := range pb.polys {
		for _, r := range poly {
			boundaries = append(boundaries, orb.LineString(r))
		}
	}
	for _, la := range pa.lines {
		for _, lb := range boundaries {
			for i := 0; i+1 < len(la); i++ {
				for j := 0; j+1 < len(lb); j++ {
					if rel, _ := intersectSegments(la[i], la[i+1], lb[j], lb[j+1]); rel == relCross {
						return false
					}
				}
			}
		}
	}

	for _, poly := range pa.polys {
		probe, ok := interiorPoint(poly[0])
		if !ok {
			continue
		}
		if locateInPolygon(poly, probe) == locInterior && locateInAreas(pb.polys, probe) == locInterior {
			interior = true
		}
		// a hole of b inside a means a covers points outside b
		for _, bp := range pb.polys {
			for _, hole := range bp[1:] {
				hp, ok := interiorPoint(hole)
				if ok && locateInPolygon(poly, hp) == locInterior {
					return false
				}
			}
		}
	}
	return interior
}

// locateInAreas locates p relative to the union of the polygons.
func locateInAreas(polys []orb.Polygon, p orb.Point) pointLocation {
	loc := locExterior
	for _, poly := range polys {
		switch locateInPolygon(poly, p) {
		case locInterior:
			return locInterior
		case locBoundary:
			loc = locBoundary
		}
	}
	return loc
}
