package domain

import (
	"math"

	"github.com/paulmach/orb"
)

// RepairConfig controls how ring closure is judged and repaired.
type RepairConfig struct {
	// AcceptUnclosedRings makes readers close unclosed rings on load, so
	// they are never counted as invalid.
	AcceptUnclosedRings bool

	// ClosureTolerance is the distance at which the first and last
	// position of a ring are considered equal. Zero means exact equality.
	ClosureTolerance float64
}

// Validity problems, in the wording used by GEOS.
const (
	ReasonValid              = "Valid Geometry"
	ReasonInvalidCoordinate  = "Invalid Coordinate"
	ReasonTooFewPoints       = "Too few points in geometry component"
	ReasonRingNotClosed      = "Ring is not closed"
	ReasonRingSelfIntersects = "Ring Self-intersection"
	ReasonSelfIntersection   = "Self-intersection"
	ReasonHoleOutsideShell   = "Hole lies outside shell"
	ReasonNestedHoles        = "Holes are nested"
)

// IsValid reports whether the geometry satisfies the validity rules.
// Null geometries are valid.
func IsValid(g orb.Geometry, cfg RepairConfig) bool {
	ok, _ := Validate(g, cfg)
	return ok
}

// Validate reports whether the geometry is valid and, if not, why.
// MultiPolygon components are checked individually; overlap between
// components is not detected.
func Validate(g orb.Geometry, cfg RepairConfig) (bool, string) {
	switch geom := g.(type) {
	case nil:
		return true, ReasonValid
	case orb.Point:
		if !isFinite(geom) {
			return false, ReasonInvalidCoordinate
		}
	case orb.MultiPoint:
		for _, p := range geom {
			if !isFinite(p) {
				return false, ReasonInvalidCoordinate
			}
		}
	case orb.LineString:
		return validateLineString(geom)
	case orb.MultiLineString:
		for _, ls := range geom {
			if ok, reason := validateLineString(ls); !ok {
				return false, reason
			}
		}
	case orb.Ring:
		return validatePolygon(orb.Polygon{geom}, cfg)
	case orb.Polygon:
		return validatePolygon(geom, cfg)
	case orb.MultiPolygon:
		for _, p := range geom {
			if ok, reason := validatePolygon(p, cfg); !ok {
				return false, reason
			}
		}
	case orb.Collection:
		for _, c := range geom {
			if ok, reason := Validate(c, cfg); !ok {
				return false, reason
			}
		}
	case orb.Bound:
		if !isFinite(geom.Min) || !isFinite(geom.Max) {
			return false, ReasonInvalidCoordinate
		}
	}
	return true, ReasonValid
}

// CountInvalid returns how many features carry an invalid geometry.
func CountInvalid(features []Feature, cfg RepairConfig) int {
	n := 0
	for i := range features {
		if !IsValid(features[i].Geometry, cfg) {
			n++
		}
	}
	return n
}

func validateLineString(ls orb.LineString) (bool, string) {
	if len(ls) == 0 {
		return true, ReasonValid
	}
	for _, p := range ls {
		if !isFinite(p) {
			return false, ReasonInvalidCoordinate
		}
	}
	if distinctCount(ls) < 2 {
		return false, ReasonTooFewPoints
	}
	return true, ReasonValid
}

// ringClosed reports whether the ring closes within the configured tolerance.
func (c RepairConfig) ringClosed(r orb.Ring) bool {
	if len(r) < 2 {
		return false
	}
	first, last := r[0], r[len(r)-1]
	if first == last {
		return true
	}
	return c.ClosureTolerance > 0 &&
		math.Hypot(first[0]-last[0], first[1]-last[1]) <= c.ClosureTolerance
}

// snapClosed returns a deduplicated copy of the ring whose last position equals its first.
func snapClosed(r orb.Ring) orb.Ring {
	pts := dedupe(r)
	if len(pts) > 1 && pts[0] != pts[len(pts)-1] {
		pts[len(pts)-1] = pts[0]
	}
	return orb.Ring(dedupe(pts))
}

func validatePolygon(p orb.Polygon, cfg RepairConfig) (bool, string) {
	if len(p) == 0 || (len(p) == 1 && len(p[0]) == 0) {
		return true, ReasonValid
	}

	rings := make([]orb.Ring, 0, len(p))
	for _, r := range p {
		for _, pt := range r {
			if !isFinite(pt) {
				return false, ReasonInvalidCoordinate
			}
		}
		if len(r) < 4 {
			if len(r) >= 2 && !cfg.ringClosed(r) {
				return false, ReasonRingNotClosed
			}
			return false, ReasonTooFewPoints
		}
		if !cfg.ringClosed(r) {
			return false, ReasonRingNotClosed
		}
		closed := snapClosed(r)
		if len(closed) < 4 || distinctCount(closed) < 3 {
			return false, ReasonTooFewPoints
		}
		if ringSelfIntersects(closed) {
			return false, ReasonRingSelfIntersects
		}
		rings = append(rings, closed)
	}

	for i := 0; i < len(rings); i++ {
		for j := i + 1; j < len(rings); j++ {
			if ringsCross(rings[i], rings[j]) {
				return false, ReasonSelfIntersection
			}
		}
	}

	shell := rings[0]
	for i, hole := range rings[1:] {
		if ringLocationIn(hole, shell) == locExterior {
			return false, ReasonHoleOutsideShell
		}
		for j, other := range rings[1:] {
			if i != j && ringLocationIn(hole, other) == locInterior {
				return false, ReasonNestedHoles
			}
		}
	}

	return true, ReasonValid
}

// ringSelfIntersects checks a closed, deduplicated ring for self-intersections.
// Adjacent segments may only share their common vertex.
func ringSelfIntersects(r orb.Ring) bool {
	m := len(r) - 1
	for i := 0; i < m; i++ {
		for j := i + 1; j < m; j++ {
			adjacent := j == i+1 || (i == 0 && j == m-1)
			rel, _ := intersectSegments(r[i], r[i+1], r[j], r[j+1])
			if adjacent {
				if rel == relOverlap {
					return true
				}
				continue
			}
			if rel != relNone {
				return true
			}
		}
	}
	return false
}

// ringsCross reports whether two rings cross or share a stretch of boundary.
// Touching at isolated points is allowed.
func ringsCross(a, b orb.Ring) bool {
	ab, bb := a.Bound(), b.Bound()
	if !ab.Intersects(bb) {
		return false
	}
	for i := 0; i+1 < len(a); i++ {
		for j := 0; j+1 < len(b); j++ {
			rel, _ := intersectSegments(a[i], a[i+1], b[j], b[j+1])
			if rel == relCross || rel == relOverlap {
				return true
			}
		}
	}
	return false
}

// ringLocationIn locates ring r relative to the area enclosed by container,
// using the first vertex of r that is not on the container boundary.
func ringLocationIn(r, container orb.Ring) pointLocation {
	for _, p := range r {
		if loc := locateInRing(container, p); loc != locBoundary {
			return loc
		}
	}
	if p, ok := interiorPoint(r); ok {
		return locateInRing(container, p)
	}
	return locBoundary
}
