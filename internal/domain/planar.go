package domain

import (
	"math"

	"github.com/paulmach/orb"
)

// segmentRelation describes how two segments meet.
type segmentRelation int

const (
	relNone     segmentRelation = iota // disjoint
	relCross                           // interiors cross at a single point
	relTouch                           // meet at a single point, at least one endpoint involved
	relOverlap                         // collinear with a shared stretch of positive length
)

// cross returns the z component of (a-o) x (b-o).
func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// onSegment reports whether p, known to be collinear with a-b, lies within its extent.
func onSegment(a, b, p orb.Point) bool {
	return math.Min(a[0], b[0]) <= p[0] && p[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= p[1] && p[1] <= math.Max(a[1], b[1])
}

// pointOnSegment reports whether p lies on the closed segment a-b.
func pointOnSegment(a, b, p orb.Point) bool {
	return cross(a, b, p) == 0 && onSegment(a, b, p)
}

func segmentBoundsDisjoint(p1, p2, q1, q2 orb.Point) bool {
	return math.Max(p1[0], p2[0]) < math.Min(q1[0], q2[0]) ||
		math.Max(q1[0], q2[0]) < math.Min(p1[0], p2[0]) ||
		math.Max(p1[1], p2[1]) < math.Min(q1[1], q2[1]) ||
		math.Max(q1[1], q2[1]) < math.Min(p1[1], p2[1])
}

// intersectSegments classifies the intersection of p1-p2 and q1-q2 and
// returns the intersection points (one for cross/touch, two for overlap).
func intersectSegments(p1, p2, q1, q2 orb.Point) (segmentRelation, []orb.Point) {
	if segmentBoundsDisjoint(p1, p2, q1, q2) {
		return relNone, nil
	}

	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)

	if sign(d1)*sign(d2) < 0 && sign(d3)*sign(d4) < 0 {
		t := d1 / (d1 - d2)
		return relCross, []orb.Point{{
			p1[0] + t*(p2[0]-p1[0]),
			p1[1] + t*(p2[1]-p1[1]),
		}}
	}

	if d1 == 0 && d2 == 0 && d3 == 0 && d4 == 0 {
		return collinearRelation(p1, p2, q1, q2)
	}

	switch {
	case d1 == 0 && onSegment(q1, q2, p1):
		return relTouch, []orb.Point{p1}
	case d2 == 0 && onSegment(q1, q2, p2):
		return relTouch, []orb.Point{p2}
	case d3 == 0 && onSegment(p1, p2, q1):
		return relTouch, []orb.Point{q1}
	case d4 == 0 && onSegment(p1, p2, q2):
		return relTouch, []orb.Point{q2}
	}
	return relNone, nil
}

func collinearRelation(p1, p2, q1, q2 orb.Point) (segmentRelation, []orb.Point) {
	var pts []orb.Point
	add := func(p orb.Point) {
		for _, e := range pts {
			if e == p {
				return
			}
		}
		pts = append(pts, p)
	}
	if onSegment(q1, q2, p1) {
		add(p1)
	}
	if onSegment(q1, q2, p2) {
		add(p2)
	}
	if onSegment(p1, p2, q1) {
		add(q1)
	}
	if onSegment(p1, p2, q2) {
		add(q2)
	}

	switch len(pts) {
	case 0:
		return relNone, nil
	case 1:
		return relTouch, pts
	default:
		return relOverlap, pts
	}
}

// pointLocation is the position of a point relative to an area.
type pointLocation int

const (
	locExterior pointLocation = iota
	locBoundary
	locInterior
)

// locateInRing locates p relative to the closed ring r using ray casting.
func locateInRing(r orb.Ring, p orb.Point) pointLocation {
	n := len(r)
	if n == 0 {
		return locExterior
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := r[j], r[i]
		if pointOnSegment(a, b, p) {
			return locBoundary
		}
		if (a[1] > p[1]) != (b[1] > p[1]) {
			x := (b[0]-a[0])*(p[1]-a[1])/(b[1]-a[1]) + a[0]
			if p[0] < x {
				inside = !inside
			}
		}
	}
	if inside {
		return locInterior
	}
	return locExterior
}

// locateInPolygon locates p relative to a polygon with holes.
func locateInPolygon(poly orb.Polygon, p orb.Point) pointLocation {
	if len(poly) == 0 {
		return locExterior
	}
	loc := locateInRing(poly[0], p)
	if loc != locInterior {
		return loc
	}
	for _, hole := range poly[1:] {
		switch locateInRing(hole, p) {
		case locBoundary:
			return locBoundary
		case locInterior:
			return locExterior
		}
	}
	return locInterior
}

// signedArea returns the shoelace area of the ring, positive when counter-clockwise.
func signedArea(r orb.Ring) float64 {
	n := len(r)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += r[i][0]*r[j][1] - r[j][0]*r[i][1]
	}
	return sum / 2
}

// interiorPoint returns a point strictly inside a simple closed ring.
func interiorPoint(r orb.Ring) (orb.Point, bool) {
	pts := openRing(r)
	n := len(pts)
	if n < 3 {
		return orb.Point{}, false
	}
	orientation := sign(signedArea(r))
	if orientation == 0 {
		return orb.Point{}, false
	}

	for i := 0; i < n; i++ {
		prev, cur, next := pts[(i+n-1)%n], pts[i], pts[(i+1)%n]
		if sign(cross(prev, cur, next)) != orientation {
			continue
		}
		c := orb.Point{
			(prev[0] + cur[0] + next[0]) / 3,
			(prev[1] + cur[1] + next[1]) / 3,
		}
		if locateInRing(r, c) == locInterior {
			return c, true
		}
	}

	// Fall back to probing just inside each edge midpoint.
	for i := 0; i < n; i++ {
		a, b := pts[i], pts[(i+1)%n]
		mid := orb.Point{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}
		dx, dy := b[0]-a[0], b[1]-a[1]
		length := math.Hypot(dx, dy)
		if length == 0 {
			continue
		}
		// left normal points inward for counter-clockwise rings
		nx, ny := -dy/length, dx/length
		if orientation < 0 {
			nx, ny = -nx, -ny
		}
		for _, f := range []float64{1e-3, 1e-6, 1e-9} {
			c := orb.Point{mid[0] + nx*length*f, mid[1] + ny*length*f}
			if locateInRing(r, c) == locInterior {
				return c, true
			}
		}
	}
	return orb.Point{}, false
}

// openRing returns the ring positions without the closing position.
func openRing(r orb.Ring) []orb.Point {
	if len(r) > 1 && r[0] == r[len(r)-1] {
		return r[:len(r)-1]
	}
	return r
}

func isFinite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsNaN(p[1]) && !math.IsInf(p[0], 0) && !math.IsInf(p[1], 0)
}

func distinctCount(pts []orb.Point) int {
	seen := make(map[orb.Point]struct{}, len(pts))
	for _, p := range pts {
		seen[p] = struct{}{}
	}
	return len(seen)
}

// dedupe drops consecutive repeated positions.
func dedupe(pts []orb.Point) []orb.Point {
	out := make([]orb.Point, 0, len(pts))
	for _, p := range pts {
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	return out
}
