package domain

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// CloseRings appends the first position to every polygon ring whose last
// position differs from it. Other geometries are returned unchanged.
func CloseRings(g orb.Geometry) orb.Geometry {
	switch geom := g.(type) {
	case orb.Polygon:
		out := make(orb.Polygon, len(geom))
		for i, r := range geom {
			out[i] = closeRing(r)
		}
		return out
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(geom))
		for i, p := range geom {
			out[i] = CloseRings(p).(orb.Polygon)
		}
		return out
	case orb.Collection:
		out := make(orb.Collection, len(geom))
		for i, c := range geom {
			out[i] = CloseRings(c)
		}
		return out
	}
	return g
}

func closeRing(r orb.Ring) orb.Ring {
	if len(r) == 0 || r[0] == r[len(r)-1] {
		return r
	}
	out := make(orb.Ring, len(r), len(r)+1)
	copy(out, r)
	return append(out, r[0])
}

// MakeValid returns a valid geometry covering the same point set as g as far
// as the planar model allows. Valid geometries are returned unchanged.
// Polygons whose shell collapses degrade to a LineString or Point, and a
// geometry with nothing left becomes an empty collection.
func MakeValid(g orb.Geometry, cfg RepairConfig) orb.Geometry {
	if IsValid(g, cfg) {
		return g
	}

	switch geom := g.(type) {
	case orb.Point:
		return orb.Collection{}
	case orb.MultiPoint:
		out := make(orb.MultiPoint, 0, len(geom))
		for _, p := range geom {
			if isFinite(p) {
				out = append(out, p)
			}
		}
		return out
	case orb.LineString:
		return makeValidLineString(geom)
	case orb.MultiLineString:
		out := make(orb.MultiLineString, 0, len(geom))
		for _, ls := range geom {
			if fixed, ok := makeValidLineString(ls).(orb.LineString); ok {
				out = append(out, fixed)
			}
		}
		if len(out) == 0 {
			return orb.Collection{}
		}
		return out
	case orb.Ring:
		return makeValidPolygon(orb.Polygon{geom}, cfg)
	case orb.Polygon:
		return makeValidPolygon(geom, cfg)
	case orb.MultiPolygon:
		return makeValidMultiPolygon(geom, cfg)
	case orb.Collection:
		out := make(orb.Collection, 0, len(geom))
		for _, c := range geom {
			fixed := MakeValid(c, cfg)
			if IsEmptyGeometry(fixed) {
				continue
			}
			out = append(out, fixed)
		}
		return out
	}
	return g
}

func finitePoints(pts []orb.Point) []orb.Point {
	out := make([]orb.Point, 0, len(pts))
	for _, p := range pts {
		if isFinite(p) {
			out = append(out, p)
		}
	}
	return out
}

func makeValidLineString(ls orb.LineString) orb.Geometry {
	pts := dedupe(finitePoints(ls))
	switch {
	case distinctCount(pts) >= 2:
		return orb.LineString(pts)
	case len(pts) > 0:
		return pts[0]
	}
	return orb.Collection{}
}

func makeValidMultiPolygon(mp orb.MultiPolygon, cfg RepairConfig) orb.Geometry {
	var (
		polys []orb.Polygon
		rest  []orb.Geometry
	)
	for _, p := range mp {
		ps, fallback := repairPolygon(p, cfg)
		polys = append(polys, ps...)
		if fallback != nil {
			rest = append(rest, fallback)
		}
	}

	switch {
	case len(polys) > 0:
		return orb.MultiPolygon(polys)
	case len(rest) == 1:
		return rest[0]
	case len(rest) > 1:
		return orb.Collection(rest)
	}
	return orb.Collection{}
}

func makeValidPolygon(p orb.Polygon, cfg RepairConfig) orb.Geometry {
	polys, fallback := repairPolygon(p, cfg)
	switch {
	case len(polys) == 1:
		return polys[0]
	case len(polys) > 1:
		return orb.MultiPolygon(polys)
	case fallback != nil:
		return fallback
	}
	return orb.Collection{}
}

// repairPolygon rebuilds a polygon from its noded rings. When no area is
// left it returns the lower-dimension remainder of the shell instead.
func repairPolygon(p orb.Polygon, cfg RepairConfig) ([]orb.Polygon, orb.Geometry) {
	if len(p) == 0 {
		return nil, nil
	}

	rings := make([]orb.Ring, 0, len(p))
	for i, r := range p {
		cleaned := cleanRing(r, cfg)
		if distinctCount(cleaned) < 3 {
			if i == 0 {
				return nil, collapse(cleaned)
			}
			continue
		}
		rings = append(rings, cleaned)
	}

	var shells, holes []orb.Ring
	for _, cycle := range traceBoundaries(rings, nodeRings(rings)) {
		for _, loop := range splitLoops(cycle) {
			area := signedArea(loop)
			switch {
			case len(loop) < 4 || area == 0:
			case area > 0:
				shells = append(shells, loop)
			default:
				holes = append(holes, loop)
			}
		}
	}

	polys := assemble(shells, holes, cfg)
	if len(polys) == 0 {
		return nil, collapse(rings[0])
	}
	return polys, nil
}

// cleanRing drops non-finite and repeated positions and closes the ring.
func cleanRing(r orb.Ring, cfg RepairConfig) orb.Ring {
	pts := dedupe(finitePoints(r))
	if len(pts) == 0 {
		return orb.Ring{}
	}
	if cfg.ringClosed(pts) {
		return snapClosed(pts)
	}
	return closeRing(pts)
}

// collapse returns the distinct positions of a degenerate ring as a
// LineString, or a Point when only one is left.
func collapse(r orb.Ring) orb.Geometry {
	pts := openRing(r)
	switch distinctCount(pts) {
	case 0:
		return nil
	case 1:
		return pts[0]
	}
	return orb.LineString(dedupe(pts))
}

type segmentRef struct {
	ring, index int
}

// nodeRings inserts every intersection between any two segments of the
// given rings as a vertex into both segments.
func nodeRings(rings []orb.Ring) []orb.Ring {
	var segs []segmentRef
	for ri, r := range rings {
		for si := 0; si+1 < len(r); si++ {
			segs = append(segs, segmentRef{ring: ri, index: si})
		}
	}

	splits := make(map[segmentRef][]orb.Point)
	addSplit := func(s segmentRef, p orb.Point) {
		a, b := rings[s.ring][s.index], rings[s.ring][s.index+1]
		if p == a || p == b {
			return
		}
		splits[s] = append(splits[s], p)
	}

	for i := 0; i < len(segs); i++ {
		si := segs[i]
		p1, p2 := rings[si.ring][si.index], rings[si.ring][si.index+1]
		for j := i + 1; j < len(segs); j++ {
			sj := segs[j]
			q1, q2 := rings[sj.ring][sj.index], rings[sj.ring][sj.index+1]
			rel, pts := intersectSegments(p1, p2, q1, q2)
			if rel == relNone {
				continue
			}
			for _, pt := range pts {
				addSplit(si, pt)
				addSplit(sj, pt)
			}
		}
	}

	out := make([]orb.Ring, len(rings))
	for ri, r := range rings {
		noded := make(orb.Ring, 0, len(r))
		for si := 0; si+1 < len(r); si++ {
			a := r[si]
			noded = append(noded, a)
			extra := splits[segmentRef{ring: ri, index: si}]
			sort.Slice(extra, func(x, y int) bool {
				return sqDist(a, extra[x]) < sqDist(a, extra[y])
			})
			noded = append(noded, extra...)
		}
		noded = append(noded, r[len(r)-1])
		out[ri] = orb.Ring(dedupe(noded))
	}
	return out
}

func sqDist(a, b orb.Point) float64 {
	dx, dy := b[0]-a[0], b[1]-a[1]
	return dx*dx + dy*dy
}

// splitLoops cuts a closed noded ring into closed loops at every
// repeated vertex.
func splitLoops(r orb.Ring) []orb.Ring {
	var (
		loops []orb.Ring
		stack []orb.Point
		index = make(map[orb.Point]int)
	)
	for _, p := range r {
		k, seen := index[p]
		if !seen {
			index[p] = len(stack)
			stack = append(stack, p)
			continue
		}
		loop := make(orb.Ring, 0, len(stack)-k+1)
		loop = append(loop, stack[k:]...)
		loop = append(loop, p)
		loops = append(loops, loop)
		for _, q := range stack[k+1:] {
			delete(index, q)
		}
		stack = stack[:k+1]
	}
	return loops
}

type edgeKey struct {
	a, b orb.Point
}

func newEdgeKey(p, q orb.Point) edgeKey {
	if q[0] < p[0] || (q[0] == p[0] && q[1] < p[1]) {
		p, q = q, p
	}
	return edgeKey{a: p, b: q}
}

type directedEdge struct {
	from, to orb.Point
}

// traceBoundaries returns the closed boundary cycles of the area covered an
// odd number of times by the original rings. Shell cycles run
// counter-clockwise and hole cycles clockwise.
func traceBoundaries(original, noded []orb.Ring) []orb.Ring {
	count := make(map[edgeKey]int)
	var order []edgeKey
	for _, r := range noded {
		for i := 0; i+1 < len(r); i++ {
			if r[i] == r[i+1] {
				continue
			}
			k := newEdgeKey(r[i], r[i+1])
			if count[k] == 0 {
				order = append(order, k)
			}
			count[k]++
		}
	}

	edges := make([]directedEdge, 0, len(order))
	out := make(map[orb.Point][]int)
	for _, k := range order {
		if count[k]%2 == 0 {
			continue
		}
		e := directedEdge{from: k.a, to: k.b}
		if !leftFilled(original, k.a, k.b) {
			e = directedEdge{from: k.b, to: k.a}
		}
		out[e.from] = append(out[e.from], len(edges))
		edges = append(edges, e)
	}

	used := make([]bool, len(edges))
	var cycles []orb.Ring
	for start := range edges {
		if used[start] {
			continue
		}
		cycle := orb.Ring{edges[start].from}
		cur := start
		for steps := 0; steps <= len(edges); steps++ {
			used[cur] = true
			cycle = append(cycle, edges[cur].to)
			next := nextEdge(edges, out, cur)
			if next == start {
				cycles = append(cycles, cycle)
				break
			}
			if next < 0 || used[next] {
				break
			}
			cur = next
		}
	}
	return cycles
}

// nextEdge picks the outgoing edge that keeps the filled area on the left:
// the first one clockwise from the reverse of the incoming edge.
func nextEdge(edges []directedEdge, out map[orb.Point][]int, in int) int {
	v, u := edges[in].to, edges[in].from
	ref := math.Atan2(u[1]-v[1], u[0]-v[0])

	best, bestAngle := -1, math.Inf(1)
	for _, i := range out[v] {
		w := edges[i].to
		angle := ref - math.Atan2(w[1]-v[1], w[0]-v[0])
		for angle <= 0 {
			angle += 2 * math.Pi
		}
		for angle > 2*math.Pi {
			angle -= 2 * math.Pi
		}
		if angle < bestAngle {
			best, bestAngle = i, angle
		}
	}
	return best
}

// leftFilled reports whether the area just left of a-b is covered an odd
// number of times by the rings.
func leftFilled(rings []orb.Ring, a, b orb.Point) bool {
	dx, dy := b[0]-a[0], b[1]-a[1]
	length := math.Hypot(dx, dy)
	mid := orb.Point{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}
	nx, ny := -dy/length, dx/length

	for _, f := range []float64{1e-6, 1e-4, 1e-9} {
		probe := orb.Point{mid[0] + nx*length*f, mid[1] + ny*length*f}
		inside, onBoundary := 0, false
		for _, r := range rings {
			switch locateInRing(r, probe) {
			case locInterior:
				inside++
			case locBoundary:
				onBoundary = true
			}
		}
		if !onBoundary {
			return inside%2 == 1
		}
	}
	return false
}

// assemble attaches every hole to the smallest shell enclosing it and drops
// holes or pieces that would still be invalid.
func assemble(shells, holes []orb.Ring, cfg RepairConfig) []orb.Polygon {
	owned := make(map[int][]orb.Ring)
	for _, h := range holes {
		best := -1
		for i, s := range shells {
			if ringLocationIn(h, s) != locInterior {
				continue
			}
			if best < 0 || math.Abs(signedArea(s)) < math.Abs(signedArea(shells[best])) {
				best = i
			}
		}
		if best >= 0 {
			owned[best] = append(owned[best], orient(h, false))
		}
	}

	polys := make([]orb.Polygon, 0, len(shells))
	for i, s := range shells {
		poly := orb.Polygon{orient(s, true)}
		for _, h := range owned[i] {
			candidate := append(poly[:len(poly):len(poly)], h)
			if IsValid(candidate, cfg) {
				poly = candidate
			}
		}
		if IsValid(poly, cfg) {
			polys = append(polys, poly)
		}
	}
	return polys
}

// orient returns a copy of the ring wound counter-clockwise when ccw is
// set, clockwise otherwise.
func orient(r orb.Ring, ccw bool) orb.Ring {
	out := make(orb.Ring, len(r))
	copy(out, r)
	if (signedArea(out) > 0) != ccw {
		out.Reverse()
	}
	return out
}
