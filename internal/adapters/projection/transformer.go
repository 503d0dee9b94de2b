// Package projection implements coordinate transformation without a
// database, for the projections a repair workspace meets most often:
// geographic WGS 84, Web Mercator and the UTM zones.
package projection

import (
	"context"
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/jobrunner/geofix/internal/domain"
)

// system converts between a CRS and geographic WGS 84 coordinates.
type system struct {
	toWGS84   orb.Projection
	fromWGS84 orb.Projection
}

var geographic = system{
	toWGS84:   func(p orb.Point) orb.Point { return p },
	fromWGS84: func(p orb.Point) orb.Point { return p },
}

var webMercator = system{
	toWGS84:   project.Mercator.ToWGS84,
	fromWGS84: project.WGS84.ToMercator,
}

// Transformer implements output.CoordinateTransformer for geographic,
// Web Mercator and UTM coordinate systems.
type Transformer struct{}

// NewTransformer creates a new native coordinate transformer.
func NewTransformer() *Transformer {
	return &Transformer{}
}

// Transform returns a transformed copy of g. The input is never modified.
func (t *Transformer) Transform(ctx context.Context, g orb.Geometry, from, to domain.CRS) (orb.Geometry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !from.IsSet() {
		return nil, domain.ErrCRSUnset
	}
	if g == nil {
		return nil, nil
	}
	if from == to {
		return orb.Clone(g), nil
	}

	src, ok := lookup(from)
	if !ok {
		return nil, &domain.TransformError{From: from, To: to, Err: domain.ErrUnsupportedProjection}
	}
	dst, ok := lookup(to)
	if !ok {
		return nil, &domain.TransformError{From: from, To: to, Err: domain.ErrUnsupportedProjection}
	}

	out := project.Geometry(orb.Clone(g), func(p orb.Point) orb.Point {
		return dst.fromWGS84(src.toWGS84(p))
	})
	if err := checkFinite(out); err != nil {
		return nil, &domain.TransformError{From: from, To: to, Err: err}
	}
	return out, nil
}

// IsSupported reports whether both coordinate systems are known.
func (t *Transformer) IsSupported(from, to domain.CRS) bool {
	if !from.IsSet() || !to.IsSet() {
		return false
	}
	if from == to {
		return true
	}
	_, okFrom := lookup(from)
	_, okTo := lookup(to)
	return okFrom && okTo
}

// lookup resolves a CRS to a coordinate system. ETRS89 is treated as
// identical to WGS 84.
func lookup(c domain.CRS) (system, bool) {
	if c.IsPROJ() {
		return parsePROJ(string(c))
	}
	code, ok := c.EPSGCode()
	if !ok {
		return system{}, false
	}
	return bySRID(code)
}

func bySRID(code int) (system, bool) {
	switch {
	case code == 4326 || code == 4258:
		return geographic, true
	case code == 3857 || code == 900913 || code == 102100:
		return webMercator, true
	case code >= 32601 && code <= 32660:
		return utmSystem(code-32600, false), true
	case code >= 32701 && code <= 32760:
		return utmSystem(code-32700, true), true
	case code >= 25828 && code <= 25838:
		return utmSystem(code-25800, false), true
	}
	return system{}, false
}

func checkFinite(g orb.Geometry) error {
	var bad bool
	project.Geometry(g, func(p orb.Point) orb.Point {
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
			bad = true
		}
		return p
	})
	if bad {
		return errors.New("coordinates outside the projection domain")
	}
	return nil
}
