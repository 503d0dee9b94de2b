package projection

import (
	"context"

	"github.com/paulmach/orb"

	"github.com/jobrunner/geofix/internal/domain"
	"github.com/jobrunner/geofix/internal/ports/output"
)

// Chain delegates to the first transformer that supports a pair of
// coordinate systems.
type Chain []output.CoordinateTransformer

// Transform implements output.CoordinateTransformer.
func (c Chain) Transform(ctx context.Context, g orb.Geometry, from, to domain.CRS) (orb.Geometry, error) {
	if !from.IsSet() {
		return nil, domain.ErrCRSUnset
	}
	for _, t := range c {
		if t.IsSupported(from, to) {
			return t.Transform(ctx, g, from, to)
		}
	}
	return nil, &domain.TransformError{From: from, To: to, Err: domain.ErrUnsupportedProjection}
}

// IsSupported implements output.CoordinateTransformer.
func (c Chain) IsSupported(from, to domain.CRS) bool {
	for _, t := range c {
		if t.IsSupported(from, to) {
			return true
		}
	}
	return false
}
