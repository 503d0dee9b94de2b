// Package geometry provides the built-in geometry engine.
package geometry

import (
	"context"

	"github.com/paulmach/orb"

	"github.com/jobrunner/geofix/internal/domain"
)

// Native implements output.GeometryEngine with the planar algorithms of
// the domain package. It needs no native libraries.
type Native struct {
	cfg domain.RepairConfig
}

// NewNative creates the built-in engine.
func NewNative(cfg domain.RepairConfig) *Native {
	return &Native{cfg: cfg}
}

// Name identifies the engine.
func (n *Native) Name() string {
	return "native"
}

// IsValid reports whether the geometry is valid.
func (n *Native) IsValid(ctx context.Context, g orb.Geometry) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return domain.IsValid(g, n.cfg), nil
}

// MakeValid repairs the geometry. Valid input is returned unchanged.
func (n *Native) MakeValid(ctx context.Context, g orb.Geometry) (orb.Geometry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if domain.IsValid(g, n.cfg) {
		return g, nil
	}
	return domain.MakeValid(g, n.cfg), nil
}
