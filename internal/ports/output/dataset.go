package output

import (
	"context"

	"github.com/paulmach/orb"

	"github.com/jobrunner/geofix/internal/domain"
)

// DatasetRepository defines the secondary port for dataset file access.
type DatasetRepository interface {
	// Read loads a dataset with its CRS, schema and features.
	Read(ctx context.Context, path string) (*domain.Dataset, error)

	// Write persists a dataset as GeoJSON, replacing any existing file.
	Write(ctx context.Context, path string, ds *domain.Dataset) error
}

// CoordinateTransformer defines the secondary port for coordinate transformations.
type CoordinateTransformer interface {
	// Transform returns the geometry transformed from one CRS to another.
	Transform(ctx context.Context, g orb.Geometry, from, to domain.CRS) (orb.Geometry, error)

	// IsSupported checks if a transformation is supported.
	IsSupported(from, to domain.CRS) bool
}

// GeometryEngine defines the secondary port for validity checks and repair.
type GeometryEngine interface {
	// Name identifies the engine in logs and health output.
	Name() string

	// IsValid reports whether the geometry is valid.
	IsValid(ctx context.Context, g orb.Geometry) (bool, error)

	// MakeValid returns a valid version of the geometry.
	MakeValid(ctx context.Context, g orb.Geometry) (orb.Geometry, error)
}
