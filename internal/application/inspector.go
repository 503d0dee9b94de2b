package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/jobrunner/geofix/internal/domain"
	"github.com/jobrunner/geofix/internal/ports/output"
)

// InspectorService summarizes datasets without modifying them.
type InspectorService struct {
	repo    output.DatasetRepository
	engine  output.GeometryEngine
	metrics output.MetricsCollector
	logger  *slog.Logger
}

// NewInspectorService creates a new inspector service.
func NewInspectorService(
	repo output.DatasetRepository,
	engine output.GeometryEngine,
	metrics output.MetricsCollector,
	logger *slog.Logger,
) *InspectorService {
	return &InspectorService{
		repo:    repo,
		engine:  engine,
		metrics: metrics,
		logger:  logger,
	}
}

// Inspect reads the dataset and reports CRS, columns, geometry types,
// feature count, invalid count and bounds.
func (s *InspectorService) Inspect(ctx context.Context, path string) (*domain.MetadataSummary, error) {
	start := time.Now()
	summary, err := s.inspect(ctx, path)
	s.metrics.IncOperationCount("inspect", err == nil)
	s.metrics.ObserveOperationDuration("inspect", time.Since(start))
	return summary, err
}

func (s *InspectorService) inspect(ctx context.Context, path string) (*domain.MetadataSummary, error) {
	ds, err := s.repo.Read(ctx, path)
	if err != nil {
		s.logger.Warn("failed to read dataset", "path", path, "error", err)
		return nil, err
	}

	invalid, _, err := validityMask(ctx, s.engine, ds.Features)
	if err != nil {
		return nil, err
	}

	bounds, hasBounds := ds.Bounds()
	summary := &domain.MetadataSummary{
		Path:          path,
		CRS:           ds.CRS,
		Columns:       ds.Schema.Names(),
		Schema:        ds.Schema,
		GeometryTypes: ds.GeometryTypes(),
		FeatureCount:  ds.Len(),
		InvalidCount:  invalid,
		Bounds:        bounds,
		HasBounds:     hasBounds,
	}

	s.logger.Info("inspected dataset",
		"path", path,
		"crs", ds.CRS.String(),
		"features", ds.Len(),
		"invalid", invalid,
	)
	return summary, nil
}

// validityMask checks every feature with the engine and returns the number
// of invalid geometries and a per-feature invalid flag.
func validityMask(ctx context.Context, engine output.GeometryEngine, features []domain.Feature) (int, []bool, error) {
	mask := make([]bool, len(features))
	n := 0
	for i := range features {
		ok, err := engine.IsValid(ctx, features[i].Geometry)
		if err != nil {
			return 0, nil, err
		}
		if !ok {
			mask[i] = true
			n++
		}
	}
	return n, mask, nil
}
