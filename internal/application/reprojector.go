package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jobrunner/geofix/internal/domain"
	"github.com/jobrunner/geofix/internal/ports/output"
)

// ReprojectService transforms datasets into a target CRS.
type ReprojectService struct {
	repo          output.DatasetRepository
	transformer   output.CoordinateTransformer
	metrics       output.MetricsCollector
	logger        *slog.Logger
	defaultTarget domain.CRS
}

// NewReprojectService creates a new reproject service. An unset default
// target falls back to EPSG:4326.
func NewReprojectService(
	repo output.DatasetRepository,
	transformer output.CoordinateTransformer,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	defaultTarget domain.CRS,
) *ReprojectService {
	if !defaultTarget.IsSet() {
		defaultTarget = domain.DefaultTargetCRS
	}
	return &ReprojectService{
		repo:          repo,
		transformer:   transformer,
		metrics:       metrics,
		logger:        logger,
		defaultTarget: defaultTarget,
	}
}

// Reproject writes the dataset in the target CRS to the _fixed path and
// returns that path. The file is written even when no transform is needed.
func (s *ReprojectService) Reproject(ctx context.Context, sourcePath string, target domain.CRS) (string, error) {
	start := time.Now()
	out, err := s.reproject(ctx, sourcePath, target)
	s.metrics.IncOperationCount("reproject", err == nil)
	s.metrics.ObserveOperationDuration("reproject", time.Since(start))
	return out, err
}

func (s *ReprojectService) reproject(ctx context.Context, sourcePath string, target domain.CRS) (string, error) {
	if !target.IsSet() {
		target = s.defaultTarget
	}
	if err := target.Validate(); err != nil {
		return "", err
	}

	ds, err := s.repo.Read(ctx, sourcePath)
	if err != nil {
		return "", err
	}

	if ds.CRS != target {
		s.logger.Debug("reprojecting dataset", "path", sourcePath, "from", ds.CRS.String(), "to", target)
		ds, err = reprojectDataset(ctx, s.transformer, ds, target)
		if err != nil {
			return "", err
		}
	}

	out := domain.DeriveOutputPath(sourcePath, domain.MarkerFixed)
	if err := s.repo.Write(ctx, out, ds); err != nil {
		return "", err
	}

	s.logger.Info("reprojected dataset", "path", sourcePath, "crs", target, "output", out)
	return out, nil
}

// reprojectDataset returns a copy of ds with every geometry transformed
// into target. A dataset without geometries is only relabelled.
func reprojectDataset(ctx context.Context, t output.CoordinateTransformer, ds *domain.Dataset, target domain.CRS) (*domain.Dataset, error) {
	if _, ok := ds.Bounds(); !ok {
		out := ds.WithFeatures(ds.Features)
		out.CRS = target
		return out, nil
	}
	if !ds.CRS.IsSet() {
		return nil, &domain.TransformError{From: ds.CRS, To: target, Err: domain.ErrCRSUnset}
	}

	features := make([]domain.Feature, len(ds.Features))
	for i, f := range ds.Features {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g, err := t.Transform(ctx, f.Geometry, ds.CRS, target)
		if err != nil {
			var te *domain.TransformError
			if errors.As(err, &te) {
				return nil, err
			}
			return nil, &domain.TransformError{From: ds.CRS, To: target, Err: err}
		}
		features[i] = f.WithGeometry(g)
	}

	out := ds.WithFeatures(features)
	out.CRS = target
	return out, nil
}
