package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jobrunner/geofix/internal/domain"
	"github.com/jobrunner/geofix/internal/ports/output"
)

// Repair pipeline stages, reported in *domain.RepairError.
const (
	StageLoad      = "load"
	StageValidate  = "validate"
	StageRepair    = "repair"
	StageReproject = "reproject"
	StagePersist   = "persist"
)

// RepairService repairs invalid geometries and reconciles the CRS.
type RepairService struct {
	repo          output.DatasetRepository
	engine        output.GeometryEngine
	transformer   output.CoordinateTransformer
	metrics       output.MetricsCollector
	logger        *slog.Logger
	defaultTarget domain.CRS
}

// NewRepairService creates a new repair service. An unset default target
// falls back to EPSG:4326.
func NewRepairService(
	repo output.DatasetRepository,
	engine output.GeometryEngine,
	transformer output.CoordinateTransformer,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	defaultTarget domain.CRS,
) *RepairService {
	if !defaultTarget.IsSet() {
		defaultTarget = domain.DefaultTargetCRS
	}
	return &RepairService{
		repo:          repo,
		engine:        engine,
		transformer:   transformer,
		metrics:       metrics,
		logger:        logger,
		defaultTarget: defaultTarget,
	}
}

// Repair runs load, validate, repair, reproject and persist, and reports
// what was done. Every failure, including a panic, comes back as a
// *domain.RepairError naming the stage.
func (s *RepairService) Repair(ctx context.Context, path string, target domain.CRS) (report *domain.RepairReport, err error) {
	start := time.Now()
	stage := StageLoad

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("repair panicked", "path", path, "stage", stage, "panic", r)
			report = nil
			err = &domain.RepairError{Path: path, Stage: stage, Err: fmt.Errorf("%w: %v", domain.ErrInternal, r)}
		}
		s.metrics.IncOperationCount("repair", err == nil)
		s.metrics.ObserveOperationDuration("repair", time.Since(start))
	}()

	fail := func(e error) (*domain.RepairReport, error) {
		s.logger.Warn("repair failed", "path", path, "stage", stage, "error", e)
		return nil, &domain.RepairError{Path: path, Stage: stage, Err: e}
	}

	if !target.IsSet() {
		target = s.defaultTarget
	}
	if err := target.Validate(); err != nil {
		return fail(err)
	}

	ds, err := s.repo.Read(ctx, path)
	if err != nil {
		return fail(err)
	}

	stage = StageValidate
	invalid, mask, err := validityMask(ctx, s.engine, ds.Features)
	if err != nil {
		return fail(err)
	}

	stage = StageRepair
	if invalid > 0 {
		features := make([]domain.Feature, len(ds.Features))
		for i, f := range ds.Features {
			if !mask[i] {
				features[i] = f
				continue
			}
			g, err := s.engine.MakeValid(ctx, f.Geometry)
			if err != nil {
				return fail(fmt.Errorf("feature %d: %w", i, err))
			}
			features[i] = f.WithGeometry(g)
		}
		ds = ds.WithFeatures(features)
		s.metrics.AddRepairedGeometries(invalid)
	}

	stage = StageReproject
	original := ds.CRS
	reprojected := original != target
	if reprojected {
		ds, err = reprojectDataset(ctx, s.transformer, ds, target)
		if err != nil {
			return fail(err)
		}
	}

	stage = StagePersist
	out := domain.DeriveOutputPath(path, domain.MarkerFixed)
	if err := s.repo.Write(ctx, out, ds); err != nil {
		return fail(err)
	}

	report = &domain.RepairReport{
		InputPath:     path,
		OutputPath:    out,
		RepairedCount: invalid,
		OriginalCRS:   original,
		TargetCRS:     target,
		Reprojected:   reprojected,
	}
	s.logger.Info("repaired dataset",
		"path", path,
		"repaired", invalid,
		"from", original.String(),
		"to", target,
		"output", out,
	)
	return report, nil
}
