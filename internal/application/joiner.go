package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/paulmach/orb"

	"github.com/jobrunner/geofix/internal/domain"
	"github.com/jobrunner/geofix/internal/ports/output"
)

// IndexRightColumn holds the target feature index in joined tables.
const IndexRightColumn = "index_right"

// JoinService aligns datasets to a common CRS and joins them spatially.
type JoinService struct {
	repo        output.DatasetRepository
	transformer output.CoordinateTransformer
	metrics     output.MetricsCollector
	logger      *slog.Logger
	writeResult bool
}

// JoinServiceConfig holds configuration for the join service.
type JoinServiceConfig struct {
	WriteResult bool // persist the joined table to the _sjoin path
}

// NewJoinService creates a new join service.
func NewJoinService(
	repo output.DatasetRepository,
	transformer output.CoordinateTransformer,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	cfg JoinServiceConfig,
) *JoinService {
	return &JoinService{
		repo:        repo,
		transformer: transformer,
		metrics:     metrics,
		logger:      logger,
		writeResult: cfg.WriteResult,
	}
}

// joinPair is one row of an inner spatial join.
type joinPair struct {
	left, right int
}

// Join reprojects the source into the target's CRS when they differ,
// persists the aligned source to the _joined path and counts the
// (source, target) pairs satisfying the predicate.
func (s *JoinService) Join(ctx context.Context, sourcePath, targetPath string, predicate domain.Predicate) (*domain.JoinSummary, error) {
	start := time.Now()
	summary, err := s.join(ctx, sourcePath, targetPath, predicate)
	s.metrics.IncOperationCount("join", err == nil)
	s.metrics.ObserveOperationDuration("join", time.Since(start))
	if err == nil {
		s.metrics.AddJoinedRows(summary.Rows)
	}
	return summary, err
}

func (s *JoinService) join(ctx context.Context, sourcePath, targetPath string, predicate domain.Predicate) (*domain.JoinSummary, error) {
	predicate, err := domain.ParsePredicate(string(predicate))
	if err != nil {
		return nil, err
	}

	source, err := s.repo.Read(ctx, sourcePath)
	if err != nil {
		return nil, err
	}
	target, err := s.repo.Read(ctx, targetPath)
	if err != nil {
		return nil, err
	}

	summary := &domain.JoinSummary{
		SourcePath: sourcePath,
		TargetPath: targetPath,
		Predicate:  predicate,
		SourceCRS:  source.CRS,
		TargetCRS:  target.CRS,
	}

	aligned := source
	if source.CRS != target.CRS {
		s.logger.Debug("aligning source to target crs", "from", source.CRS.String(), "to", target.CRS.String())
		aligned, err = reprojectDataset(ctx, s.transformer, source, target.CRS)
		if err != nil {
			return nil, err
		}
		summary.Reprojected = true
	}

	summary.AlignedPath = domain.DeriveOutputPath(sourcePath, domain.MarkerJoined)
	if err := s.repo.Write(ctx, summary.AlignedPath, aligned); err != nil {
		return nil, err
	}

	pairs, err := spatialJoin(ctx, aligned.Features, target.Features, predicate)
	if err != nil {
		return nil, err
	}
	summary.Rows = len(pairs)

	if s.writeResult {
		summary.ResultPath = domain.DeriveOutputPath(sourcePath, domain.MarkerSJoin)
		if err := s.repo.Write(ctx, summary.ResultPath, joinedDataset(aligned, target, pairs)); err != nil {
			return nil, err
		}
	}

	s.logger.Info("joined datasets",
		"source", sourcePath,
		"target", targetPath,
		"predicate", predicate,
		"reprojected", summary.Reprojected,
		"rows", summary.Rows,
	)
	return summary, nil
}

// spatialJoin returns every (left, right) pair satisfying the predicate,
// ordered by left index and then right index.
func spatialJoin(ctx context.Context, left, right []domain.Feature, p domain.Predicate) ([]joinPair, error) {
	bounds := make([]orb.Bound, len(right))
	usable := make([]bool, len(right))
	for j := range right {
		if g := right[j].Geometry; !domain.IsEmptyGeometry(g) {
			bounds[j] = g.Bound()
			usable[j] = true
		}
	}

	var pairs []joinPair
	for i := range left {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g := left[i].Geometry
		if domain.IsEmptyGeometry(g) {
			continue
		}
		lb := g.Bound()
		for j := range right {
			if !usable[j] || !lb.Intersects(bounds[j]) {
				continue
			}
			if p.Evaluate(g, right[j].Geometry) {
				pairs = append(pairs, joinPair{left: i, right: j})
			}
		}
	}
	return pairs, nil
}

// joinedDataset builds the joined table: source geometry, source columns,
// index_right, then target columns. Column names present on both sides get
// _left and _right suffixes.
func joinedDataset(left, right *domain.Dataset, pairs []joinPair) *domain.Dataset {
	leftNames := make(map[string]string, len(left.Schema))
	rightNames := make(map[string]string, len(right.Schema))

	var schema domain.Schema
	for _, c := range left.Schema {
		name := c.Name
		if right.Schema.Has(name) {
			name += "_left"
		}
		leftNames[c.Name] = name
		schema = append(schema, domain.Column{Name: name, Type: c.Type})
	}
	schema = append(schema, domain.Column{Name: IndexRightColumn, Type: domain.TypeInteger})
	for _, c := range right.Schema {
		name := c.Name
		if left.Schema.Has(name) {
			name += "_right"
		}
		rightNames[c.Name] = name
		schema = append(schema, domain.Column{Name: name, Type: c.Type})
	}

	features := make([]domain.Feature, len(pairs))
	for k, pair := range pairs {
		lf, rf := left.Features[pair.left], right.Features[pair.right]
		props := make(map[string]interface{}, len(schema))
		for key, v := range lf.Properties {
			if name, ok := leftNames[key]; ok {
				props[name] = v
			}
		}
		props[IndexRightColumn] = pair.right
		for key, v := range rf.Properties {
			if name, ok := rightNames[key]; ok {
				props[name] = v
			}
		}
		features[k] = domain.Feature{ID: k, Geometry: lf.Geometry, Properties: props}
	}

	return &domain.Dataset{
		Name:     left.Name,
		CRS:      right.CRS,
		Schema:   schema,
		Features: features,
	}
}
