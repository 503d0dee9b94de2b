package spatialite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/jobrunner/geofix/internal/domain"
)

// Engine implements output.GeometryEngine and output.CoordinateTransformer
// using SpatiaLite's GEOS and PROJ bindings.
type Engine struct {
	mu      sync.Mutex
	db      *sql.DB
	version string
	logger  *slog.Logger
}

// Open creates an in-memory SpatiaLite database with the EPSG definitions
// loaded. It fails with domain.ErrEngineUnavailable when the extension
// cannot be loaded.
func Open(ctx context.Context, libraryPath string, logger *slog.Logger) (*Engine, error) {
	register(libraryPath)

	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEngineUnavailable, err)
	}
	// every connection of an in-memory database is a separate database
	db.SetMaxOpenConns(1)

	var version string
	if err := db.QueryRowContext(ctx, "SELECT spatialite_version()").Scan(&version); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: spatialite extension not loaded: %v", domain.ErrEngineUnavailable, err)
	}

	// spatial_ref_sys is required by ST_Transform
	if _, err := db.ExecContext(ctx, "SELECT InitSpatialMetaDataFull(1)"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: initializing spatial metadata: %v", domain.ErrEngineUnavailable, err)
	}

	logger.Info("spatialite engine ready", "version", version)
	return &Engine{db: db, version: version, logger: logger}, nil
}

// Name identifies the engine.
func (e *Engine) Name() string {
	return "spatialite"
}

// Version returns the loaded SpatiaLite version.
func (e *Engine) Version() string {
	return e.version
}

// IsValid reports whether SpatiaLite considers the geometry valid.
func (e *Engine) IsValid(ctx context.Context, g orb.Geometry) (bool, error) {
	if g == nil {
		return true, nil
	}
	data, err := wkb.Marshal(g)
	if err != nil {
		return false, fmt.Errorf("encoding geometry: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var valid sql.NullInt64
	if err := e.db.QueryRowContext(ctx, "SELECT ST_IsValid(GeomFromWKB(?))", data).Scan(&valid); err != nil {
		return false, fmt.Errorf("checking validity: %w", err)
	}
	// -1 and NULL mean the geometry could not be evaluated
	return valid.Valid && valid.Int64 == 1, nil
}

// MakeValid returns SpatiaLite's repaired version of the geometry.
func (e *Engine) MakeValid(ctx context.Context, g orb.Geometry) (orb.Geometry, error) {
	if g == nil {
		return nil, nil
	}
	return e.apply(ctx, "SELECT AsBinary(ST_MakeValid(GeomFromWKB(?)))", g)
}

// Transform reprojects the geometry between two EPSG coordinate systems.
func (e *Engine) Transform(ctx context.Context, g orb.Geometry, from, to domain.CRS) (orb.Geometry, error) {
	if !from.IsSet() {
		return nil, domain.ErrCRSUnset
	}
	if g == nil {
		return nil, nil
	}
	if from == to {
		return orb.Clone(g), nil
	}

	src, okFrom := from.EPSGCode()
	dst, okTo := to.EPSGCode()
	if !okFrom || !okTo {
		return nil, &domain.TransformError{From: from, To: to, Err: domain.ErrUnsupportedProjection}
	}

	out, err := e.apply(ctx, "SELECT AsBinary(ST_Transform(GeomFromWKB(?, ?), ?))", g, src, dst)
	if err != nil {
		return nil, &domain.TransformError{From: from, To: to, Err: err}
	}
	return out, nil
}

// IsSupported reports whether both systems are present in spatial_ref_sys.
func (e *Engine) IsSupported(from, to domain.CRS) bool {
	src, okFrom := from.EPSGCode()
	dst, okTo := to.EPSGCode()
	if !okFrom || !okTo {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var count int
	err := e.db.QueryRow("SELECT COUNT(DISTINCT srid) FROM spatial_ref_sys WHERE srid IN (?, ?)", src, dst).Scan(&count)
	if err != nil {
		return false
	}
	return count == 2 || (src == dst && count == 1)
}

// Close closes the in-memory database.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.db.Close()
}

// apply runs a query whose first argument is the WKB of g and whose single
// result column is a WKB geometry.
func (e *Engine) apply(ctx context.Context, query string, g orb.Geometry, args ...any) (orb.Geometry, error) {
	data, err := wkb.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encoding geometry: %w", err)
	}

	e.mu.Lock()
	var out []byte
	err = e.db.QueryRowContext(ctx, query, append([]any{data}, args...)...).Scan(&out)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("spatialite returned no geometry")
	}

	geom, err := wkb.Unmarshal(out)
	if err != nil {
		return nil, fmt.Errorf("decoding geometry: %w", err)
	}
	return geom, nil
}
