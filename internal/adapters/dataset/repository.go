// Package dataset implements dataset file access for GeoJSON and Shapefile.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jobrunner/geofix/internal/domain"
)

// Repository implements output.DatasetRepository.
type Repository struct {
	cfg    domain.RepairConfig
	logger *slog.Logger
}

// NewRepository creates a new dataset repository. When cfg.AcceptUnclosedRings
// is set, unclosed polygon rings are closed while reading.
func NewRepository(cfg domain.RepairConfig, logger *slog.Logger) *Repository {
	return &Repository{
		cfg:    cfg,
		logger: logger,
	}
}

// Read loads a dataset from a GeoJSON file, a shapefile or a zipped shapefile.
func (r *Repository) Read(ctx context.Context, path string) (*domain.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.ReadError{Path: path, Err: err}
	}

	format, err := domain.DetectFormat(path)
	if err != nil {
		return nil, &domain.ReadError{Path: path, Err: err}
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = domain.ErrDatasetNotFound
		}
		return nil, &domain.ReadError{Path: path, Err: err}
	}

	var ds *domain.Dataset
	switch format {
	case domain.FormatGeoJSON:
		ds, err = readGeoJSON(path)
	case domain.FormatShapefile:
		ds, err = readShapefile(path)
	case domain.FormatZip:
		ds, err = readZippedShapefile(path)
	}
	if err != nil {
		return nil, &domain.ReadError{Path: path, Err: err}
	}

	ds.Path = path
	if ds.Name == "" {
		ds.Name = domain.DeriveLayerName(path)
	}
	if r.cfg.AcceptUnclosedRings {
		for i := range ds.Features {
			ds.Features[i].Geometry = domain.CloseRings(ds.Features[i].Geometry)
		}
	}

	r.logger.Debug("loaded dataset",
		"path", path,
		"format", format,
		"crs", ds.CRS.String(),
		"features", ds.Len(),
	)
	return ds, nil
}

// Write persists the dataset as GeoJSON. The file is written to a temporary
// name next to path and renamed into place.
func (r *Repository) Write(ctx context.Context, path string, ds *domain.Dataset) error {
	if err := ctx.Err(); err != nil {
		return &domain.WriteError{Path: path, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &domain.WriteError{Path: path, Err: fmt.Errorf("creating directory: %w", err)}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &domain.WriteError{Path: path, Err: err}
	}
	tmpName := tmp.Name()

	if err := writeGeoJSON(tmp, ds, domain.DeriveLayerName(path)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &domain.WriteError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &domain.WriteError{Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &domain.WriteError{Path: path, Err: err}
	}

	r.logger.Debug("wrote dataset", "path", path, "features", ds.Len())
	return nil
}
