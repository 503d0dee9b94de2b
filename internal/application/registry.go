// Package application contains the application services.
package application

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jobrunner/geofix/internal/domain"
	"github.com/jobrunner/geofix/internal/ports/input"
	"github.com/jobrunner/geofix/internal/ports/output"
)

// shapefileSidecars are downloaded along with a .shp object.
var shapefileSidecars = []string{".shx", ".dbf", ".prj", ".cpg"}

// DatasetRegistry catalogues the datasets of the workspace.
type DatasetRegistry struct {
	mu        sync.RWMutex
	datasets  map[string]*datasetEntry // keyed by workspace-relative path
	inspector input.MetadataInspector
	storage   output.ObjectStorage
	metrics   output.MetricsCollector
	logger    *slog.Logger
	workspace *Workspace
	publish   bool
}

type datasetEntry struct {
	Info   domain.DatasetInfo
	Remote bool // downloaded from object storage
}

// RegistryConfig holds configuration for the dataset registry.
type RegistryConfig struct {
	Publish bool // upload produced files to object storage
}

// NewDatasetRegistry creates a new dataset registry. Storage may be nil.
func NewDatasetRegistry(
	inspector input.MetadataInspector,
	storage output.ObjectStorage,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	workspace *Workspace,
	cfg RegistryConfig,
) *DatasetRegistry {
	return &DatasetRegistry{
		datasets:  make(map[string]*datasetEntry),
		inspector: inspector,
		storage:   storage,
		metrics:   metrics,
		logger:    logger,
		workspace: workspace,
		publish:   cfg.Publish,
	}
}

// Register inspects a dataset and adds or refreshes its catalog entry.
// An unreadable dataset is catalogued with status error and the read
// error is returned.
func (r *DatasetRegistry) Register(ctx context.Context, path string) (*domain.DatasetInfo, error) {
	abs, err := r.workspace.Resolve(path)
	if err != nil {
		return nil, err
	}
	key := r.workspace.Rel(abs)

	format, _ := domain.DetectFormat(abs)
	info := domain.DatasetInfo{
		Name:        domain.DeriveLayerName(abs),
		Path:        key,
		Format:      format,
		Status:      domain.DatasetStatusPending,
		InspectedAt: time.Now(),
	}

	summary, inspectErr := r.inspector.Inspect(ctx, abs)
	switch {
	case inspectErr != nil:
		info.Status = domain.DatasetStatusError
		info.Error = inspectErr.Error()
	case summary.InvalidCount > 0:
		info.Status = domain.DatasetStatusInvalid
	default:
		info.Status = domain.DatasetStatusReady
	}
	if summary != nil {
		info.CRS = summary.CRS
		info.FeatureCount = summary.FeatureCount
		info.InvalidCount = summary.InvalidCount
	}

	r.mu.Lock()
	entry, ok := r.datasets[key]
	if !ok {
		entry = &datasetEntry{}
		r.datasets[key] = entry
	}
	entry.Info = info
	r.mu.Unlock()

	r.updateMetrics()
	r.logger.Info("dataset registered", "path", key, "status", info.Status, "features", info.FeatureCount)

	return &info, inspectErr
}

// Unregister removes a dataset from the catalog.
func (r *DatasetRegistry) Unregister(path string) {
	key := r.key(path)

	r.mu.Lock()
	delete(r.datasets, key)
	r.mu.Unlock()

	r.updateMetrics()
	r.logger.Info("dataset unregistered", "path", key)
}

// ListDatasets returns all catalogued datasets sorted by path.
func (r *DatasetRegistry) ListDatasets(_ context.Context) ([]domain.DatasetInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	datasets := make([]domain.DatasetInfo, 0, len(r.datasets))
	for _, entry := range r.datasets {
		datasets = append(datasets, entry.Info)
	}
	sort.Slice(datasets, func(i, j int) bool { return datasets[i].Path < datasets[j].Path })

	return datasets, nil
}

// GetDataset returns a dataset by workspace path or, failing that, by
// layer name.
func (r *DatasetRegistry) GetDataset(_ context.Context, name string) (*domain.DatasetInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.datasets[filepath.ToSlash(name)]; ok {
		info := entry.Info
		return &info, nil
	}
	for _, entry := range r.datasets {
		if entry.Info.Name == name {
			info := entry.Info
			return &info, nil
		}
	}
	return nil, domain.ErrDatasetNotFound
}

// IsRegistered returns true if a dataset with the given path is catalogued.
func (r *DatasetRegistry) IsRegistered(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.datasets[r.key(path)]
	return ok
}

// DatasetCount returns the number of catalogued datasets.
func (r *DatasetRegistry) DatasetCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.datasets)
}

// ReadableCount returns the number of datasets that could be read.
func (r *DatasetRegistry) ReadableCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, entry := range r.datasets {
		if entry.Info.IsReady() {
			n++
		}
	}
	return n
}

// updateMetrics updates the metrics collector with the current dataset count.
func (r *DatasetRegistry) updateMetrics() {
	r.metrics.SetDatasetsKnown(r.DatasetCount())
}

// Scan registers every dataset file found in the workspace.
func (r *DatasetRegistry) Scan(ctx context.Context) error {
	r.logger.Info("scanning workspace", "path", r.workspace.Root())

	return filepath.WalkDir(r.workspace.Root(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != r.workspace.Root() && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !domain.IsDatasetFile(path) {
			return nil
		}
		if _, err := r.Register(ctx, path); err != nil {
			r.logger.Warn("failed to inspect dataset", "path", path, "error", err)
		}
		return nil
	})
}

// LoadAll downloads all datasets from storage into the workspace and
// registers them.
func (r *DatasetRegistry) LoadAll(ctx context.Context) error {
	if r.storage == nil {
		return nil
	}
	r.logger.Info("loading all datasets from storage")

	objects, err := r.storage.List(ctx)
	if err != nil {
		return err
	}

	for _, obj := range objects {
		if !domain.IsDatasetFile(obj.Key) {
			continue
		}
		if err := r.fetch(ctx, obj.Key); err != nil {
			r.logger.Error("failed to load dataset", "key", obj.Key, "error", err)
		}
	}

	return nil
}

// fetch downloads an object and its sidecar files and registers it.
func (r *DatasetRegistry) fetch(ctx context.Context, key string) error {
	localPath, err := r.workspace.Resolve(filepath.FromSlash(key))
	if err != nil {
		return err
	}
	if err := r.storage.Download(ctx, key, localPath); err != nil {
		return err
	}

	if strings.EqualFold(filepath.Ext(key), ".shp") {
		base := strings.TrimSuffix(key, filepath.Ext(key))
		for _, ext := range shapefileSidecars {
			sidecar := base + ext
			if ok, err := r.storage.Exists(ctx, sidecar); err != nil || !ok {
				continue
			}
			if err := r.storage.Download(ctx, sidecar, strings.TrimSuffix(localPath, filepath.Ext(localPath))+ext); err != nil {
				r.logger.Warn("failed to download sidecar", "key", sidecar, "error", err)
			}
		}
	}

	// unreadable datasets stay catalogued with status error
	_, _ = r.Register(ctx, localPath)

	r.mu.Lock()
	if entry, ok := r.datasets[r.key(localPath)]; ok {
		entry.Remote = true
	}
	r.mu.Unlock()
	return nil
}

// SyncStats contains statistics from a sync operation.
type SyncStats struct {
	Added   int
	Removed int
}

// Sync synchronizes with remote storage, downloading new datasets and
// removing downloaded datasets that no longer exist remotely. Files
// produced locally are never removed.
func (r *DatasetRegistry) Sync(ctx context.Context) (SyncStats, error) {
	if r.storage == nil {
		return SyncStats{}, nil
	}
	r.logger.Info("syncing datasets from storage")

	objects, err := r.storage.List(ctx)
	if err != nil {
		return SyncStats{}, err
	}

	remote := make(map[string]string) // workspace path -> object key
	for _, obj := range objects {
		if domain.IsDatasetFile(obj.Key) {
			remote[filepath.ToSlash(obj.Key)] = obj.Key
		}
	}

	stats := SyncStats{}

	for path, key := range remote {
		if r.IsRegistered(path) {
			r.logger.Debug("dataset already registered, skipping", "path", path)
			continue
		}
		if err := r.fetch(ctx, key); err != nil {
			r.logger.Error("failed to download dataset", "key", key, "error", err)
			continue
		}
		stats.Added++
		r.logger.Info("new dataset synced", "path", path)
	}

	for _, path := range r.findDatasetsToRemove(remote) {
		r.logger.Info("removing dataset not in remote storage", "path", path)
		r.Unregister(path)

		localPath := filepath.Join(r.workspace.Root(), filepath.FromSlash(path))
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			r.logger.Warn("failed to delete local copy", "path", localPath, "error", err)
		}
		stats.Removed++
	}

	r.logger.Info("sync completed", "added", stats.Added, "removed", stats.Removed, "total", r.DatasetCount())
	return stats, nil
}

// findDatasetsToRemove returns downloaded datasets missing from remote storage.
func (r *DatasetRegistry) findDatasetsToRemove(remote map[string]string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var toRemove []string
	for path, entry := range r.datasets {
		if !entry.Remote {
			continue
		}
		if _, exists := remote[path]; !exists {
			toRemove = append(toRemove, path)
		}
	}
	return toRemove
}

// Publish uploads a produced file to object storage under its workspace
// path. It is a no-op unless publishing is enabled.
func (r *DatasetRegistry) Publish(ctx context.Context, path string) error {
	if !r.publish || r.storage == nil {
		return nil
	}
	abs, err := r.workspace.Resolve(path)
	if err != nil {
		return err
	}
	key := r.workspace.Rel(abs)
	if err := r.storage.Upload(ctx, abs, key); err != nil {
		return err
	}
	r.logger.Info("published dataset", "key", key)
	return nil
}

// key maps a path to its catalog key.
func (r *DatasetRegistry) key(path string) string {
	if filepath.IsAbs(path) {
		return r.workspace.Rel(path)
	}
	return filepath.ToSlash(path)
}
