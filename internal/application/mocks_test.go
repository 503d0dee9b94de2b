package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/jobrunner/geofix/internal/domain"
	"github.com/jobrunner/geofix/internal/ports/output"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// mockRepository implements output.DatasetRepository in memory.
type mockRepository struct {
	mu       sync.Mutex
	datasets map[string]*domain.Dataset
	written  map[string]*domain.Dataset
	readErr  error
	writeErr error
}

func newMockRepository(datasets map[string]*domain.Dataset) *mockRepository {
	if datasets == nil {
		datasets = map[string]*domain.Dataset{}
	}
	return &mockRepository{datasets: datasets, written: map[string]*domain.Dataset{}}
}

func (m *mockRepository) Read(_ context.Context, path string) (*domain.Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.readErr != nil {
		return nil, &domain.ReadError{Path: path, Err: m.readErr}
	}
	ds, ok := m.datasets[path]
	if !ok {
		ds, ok = m.written[path]
	}
	if !ok {
		return nil, &domain.ReadError{Path: path, Err: domain.ErrDatasetNotFound}
	}
	cp := *ds
	cp.Path = path
	return &cp, nil
}

func (m *mockRepository) Write(_ context.Context, path string, ds *domain.Dataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writeErr != nil {
		return &domain.WriteError{Path: path, Err: m.writeErr}
	}
	m.written[path] = ds
	return nil
}

// mockTransformer converts between EPSG:4326 and EPSG:3857 with the
// spherical Mercator formulas and rejects everything else.
type mockTransformer struct {
	calls int
	err   error
}

func (m *mockTransformer) Transform(_ context.Context, g orb.Geometry, from, to domain.CRS) (orb.Geometry, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if !from.IsSet() {
		return nil, domain.ErrCRSUnset
	}
	if g == nil {
		return nil, nil
	}
	switch {
	case from == to:
		return orb.Clone(g), nil
	case from == domain.CRSWGS84 && to == domain.CRSWebMercator:
		return project.Geometry(orb.Clone(g), project.WGS84.ToMercator), nil
	case from == domain.CRSWebMercator && to == domain.CRSWGS84:
		return project.Geometry(orb.Clone(g), project.Mercator.ToWGS84), nil
	}
	return nil, &domain.TransformError{From: from, To: to, Err: domain.ErrUnsupportedProjection}
}

func (m *mockTransformer) IsSupported(from, to domain.CRS) bool {
	known := func(c domain.CRS) bool { return c == domain.CRSWGS84 || c == domain.CRSWebMercator }
	return known(from) && known(to)
}

// mockEngine implements output.GeometryEngine with the domain algorithms.
type mockEngine struct {
	validErr   error
	repairErr  error
	panicValue interface{}
}

func (m *mockEngine) Name() string { return "mock" }

func (m *mockEngine) IsValid(_ context.Context, g orb.Geometry) (bool, error) {
	if m.validErr != nil {
		return false, m.validErr
	}
	return domain.IsValid(g, domain.RepairConfig{}), nil
}

func (m *mockEngine) MakeValid(_ context.Context, g orb.Geometry) (orb.Geometry, error) {
	if m.panicValue != nil {
		panic(m.panicValue)
	}
	if m.repairErr != nil {
		return nil, m.repairErr
	}
	return domain.MakeValid(g, domain.RepairConfig{}), nil
}

// mockInspector implements input.MetadataInspector.
type mockInspector struct {
	summaries map[string]*domain.MetadataSummary
	err       error
}

func (m *mockInspector) Inspect(_ context.Context, path string) (*domain.MetadataSummary, error) {
	if m.err != nil {
		return nil, &domain.ReadError{Path: path, Err: m.err}
	}
	if s, ok := m.summaries[path]; ok {
		return s, nil
	}
	return &domain.MetadataSummary{Path: path, CRS: domain.CRSWGS84}, nil
}

// mockStorage implements output.ObjectStorage for testing.
type mockStorage struct {
	mu          sync.Mutex
	objects     []output.StorageObject
	downloadErr error
	listErr     error
	uploadErr   error
	downloaded  []string
	uploaded    map[string]string // key -> source path
}

func (m *mockStorage) List(_ context.Context) ([]output.StorageObject, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.objects, nil
}

func (m *mockStorage) Download(_ context.Context, key, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.downloadErr != nil {
		return m.downloadErr
	}
	m.downloaded = append(m.downloaded, key)
	return nil
}

func (m *mockStorage) GetReader(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (m *mockStorage) Exists(_ context.Context, key string) (bool, error) {
	for _, obj := range m.objects {
		if obj.Key == key {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStorage) Upload(_ context.Context, src, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return m.uploadErr
	}
	if m.uploaded == nil {
		m.uploaded = map[string]string{}
	}
	m.uploaded[key] = src
	return nil
}

// mockMetrics records the calls of the services under test.
type mockMetrics struct {
	mu         sync.Mutex
	operations map[string]int
	failures   map[string]int
	repaired   int
	joined     int
	datasets   int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{operations: map[string]int{}, failures: map[string]int{}}
}

func (m *mockMetrics) IncOperationCount(op string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations[op]++
	if !success {
		m.failures[op]++
	}
}

func (m *mockMetrics) ObserveOperationDuration(string, time.Duration) {}

func (m *mockMetrics) AddRepairedGeometries(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repaired += n
}

func (m *mockMetrics) AddJoinedRows(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joined += n
}

func (m *mockMetrics) SetDatasetsKnown(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasets = n
}

func (m *mockMetrics) IncStorageOperations(string, bool)            {}
func (m *mockMetrics) ObserveStorageDuration(string, time.Duration) {}

// Fixtures.

func square(x0, y0, x1, y1 float64) orb.Polygon {
	return orb.Polygon{{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}}
}

var (
	bowtie       = orb.Polygon{{{0, 0}, {2, 2}, {2, 0}, {0, 2}, {0, 0}}}
	unclosedRing = orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}}}
)

func dataset(crs domain.CRS, geoms ...orb.Geometry) *domain.Dataset {
	features := make([]domain.Feature, len(geoms))
	for i, g := range geoms {
		features[i] = domain.Feature{ID: i, Geometry: g, Properties: map[string]interface{}{"id": i}}
	}
	return &domain.Dataset{
		CRS:      crs,
		Schema:   domain.Schema{{Name: "id", Type: domain.TypeInteger}},
		Features: features,
	}
}
