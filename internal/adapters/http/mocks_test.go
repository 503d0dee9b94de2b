package http

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jobrunner/geofix/internal/application"
	"github.com/jobrunner/geofix/internal/config"
	"github.com/jobrunner/geofix/internal/domain"
	"github.com/jobrunner/geofix/internal/ports/input"
)

// mockActions implements input.ActionInvoker.
type mockActions struct {
	mu       sync.Mutex
	results  map[string]domain.Result
	invoked  int
	lastName string
	lastArgs map[string]string
}

func (m *mockActions) Actions() []input.ActionSpec {
	return []input.ActionSpec{
		{Name: "get_layer_metadata", Params: []input.ActionParam{{Name: "file_path", Required: true}}},
		{Name: "repair", Params: []input.ActionParam{{Name: "file_path", Required: true}, {Name: "target_crs", Default: "EPSG:4326"}}},
	}
}

func (m *mockActions) Invoke(_ context.Context, name string, args map[string]string) domain.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoked++
	m.lastName = name
	m.lastArgs = args

	if r, ok := m.results[name]; ok {
		r.Action = name
		return r
	}
	return domain.Result{
		ID:      "00000000-0000-0000-0000-000000000000",
		Action:  name,
		Status:  domain.StatusFailure,
		Kind:    domain.KindNotFound,
		Message: "action: not found",
	}
}

// mockCatalog implements DatasetCatalog.
type mockCatalog struct {
	mu         sync.Mutex
	datasets   []domain.DatasetInfo
	registered []string
}

func (m *mockCatalog) ListDatasets(_ context.Context) ([]domain.DatasetInfo, error) {
	return m.datasets, nil
}

func (m *mockCatalog) GetDataset(_ context.Context, name string) (*domain.DatasetInfo, error) {
	for i := range m.datasets {
		if m.datasets[i].Name == name || m.datasets[i].Path == name {
			return &m.datasets[i], nil
		}
	}
	return nil, domain.ErrDatasetNotFound
}

func (m *mockCatalog) Register(_ context.Context, path string) (*domain.DatasetInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registered = append(m.registered, path)
	return &domain.DatasetInfo{Name: domain.DeriveLayerName(path), Path: path, Status: domain.DatasetStatusReady}, nil
}

// mockHealth implements input.HealthChecker.
type mockHealth struct {
	healthy bool
	ready   bool
}

func (m *mockHealth) IsHealthy(_ context.Context) bool { return m.healthy }
func (m *mockHealth) IsReady(_ context.Context) bool   { return m.ready }

func (m *mockHealth) GetHealthDetails(_ context.Context) input.HealthDetails {
	return input.HealthDetails{
		Healthy:          m.healthy,
		Ready:            m.ready,
		DatasetsKnown:    2,
		DatasetsReadable: 1,
		Components:       map[string]string{"engine": "native"},
	}
}

// mockSync implements SyncTrigger.
type mockSync struct {
	err error
}

func (m *mockSync) TriggerSync(_ context.Context) (application.SyncResult, error) {
	if m.err != nil {
		return application.SyncResult{}, m.err
	}
	return application.SyncResult{DatasetsAdded: 1, DatasetsTotal: 3, SyncedAt: time.Now()}, nil
}

type testEnv struct {
	server    *Server
	actions   *mockActions
	catalog   *mockCatalog
	health    *mockHealth
	sync      *mockSync
	workspace *application.Workspace
}

func newTestEnv(t *testing.T, cors config.CORSConfig) *testEnv {
	t.Helper()

	ws, err := application.NewWorkspace(t.TempDir())
	if err != nil {
		t.Fatalf("NewWorkspace() error = %v", err)
	}

	env := &testEnv{
		actions:   &mockActions{results: map[string]domain.Result{}},
		catalog:   &mockCatalog{},
		health:    &mockHealth{healthy: true, ready: true},
		sync:      &mockSync{},
		workspace: ws,
	}

	cfg := config.ServerConfig{Host: "127.0.0.1", Port: 8080, MaxUploadSize: 1024, CORS: cors}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.server = NewServer(cfg, env.actions, env.catalog, env.health, env.sync, ws, nil, "", logger)
	return env
}
