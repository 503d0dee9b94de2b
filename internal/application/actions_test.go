package application

import (
	"context"
	"strings"
	"testing"

	"github.com/jobrunner/geofix/internal/domain"
)

type actionFixture struct {
	service  *ActionService
	repo     *mockRepository
	storage  *mockStorage
	registry *DatasetRegistry
}

func newActionFixture(t *testing.T) actionFixture {
	t.Helper()
	ws, err := NewWorkspace("/ws")
	if err != nil {
		t.Fatalf("NewWorkspace failed: %v", err)
	}

	repo := newMockRepository(map[string]*domain.Dataset{
		"/ws/parcels.geojson": dataset(domain.CRSWGS84, square(0, 0, 1, 1), bowtie),
		"/ws/zones.geojson":   dataset(domain.CRSWGS84, square(0, 0, 5, 5)),
	})
	metrics := newMockMetrics()
	logger := testLogger()
	engine := &mockEngine{}
	transformer := &mockTransformer{}

	inspector := NewInspectorService(repo, engine, metrics, logger)
	storage := &mockStorage{}
	registry := NewDatasetRegistry(inspector, storage, metrics, logger, ws, RegistryConfig{Publish: true})

	service := NewActionService(
		inspector,
		NewReprojectService(repo, transformer, metrics, logger, ""),
		NewRepairService(repo, engine, transformer, metrics, logger, ""),
		NewJoinService(repo, transformer, metrics, logger, JoinServiceConfig{}),
		ws,
		registry,
		logger,
		ActionServiceConfig{},
	)
	return actionFixture{service: service, repo: repo, storage: storage, registry: registry}
}

func TestActionsListed(t *testing.T) {
	f := newActionFixture(t)

	specs := f.service.Actions()
	want := []string{ActionGetLayerMetadata, ActionRepair, ActionRepairAndJoin, ActionReproject}
	if len(specs) != len(want) {
		t.Fatalf("len(Actions()) = %d, want %d", len(specs), len(want))
	}
	for i, name := range want {
		if specs[i].Name != name {
			t.Errorf("Actions()[%d] = %q, want %q", i, specs[i].Name, name)
		}
	}
	for _, p := range specs[1].Params {
		if p.Name == "target_crs" && p.Default != "EPSG:4326" {
			t.Errorf("target_crs default = %q", p.Default)
		}
	}
}

func TestInvokeSuccess(t *testing.T) {
	tests := []struct {
		name        string
		action      string
		args        map[string]string
		wantMessage string
	}{
		{
			name:        "metadata",
			action:      ActionGetLayerMetadata,
			args:        map[string]string{"file_path": "parcels.geojson"},
			wantMessage: "CRS: EPSG:4326 | Columns: [id geometry] | Geometry: [Polygon]",
		},
		{
			name:        "reproject",
			action:      ActionReproject,
			args:        map[string]string{"source_path": "parcels.geojson", "tgt_crs": "EPSG:4326"},
			wantMessage: "Re-projected to EPSG:4326. Saved to: parcels_fixed.geojson",
		},
		{
			name:        "repair",
			action:      ActionRepair,
			args:        map[string]string{"file_path": "parcels.geojson"},
			wantMessage: "Repaired 1 invalid geometries. CRS already matches EPSG:4326. Saved to: parcels_fixed.geojson",
		},
		{
			name:        "join",
			action:      ActionRepairAndJoin,
			args:        map[string]string{"source_path": "parcels.geojson", "target_path": "zones.geojson"},
			wantMessage: "Join successful. Resulting rows: 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newActionFixture(t)
			result := f.service.Invoke(context.Background(), tt.action, tt.args)

			if !result.OK() {
				t.Fatalf("Invoke failed: %s (%s)", result.Message, result.Kind)
			}
			if result.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", result.Message, tt.wantMessage)
			}
			if result.ID == "" || result.Action != tt.action {
				t.Errorf("ID = %q, Action = %q", result.ID, result.Action)
			}
			if result.Data == nil {
				t.Error("Data should be set")
			}
		})
	}
}

func TestInvokeCataloguesOutputs(t *testing.T) {
	f := newActionFixture(t)

	result := f.service.Invoke(context.Background(), ActionRepair, map[string]string{"file_path": "parcels.geojson"})
	if !result.OK() {
		t.Fatalf("Invoke failed: %s", result.Message)
	}

	info, err := f.registry.GetDataset(context.Background(), "parcels_fixed.geojson")
	if err != nil {
		t.Fatalf("output not catalogued: %v", err)
	}
	if info.Status != domain.DatasetStatusReady {
		t.Errorf("Status = %q, want ready", info.Status)
	}
	if f.storage.uploaded["parcels_fixed.geojson"] != "/ws/parcels_fixed.geojson" {
		t.Errorf("uploaded = %v", f.storage.uploaded)
	}
}

func TestInvokeFailures(t *testing.T) {
	tests := []struct {
		name     string
		action   string
		args     map[string]string
		wantKind domain.FailureKind
		contains string
	}{
		{"unknown action", "buffer", nil, domain.KindNotFound, "buffer"},
		{"missing argument", ActionRepair, map[string]string{}, domain.KindInvalidInput, "file_path"},
		{"outside workspace", ActionGetLayerMetadata, map[string]string{"file_path": "../secret.geojson"}, domain.KindInvalidInput, "outside workspace"},
		{"missing file", ActionGetLayerMetadata, map[string]string{"file_path": "nope.geojson"}, domain.KindRead, "nope.geojson"},
		{"repair missing file", ActionRepair, map[string]string{"file_path": "nope.geojson"}, domain.KindRead, "error during processing (load)"},
		{"bad predicate", ActionRepairAndJoin, map[string]string{"source_path": "parcels.geojson", "target_path": "zones.geojson", "predicate": "touches"}, domain.KindUnsupported, "touches"},
		{"unsupported crs", ActionReproject, map[string]string{"source_path": "parcels.geojson", "tgt_crs": "EPSG:2056"}, domain.KindTransform, "EPSG:2056"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newActionFixture(t)
			result := f.service.Invoke(context.Background(), tt.action, tt.args)

			if result.Status != domain.StatusFailure {
				t.Fatalf("Status = %q, want failure", result.Status)
			}
			if result.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q (%s)", result.Kind, tt.wantKind, result.Message)
			}
			if !strings.Contains(result.Message, tt.contains) {
				t.Errorf("Message = %q, want it to contain %q", result.Message, tt.contains)
			}
			if result.Data != nil {
				t.Errorf("Data = %v, want nil", result.Data)
			}
		})
	}
}

// panickingInspector panics on every call.
type panickingInspector struct{}

func (panickingInspector) Inspect(context.Context, string) (*domain.MetadataSummary, error) {
	panic("nil map write")
}

func TestInvokeRecoversPanics(t *testing.T) {
	ws, _ := NewWorkspace("/ws")
	service := NewActionService(panickingInspector{}, nil, nil, nil, ws, nil, testLogger(), ActionServiceConfig{})

	result := service.Invoke(context.Background(), ActionGetLayerMetadata, map[string]string{"file_path": "a.geojson"})
	if result.Status != domain.StatusFailure || result.Kind != domain.KindInternal {
		t.Errorf("result = %+v", result)
	}
	if !strings.Contains(result.Message, "nil map write") {
		t.Errorf("Message = %q", result.Message)
	}
}

func TestInvokeUniqueIDs(t *testing.T) {
	f := newActionFixture(t)
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		r := f.service.Invoke(context.Background(), ActionGetLayerMetadata, map[string]string{"file_path": "zones.geojson"})
		if seen[r.ID] {
			t.Fatalf("duplicate id %q", r.ID)
		}
		seen[r.ID] = true
	}
}
