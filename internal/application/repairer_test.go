package application

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/jobrunner/geofix/internal/domain"
)

func TestRepairCountsAndFixes(t *testing.T) {
	ds := dataset(domain.CRSWGS84, square(0, 0, 1, 1), bowtie, unclosedRing, orb.Point{5, 5})
	repo := newMockRepository(map[string]*domain.Dataset{"/ws/parcels.geojson": ds})
	metrics := newMockMetrics()
	service := NewRepairService(repo, &mockEngine{}, &mockTransformer{}, metrics, testLogger(), "")

	report, err := service.Repair(context.Background(), "/ws/parcels.geojson", domain.CRSWGS84)
	if err != nil {
		t.Fatalf("Repair failed: %v", err)
	}

	if report.RepairedCount != 2 {
		t.Errorf("RepairedCount = %d, want 2", report.RepairedCount)
	}
	if report.Reprojected {
		t.Error("CRS already matched, Reprojected should be false")
	}
	if report.OutputPath != "/ws/parcels_fixed.geojson" {
		t.Errorf("OutputPath = %q", report.OutputPath)
	}
	want := "Repaired 2 invalid geometries. CRS already matches EPSG:4326. Saved to: /ws/parcels_fixed.geojson"
	if got := report.Summary(); got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}

	written := repo.written[report.OutputPath]
	if written == nil || written.Len() != 4 {
		t.Fatalf("written = %v", written)
	}
	for i, f := range written.Features {
		if !domain.IsValid(f.Geometry, domain.RepairConfig{}) {
			t.Errorf("feature %d still invalid: %v", i, f.Geometry)
		}
		if f.Properties["id"] != i {
			t.Errorf("feature %d lost its attributes: %v", i, f.Properties)
		}
	}
	if !orb.Equal(written.Features[0].Geometry, square(0, 0, 1, 1)) {
		t.Error("valid geometry should pass through unchanged")
	}
	if metrics.repaired != 2 {
		t.Errorf("repaired metric = %d, want 2", metrics.repaired)
	}
}

func TestRepairAlreadyValidReprojects(t *testing.T) {
	ds := dataset(domain.CRSWebMercator, square(0, 0, 1000, 1000))
	repo := newMockRepository(map[string]*domain.Dataset{"/ws/a.geojson": ds})
	service := NewRepairService(repo, &mockEngine{}, &mockTransformer{}, newMockMetrics(), testLogger(), "")

	report, err := service.Repair(context.Background(), "/ws/a.geojson", domain.CRSUnset)
	if err != nil {
		t.Fatalf("Repair failed: %v", err)
	}

	if report.RepairedCount != 0 || !report.Reprojected {
		t.Errorf("report = %+v", report)
	}
	if report.TargetCRS != domain.CRSWGS84 {
		t.Errorf("TargetCRS = %q, want default EPSG:4326", report.TargetCRS)
	}
	if !strings.HasPrefix(report.Summary(), "Geometry was already valid. Re-projected from EPSG:3857 to EPSG:4326.") {
		t.Errorf("Summary() = %q", report.Summary())
	}
	if repo.written[report.OutputPath].CRS != domain.CRSWGS84 {
		t.Error("output should be in the target CRS")
	}
}

func TestRepairEmptyDataset(t *testing.T) {
	repo := newMockRepository(map[string]*domain.Dataset{"/ws/empty.geojson": dataset(domain.CRSUnset)})
	service := NewRepairService(repo, &mockEngine{}, &mockTransformer{}, newMockMetrics(), testLogger(), "")

	report, err := service.Repair(context.Background(), "/ws/empty.geojson", domain.CRSWGS84)
	if err != nil {
		t.Fatalf("Repair failed: %v", err)
	}
	if report.RepairNote() != "Geometry was already valid." {
		t.Errorf("RepairNote() = %q", report.RepairNote())
	}

	written := repo.written["/ws/empty_fixed.geojson"]
	if written == nil || !written.IsEmpty() {
		t.Fatalf("written = %v", written)
	}
	if written.CRS != domain.CRSWGS84 {
		t.Errorf("CRS = %q, want EPSG:4326", written.CRS)
	}
}

func TestRepairErrors(t *testing.T) {
	good := map[string]*domain.Dataset{
		"/ws/a.geojson":     dataset(domain.CRSWGS84, bowtie),
		"/ws/swiss.geojson": dataset(domain.EPSG(2056), square(0, 0, 1, 1)),
	}

	tests := []struct {
		name      string
		path      string
		target    domain.CRS
		engine    *mockEngine
		writeErr  error
		wantStage string
		wantKind  domain.FailureKind
	}{
		{"missing file", "/ws/missing.geojson", domain.CRSWGS84, &mockEngine{}, nil, StageLoad, domain.KindRead},
		{"malformed target", "/ws/a.geojson", domain.CRS("EPSG:x"), &mockEngine{}, nil, StageLoad, domain.KindInvalidInput},
		{"engine validity", "/ws/a.geojson", domain.CRSWGS84, &mockEngine{validErr: domain.ErrEngineUnavailable}, nil, StageValidate, domain.KindUnavailable},
		{"engine repair", "/ws/a.geojson", domain.CRSWGS84, &mockEngine{repairErr: errors.New("boom")}, nil, StageRepair, domain.KindInternal},
		{"panic", "/ws/a.geojson", domain.CRSWGS84, &mockEngine{panicValue: "index out of range"}, nil, StageRepair, domain.KindInternal},
		{"unsupported crs", "/ws/swiss.geojson", domain.CRSWGS84, &mockEngine{}, nil, StageReproject, domain.KindTransform},
		{"write", "/ws/a.geojson", domain.CRSWGS84, &mockEngine{}, errors.New("disk full"), StagePersist, domain.KindWrite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepository(good)
			repo.writeErr = tt.writeErr
			metrics := newMockMetrics()
			service := NewRepairService(repo, tt.engine, &mockTransformer{}, metrics, testLogger(), "")

			report, err := service.Repair(context.Background(), tt.path, tt.target)
			if report != nil {
				t.Errorf("report = %+v, want nil", report)
			}

			var repairErr *domain.RepairError
			if !errors.As(err, &repairErr) {
				t.Fatalf("error = %v, want *RepairError", err)
			}
			if repairErr.Stage != tt.wantStage {
				t.Errorf("Stage = %q, want %q", repairErr.Stage, tt.wantStage)
			}
			if kind := domain.ClassifyError(err); kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", kind, tt.wantKind)
			}
			if !strings.HasPrefix(err.Error(), "error during processing") {
				t.Errorf("Error() = %q", err.Error())
			}
			if metrics.failures["repair"] != 1 {
				t.Errorf("failure metric = %d, want 1", metrics.failures["repair"])
			}
		})
	}
}
