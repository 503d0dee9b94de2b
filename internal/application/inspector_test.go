package application

import (
	"context"
	"errors"
	"testing"

	"github.com/paulmach/orb"

	"github.com/jobrunner/geofix/internal/domain"
)

func TestInspect(t *testing.T) {
	ds := dataset(domain.CRSWebMercator, square(0, 0, 2, 2), bowtie, orb.LineString{{0, 0}, {5, 5}})
	ds.Schema = domain.Schema{{Name: "name", Type: domain.TypeString}, {Name: "id", Type: domain.TypeInteger}}

	repo := newMockRepository(map[string]*domain.Dataset{"/ws/parcels.geojson": ds})
	metrics := newMockMetrics()
	service := NewInspectorService(repo, &mockEngine{}, metrics, testLogger())

	summary, err := service.Inspect(context.Background(), "/ws/parcels.geojson")
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}

	if summary.CRS != domain.CRSWebMercator {
		t.Errorf("CRS = %q", summary.CRS)
	}
	if summary.FeatureCount != 3 || summary.InvalidCount != 1 {
		t.Errorf("FeatureCount = %d, InvalidCount = %d, want 3 and 1", summary.FeatureCount, summary.InvalidCount)
	}
	if got := summary.String(); got != "CRS: EPSG:3857 | Columns: [name id geometry] | Geometry: [Polygon LineString]" {
		t.Errorf("String() = %q", got)
	}
	if bbox := summary.BBox(); len(bbox) != 4 || bbox[2] != 5 || bbox[3] != 5 {
		t.Errorf("BBox() = %v", bbox)
	}
	if len(repo.written) != 0 {
		t.Error("Inspect must not write")
	}
	if metrics.operations["inspect"] != 1 || metrics.failures["inspect"] != 0 {
		t.Errorf("metrics = %v / %v", metrics.operations, metrics.failures)
	}
}

func TestInspectErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing file", func(t *testing.T) {
		service := NewInspectorService(newMockRepository(nil), &mockEngine{}, newMockMetrics(), testLogger())
		_, err := service.Inspect(ctx, "/ws/missing.geojson")

		var readErr *domain.ReadError
		if !errors.As(err, &readErr) {
			t.Fatalf("error = %v, want *ReadError", err)
		}
		if !errors.Is(err, domain.ErrDatasetNotFound) {
			t.Errorf("error should carry the cause, got %v", err)
		}
	})

	t.Run("engine failure", func(t *testing.T) {
		repo := newMockRepository(map[string]*domain.Dataset{"/ws/a.geojson": dataset(domain.CRSWGS84, square(0, 0, 1, 1))})
		cause := errors.New("engine down")
		service := NewInspectorService(repo, &mockEngine{validErr: cause}, newMockMetrics(), testLogger())

		if _, err := service.Inspect(ctx, "/ws/a.geojson"); !errors.Is(err, cause) {
			t.Errorf("error = %v, want %v", err, cause)
		}
	})
}
