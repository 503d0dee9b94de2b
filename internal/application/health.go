package application

import (
	"context"

	"github.com/jobrunner/geofix/internal/ports/input"
	"github.com/jobrunner/geofix/internal/ports/output"
)

// HealthService provides health check functionality.
type HealthService struct {
	registry *DatasetRegistry
	engine   output.GeometryEngine
}

// NewHealthService creates a new health service.
func NewHealthService(registry *DatasetRegistry, engine output.GeometryEngine) *HealthService {
	return &HealthService{
		registry: registry,
		engine:   engine,
	}
}

// IsHealthy returns true if the service is healthy.
func (s *HealthService) IsHealthy(_ context.Context) bool {
	return true // Basic health check
}

// IsReady returns true if the service is ready to accept requests.
// Datasets are read on every call, so an empty or partly unreadable
// workspace does not make the service unready.
func (s *HealthService) IsReady(_ context.Context) bool {
	return s.registry != nil && s.engine != nil
}

// GetHealthDetails returns detailed health information.
func (s *HealthService) GetHealthDetails(ctx context.Context) input.HealthDetails {
	components := map[string]string{
		"workspace": "ok",
	}
	if s.engine != nil {
		components["engine"] = s.engine.Name()
	}

	details := input.HealthDetails{
		Healthy:    s.IsHealthy(ctx),
		Ready:      s.IsReady(ctx),
		Components: components,
	}
	if s.registry != nil {
		details.DatasetsKnown = s.registry.DatasetCount()
		details.DatasetsReadable = s.registry.ReadableCount()
		if details.DatasetsReadable < details.DatasetsKnown {
			components["datasets"] = "degraded"
		} else {
			components["datasets"] = "ok"
		}
	}
	return details
}

// DatasetHealth contains health info for a single dataset.
type DatasetHealth struct {
	Path   string
	Status string
	Ready  bool
}

// GetDatasetHealth returns health info for all catalogued datasets.
func (s *HealthService) GetDatasetHealth(ctx context.Context) []DatasetHealth {
	datasets, _ := s.registry.ListDatasets(ctx)

	health := make([]DatasetHealth, len(datasets))
	for i := range datasets {
		health[i] = DatasetHealth{
			Path:   datasets[i].Path,
			Status: string(datasets[i].Status),
			Ready:  datasets[i].IsReady(),
		}
	}
	return health
}
