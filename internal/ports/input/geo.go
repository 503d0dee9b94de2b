// Package input defines the primary/driving ports of the application.
package input

import (
	"context"

	"github.com/jobrunner/geofix/internal/domain"
)

// MetadataInspector reports CRS, schema and geometry types of a dataset.
type MetadataInspector interface {
	// Inspect reads the dataset and summarizes it without modifying it.
	Inspect(ctx context.Context, path string) (*domain.MetadataSummary, error)
}

// Reprojector transforms a dataset into a target CRS.
type Reprojector interface {
	// Reproject writes the reprojected dataset and returns the output path.
	Reproject(ctx context.Context, sourcePath string, target domain.CRS) (string, error)
}

// GeometryRepairer repairs invalid geometries and reconciles the CRS.
type GeometryRepairer interface {
	// Repair writes the repaired dataset and reports what was done.
	Repair(ctx context.Context, path string, target domain.CRS) (*domain.RepairReport, error)
}

// JoinReconciler aligns a source dataset to a target CRS and joins them.
type JoinReconciler interface {
	// Join aligns the source, persists it and counts the joined rows.
	Join(ctx context.Context, sourcePath, targetPath string, predicate domain.Predicate) (*domain.JoinSummary, error)
}

// ActionInvoker is the planner-facing entry point.
type ActionInvoker interface {
	// Actions lists the invocable actions.
	Actions() []ActionSpec

	// Invoke runs an action and never fails: errors come back as failure results.
	Invoke(ctx context.Context, name string, args map[string]string) domain.Result
}

// ActionSpec describes an invocable action.
type ActionSpec struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Params      []ActionParam `json:"params"`
}

// ActionParam describes an action argument.
type ActionParam struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Default     string `json:"default,omitempty"`
}

// DatasetCatalog lists the datasets available in the workspace.
type DatasetCatalog interface {
	// ListDatasets returns all known datasets.
	ListDatasets(ctx context.Context) ([]domain.DatasetInfo, error)

	// GetDataset returns a dataset by name.
	GetDataset(ctx context.Context, name string) (*domain.DatasetInfo, error)
}

// HealthChecker defines the primary port for health checks.
type HealthChecker interface {
	// IsHealthy returns true if the service is healthy.
	IsHealthy(ctx context.Context) bool

	// IsReady returns true if the service is ready to accept requests.
	IsReady(ctx context.Context) bool

	// GetHealthDetails returns detailed health information.
	GetHealthDetails(ctx context.Context) HealthDetails
}

// HealthDetails contains detailed health information.
type HealthDetails struct {
	Healthy          bool              // Overall health status
	Ready            bool              // Ready to accept requests
	DatasetsKnown    int               // Number of catalogued datasets
	DatasetsReadable int               // Number of readable datasets
	Components       map[string]string // Component statuses
}
