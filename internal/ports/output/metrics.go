package output

import "time"

// MetricsCollector defines the secondary port for metrics collection.
type MetricsCollector interface {
	// IncOperationCount increments the counter of an operation.
	IncOperationCount(operation string, success bool)

	// ObserveOperationDuration records operation duration.
	ObserveOperationDuration(operation string, duration time.Duration)

	// AddRepairedGeometries adds to the repaired geometries counter.
	AddRepairedGeometries(count int)

	// AddJoinedRows adds to the joined rows counter.
	AddJoinedRows(count int)

	// SetDatasetsKnown sets the number of catalogued datasets.
	SetDatasetsKnown(count int)

	// IncStorageOperations increments storage operation counter.
	IncStorageOperations(operation string, success bool)

	// ObserveStorageDuration records storage operation duration.
	ObserveStorageDuration(operation string, duration time.Duration)
}

// NoOpMetrics is a no-op implementation of MetricsCollector.
type NoOpMetrics struct{}

// IncOperationCount implements MetricsCollector.
func (n *NoOpMetrics) IncOperationCount(_ string, _ bool) {}

// ObserveOperationDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveOperationDuration(_ string, _ time.Duration) {}

// AddRepairedGeometries implements MetricsCollector.
func (n *NoOpMetrics) AddRepairedGeometries(_ int) {}

// AddJoinedRows implements MetricsCollector.
func (n *NoOpMetrics) AddJoinedRows(_ int) {}

// SetDatasetsKnown implements MetricsCollector.
func (n *NoOpMetrics) SetDatasetsKnown(_ int) {}

// IncStorageOperations implements MetricsCollector.
func (n *NoOpMetrics) IncStorageOperations(_ string, _ bool) {}

// ObserveStorageDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveStorageDuration(_ string, _ time.Duration) {}
