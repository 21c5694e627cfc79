package store

import (
	"context"
	"time"

	"github.com/nutcas3/detectkit/internal/core"
)

// DatapointBundle is what the loader hands the store to persist: one
// slice per field, aligned by index.
type DatapointBundle struct {
	Timestamp       []time.Time
	Value           []*float64
	SeasonalityData []map[string]float64
}

// DetectionBundle is what a detector run hands the store to persist.
type DetectionBundle struct {
	Timestamp          []time.Time
	Value              []*float64
	IsAnomaly          []bool
	ConfidenceLower    []*float64
	ConfidenceUpper    []*float64
	DetectionMetadata  []map[string]interface{}
}

// LockInfo describes the current holder of a task-table lock, as
// reported by CheckLock.
type LockInfo struct {
	Locked     bool
	Status     core.TaskStatus
	StartedAt  time.Time
	TimeoutSec int64
}

// Backend is the narrow, testable interface the rest of the engine
// uses to reach the internal database. Every concrete implementation
// must honor the locking quartet's compare-and-set discipline (see
// §5 of the concurrency model) — "table exists" alone is not a valid
// mutex.
type Backend interface {
	EnsureTables(ctx context.Context) error

	SaveDatapoints(ctx context.Context, metricName string, bundle DatapointBundle, intervalSeconds int64, seasonalityColumns []string) (int, error)
	SaveDetections(ctx context.Context, metricName, detectorID string, bundle DetectionBundle, detectorParamsJSON string) (int, error)
	GetLastDatapointTimestamp(ctx context.Context, metricName string) (*time.Time, error)

	GetRecentDatapoints(ctx context.Context, metricName string, since time.Time) ([]core.Datapoint, error)
	GetRecentDetections(ctx context.Context, metricName string, since time.Time) ([]core.DetectionRow, error)

	UpsertMetricConfig(ctx context.Context, row core.MetricRow) error
	GetMetricConfig(ctx context.Context, metricName string) (*core.MetricRow, error)

	AcquireLock(ctx context.Context, metricName, detectorID, processType string, timeoutSeconds int64) (bool, error)
	CheckLock(ctx context.Context, metricName, detectorID, processType string) (*LockInfo, error)
	UpdateTaskProgress(ctx context.Context, metricName, detectorID, processType string, lastProcessedTimestamp time.Time) error
	ReleaseLock(ctx context.Context, metricName, detectorID, processType string, status core.TaskStatus, lastProcessedTimestamp *time.Time, errorMessage *string) error
}
