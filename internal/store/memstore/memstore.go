// Package memstore is an in-process Backend, useful for tests and for
// running detectkit without a real analytical warehouse backing the
// internal tables. It keeps every row in memory behind a single mutex
// and implements the locking quartet with a straightforward
// check-then-set under that same mutex — the concurrency guarantee a
// real backend gets from a conditional UPDATE this one gets from
// holding the lock for the whole critical section.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nutcas3/detectkit/internal/core"
	"github.com/nutcas3/detectkit/internal/store"
)

type datapointKey struct {
	metric string
	ts     int64
}

type detectionKey struct {
	metric     string
	detectorID string
	ts         int64
}

type taskKey struct {
	metric     string
	detectorID string
	process    string
}

// Store is an in-memory store.Backend. The zero value is not usable;
// construct with New.
type Store struct {
	mu sync.Mutex

	datapoints map[datapointKey]core.Datapoint
	detections map[detectionKey]core.DetectionRow
	tasks      map[taskKey]core.TaskRow
	metrics    map[string]core.MetricRow
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		datapoints: make(map[datapointKey]core.Datapoint),
		detections: make(map[detectionKey]core.DetectionRow),
		tasks:      make(map[taskKey]core.TaskRow),
		metrics:    make(map[string]core.MetricRow),
	}
}

var _ store.Backend = (*Store)(nil)

// EnsureTables is a no-op: the backing maps always exist.
func (s *Store) EnsureTables(ctx context.Context) error {
	return nil
}

// SaveDatapoints upserts one row per index of bundle, keyed by
// (metric_name, timestamp). A row with a timestamp that already exists
// is replaced outright — the newest write for a given grid point wins,
// per the engine's replace-on-conflict contract.
func (s *Store) SaveDatapoints(ctx context.Context, metricName string, bundle store.DatapointBundle, intervalSeconds int64, seasonalityColumns []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	n := 0
	for i, ts := range bundle.Timestamp {
		key := datapointKey{metric: metricName, ts: ts.UnixMilli()}
		var seasonality map[string]float64
		if i < len(bundle.SeasonalityData) {
			seasonality = bundle.SeasonalityData[i]
		}
		s.datapoints[key] = core.Datapoint{
			MetricName:         metricName,
			Timestamp:          ts,
			Value:              bundle.Value[i],
			SeasonalityData:    seasonality,
			IntervalSeconds:    intervalSeconds,
			SeasonalityColumns: seasonalityColumns,
			CreatedAt:          now,
		}
		n++
	}
	return n, nil
}

// SaveDetections upserts one row per index of bundle, keyed by
// (metric_name, detector_id, timestamp).
func (s *Store) SaveDetections(ctx context.Context, metricName, detectorID string, bundle store.DetectionBundle, detectorParamsJSON string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	n := 0
	for i, ts := range bundle.Timestamp {
		key := detectionKey{metric: metricName, detectorID: detectorID, ts: ts.UnixMilli()}
		var metadata map[string]interface{}
		if i < len(bundle.DetectionMetadata) {
			metadata = bundle.DetectionMetadata[i]
		}
		var lower, upper *float64
		if i < len(bundle.ConfidenceLower) {
			lower = bundle.ConfidenceLower[i]
		}
		if i < len(bundle.ConfidenceUpper) {
			upper = bundle.ConfidenceUpper[i]
		}
		s.detections[key] = core.DetectionRow{
			MetricName:        metricName,
			DetectorID:        detectorID,
			Timestamp:         ts,
			IsAnomaly:         bundle.IsAnomaly[i],
			ConfidenceLower:   lower,
			ConfidenceUpper:   upper,
			Value:             bundle.Value[i],
			DetectorParams:    detectorParamsJSON,
			DetectionMetadata: metadata,
			CreatedAt:         now,
		}
		n++
	}
	return n, nil
}

// GetLastDatapointTimestamp returns the most recent timestamp saved for
// metricName, or nil if none have been saved.
func (s *Store) GetLastDatapointTimestamp(ctx context.Context, metricName string) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *time.Time
	for k, dp := range s.datapoints {
		if k.metric != metricName {
			continue
		}
		if latest == nil || dp.Timestamp.After(*latest) {
			t := dp.Timestamp
			latest = &t
		}
	}
	return latest, nil
}

// GetRecentDatapoints returns every datapoint for metricName at or
// after since, sorted by timestamp ascending.
func (s *Store) GetRecentDatapoints(ctx context.Context, metricName string, since time.Time) ([]core.Datapoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Datapoint
	for k, dp := range s.datapoints {
		if k.metric != metricName {
			continue
		}
		if dp.Timestamp.Before(since) {
			continue
		}
		out = append(out, dp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// GetRecentDetections returns every detection row for metricName (all
// detectors) at or after since, sorted by timestamp ascending.
func (s *Store) GetRecentDetections(ctx context.Context, metricName string, since time.Time) ([]core.DetectionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.DetectionRow
	for k, row := range s.detections {
		if k.metric != metricName {
			continue
		}
		if row.Timestamp.Before(since) {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// UpsertMetricConfig replaces the registry row for row.MetricName.
func (s *Store) UpsertMetricConfig(ctx context.Context, row core.MetricRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics[row.MetricName] = row
	return nil
}

// GetMetricConfig returns the registry row for metricName, or nil if
// it has never been registered.
func (s *Store) GetMetricConfig(ctx context.Context, metricName string) (*core.MetricRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.metrics[metricName]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

// AcquireLock implements the task-table lock. It succeeds when no row
// exists yet for the (metric, detector, process) triple, or when the
// existing row is not currently locked (previous run completed, failed,
// or its timeout elapsed). Holding s.mu for the whole read-decide-write
// span is what makes this a true compare-and-set rather than a
// check-then-act race between concurrent callers.
func (s *Store) AcquireLock(ctx context.Context, metricName, detectorID, processType string, timeoutSeconds int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	key := taskKey{metric: metricName, detectorID: detectorID, process: processType}
	existing, ok := s.tasks[key]
	if ok && existing.Locked(now) {
		return false, nil
	}

	s.tasks[key] = core.TaskRow{
		MetricName:     metricName,
		DetectorID:     detectorID,
		ProcessType:    processType,
		Status:         core.TaskRunning,
		StartedAt:      now,
		UpdatedAt:      now,
		TimeoutSeconds: timeoutSeconds,
	}
	return true, nil
}

// CheckLock reports the current state of the (metric, detector,
// process) lock without mutating it.
func (s *Store) CheckLock(ctx context.Context, metricName, detectorID, processType string) (*store.LockInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := taskKey{metric: metricName, detectorID: detectorID, process: processType}
	row, ok := s.tasks[key]
	if !ok {
		return &store.LockInfo{Locked: false}, nil
	}
	now := time.Now().UTC()
	return &store.LockInfo{
		Locked:     row.Locked(now),
		Status:     row.Status,
		StartedAt:  row.StartedAt,
		TimeoutSec: row.TimeoutSeconds,
	}, nil
}

// UpdateTaskProgress advances last_processed_timestamp on a held lock
// without releasing it, so a long-running load can checkpoint.
func (s *Store) UpdateTaskProgress(ctx context.Context, metricName, detectorID, processType string, lastProcessedTimestamp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := taskKey{metric: metricName, detectorID: detectorID, process: processType}
	row, ok := s.tasks[key]
	if !ok {
		return &core.LockContentionError{MetricName: metricName}
	}
	ts := lastProcessedTimestamp
	row.LastProcessedTimestamp = &ts
	row.UpdatedAt = time.Now().UTC()
	s.tasks[key] = row
	return nil
}

// ReleaseLock marks the lock terminal with status, recording the final
// watermark and, on failure, the error message.
func (s *Store) ReleaseLock(ctx context.Context, metricName, detectorID, processType string, status core.TaskStatus, lastProcessedTimestamp *time.Time, errorMessage *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := taskKey{metric: metricName, detectorID: detectorID, process: processType}
	row, ok := s.tasks[key]
	if !ok {
		return &core.LockContentionError{MetricName: metricName}
	}
	row.Status = status
	row.UpdatedAt = time.Now().UTC()
	if lastProcessedTimestamp != nil {
		row.LastProcessedTimestamp = lastProcessedTimestamp
	}
	row.ErrorMessage = errorMessage
	s.tasks[key] = row
	return nil
}
