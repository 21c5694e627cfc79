package core

import "time"

// DetectionResult is the per-point verdict a detector produces.
type DetectionResult struct {
	Timestamp        time.Time
	Value            float64
	IsAnomaly        bool
	ConfidenceLower  *float64
	ConfidenceUpper  *float64
	Metadata         map[string]interface{}
}

// Direction values used in DetectionResult.Metadata["direction"].
const (
	DirectionAbove = "above"
	DirectionBelow = "below"
	DirectionNone  = "none"
)

// Metadata reason tokens for points with no computed verdict.
const (
	ReasonInsufficientData = "insufficient_data"
	ReasonMissingData      = "missing_data"
)

// DetectionRow is one row of the internal detections table.
type DetectionRow struct {
	MetricName        string
	DetectorID        string
	Timestamp         time.Time
	IsAnomaly         bool
	ConfidenceLower   *float64
	ConfidenceUpper   *float64
	Value             *float64
	DetectorParams    string
	DetectionMetadata map[string]interface{}
	CreatedAt         time.Time
}

// TaskStatus is the lifecycle state of a _dtk_tasks row.
type TaskStatus string

const (
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// TaskRow is one row of the internal tasks table, also used as the
// persistent lock record.
type TaskRow struct {
	MetricName            string
	DetectorID             string
	ProcessType            string
	Status                 TaskStatus
	StartedAt              time.Time
	UpdatedAt              time.Time
	LastProcessedTimestamp *time.Time
	ErrorMessage           *string
	TimeoutSeconds         int64
	LastAlertSent          *time.Time
	AlertCount             int64
}

// Locked reports whether this row currently represents a live lock.
func (t TaskRow) Locked(now time.Time) bool {
	if t.Status != TaskRunning {
		return false
	}
	return t.StartedAt.Add(time.Duration(t.TimeoutSeconds) * time.Second).After(now)
}

// MetricRow is one row of the internal metrics registry table.
type MetricRow struct {
	MetricName          string
	Path                string
	Interval            Interval
	LoadingBatchSize    int
	IsAlertEnabled      bool
	Timezone            string
	Direction           string
	ConsecutiveAnomalies int
	NoDataAlert         bool
	MinDetectors        int
	Enabled             bool
	Tags                map[string]string
}
