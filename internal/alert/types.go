package alert

import "time"

// DetectionRecord is one detector's verdict at one timestamp, the unit
// the orchestrator reasons about. It mirrors a joined
// core.DetectionRow plus the detector's display name.
type DetectionRecord struct {
	Timestamp          time.Time
	DetectorName       string
	DetectorID         string
	DetectorParamsJSON string
	Value              float64
	IsAnomaly          bool
	ConfidenceLower    *float64
	ConfidenceUpper    *float64
	Direction          string
	Severity           float64
	DetectionMetadata  map[string]interface{}
}

// AlertConditions is the orchestrator's per-metric configuration.
type AlertConditions struct {
	MinDetectors         int
	Direction            string // "any", "same", "up", "down"
	ConsecutiveAnomalies int
}

// DefaultAlertConditions returns the spec's defaults: min_detectors=1,
// direction=any, consecutive_anomalies=1.
func DefaultAlertConditions() AlertConditions {
	return AlertConditions{MinDetectors: 1, Direction: "any", ConsecutiveAnomalies: 1}
}

// Condition modes for AlertConditions.Direction.
const (
	DirectionAny  = "any"
	DirectionSame = "same"
	DirectionUp   = "up"
	DirectionDown = "down"
)

// Record direction values for DetectionRecord.Direction, translated
// from a detector's above/below/none at the task-manager boundary so
// the orchestrator's own vocabulary (up/down/none) is the only one it
// has to reason about.
const (
	RecordDirectionUp   = "up"
	RecordDirectionDown = "down"
	RecordDirectionNone = "none"
)

// AlertPayload is what the orchestrator hands to every channel.
type AlertPayload struct {
	AlertID            string
	MetricName         string
	Timestamp          time.Time
	Timezone           *time.Location
	DetectorName       string
	DetectorParamsJSON string
	Value              float64
	ConfidenceLower    *float64
	ConfidenceUpper    *float64
	Direction          string
	Severity           float64
	ConsecutiveCount   int
	Metadata           map[string]interface{}
}
