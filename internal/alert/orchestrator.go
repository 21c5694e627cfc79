package alert

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Orchestrator decides whether a set of detection records for one
// metric crosses its alerting conditions, and builds the payload to
// dispatch when it does.
type Orchestrator struct {
	MetricName string
	Interval   time.Duration
	Conditions AlertConditions
	Timezone   *time.Location
}

// NewOrchestrator constructs an Orchestrator. A nil timezone defaults
// to UTC.
func NewOrchestrator(metricName string, interval time.Duration, conditions AlertConditions, timezone *time.Location) *Orchestrator {
	if timezone == nil {
		timezone = time.UTC
	}
	return &Orchestrator{MetricName: metricName, Interval: interval, Conditions: conditions, Timezone: timezone}
}

type timestampGroup struct {
	timestamp time.Time
	records   []DetectionRecord
}

// ShouldAlert implements the five-step decision procedure: candidate
// timestamp selection, distinct-anomalous-detector count against
// min_detectors, a consecutive-run walk back through time honoring the
// direction mode, and payload construction.
func (o *Orchestrator) ShouldAlert(records []DetectionRecord) (bool, *AlertPayload) {
	if len(records) == 0 {
		return false, nil
	}

	groups := groupByTimestamp(records)
	candidate := groups[0]

	anomalousAtCandidate := distinctAnomalousDetectors(candidate.records)
	k := len(anomalousAtCandidate)
	if k < o.Conditions.MinDetectors {
		return false, nil
	}

	runLength := o.consecutiveRun(groups)
	if runLength < o.Conditions.ConsecutiveAnomalies {
		return false, nil
	}

	payload := o.buildPayload(candidate, anomalousAtCandidate, runLength)
	return true, payload
}

// groupByTimestamp folds records sharing a timestamp into one step and
// returns the steps sorted by timestamp descending (candidate first).
func groupByTimestamp(records []DetectionRecord) []timestampGroup {
	byTS := make(map[int64]*timestampGroup)
	for _, r := range records {
		key := r.Timestamp.UnixMilli()
		g, ok := byTS[key]
		if !ok {
			g = &timestampGroup{timestamp: r.Timestamp}
			byTS[key] = g
		}
		g.records = append(g.records, r)
	}

	groups := make([]timestampGroup, 0, len(byTS))
	for _, g := range byTS {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].timestamp.After(groups[j].timestamp) })
	return groups
}

func distinctAnomalousDetectors(records []DetectionRecord) []DetectionRecord {
	seen := make(map[string]bool)
	var out []DetectionRecord
	for _, r := range records {
		if !r.IsAnomaly {
			continue
		}
		if seen[r.DetectorID] {
			continue
		}
		seen[r.DetectorID] = true
		out = append(out, r)
	}
	return out
}

func stepIsAnomaly(records []DetectionRecord) bool {
	for _, r := range records {
		if r.IsAnomaly {
			return true
		}
	}
	return false
}

// stepDirection folds a step's per-record directions into one,
// preferring the most frequent value, breaking ties in favor of a
// non-none direction and finally "up".
func stepDirection(records []DetectionRecord) string {
	counts := make(map[string]int)
	for _, r := range records {
		d := r.Direction
		if d == "" {
			d = RecordDirectionNone
		}
		counts[d]++
	}

	best := RecordDirectionNone
	bestCount := -1
	for _, d := range []string{RecordDirectionUp, RecordDirectionDown, RecordDirectionNone} {
		c := counts[d]
		if c == 0 {
			continue
		}
		if c > bestCount || (c == bestCount && best == RecordDirectionNone && d != RecordDirectionNone) {
			best = d
			bestCount = c
		}
	}
	if bestCount <= 0 {
		return RecordDirectionUp
	}
	return best
}

// consecutiveRun walks groups (already sorted candidate-first) and
// returns the length of the run honoring o.Conditions.Direction.
func (o *Orchestrator) consecutiveRun(groups []timestampGroup) int {
	run := 0
	var runDirection string

	for i, g := range groups {
		anomaly := stepIsAnomaly(g.records)
		direction := stepDirection(g.records)

		if !anomaly {
			break
		}

		switch o.Conditions.Direction {
		case DirectionSame:
			if i == 0 {
				runDirection = direction
			} else if direction != runDirection {
				return run
			}
		case DirectionUp:
			if direction != RecordDirectionUp {
				return run
			}
		case DirectionDown:
			if direction != RecordDirectionDown {
				return run
			}
		}

		run++
	}
	return run
}

func (o *Orchestrator) buildPayload(candidate timestampGroup, anomalous []DetectionRecord, runLength int) *AlertPayload {
	best := anomalous[0]
	for _, r := range anomalous[1:] {
		if r.Severity > best.Severity {
			best = r
		}
	}

	payload := &AlertPayload{
		AlertID:          uuid.NewString(),
		MetricName:       o.MetricName,
		Timestamp:        candidate.timestamp.In(o.Timezone),
		Timezone:         o.Timezone,
		Value:            best.Value,
		ConfidenceLower:  best.ConfidenceLower,
		ConfidenceUpper:  best.ConfidenceUpper,
		Direction:        best.Direction,
		Severity:         best.Severity,
		ConsecutiveCount: runLength,
	}

	if len(anomalous) == 1 {
		payload.DetectorName = best.DetectorName
		payload.DetectorParamsJSON = best.DetectorParamsJSON
		return payload
	}

	payload.DetectorName = fmt.Sprintf("%d detectors", len(anomalous))
	payload.Metadata = map[string]interface{}{"count": len(anomalous)}
	return payload
}

// GetLastCompletePoint floors now to the previous grid boundary at
// interval, then steps back one more interval — the last boundary
// whose window has fully elapsed.
func GetLastCompletePoint(now time.Time, interval time.Duration) time.Time {
	u := now.UTC()
	floored := u.Truncate(interval)
	return floored.Add(-interval)
}
