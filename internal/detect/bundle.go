// Package detect implements the rolling-window statistical detectors:
// MAD, Z-Score, IQR, and Manual-Bounds, sharing a common Detector
// interface and a deterministic identity scheme.
package detect

import (
	"time"

	"github.com/nutcas3/detectkit/internal/core"
)

// Bundle is the common input every detector consumes: one slice per
// field, aligned by index, in input order.
type Bundle struct {
	Timestamp          []time.Time
	Value              []*float64
	SeasonalityData    []map[string]float64
	SeasonalityColumns []string
}

// Len returns the number of points in the bundle.
func (b Bundle) Len() int { return len(b.Timestamp) }

// Detector is the common contract every detection algorithm implements.
type Detector interface {
	Detect(bundle Bundle) ([]core.DetectionResult, error)
	ID() string
	ParamsJSON() string
}

func insufficientData(ts time.Time) core.DetectionResult {
	return core.DetectionResult{
		Timestamp: ts,
		IsAnomaly: false,
		Metadata: map[string]interface{}{
			"reason": core.ReasonInsufficientData,
		},
	}
}

func missingData(ts time.Time) core.DetectionResult {
	return core.DetectionResult{
		Timestamp: ts,
		IsAnomaly: false,
		Metadata: map[string]interface{}{
			"reason": core.ReasonMissingData,
		},
	}
}

// window collects up to windowSize preceding non-null values ending at
// (and excluding) index i, along with their seasonality maps, in
// chronological order.
func window(b Bundle, i, windowSize int) (values []float64, seasonality []map[string]float64) {
	start := 0
	if i-windowSize > start {
		start = i - windowSize
	}
	for j := start; j < i; j++ {
		if b.Value[j] == nil {
			continue
		}
		values = append(values, *b.Value[j])
		if j < len(b.SeasonalityData) {
			seasonality = append(seasonality, b.SeasonalityData[j])
		} else {
			seasonality = append(seasonality, nil)
		}
	}
	return values, seasonality
}
