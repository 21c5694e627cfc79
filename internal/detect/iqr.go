package detect

import (
	"math"

	"github.com/nutcas3/detectkit/internal/core"
	"github.com/nutcas3/detectkit/internal/stats"
)

const (
	iqrClassTag          = "iqr"
	iqrDefaultThreshold  = 1.5
	iqrDefaultWindowSize = 100
	iqrDefaultMinSamples = 30
	iqrMinAllowedSamples = 4

	iqrEpsilon = 1e-9
)

// IQRDetector flags points that fall outside
// [Q1 - threshold*IQR, Q3 + threshold*IQR], where Q1/Q3 are
// seasonality-adjusted weighted quartiles of the rolling window.
type IQRDetector struct {
	Threshold  float64
	WindowSize int
	MinSamples int
}

// NewIQRDetector validates and constructs an IQRDetector.
func NewIQRDetector(threshold float64, windowSize, minSamples int) (*IQRDetector, error) {
	if threshold == 0 {
		threshold = iqrDefaultThreshold
	}
	if windowSize == 0 {
		windowSize = iqrDefaultWindowSize
	}
	if minSamples == 0 {
		minSamples = iqrDefaultMinSamples
	}

	if threshold <= 0 {
		return nil, &core.BadConfigError{Reason: "threshold must be positive"}
	}
	if windowSize < 1 {
		return nil, &core.BadConfigError{Reason: "window_size must be at least 1"}
	}
	if minSamples < iqrMinAllowedSamples {
		return nil, &core.BadConfigError{Reason: "min_samples must be at least 4"}
	}
	if minSamples > windowSize {
		return nil, &core.BadConfigError{Reason: "min_samples cannot exceed window_size"}
	}

	return &IQRDetector{Threshold: threshold, WindowSize: windowSize, MinSamples: minSamples}, nil
}

func (d *IQRDetector) nonDefaultParams() []param {
	var params []param
	if d.Threshold != iqrDefaultThreshold {
		params = append(params, floatParam("threshold", d.Threshold))
	}
	if d.WindowSize != iqrDefaultWindowSize {
		params = append(params, intParam("window_size", int64(d.WindowSize)))
	}
	if d.MinSamples != iqrDefaultMinSamples {
		params = append(params, intParam("min_samples", int64(d.MinSamples)))
	}
	return params
}

// ParamsJSON implements Detector.
func (d *IQRDetector) ParamsJSON() string {
	return canonicalParamsJSON(d.nonDefaultParams())
}

// ID implements Detector.
func (d *IQRDetector) ID() string {
	return detectorID(iqrClassTag, d.ParamsJSON())
}

// Detect implements Detector.
func (d *IQRDetector) Detect(b Bundle) ([]core.DetectionResult, error) {
	results := make([]core.DetectionResult, 0, b.Len())

	for i := 0; i < b.Len(); i++ {
		ts := b.Timestamp[i]

		if b.Value[i] == nil {
			results = append(results, missingData(ts))
			continue
		}

		values, seasonality := window(b, i, d.WindowSize)
		if len(values) < d.MinSamples {
			results = append(results, insufficientData(ts))
			continue
		}

		value := *b.Value[i]

		globalQ1, err := stats.Percentile(values, 25)
		if err != nil {
			return nil, err
		}
		globalQ3, err := stats.Percentile(values, 75)
		if err != nil {
			return nil, err
		}

		var target map[string]float64
		if i < len(b.SeasonalityData) {
			target = b.SeasonalityData[i]
		}
		weights, isWeighted := seasonalityWeights(target, seasonality, b.SeasonalityColumns)

		var adjustedQ1, adjustedQ3 float64
		if isWeighted {
			adjustedQ1, err = stats.WeightedPercentile(values, weights, 25)
			if err != nil {
				return nil, err
			}
			adjustedQ3, err = stats.WeightedPercentile(values, weights, 75)
			if err != nil {
				return nil, err
			}
		} else {
			// No seasonality adjustment in play: adjusted == global, and
			// both use the rank-interpolated percentile so the IQR
			// detector's reported quartiles match the classical
			// definition exactly in the unweighted case.
			adjustedQ1, adjustedQ3 = globalQ1, globalQ3
		}

		adjustedIQR := adjustedQ3 - adjustedQ1
		lower := adjustedQ1 - d.Threshold*adjustedIQR
		upper := adjustedQ3 + d.Threshold*adjustedIQR

		isAnomaly := value < lower || value > upper
		direction := core.DirectionNone
		var severity float64
		if isAnomaly {
			scale := math.Max(adjustedIQR, iqrEpsilon)
			if value > upper {
				direction = core.DirectionAbove
				severity = (value - upper) / scale
			} else {
				direction = core.DirectionBelow
				severity = (lower - value) / scale
			}
		}

		results = append(results, core.DetectionResult{
			Timestamp:       ts,
			Value:           value,
			IsAnomaly:       isAnomaly,
			ConfidenceLower: &lower,
			ConfidenceUpper: &upper,
			Metadata: map[string]interface{}{
				"global_q1":    globalQ1,
				"global_q3":    globalQ3,
				"adjusted_q1":  adjustedQ1,
				"adjusted_q3":  adjustedQ3,
				"adjusted_iqr": adjustedIQR,
				"window_size":  len(values),
				"severity":     severity,
				"direction":    direction,
			},
		})
	}

	return results, nil
}
