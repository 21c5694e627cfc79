package detect

import (
	"math"

	"github.com/nutcas3/detectkit/internal/core"
	"github.com/nutcas3/detectkit/internal/stats"
)

const (
	madClassTag        = "mad"
	madDefaultThreshold  = 3.0
	madDefaultWindowSize = 100
	madDefaultMinSamples = 30

	// madScaleFactor rescales MAD to be comparable to a standard
	// deviation under a normal distribution.
	madScaleFactor = 1.4826

	madEpsilon = 1e-9
)

// MADDetector flags points whose distance from a seasonality-adjusted
// median, measured in scaled median-absolute-deviation units, exceeds
// threshold.
type MADDetector struct {
	Threshold  float64
	WindowSize int
	MinSamples int
}

// NewMADDetector validates and constructs a MADDetector. Zero values for
// Threshold/WindowSize/MinSamples are replaced by their defaults.
func NewMADDetector(threshold float64, windowSize, minSamples int) (*MADDetector, error) {
	if threshold == 0 {
		threshold = madDefaultThreshold
	}
	if windowSize == 0 {
		windowSize = madDefaultWindowSize
	}
	if minSamples == 0 {
		minSamples = madDefaultMinSamples
	}

	if threshold <= 0 {
		return nil, &core.BadConfigError{Reason: "threshold must be positive"}
	}
	if windowSize < 1 {
		return nil, &core.BadConfigError{Reason: "window_size must be at least 1"}
	}
	if minSamples < 1 {
		return nil, &core.BadConfigError{Reason: "min_samples must be at least 1"}
	}
	if minSamples > windowSize {
		return nil, &core.BadConfigError{Reason: "min_samples cannot exceed window_size"}
	}

	return &MADDetector{Threshold: threshold, WindowSize: windowSize, MinSamples: minSamples}, nil
}

func (d *MADDetector) nonDefaultParams() []param {
	var params []param
	if d.Threshold != madDefaultThreshold {
		params = append(params, floatParam("threshold", d.Threshold))
	}
	if d.WindowSize != madDefaultWindowSize {
		params = append(params, intParam("window_size", int64(d.WindowSize)))
	}
	if d.MinSamples != madDefaultMinSamples {
		params = append(params, intParam("min_samples", int64(d.MinSamples)))
	}
	return params
}

// ParamsJSON implements Detector.
func (d *MADDetector) ParamsJSON() string {
	return canonicalParamsJSON(d.nonDefaultParams())
}

// ID implements Detector.
func (d *MADDetector) ID() string {
	return detectorID(madClassTag, d.ParamsJSON())
}

// Detect implements Detector.
func (d *MADDetector) Detect(b Bundle) ([]core.DetectionResult, error) {
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

		uniform := stats.UniformWeights(len(values))
		globalMedian, err := stats.WeightedMedian(values, uniform)
		if err != nil {
			return nil, err
		}
		globalMAD, err := stats.WeightedMAD(values, uniform, &globalMedian)
		if err != nil {
			return nil, err
		}

		var target map[string]float64
		if i < len(b.SeasonalityData) {
			target = b.SeasonalityData[i]
		}
		weights, _ := seasonalityWeights(target, seasonality, b.SeasonalityColumns)
		if weights == nil {
			weights = uniform
		}
		adjustedMedian, err := stats.WeightedMedian(values, weights)
		if err != nil {
			return nil, err
		}
		adjustedMAD, err := stats.WeightedMAD(values, weights, &adjustedMedian)
		if err != nil {
			return nil, err
		}

		scale := math.Max(adjustedMAD*madScaleFactor, madEpsilon)
		z := math.Abs(value-adjustedMedian) / scale
		isAnomaly := z > d.Threshold

		direction := core.DirectionNone
		if isAnomaly {
			if value > adjustedMedian {
				direction = core.DirectionAbove
			} else {
				direction = core.DirectionBelow
			}
		}

		lower := adjustedMedian - d.Threshold*scale
		upper := adjustedMedian + d.Threshold*scale

		results = append(results, core.DetectionResult{
			Timestamp:        ts,
			Value:            value,
			IsAnomaly:        isAnomaly,
			ConfidenceLower:  &lower,
			ConfidenceUpper:  &upper,
			Metadata: map[string]interface{}{
				"global_median":   globalMedian,
				"global_mad":      globalMAD,
				"adjusted_median": adjustedMedian,
				"adjusted_mad":    adjustedMAD,
				"window_size":     len(values),
				"severity":        z,
				"direction":       direction,
			},
		})
	}

	return results, nil
}
