package detect

import (
	"math"

	"github.com/nutcas3/detectkit/internal/core"
	"github.com/nutcas3/detectkit/internal/stats"
)

const (
	zscoreClassTag        = "zscore"
	zscoreDefaultThreshold  = 3.0
	zscoreDefaultWindowSize = 100
	zscoreDefaultMinSamples = 30

	zscoreEpsilon = 1e-9
)

// ZScoreDetector flags points whose distance from a seasonality-adjusted
// mean, measured in standard-deviation units, exceeds threshold.
type ZScoreDetector struct {
	Threshold  float64
	WindowSize int
	MinSamples int
}

// NewZScoreDetector validates and constructs a ZScoreDetector.
func NewZScoreDetector(threshold float64, windowSize, minSamples int) (*ZScoreDetector, error) {
	if threshold == 0 {
		threshold = zscoreDefaultThreshold
	}
	if windowSize == 0 {
		windowSize = zscoreDefaultWindowSize
	}
	if minSamples == 0 {
		minSamples = zscoreDefaultMinSamples
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

	return &ZScoreDetector{Threshold: threshold, WindowSize: windowSize, MinSamples: minSamples}, nil
}

func (d *ZScoreDetector) nonDefaultParams() []param {
	var params []param
	if d.Threshold != zscoreDefaultThreshold {
		params = append(params, floatParam("threshold", d.Threshold))
	}
	if d.WindowSize != zscoreDefaultWindowSize {
		params = append(params, intParam("window_size", int64(d.WindowSize)))
	}
	if d.MinSamples != zscoreDefaultMinSamples {
		params = append(params, intParam("min_samples", int64(d.MinSamples)))
	}
	return params
}

// ParamsJSON implements Detector.
func (d *ZScoreDetector) ParamsJSON() string {
	return canonicalParamsJSON(d.nonDefaultParams())
}

// ID implements Detector.
func (d *ZScoreDetector) ID() string {
	return detectorID(zscoreClassTag, d.ParamsJSON())
}

// Detect implements Detector.
func (d *ZScoreDetector) Detect(b Bundle) ([]core.DetectionResult, error) {
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
		globalMean, err := stats.WeightedMean(values, uniform)
		if err != nil {
			return nil, err
		}
		globalStdDev, err := stats.WeightedStdDev(values, uniform)
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
		adjustedMean, err := stats.WeightedMean(values, weights)
		if err != nil {
			return nil, err
		}
		adjustedStdDev, err := stats.WeightedStdDev(values, weights)
		if err != nil {
			return nil, err
		}

		scale := math.Max(adjustedStdDev, zscoreEpsilon)
		z := math.Abs(value-adjustedMean) / scale
		isAnomaly := z > d.Threshold

		direction := core.DirectionNone
		if isAnomaly {
			if value > adjustedMean {
				direction = core.DirectionAbove
			} else {
				direction = core.DirectionBelow
			}
		}

		lower := adjustedMean - d.Threshold*scale
		upper := adjustedMean + d.Threshold*scale

		results = append(results, core.DetectionResult{
			Timestamp:       ts,
			Value:           value,
			IsAnomaly:       isAnomaly,
			ConfidenceLower: &lower,
			ConfidenceUpper: &upper,
			Metadata: map[string]interface{}{
				"global_mean":     globalMean,
				"global_stddev":   globalStdDev,
				"adjusted_mean":   adjustedMean,
				"adjusted_stddev": adjustedStdDev,
				"window_size":     len(values),
				"severity":        z,
				"direction":       direction,
			},
		})
	}

	return results, nil
}
