package detect

import "github.com/nutcas3/detectkit/internal/core"

const manualBoundsClassTag = "manual_bounds"

// ManualBoundsDetector flags points outside a fixed, operator-supplied
// range. Unlike the statistical detectors it carries no rolling window
// and never reports insufficient_data — every non-null point is either
// in or out of bounds from the first sample onward.
type ManualBoundsDetector struct {
	LowerBound *float64
	UpperBound *float64
}

// NewManualBoundsDetector validates and constructs a ManualBoundsDetector.
// At least one bound must be set, and when both are set lower must be
// strictly less than upper.
func NewManualBoundsDetector(lower, upper *float64) (*ManualBoundsDetector, error) {
	if lower == nil && upper == nil {
		return nil, &core.BadConfigError{Reason: "at least one of lower_bound or upper_bound must be set"}
	}
	if lower != nil && upper != nil && *lower >= *upper {
		return nil, &core.BadConfigError{Reason: "lower_bound must be less than upper_bound"}
	}
	return &ManualBoundsDetector{LowerBound: lower, UpperBound: upper}, nil
}

func (d *ManualBoundsDetector) nonDefaultParams() []param {
	var params []param
	if d.LowerBound != nil {
		params = append(params, floatParam("lower_bound", *d.LowerBound))
	}
	if d.UpperBound != nil {
		params = append(params, floatParam("upper_bound", *d.UpperBound))
	}
	return params
}

// ParamsJSON implements Detector.
func (d *ManualBoundsDetector) ParamsJSON() string {
	return canonicalParamsJSON(d.nonDefaultParams())
}

// ID implements Detector.
func (d *ManualBoundsDetector) ID() string {
	return detectorID(manualBoundsClassTag, d.ParamsJSON())
}

// Detect implements Detector.
func (d *ManualBoundsDetector) Detect(b Bundle) ([]core.DetectionResult, error) {
	results := make([]core.DetectionResult, 0, b.Len())

	for i := 0; i < b.Len(); i++ {
		ts := b.Timestamp[i]

		if b.Value[i] == nil {
			results = append(results, missingData(ts))
			continue
		}
		value := *b.Value[i]

		belowLower := d.LowerBound != nil && value < *d.LowerBound
		aboveUpper := d.UpperBound != nil && value > *d.UpperBound
		isAnomaly := belowLower || aboveUpper

		metadata := map[string]interface{}{}
		if belowLower {
			metadata["direction"] = core.DirectionBelow
			distance := *d.LowerBound - value
			metadata["distance"] = distance
			metadata["severity"] = distance
		} else if aboveUpper {
			metadata["direction"] = core.DirectionAbove
			distance := value - *d.UpperBound
			metadata["distance"] = distance
			metadata["severity"] = distance
		}

		results = append(results, core.DetectionResult{
			Timestamp:       ts,
			Value:           value,
			IsAnomaly:       isAnomaly,
			ConfidenceLower: d.LowerBound,
			ConfidenceUpper: d.UpperBound,
			Metadata:        metadata,
		})
	}

	return results, nil
}
