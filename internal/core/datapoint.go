package core

import "time"

// SeasonalityAllowList is the fixed set of named seasonality features a
// metric may declare.
var SeasonalityAllowList = map[string]bool{
	"hour":         true,
	"day_of_week":  true,
	"month":        true,
	"is_weekend":   true,
	"day_of_month": true,
	"week_of_year": true,
	"quarter":      true,
}

// ValidateSeasonalityColumns checks the allow-list and rejects duplicates.
func ValidateSeasonalityColumns(cols []string) error {
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if !SeasonalityAllowList[c] {
			return &BadConfigError{Reason: "unknown seasonality column " + c}
		}
		if seen[c] {
			return &BadConfigError{Reason: "duplicate seasonality column " + c}
		}
		seen[c] = true
	}
	return nil
}

// Datapoint is one row of the internal datapoints table.
type Datapoint struct {
	MetricName         string
	Timestamp          time.Time
	Value              *float64
	SeasonalityData    map[string]float64
	IntervalSeconds    int64
	SeasonalityColumns []string
	CreatedAt          time.Time
}

// SeasonalityFeatures computes the requested feature subset for a given
// moment, in UTC.
func SeasonalityFeatures(t time.Time, columns []string) map[string]float64 {
	u := t.UTC()
	out := make(map[string]float64, len(columns))
	for _, c := range columns {
		switch c {
		case "hour":
			out["hour"] = float64(u.Hour())
		case "day_of_week":
			// Monday=0 .. Sunday=6
			wd := int(u.Weekday())
			out["day_of_week"] = float64((wd + 6) % 7)
		case "month":
			out["month"] = float64(u.Month())
		case "is_weekend":
			wd := u.Weekday()
			if wd == time.Saturday || wd == time.Sunday {
				out["is_weekend"] = 1
			} else {
				out["is_weekend"] = 0
			}
		case "day_of_month":
			out["day_of_month"] = float64(u.Day())
		case "week_of_year":
			_, wk := u.ISOWeek()
			out["week_of_year"] = float64(wk)
		case "quarter":
			out["quarter"] = float64((int(u.Month())-1)/3 + 1)
		}
	}
	return out
}
