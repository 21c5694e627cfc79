package loader

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nutcas3/detectkit/internal/core"
	"github.com/nutcas3/detectkit/internal/store"
)

// Loader pulls datapoints for one metric from the external analytical
// database, aligns them to the interval grid, gap-fills, enriches with
// seasonality features, and persists the result.
type Loader struct {
	DB                 ExternalDB
	Backend            store.Backend
	Template           *QueryTemplate
	Metric             core.MetricRow
	Query              string
	SeasonalityColumns []string
}

// New constructs a Loader for one metric's pipeline run.
func New(db ExternalDB, backend store.Backend, tmpl *QueryTemplate, metric core.MetricRow, query string, seasonalityColumns []string) *Loader {
	return &Loader{DB: db, Backend: backend, Template: tmpl, Metric: metric, Query: query, SeasonalityColumns: seasonalityColumns}
}

func (l *Loader) resolveFrom(ctx context.Context) (time.Time, error) {
	last, err := l.Backend.GetLastDatapointTimestamp(ctx, l.Metric.MetricName)
	if err != nil {
		return time.Time{}, &core.TransientError{Reason: err.Error()}
	}
	if last == nil {
		return time.Time{}, &core.NoWatermarkError{MetricName: l.Metric.MetricName}
	}
	return last.Add(time.Duration(l.Metric.Interval.Seconds()) * time.Second), nil
}

// Load renders and executes the extraction query over [from, to),
// resolving from from the saved watermark when fromOverride is nil,
// validates the result schema, gap-fills the interval grid when
// fillGaps is true, and attaches seasonality features.
func (l *Loader) Load(ctx context.Context, fromOverride *time.Time, to time.Time, fillGaps bool) ([]core.Datapoint, error) {
	from, err := l.resolveWindowStart(ctx, fromOverride)
	if err != nil {
		return nil, err
	}

	rendered, err := l.Template.Render(l.Query, BuiltinVars{
		StartTime:        from,
		EndTime:          to,
		IntervalSeconds:  l.Metric.Interval.Seconds(),
		LoadingBatchSize: l.Metric.LoadingBatchSize,
	}, nil)
	if err != nil {
		return nil, err
	}

	rows, err := l.DB.ExecuteQuery(ctx, rendered)
	if err != nil {
		return nil, &core.TransientError{Reason: err.Error()}
	}

	datapoints, err := rowsToDatapoints(rows, l.Metric.MetricName)
	if err != nil {
		return nil, err
	}

	sort.Slice(datapoints, func(i, j int) bool { return datapoints[i].Timestamp.Before(datapoints[j].Timestamp) })

	if fillGaps {
		datapoints = fillGapsOnGrid(datapoints, l.Metric.Interval.Seconds())
	}

	seasonalityColumns := l.SeasonalityColumns
	for i := range datapoints {
		datapoints[i].IntervalSeconds = l.Metric.Interval.Seconds()
		datapoints[i].SeasonalityColumns = seasonalityColumns
		if len(seasonalityColumns) > 0 {
			datapoints[i].SeasonalityData = core.SeasonalityFeatures(datapoints[i].Timestamp, seasonalityColumns)
		}
	}

	return datapoints, nil
}

func (l *Loader) resolveWindowStart(ctx context.Context, fromOverride *time.Time) (time.Time, error) {
	if fromOverride != nil {
		return *fromOverride, nil
	}
	return l.resolveFrom(ctx)
}

// rowsToDatapoints validates that every row carries "timestamp" and
// "value" and converts them into core.Datapoint. A row lacking either
// key is a BadSchemaError; a present but nil "value" is kept as null.
func rowsToDatapoints(rows []Row, metricName string) ([]core.Datapoint, error) {
	out := make([]core.Datapoint, 0, len(rows))
	for _, row := range rows {
		rawTS, ok := row["timestamp"]
		if !ok {
			return nil, &core.BadSchemaError{Reason: "row missing required column \"timestamp\""}
		}
		ts, err := toTime(rawTS)
		if err != nil {
			return nil, &core.BadSchemaError{Reason: fmt.Sprintf("row has unparseable timestamp: %v", err)}
		}

		rawValue, ok := row["value"]
		if !ok {
			return nil, &core.BadSchemaError{Reason: "row missing required column \"value\""}
		}
		var value *float64
		if rawValue != nil {
			v, err := toFloat(rawValue)
			if err != nil {
				return nil, &core.BadSchemaError{Reason: fmt.Sprintf("row has unparseable value: %v", err)}
			}
			value = &v
		}

		out = append(out, core.Datapoint{
			MetricName: metricName,
			Timestamp:  ts.UTC(),
			Value:      value,
		})
	}
	return out, nil
}

func toTime(raw interface{}) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized timestamp format %q", v)
	case int64:
		return time.UnixMilli(v).UTC(), nil
	case int:
		return time.UnixMilli(int64(v)).UTC(), nil
	case float64:
		return time.UnixMilli(int64(v)).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", raw)
	}
}

func toFloat(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("unsupported value type %T", raw)
	}
}

// fillGapsOnGrid rebuilds points as a strict arithmetic progression
// from the earliest to the latest observed timestamp, step
// intervalSeconds, bucketing each observed timestamp to the nearest
// lower grid point and letting the last write at a bucket win on
// collision. Grid points with no observation get a nil value. Fewer
// than two input points are returned unchanged — there is no span to
// fill and no way to infer a grid origin from a single point.
func fillGapsOnGrid(points []core.Datapoint, intervalSeconds int64) []core.Datapoint {
	if len(points) < 2 || intervalSeconds <= 0 {
		return points
	}

	origin := points[0].Timestamp
	step := time.Duration(intervalSeconds) * time.Second

	byBucket := make(map[int64]*float64)
	var maxBucket int64
	for _, p := range points {
		offset := p.Timestamp.Sub(origin)
		bucket := int64(offset / step)
		if bucket < 0 {
			bucket = 0
		}
		byBucket[bucket] = p.Value
		if bucket > maxBucket {
			maxBucket = bucket
		}
	}

	out := make([]core.Datapoint, 0, maxBucket+1)
	for b := int64(0); b <= maxBucket; b++ {
		out = append(out, core.Datapoint{
			MetricName: points[0].MetricName,
			Timestamp:  origin.Add(time.Duration(b) * step),
			Value:      byBucket[b],
		})
	}
	return out
}

// Save persists datapoints through the backend. It is a no-op on an
// empty slice.
func (l *Loader) Save(ctx context.Context, datapoints []core.Datapoint) (int, error) {
	if len(datapoints) == 0 {
		return 0, nil
	}

	bundle := store.DatapointBundle{
		Timestamp:       make([]time.Time, len(datapoints)),
		Value:           make([]*float64, len(datapoints)),
		SeasonalityData: make([]map[string]float64, len(datapoints)),
	}
	for i, dp := range datapoints {
		bundle.Timestamp[i] = dp.Timestamp
		bundle.Value[i] = dp.Value
		bundle.SeasonalityData[i] = dp.SeasonalityData
	}

	n, err := l.Backend.SaveDatapoints(ctx, l.Metric.MetricName, bundle, l.Metric.Interval.Seconds(), l.SeasonalityColumns)
	if err != nil {
		return 0, &core.TransientError{Reason: err.Error()}
	}
	return n, nil
}

// LoadAndSave loads the window ending at to (starting at fromOverride
// or the saved watermark) with gap-filling enabled, and persists the
// result in one call.
func (l *Loader) LoadAndSave(ctx context.Context, fromOverride *time.Time, to time.Time) (int, error) {
	datapoints, err := l.Load(ctx, fromOverride, to, true)
	if err != nil {
		return 0, err
	}
	return l.Save(ctx, datapoints)
}
