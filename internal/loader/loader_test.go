package loader

import (
	"context"
	"testing"
	"time"

	"github.com/nutcas3/detectkit/internal/core"
	"github.com/nutcas3/detectkit/internal/store"
	"github.com/nutcas3/detectkit/internal/store/memstore"
)

type stubDB struct {
	rows []Row
	err  error
}

func (s *stubDB) ExecuteQuery(ctx context.Context, query string) ([]Row, error) {
	return s.rows, s.err
}

func testMetric(t *testing.T, intervalSeconds int64) core.MetricRow {
	t.Helper()
	interval, err := core.NewInterval(intervalSeconds)
	if err != nil {
		t.Fatalf("NewInterval: %v", err)
	}
	return core.MetricRow{MetricName: "req_count", Interval: interval}
}

func TestLoadRejectsMissingTimestampColumn(t *testing.T) {
	db := &stubDB{rows: []Row{{"value": 1.0}}}
	backend := memstore.New()
	l := New(db, backend, NewQueryTemplate(false), testMetric(t, 60), "select * from t", nil)

	_, err := l.Load(context.Background(), ptrTime(time.Unix(0, 0)), time.Now(), false)
	if _, ok := err.(*core.BadSchemaError); !ok {
		t.Fatalf("err = %v (%T), want *core.BadSchemaError", err, err)
	}
}

func TestLoadResolvesFromWatermarkWhenNoOverride(t *testing.T) {
	ctx := context.Background()
	backend := memstore.New()
	metric := testMetric(t, 60)

	last := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := backend.SaveDatapoints(ctx, metric.MetricName, emptyBundleAt(last), 60, nil); err != nil {
		t.Fatalf("seed watermark: %v", err)
	}

	db := &stubDB{rows: []Row{
		{"timestamp": last.Add(time.Minute).Format("2006-01-02 15:04:05"), "value": 1.0},
	}}
	l := New(db, backend, NewQueryTemplate(false), metric, "select * from t where ts >= '{{ .dtk_start_time }}'", nil)

	points, err := l.Load(ctx, nil, last.Add(2*time.Minute), false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("got %d points, want 1", len(points))
	}
}

func TestLoadWithoutWatermarkAndNoOverrideFails(t *testing.T) {
	backend := memstore.New()
	db := &stubDB{}
	l := New(db, backend, NewQueryTemplate(false), testMetric(t, 60), "select 1", nil)

	_, err := l.Load(context.Background(), nil, time.Now(), false)
	if _, ok := err.(*core.NoWatermarkError); !ok {
		t.Fatalf("err = %v (%T), want *core.NoWatermarkError", err, err)
	}
}

// TestGapFillProducesArithmeticProgression is the P9 invariant: after a
// gap-filled load, emitted timestamps form a strict arithmetic
// progression with step interval, null values mark originally-missing
// points, and non-null values preserve the original.
func TestGapFillProducesArithmeticProgression(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	db := &stubDB{rows: []Row{
		{"timestamp": base.Format("2006-01-02 15:04:05"), "value": 1.0},
		// base+1min and base+2min observations are missing entirely; base+3min present.
		{"timestamp": base.Add(3 * time.Minute).Format("2006-01-02 15:04:05"), "value": 4.0},
	}}
	backend := memstore.New()
	l := New(db, backend, NewQueryTemplate(false), testMetric(t, 60), "select * from t", nil)

	points, err := l.Load(context.Background(), ptrTime(base), base.Add(4*time.Minute), true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(points) != 4 {
		t.Fatalf("got %d points, want 4 (minute 0..3)", len(points))
	}
	for i, p := range points {
		want := base.Add(time.Duration(i) * time.Minute)
		if !p.Timestamp.Equal(want) {
			t.Fatalf("point %d timestamp = %v, want %v", i, p.Timestamp, want)
		}
	}
	if points[0].Value == nil || *points[0].Value != 1.0 {
		t.Fatalf("point 0 value = %v, want 1.0", points[0].Value)
	}
	if points[1].Value != nil {
		t.Fatalf("point 1 (minute 1) should be a synthesized gap, got %v", *points[1].Value)
	}
	if points[2].Value != nil {
		t.Fatalf("point 2 (minute 2) should be a synthesized gap, got %v", *points[2].Value)
	}
	if points[3].Value == nil || *points[3].Value != 4.0 {
		t.Fatalf("point 3 value = %v, want 4.0", points[3].Value)
	}
}

// TestGapFillSkipsSynthesisBelowTwoPoints documents the frozen decision
// that a single-row result is returned as-is: there is no span to fill
// and no second point to infer the grid origin from.
func TestGapFillSkipsSynthesisBelowTwoPoints(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	db := &stubDB{rows: []Row{
		{"timestamp": base.Format("2006-01-02 15:04:05"), "value": 1.0},
	}}
	backend := memstore.New()
	l := New(db, backend, NewQueryTemplate(false), testMetric(t, 60), "select * from t", nil)

	points, err := l.Load(context.Background(), ptrTime(base), base.Add(time.Minute), true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("got %d points, want 1 (no synthesis below two rows)", len(points))
	}
}

func TestSaveIsNoOpOnEmptySlice(t *testing.T) {
	backend := memstore.New()
	l := New(&stubDB{}, backend, NewQueryTemplate(false), testMetric(t, 60), "select 1", nil)

	n, err := l.Save(context.Background(), nil)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if n != 0 {
		t.Fatalf("n = %d, want 0", n)
	}
}

func TestLoadAndSavePersistsThroughBackend(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	db := &stubDB{rows: []Row{
		{"timestamp": base.Format("2006-01-02 15:04:05"), "value": 1.0},
		{"timestamp": base.Add(time.Minute).Format("2006-01-02 15:04:05"), "value": 2.0},
	}}
	backend := memstore.New()
	metric := testMetric(t, 60)
	l := New(db, backend, NewQueryTemplate(false), metric, "select * from t", []string{"hour"})

	n, err := l.LoadAndSave(ctx, ptrTime(base), base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("LoadAndSave: %v", err)
	}
	if n != 2 {
		t.Fatalf("n = %d, want 2", n)
	}

	last, err := backend.GetLastDatapointTimestamp(ctx, metric.MetricName)
	if err != nil {
		t.Fatalf("GetLastDatapointTimestamp: %v", err)
	}
	if last == nil || !last.Equal(base.Add(time.Minute)) {
		t.Fatalf("last = %v, want %v", last, base.Add(time.Minute))
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

func emptyBundleAt(ts time.Time) store.DatapointBundle {
	v := 0.0
	return store.DatapointBundle{
		Timestamp:       []time.Time{ts},
		Value:           []*float64{&v},
		SeasonalityData: []map[string]float64{nil},
	}
}
