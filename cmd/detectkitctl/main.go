// Command detectkitctl runs a single metric's pipeline once, bypassing
// the scheduler entirely. Useful for backfills and manual
// investigation, grounded on the same startup sequence as
// cmd/detectkitd but without the HTTP surface or cron loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/nutcas3/detectkit/internal/alert"
	"github.com/nutcas3/detectkit/internal/config"
	"github.com/nutcas3/detectkit/internal/loader"
	"github.com/nutcas3/detectkit/internal/store/memstore"
	"github.com/nutcas3/detectkit/internal/task"
)

func main() {
	metricPath := flag.String("metric", "", "path to the metric's YAML config")
	force := flag.Bool("force", false, "bypass the pipeline lock")
	from := flag.String("from", "", "RFC3339 override for the load window start (defaults to the saved watermark)")
	flag.Parse()

	if *metricPath == "" {
		fmt.Fprintln(os.Stderr, "usage: detectkitctl -metric path/to/metric.yaml [-force] [-from RFC3339]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	mc, err := config.LoadMetricConfig(*metricPath)
	if err != nil {
		log.Fatalf("Failed to load metric config: %v", err)
	}

	if cfg.Database.DSN == "" {
		log.Fatalf("DTK_DATABASE_DSN is required")
	}
	db, err := loader.Connect(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to the external database: %v", err)
	}
	defer db.Close()

	backend := memstore.New()
	ctx := context.Background()
	if err := backend.EnsureTables(ctx); err != nil {
		log.Fatalf("Failed to ensure internal tables: %v", err)
	}

	channels := func(name string) (alert.Channel, error) {
		return alert.NewWebhookChannel(name, os.Getenv("DTK_CHANNEL_"+name+"_URL"))
	}
	manager := task.NewManager(backend, db, loader.NewQueryTemplate(false), channels)

	var fromOverride *time.Time
	if *from != "" {
		t, err := time.Parse(time.RFC3339, *from)
		if err != nil {
			log.Fatalf("Invalid -from: %v", err)
		}
		fromOverride = &t
	}
	to := time.Now().UTC()

	report := manager.RunMetric(ctx, *mc, nil, fromOverride, &to, *force)

	fmt.Printf("status=%s steps=%v datapoints_loaded=%d anomalies_detected=%d alerts_sent=%d\n",
		report.Status, report.StepsCompleted, report.DatapointsLoaded, report.AnomaliesDetected, report.AlertsSent)
	if report.Error != "" {
		fmt.Printf("error=%s\n", report.Error)
		os.Exit(1)
	}
}
