// Command detectkitd is the anomaly-detection daemon: it loads every
// metric document under DTK_METRICS_DIR, schedules each enabled one on
// its own cron entry, and serves the read-only status API, grounded on the
// teacher's cmd/api/main.go startup/shutdown sequence.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nutcas3/detectkit/internal/alert"
	"github.com/nutcas3/detectkit/internal/api"
	"github.com/nutcas3/detectkit/internal/config"
	"github.com/nutcas3/detectkit/internal/loader"
	"github.com/nutcas3/detectkit/internal/scheduler"
	"github.com/nutcas3/detectkit/internal/store"
	"github.com/nutcas3/detectkit/internal/store/memstore"
	"github.com/nutcas3/detectkit/internal/task"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, closeBackend := newBackend(cfg)
	if closeBackend != nil {
		defer closeBackend()
	}
	if err := backend.EnsureTables(ctx); err != nil {
		log.Fatalf("Failed to ensure internal tables: %v", err)
	}

	db, closeDB, err := newExternalDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to the external database: %v", err)
	}
	if closeDB != nil {
		defer closeDB()
	}

	manager := task.NewManager(backend, db, loader.NewQueryTemplate(false), webhookChannelFactory)

	sched := scheduler.New(manager)
	metricConfigs, err := loadMetrics(cfg.MetricsDir)
	if err != nil {
		log.Fatalf("Failed to load metric configs: %v", err)
	}
	for _, mc := range metricConfigs {
		if !mc.Enabled {
			continue
		}
		spec := fmt.Sprintf("@every %ds", mc.IntervalOrPanic().Seconds())
		if err := sched.AddMetric(mc, spec); err != nil {
			log.Fatalf("Failed to schedule metric %s: %v", mc.MetricName, err)
		}
		log.Printf("scheduled metric %s every %s", mc.MetricName, mc.Interval)
	}
	sched.Start()
	defer sched.Stop()

	server, err := api.NewServer(cfg, backend)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	go func() {
		if err := server.Start(); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	<-ctx.Done()

	if err := server.Shutdown(context.Background()); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
}

func newBackend(cfg *config.Config) (store.Backend, func()) {
	return memstore.New(), nil
}

func newExternalDB(cfg *config.Config) (loader.ExternalDB, func(), error) {
	if cfg.Database.DSN == "" {
		return nil, nil, fmt.Errorf("DTK_DATABASE_DSN is required")
	}
	sqlDB, err := loader.Connect(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, func() { _ = sqlDB.Close() }, nil
}

func loadMetrics(dir string) ([]config.MetricConfig, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var configs []config.MetricConfig
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		mc, err := config.LoadMetricConfig(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", entry.Name(), err)
		}
		configs = append(configs, *mc)
	}
	return configs, nil
}

// webhookChannelFactory resolves a channel name to a webhook URL via
// DTK_CHANNEL_<NAME>_URL, the same environment-variable convention the
// rest of this package's configuration uses.
func webhookChannelFactory(name string) (alert.Channel, error) {
	envKey := "DTK_CHANNEL_" + sanitizeEnvKey(name) + "_URL"
	url := os.Getenv(envKey)
	return alert.NewWebhookChannel(name, url)
}

func sanitizeEnvKey(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if r >= 'a' && r <= 'z' {
			r = r - 'a' + 'A'
		}
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
		} else {
			out = append(out, '_')
		}
	}
	return string(out)
}
