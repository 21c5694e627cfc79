// Package scheduler fans configured metrics out to cron-driven pipeline
// runs, one cron entry per metric, grounded on the teacher's
// internal/monitoring.Engine.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nutcas3/detectkit/internal/config"
	"github.com/nutcas3/detectkit/internal/task"
)

// Scheduler runs task.Manager.RunMetric for every registered metric on
// its own cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	manager *task.Manager
	metrics map[string]config.MetricConfig
	entries map[string]cron.EntryID
	mu      sync.RWMutex
}

// New constructs a Scheduler backed by manager.
func New(manager *task.Manager) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		manager: manager,
		metrics: make(map[string]config.MetricConfig),
		entries: make(map[string]cron.EntryID),
	}
}

// Start begins firing scheduled runs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler. In-flight runs are not interrupted.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// AddMetric registers cfg on spec, a standard cron expression (with
// seconds field). Re-registering an already-scheduled metric replaces
// its prior entry.
func (s *Scheduler) AddMetric(cfg config.MetricConfig, spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, exists := s.entries[cfg.MetricName]; exists {
		s.cron.Remove(entryID)
	}
	s.metrics[cfg.MetricName] = cfg

	entryID, err := s.cron.AddFunc(spec, func() {
		s.runOnce(cfg)
	})
	if err != nil {
		return err
	}
	s.entries[cfg.MetricName] = entryID
	return nil
}

// RemoveMetric cancels a metric's schedule.
func (s *Scheduler) RemoveMetric(metricName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, exists := s.entries[metricName]; exists {
		s.cron.Remove(entryID)
		delete(s.entries, metricName)
		delete(s.metrics, metricName)
	}
}

func (s *Scheduler) runOnce(cfg config.MetricConfig) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.TotalTimeoutSec)*time.Second)
	defer cancel()

	report := s.manager.RunMetric(ctx, cfg, task.DefaultSteps, nil, nil, false)
	if report.Status != "completed" {
		log.Printf("scheduler: metric %s run ended %s: %s", cfg.MetricName, report.Status, report.Error)
	}
}
