// Package api exposes a read-only HTTP surface over metric status,
// recent detections, and the Prometheus collectors, grounded on the
// teacher's gin-based internal/api/server.go.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nutcas3/detectkit/internal/config"
	"github.com/nutcas3/detectkit/internal/store"
	"github.com/nutcas3/detectkit/internal/task"
)

// Server is the daemon's HTTP surface.
type Server struct {
	cfg     *config.Config
	backend store.Backend
	router  *gin.Engine
	srv     *http.Server
}

// NewServer constructs a Server bound to backend for status and
// detection lookups.
func NewServer(cfg *config.Config, backend store.Backend) (*Server, error) {
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	s := &Server{cfg: cfg, backend: backend, router: router}
	s.setupRoutes()

	s.srv = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}
	return s, nil
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/metrics/:metricName/status", s.getMetricStatus)
		v1.GET("/metrics/:metricName/detections", s.getRecentDetections)
	}
}

func (s *Server) getMetricStatus(c *gin.Context) {
	metricName := c.Param("metricName")

	locked, lastDatapoint, err := task.GetMetricStatus(c.Request.Context(), s.backend, metricName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{
		"metric_name": metricName,
		"is_locked":   locked,
	}
	if lastDatapoint != nil {
		resp["last_datapoint"] = lastDatapoint.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getRecentDetections(c *gin.Context) {
	metricName := c.Param("metricName")

	since := time.Now().Add(-24 * time.Hour)
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since: " + err.Error()})
			return
		}
		since = parsed
	}

	rows, err := s.backend.GetRecentDetections(c.Request.Context(), metricName, since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"timestamp":   row.Timestamp.UTC().Format(time.RFC3339),
			"detector_id": row.DetectorID,
			"is_anomaly":  row.IsAnomaly,
			"value":       row.Value,
			"metadata":    row.DetectionMetadata,
		})
	}
	c.JSON(http.StatusOK, gin.H{"metric_name": metricName, "detections": out})
}
