// Package config loads the daemon's environment configuration and the
// per-metric YAML pipeline documents that drive internal/task.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// ServerConfig configures the read-only HTTP surface (internal/api).
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig names the external analytical database the metric
// loader queries. The internal tables always live in
// internal/store/memstore, whatever the DSN.
type DatabaseConfig struct {
	Driver string
	DSN    string
}

// Config is the daemon's process-wide environment configuration,
// loaded once at startup.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	// MetricsDir is the directory of per-metric YAML documents that
	// detectkitd reads once at startup.
	MetricsDir string
}

// Load reads a .env file if present (never an error if absent) and
// populates Config from environment variables, applying defaults for
// anything unset.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("DTK_SERVER_HOST", "0.0.0.0"),
			Port: getEnvInt("DTK_SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Driver: getEnv("DTK_DATABASE_DRIVER", "postgres"),
			DSN:    getEnv("DTK_DATABASE_DSN", ""),
		},
		MetricsDir: getEnv("DTK_METRICS_DIR", "./metrics"),
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	var parsed int
	if _, err := fmt.Sscanf(v, "%d", &parsed); err != nil {
		return fallback
	}
	return parsed
}
