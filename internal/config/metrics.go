package config

import (
	"fmt"
	"os"
	"strings"
)

// MetricsConfig configures the Prometheus endpoint served by watch.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled: false,
		Addr:    ":9464",
		Path:    "/metrics",
	}
}

func (c *MetricsConfig) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = ":9464"
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
}

// ApplyEnvOverrides reads LIVEQUERY_METRICS_ADDR; setting it enables metrics.
func (c *MetricsConfig) ApplyEnvOverrides() {
	if v := os.Getenv("LIVEQUERY_METRICS_ADDR"); v != "" {
		c.Addr = v
		c.Enabled = true
	}
}

func (c *MetricsConfig) ResolvePaths(_, _ string) {}

func (c *MetricsConfig) Validate() error {
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("metrics.path must start with /: %q", c.Path)
	}
	if c.Enabled && c.Addr == "" {
		return fmt.Errorf("metrics.addr cannot be empty")
	}
	return nil
}
