package config

import (
	"fmt"
	"os"
	"path/filepath"

	storage "github.com/syntrixbase/livequery/internal/storage/config"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Storage    storage.Config   `yaml:"storage"`
	Cache      CacheConfig      `yaml:"cache"`
	ChangeFeed ChangeFeedConfig `yaml:"changefeed"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Logging:    DefaultLoggingConfig(),
		Storage:    storage.DefaultConfig(),
		Cache:      DefaultCacheConfig(),
		ChangeFeed: DefaultChangeFeedConfig(),
		Metrics:    DefaultMetricsConfig(),
	}
}

// LoadConfig loads configuration from configDir.
// Order: defaults -> config.yml -> config.local.yml -> ApplyDefaults ->
// ApplyEnvOverrides -> ResolvePaths -> Validate.
// Missing files are skipped; unreadable or malformed ones are errors.
func LoadConfig(configDir, dataDir string) (*Config, error) {
	cfg := Default()

	for _, name := range []string{"config.yml", "config.local.yml"} {
		if err := loadFile(filepath.Join(configDir, name), cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Apply(configDir, dataDir); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// Apply runs the section lifecycle over every section.
func (c *Config) Apply(configDir, dataDir string) error {
	return ApplyServiceConfigs(configDir, dataDir,
		&c.Logging,
		&c.Storage,
		&c.Cache,
		&c.ChangeFeed,
		&c.Metrics,
	)
}

func loadFile(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", filename, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", filename, err)
	}
	return nil
}
