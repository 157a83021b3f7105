package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level    string         `yaml:"level"`  // debug, info, warn, error
	Format   string         `yaml:"format"` // text, json
	Dir      string         `yaml:"dir"`
	Rotation RotationConfig `yaml:"rotation"`
	Console  ConsoleConfig  `yaml:"console"`
	File     FileConfig     `yaml:"file"`
}

// RotationConfig holds lumberjack rotation settings.
type RotationConfig struct {
	MaxSize    int  `yaml:"max_size"`    // MB
	MaxBackups int  `yaml:"max_backups"` // files
	MaxAge     int  `yaml:"max_age"`     // days
	Compress   bool `yaml:"compress"`
}

// ConsoleConfig configures stderr output.
type ConsoleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
}

// FileConfig configures livequery.log and errors.log.
type FileConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
}

var (
	validLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats = map[string]bool{"text": true, "json": true}
)

// DefaultLoggingConfig logs text at info to the console only. File output
// is opt-in so short-lived CLI commands do not leave log files behind.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  "info",
		Format: "text",
		Dir:    "logs",
		Rotation: RotationConfig{
			MaxSize:    100,
			MaxBackups: 10,
			MaxAge:     30,
			Compress:   true,
		},
		Console: ConsoleConfig{Enabled: true},
		File:    FileConfig{Enabled: false},
	}
}

func (c *LoggingConfig) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
	if c.Dir == "" {
		c.Dir = "logs"
	}
	if c.Rotation.MaxSize == 0 {
		c.Rotation.MaxSize = 100
	}
	if c.Rotation.MaxBackups == 0 {
		c.Rotation.MaxBackups = 10
	}
	if c.Rotation.MaxAge == 0 {
		c.Rotation.MaxAge = 30
	}
	// Per-output settings inherit the top-level ones.
	if c.Console.Level == "" {
		c.Console.Level = c.Level
	}
	if c.Console.Format == "" {
		c.Console.Format = c.Format
	}
	if c.File.Level == "" {
		c.File.Level = c.Level
	}
	if c.File.Format == "" {
		c.File.Format = c.Format
	}
}

// ApplyEnvOverrides reads LIVEQUERY_LOG_LEVEL, LIVEQUERY_LOG_FORMAT and
// LIVEQUERY_LOG_DIR. Level and format overrides apply to every output.
func (c *LoggingConfig) ApplyEnvOverrides() {
	if v := os.Getenv("LIVEQUERY_LOG_LEVEL"); v != "" {
		c.Level, c.Console.Level, c.File.Level = v, v, v
	}
	if v := os.Getenv("LIVEQUERY_LOG_FORMAT"); v != "" {
		c.Format, c.Console.Format, c.File.Format = v, v, v
	}
	if v := os.Getenv("LIVEQUERY_LOG_DIR"); v != "" {
		c.Dir = v
	}
}

// ResolvePaths anchors a relative log directory at dataDir.
func (c *LoggingConfig) ResolvePaths(_ string, dataDir string) {
	if c.Dir != "" && !filepath.IsAbs(c.Dir) && dataDir != "" {
		c.Dir = filepath.Join(dataDir, c.Dir)
	}
	c.Dir = filepath.Clean(c.Dir)
}

func (c *LoggingConfig) Validate() error {
	if !validLevels[c.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Level)
	}
	if !validFormats[c.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Format)
	}
	if c.Dir == "" {
		return fmt.Errorf("log directory cannot be empty")
	}
	if c.Console.Enabled {
		if !validLevels[c.Console.Level] {
			return fmt.Errorf("invalid console log level: %s", c.Console.Level)
		}
		if !validFormats[c.Console.Format] {
			return fmt.Errorf("invalid console log format: %s", c.Console.Format)
		}
	}
	if c.File.Enabled {
		if !validLevels[c.File.Level] {
			return fmt.Errorf("invalid file log level: %s", c.File.Level)
		}
		if !validFormats[c.File.Format] {
			return fmt.Errorf("invalid file log format: %s", c.File.Format)
		}
	}
	return nil
}
