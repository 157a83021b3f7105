package config

import (
	"fmt"
	"os"

	"github.com/syntrixbase/livequery/internal/pubsub"
)

const (
	FeedProviderMemory = "memory"
	FeedProviderNATS   = "nats"
)

// ChangeFeedConfig configures propagation of mutations between processes
// sharing one store.
type ChangeFeedConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Provider      string `yaml:"provider"` // memory, nats
	URL           string `yaml:"url"`
	StreamName    string `yaml:"stream_name"`
	SubjectPrefix string `yaml:"subject_prefix"`
	Storage       string `yaml:"storage"` // memory, file
	RetryAttempts int    `yaml:"retry_attempts"`
	BufferSize    int    `yaml:"buffer_size"`
}

func DefaultChangeFeedConfig() ChangeFeedConfig {
	return ChangeFeedConfig{
		Enabled:       false,
		Provider:      FeedProviderNATS,
		URL:           "nats://localhost:4222",
		StreamName:    "LIVEQUERY",
		SubjectPrefix: "livequery.changes",
		Storage:       "memory",
		RetryAttempts: 3,
		BufferSize:    100,
	}
}

func (c *ChangeFeedConfig) ApplyDefaults() {
	d := DefaultChangeFeedConfig()
	if c.Provider == "" {
		c.Provider = d.Provider
	}
	if c.URL == "" {
		c.URL = d.URL
	}
	if c.StreamName == "" {
		c.StreamName = d.StreamName
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = d.SubjectPrefix
	}
	if c.Storage == "" {
		c.Storage = d.Storage
	}
	if c.BufferSize == 0 {
		c.BufferSize = d.BufferSize
	}
}

// ApplyEnvOverrides reads NATS_URL and LIVEQUERY_CHANGEFEED. Setting
// NATS_URL also selects the nats provider.
func (c *ChangeFeedConfig) ApplyEnvOverrides() {
	if v := os.Getenv("NATS_URL"); v != "" {
		c.URL = v
		c.Provider = FeedProviderNATS
	}
	switch os.Getenv("LIVEQUERY_CHANGEFEED") {
	case "true", "1", "on":
		c.Enabled = true
	case "false", "0", "off":
		c.Enabled = false
	}
}

func (c *ChangeFeedConfig) ResolvePaths(_, _ string) {}

// StorageType returns the parsed stream storage.
func (c *ChangeFeedConfig) StorageType() pubsub.StorageType {
	st, _ := pubsub.ParseStorage(c.Storage)
	return st
}

func (c *ChangeFeedConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Provider {
	case FeedProviderMemory:
	case FeedProviderNATS:
		if c.URL == "" {
			return fmt.Errorf("changefeed.url is required for the nats provider")
		}
	default:
		return fmt.Errorf("unknown changefeed provider: %q", c.Provider)
	}
	if c.StreamName == "" {
		return fmt.Errorf("changefeed.stream_name cannot be empty")
	}
	if _, ok := pubsub.ParseStorage(c.Storage); !ok {
		return fmt.Errorf("invalid changefeed storage: %q (must be memory or file)", c.Storage)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("changefeed.retry_attempts cannot be negative")
	}
	return nil
}
