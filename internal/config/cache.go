package config

import (
	"fmt"
	"os"
	"strconv"
)

// CacheConfig holds the subscription cache settings.
type CacheConfig struct {
	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`

	// WriterQueue > 0 serializes mutations through a single-writer queue
	// of that capacity. 0 leaves them unserialized.
	WriterQueue int `yaml:"writer_queue"`
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		DefaultPageSize: 50,
		MaxPageSize:     1000,
		WriterQueue:     64,
	}
}

func (c *CacheConfig) ApplyDefaults() {
	if c.DefaultPageSize == 0 {
		c.DefaultPageSize = 50
	}
	if c.MaxPageSize == 0 {
		c.MaxPageSize = 1000
	}
}

// ApplyEnvOverrides reads LIVEQUERY_PAGE_SIZE and LIVEQUERY_MAX_PAGE_SIZE.
// Unparseable values are ignored.
func (c *CacheConfig) ApplyEnvOverrides() {
	if n, err := strconv.Atoi(os.Getenv("LIVEQUERY_PAGE_SIZE")); err == nil {
		c.DefaultPageSize = n
	}
	if n, err := strconv.Atoi(os.Getenv("LIVEQUERY_MAX_PAGE_SIZE")); err == nil {
		c.MaxPageSize = n
	}
}

func (c *CacheConfig) ResolvePaths(_, _ string) {}

func (c *CacheConfig) Validate() error {
	if c.DefaultPageSize <= 0 {
		return fmt.Errorf("cache.default_page_size must be positive, got %d", c.DefaultPageSize)
	}
	if c.MaxPageSize < c.DefaultPageSize {
		return fmt.Errorf("cache.max_page_size (%d) must be at least default_page_size (%d)", c.MaxPageSize, c.DefaultPageSize)
	}
	if c.WriterQueue < 0 {
		return fmt.Errorf("cache.writer_queue cannot be negative")
	}
	return nil
}
