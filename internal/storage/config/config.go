package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/text/language"
)

const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
	BackendSQLite = "sqlite"
)

type Config struct {
	Backend string       `yaml:"backend"` // "memory", "mongo", "sqlite"
	Locale  string       `yaml:"locale"`  // BCP 47 tag used for string ordering
	Mongo   MongoConfig  `yaml:"mongo"`
	SQLite  SQLiteConfig `yaml:"sqlite"`
}

type MongoConfig struct {
	URI            string        `yaml:"uri"`
	DatabaseName   string        `yaml:"database_name"`
	Collection     string        `yaml:"collection"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

type SQLiteConfig struct {
	Path  string `yaml:"path"` // ":memory:" or a file path, relative to the data dir
	Table string `yaml:"table"`
}

func DefaultConfig() Config {
	return Config{
		Backend: BackendMemory,
		Locale:  "und",
		Mongo: MongoConfig{
			URI:            "mongodb://localhost:27017",
			DatabaseName:   "livequery",
			Collection:     "documents",
			ConnectTimeout: 10 * time.Second,
		},
		SQLite: SQLiteConfig{
			Path:  "livequery.db",
			Table: "documents",
		},
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.Backend == "" {
		c.Backend = defaults.Backend
	}
	if c.Locale == "" {
		c.Locale = defaults.Locale
	}
	if c.Mongo.URI == "" {
		c.Mongo.URI = defaults.Mongo.URI
	}
	if c.Mongo.DatabaseName == "" {
		c.Mongo.DatabaseName = defaults.Mongo.DatabaseName
	}
	if c.Mongo.Collection == "" {
		c.Mongo.Collection = defaults.Mongo.Collection
	}
	if c.Mongo.ConnectTimeout == 0 {
		c.Mongo.ConnectTimeout = defaults.Mongo.ConnectTimeout
	}
	if c.SQLite.Path == "" {
		c.SQLite.Path = defaults.SQLite.Path
	}
	if c.SQLite.Table == "" {
		c.SQLite.Table = defaults.SQLite.Table
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("LIVEQUERY_STORAGE_BACKEND"); val != "" {
		c.Backend = val
	}
	if val := os.Getenv("LIVEQUERY_LOCALE"); val != "" {
		c.Locale = val
	}
	if val := os.Getenv("MONGO_URI"); val != "" {
		c.Mongo.URI = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Mongo.DatabaseName = val
	}
	if val := os.Getenv("LIVEQUERY_SQLITE_PATH"); val != "" {
		c.SQLite.Path = val
	}
}

// ResolvePaths resolves the sqlite file against dataDir.
func (c *Config) ResolvePaths(_ string, dataDir string) {
	if c.SQLite.Path == "" || c.SQLite.Path == ":memory:" || filepath.IsAbs(c.SQLite.Path) {
		return
	}
	if dataDir != "" {
		c.SQLite.Path = filepath.Join(dataDir, c.SQLite.Path)
	}
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendMongo:
		if c.Mongo.URI == "" {
			return fmt.Errorf("storage.mongo.uri is required for the mongo backend")
		}
		if c.Mongo.DatabaseName == "" || c.Mongo.Collection == "" {
			return fmt.Errorf("storage.mongo.database_name and storage.mongo.collection are required")
		}
	case BackendSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required for the sqlite backend")
		}
		if !validTable(c.SQLite.Table) {
			return fmt.Errorf("invalid storage.sqlite.table: %q", c.SQLite.Table)
		}
	default:
		return fmt.Errorf("unknown storage backend: %q (must be memory, mongo or sqlite)", c.Backend)
	}

	if _, err := c.Language(); err != nil {
		return err
	}
	return nil
}

// Language parses Locale.
func (c *Config) Language() (language.Tag, error) {
	if c.Locale == "" {
		return language.Und, nil
	}
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.Und, fmt.Errorf("invalid storage.locale %q: %w", c.Locale, err)
	}
	return tag, nil
}

func validTable(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
