// Package config provides configuration management for the leapscale CLI.
//
// Configuration is layered with koanf: built-in defaults, then
// leapscale.yaml, then LEAPSCALE_ environment variables, then flags that
// were set explicitly on the command line.
package config

import (
	"time"

	"github.com/leapstack-labs/leapscale/internal/adapter"
	"github.com/leapstack-labs/leapscale/internal/table"
)

// Config holds all CLI configuration options.
type Config struct {
	Input            string               `koanf:"input"`
	Format           string               `koanf:"format"`
	Columns          table.Columns        `koanf:"columns"`
	LineageSeparator string               `koanf:"lineage_separator"`
	Source           *SourceConfig        `koanf:"source"`
	Sink             SinkConfig           `koanf:"sink"`
	Workers          int                  `koanf:"workers"`
	Validation       bool                 `koanf:"validate"`
	OutputFormat     string               `koanf:"output"`
	Verbose          bool                 `koanf:"verbose"`
	Watch            WatchConfig          `koanf:"watch"`
	Serve            ServeConfig          `koanf:"serve"`
	Environment      string               `koanf:"environment"`
	Environments     map[string]EnvConfig `koanf:"environments"`

	// ProjectRoot is the directory relative paths from the config file are
	// resolved against. Not loaded from configuration.
	ProjectRoot string `koanf:"-"`
}

// SourceConfig describes a SQL database the lineage table is loaded from.
type SourceConfig struct {
	Type     string            `koanf:"type"`
	Database string            `koanf:"database"`
	Host     string            `koanf:"host"`
	Port     int               `koanf:"port"`
	User     string            `koanf:"user"`
	Password string            `koanf:"password"`
	Query    string            `koanf:"query"`
	Options  map[string]string `koanf:"options"`
}

// AdapterConfig converts the source into an adapter connection config.
func (s *SourceConfig) AdapterConfig() adapter.Config {
	return adapter.Config{
		Type:     s.Type,
		Path:     s.Database,
		Host:     s.Host,
		Port:     s.Port,
		Database: s.Database,
		Username: s.User,
		Password: s.Password,
		Options:  s.Options,
	}
}

// SinkConfig names the table the propagated result is written to.
type SinkConfig struct {
	Table string `koanf:"table"`
}

// WatchConfig holds settings for propagate --watch.
type WatchConfig struct {
	Debounce time.Duration `koanf:"debounce"`
}

// ServeConfig holds settings for the HTTP service.
type ServeConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// EnvConfig holds environment-specific configuration overrides.
type EnvConfig struct {
	Input   string        `koanf:"input"`
	Source  *SourceConfig `koanf:"source"`
	Sink    *SinkConfig   `koanf:"sink"`
	Workers int           `koanf:"workers"`
}

// TableOptions returns the table codec options for this configuration.
func (c *Config) TableOptions() table.Options {
	return table.Options{
		Columns:          c.Columns.WithDefaults(),
		LineageSeparator: c.LineageSeparator,
	}
}

// Default configuration values.
const (
	DefaultInput           = "-"
	DefaultFormat          = "auto"
	DefaultOutput          = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultWorkers         = 1
	DefaultDebounce        = 200 * time.Millisecond
	DefaultServeAddr       = ":8787"
	DefaultShutdownTimeout = 5 * time.Second
	DefaultMaxBodyBytes    = 10 << 20
	DefaultQuery           = "SELECT id, value, override, lineage FROM nodes"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Input:            DefaultInput,
		Format:           DefaultFormat,
		Columns:          table.DefaultColumns(),
		LineageSeparator: table.DefaultLineageSeparator,
		Workers:          DefaultWorkers,
		Validation:       true,
		OutputFormat:     DefaultOutput,
		Watch:            WatchConfig{Debounce: DefaultDebounce},
		Serve: ServeConfig{
			Addr:            DefaultServeAddr,
			ShutdownTimeout: DefaultShutdownTimeout,
			MaxBodyBytes:    DefaultMaxBodyBytes,
		},
	}
}
