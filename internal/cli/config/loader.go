package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/leapstack-labs/leapscale/internal/table"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment variables read into the config.
// A double underscore separates nesting levels: LEAPSCALE_SOURCE__TYPE.
const EnvPrefix = "LEAPSCALE_"

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

var configNames = []string{"leapscale.yaml", "leapscale.yml"}

// flagKeys maps command-line flags to config keys. Flags not listed here
// (help, config, watch, ...) never reach the config.
var flagKeys = map[string]string{
	"input":             "input",
	"format":            "format",
	"workers":           "workers",
	"output":            "output",
	"verbose":           "verbose",
	"env":               "environment",
	"lineage-separator": "lineage_separator",
	"id-column":         "columns.id",
	"value-column":      "columns.value",
	"override-column":   "columns.override",
	"lineage-column":    "columns.lineage",
	"source":            "source.type",
	"database":          "source.database",
	"query":             "source.query",
	"sink":              "sink.table",
	"debounce":          "watch.debounce",
	"addr":              "serve.addr",
}

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config // Stores the loaded config for access by commands
)

// configExistsIn returns the config file in dir, or "" if there is none.
func configExistsIn(dir string) string {
	for _, name := range configNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findConfigUpward searches upward from startDir for a leapscale config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findConfigUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if found := configExistsIn(dir); found != "" {
			return found
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}
	return ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty, stdin or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == "-" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

func defaults() map[string]any {
	d := Default()
	return map[string]any{
		"input":                  d.Input,
		"format":                 d.Format,
		"columns.id":             d.Columns.ID,
		"columns.value":          d.Columns.Value,
		"columns.override":       d.Columns.Override,
		"columns.lineage":        d.Columns.Lineage,
		"lineage_separator":      d.LineageSeparator,
		"workers":                d.Workers,
		"validate":               d.Validation,
		"output":                 d.OutputFormat,
		"verbose":                false,
		"watch.debounce":         d.Watch.Debounce.String(),
		"serve.addr":             d.Serve.Addr,
		"serve.shutdown_timeout": d.Serve.ShutdownTimeout.String(),
		"serve.max_body_bytes":   d.Serve.MaxBodyBytes,
		"serve.cors_origins":     "",
	}
}

// LoadConfig loads configuration from defaults, the config file, environment
// variables and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	// Reset koanf for fresh load
	k = koanf.New(".")
	configFileUsed = ""

	// 1. Load defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	cwd, _ := os.Getwd()
	if cwd == "" {
		cwd = "."
	}
	projectRoot := cwd
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			return nil, fmt.Errorf("config file not found: %s", cfgFile)
		}
		configFileUsed = cfgFile
	} else {
		configFileUsed = findConfigUpward(cwd)
	}
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
		if abs, err := filepath.Abs(configFileUsed); err == nil {
			projectRoot = filepath.Dir(abs)
		}
	}

	// 3. Load environment variables (LEAPSCALE_ prefix)
	// Transform: LEAPSCALE_SERVE__ADDR -> serve.addr
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority - overrides env vars and config file)
	var inputFromFlag, databaseFromFlag bool
	if flags != nil {
		inputFromFlag = flags.Changed("input")
		databaseFromFlag = flags.Changed("database")

		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			// --no-validate is the negation of the validate key
			if f.Name == "no-validate" {
				off, _ := flags.GetBool(f.Name)
				return "validate", !off
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	cfg, err := unmarshal(k)
	if err != nil {
		return nil, err
	}
	cfg.ProjectRoot = projectRoot

	// 6. Apply the selected environment
	if err := cfg.applyEnvironment(); err != nil {
		return nil, err
	}

	// 7. Resolve paths from the config file against the project root.
	// Paths given as flags are relative to the working directory.
	if !inputFromFlag {
		cfg.Input = resolvePathRelativeTo(cfg.Input, projectRoot)
	}
	if cfg.Source != nil {
		expandSourceEnvVars(cfg.Source)
		if !databaseFromFlag && isFileDatabase(cfg.Source.Type) {
			cfg.Source.Database = resolvePathRelativeTo(cfg.Source.Database, projectRoot)
		}
		if cfg.Source.Query == "" {
			cfg.Source.Query = DefaultQuery
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Store config for access by commands
	currentConfig = cfg

	return cfg, nil
}

// unmarshal decodes the merged koanf tree into a Config. Durations accept
// Go duration strings; lists accept comma-separated strings.
func unmarshal(ko *koanf.Koanf) (*Config, error) {
	var cfg Config
	if err := ko.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	origins := cfg.Serve.CORSOrigins[:0]
	for _, o := range cfg.Serve.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	cfg.Serve.CORSOrigins = origins
	return &cfg, nil
}

// applyEnvironment merges the overrides of the selected environment.
func (c *Config) applyEnvironment() error {
	if c.Environment == "" {
		return nil
	}
	envCfg, ok := c.Environments[c.Environment]
	if !ok {
		names := make([]string, 0, len(c.Environments))
		for name := range c.Environments {
			names = append(names, name)
		}
		sort.Strings(names)
		return fmt.Errorf("unknown environment %q\nAvailable environments: %v", c.Environment, names)
	}

	if envCfg.Input != "" {
		c.Input = envCfg.Input
	}
	if envCfg.Workers != 0 {
		c.Workers = envCfg.Workers
	}
	if envCfg.Sink != nil && envCfg.Sink.Table != "" {
		c.Sink.Table = envCfg.Sink.Table
	}
	if envCfg.Source != nil {
		c.Source = MergeSourceConfig(c.Source, envCfg.Source)
	}
	return nil
}

func isFileDatabase(typ string) bool {
	switch strings.ToLower(typ) {
	case "duckdb", "sqlite":
		return true
	}
	return false
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
// This is available after LoadConfig is called.
func GetCurrentConfig() *Config {
	return currentConfig
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR}
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}

// expandSourceEnvVars expands environment variables in connection fields.
func expandSourceEnvVars(s *SourceConfig) {
	s.Password = expandEnvVars(s.Password)
	s.User = expandEnvVars(s.User)
	s.Host = expandEnvVars(s.Host)
	s.Database = expandEnvVars(s.Database)
}

// MergeSourceConfig merges two source configs, with override taking precedence.
func MergeSourceConfig(base, override *SourceConfig) *SourceConfig {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	merged := *base
	merged.Options = make(map[string]string, len(base.Options)+len(override.Options))
	for k, v := range base.Options {
		merged.Options[k] = v
	}

	if override.Type != "" {
		merged.Type = override.Type
	}
	if override.Database != "" {
		merged.Database = override.Database
	}
	if override.Host != "" {
		merged.Host = override.Host
	}
	if override.Port != 0 {
		merged.Port = override.Port
	}
	if override.User != "" {
		merged.User = override.User
	}
	if override.Password != "" {
		merged.Password = override.Password
	}
	if override.Query != "" {
		merged.Query = override.Query
	}
	for k, v := range override.Options {
		merged.Options[k] = v
	}

	return &merged
}

// TableFormat returns the parsed input format.
func (c *Config) TableFormat() table.Format {
	f, err := table.ParseFormat(c.Format)
	if err != nil {
		return table.FormatAuto
	}
	return f
}
