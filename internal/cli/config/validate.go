package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapscale/internal/adapter"
	"github.com/leapstack-labs/leapscale/internal/table"
)

// validOutputs lists the accepted values of the output key.
var validOutputs = []string{"auto", "text", "markdown", "json", "csv", "yaml"}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, err := table.ParseFormat(c.Format); err != nil {
		return fmt.Errorf("invalid format: %w", err)
	}
	if !isValidOutput(c.OutputFormat) {
		return fmt.Errorf("invalid output %q (expected one of %s)", c.OutputFormat, strings.Join(validOutputs, ", "))
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.Serve.MaxBodyBytes <= 0 {
		return fmt.Errorf("serve.max_body_bytes must be positive")
	}

	if c.Source == nil {
		if c.Sink.Table != "" {
			return fmt.Errorf("sink.table requires a source database\nHint: Set source.type in leapscale.yaml or use --source")
		}
		return nil
	}
	return c.Source.Validate()
}

// Validate checks the source configuration.
func (s *SourceConfig) Validate() error {
	if s.Type == "" {
		return fmt.Errorf("source.type is required when a source is configured")
	}
	if !adapter.IsRegistered(s.Type) {
		return &adapter.UnknownAdapterError{Type: s.Type, Available: adapter.ListAdapters()}
	}
	if strings.EqualFold(s.Type, "postgres") && s.Database == "" {
		return fmt.Errorf("source.database is required for postgres")
	}
	return nil
}

func isValidOutput(mode string) bool {
	if mode == "" {
		return true
	}
	for _, m := range validOutputs {
		if strings.EqualFold(mode, m) {
			return true
		}
	}
	return false
}
