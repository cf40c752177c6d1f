package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/leapstack-labs/leapscale/internal/adapter"
	"github.com/leapstack-labs/leapscale/internal/cli/config"
	"github.com/leapstack-labs/leapscale/internal/cli/output"
	"github.com/leapstack-labs/leapscale/internal/propagate"
	"github.com/leapstack-labs/leapscale/internal/table"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
	cmd      *cobra.Command
}

// NewCommandContext creates a CommandContext from the command's context.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := config.FromContext(cmd.Context())
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.ParseMode(cfg.OutputFormat))

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
		cmd:      cmd,
	}
}

// errNoInput is returned when stdin is selected but is a terminal.
var errNoInput = errors.New("no input table\nHint: pass --input <file>, pipe a table on stdin, or configure source.type in leapscale.yaml")

// LoadTable reads the input table from the configured source database,
// input file or stdin.
func (c *CommandContext) LoadTable(ctx context.Context) (propagate.Table, error) {
	opts := c.Cfg.TableOptions()

	if c.Cfg.Source != nil {
		a, err := c.connect(ctx)
		if err != nil {
			return propagate.Table{}, err
		}
		defer func() { _ = a.Close() }()

		t, err := a.LoadTable(ctx, c.Cfg.Source.Query, opts)
		if err != nil {
			return propagate.Table{}, fmt.Errorf("failed to load table from %s: %w", c.Cfg.Source.Type, err)
		}
		c.Logger.Debug("loaded table from source", slog.String("type", c.Cfg.Source.Type), slog.Int("rows", t.Len()))
		return t, nil
	}

	if c.Cfg.Input == "" || c.Cfg.Input == "-" {
		if isTerminalInput(c.cmd.InOrStdin()) {
			return propagate.Table{}, errNoInput
		}
		t, err := table.Read(c.cmd.InOrStdin(), c.Cfg.TableFormat(), opts)
		if err != nil {
			return propagate.Table{}, fmt.Errorf("stdin: %w", err)
		}
		return t, nil
	}

	t, err := table.ReadFile(c.Cfg.Input, c.Cfg.TableFormat(), opts)
	if err != nil {
		return propagate.Table{}, err
	}
	c.Logger.Debug("loaded table", slog.String("path", c.Cfg.Input), slog.Int("rows", t.Len()))
	return t, nil
}

// WriteSink writes t to the configured sink table, if any.
func (c *CommandContext) WriteSink(ctx context.Context, t propagate.Table) error {
	if c.Cfg.Sink.Table == "" {
		return nil
	}
	if c.Cfg.Source == nil {
		return fmt.Errorf("sink.table requires a source database")
	}

	a, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.WriteTable(ctx, c.Cfg.Sink.Table, t, c.Cfg.Columns.WithDefaults()); err != nil {
		return fmt.Errorf("failed to write sink table %s: %w", c.Cfg.Sink.Table, err)
	}
	return nil
}

func (c *CommandContext) connect(ctx context.Context) (adapter.Adapter, error) {
	acfg := c.Cfg.Source.AdapterConfig()
	a, err := adapter.NewAdapter(acfg, c.Logger)
	if err != nil {
		return nil, err
	}
	if err := a.Connect(ctx, acfg); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", acfg.Type, err)
	}
	return a, nil
}

// NewRun returns a fresh run id and a logger tagged with it.
func (c *CommandContext) NewRun() (string, *slog.Logger) {
	runID := uuid.NewString()
	return runID, c.Logger.With(slog.String("run_id", runID))
}

// PropagateOptions returns the propagation options from the configuration.
func (c *CommandContext) PropagateOptions(logger *slog.Logger) []propagate.Option {
	opts := []propagate.Option{
		propagate.WithWorkers(c.Cfg.Workers),
		propagate.WithLogger(logger),
	}
	if !c.Cfg.Validation {
		opts = append(opts, propagate.WithoutValidation())
	}
	return opts
}
