package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/leapstack-labs/leapscale/internal/propagate"
	"github.com/leapstack-labs/leapscale/internal/table"
	"github.com/leapstack-labs/leapscale/internal/watch"
	"github.com/spf13/cobra"
)

// NewPropagateCommand creates the propagate command.
func NewPropagateCommand() *cobra.Command {
	var outPath string
	var watchMode bool

	cmd := &cobra.Command{
		Use:     "propagate",
		Aliases: []string{"run"},
		Short:   "Rescale a lineage table by its overrides",
		Long: `Read a lineage table, rescale every row by the correction ratio of its
nearest overridden ancestor (or itself), and write the result.

The input is read from --input, from stdin, or from the source database
configured in leapscale.yaml. Each row needs an id, a value, an optional
override, and its lineage: the ordered ancestor ids from root to parent.

Output adapts to environment:
  - Terminal: Styled table
  - Piped/Scripted: Markdown table
  - --output csv|json|yaml: a table that can be read back as input`,
		Example: `  # Propagate a CSV file and print the result
  leapscale propagate -i nodes.csv

  # Write the result as CSV
  leapscale propagate -i nodes.csv --out propagated.csv

  # Read JSON from stdin, emit JSON
  cat nodes.json | leapscale propagate -o json

  # Load from the configured database and write the result back
  leapscale propagate --sink nodes_propagated

  # Re-run whenever the file changes
  leapscale propagate -i nodes.csv --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPropagate(cmd, outPath, watchMode)
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "Write the propagated table to a file (format from extension)")
	cmd.Flags().Bool("no-validate", false, "Skip lineage validation")
	cmd.Flags().String("sink", "", "Write the propagated table into this table of the source database")
	cmd.Flags().BoolVar(&watchMode, "watch", false, "Re-run when the input file changes")
	cmd.Flags().Duration("debounce", 0, "Quiet period before re-running in watch mode (default 200ms)")

	return cmd
}

func runPropagate(cmd *cobra.Command, outPath string, watchMode bool) error {
	cc := NewCommandContext(cmd)
	ctx := cmd.Context()

	if outPath != "" {
		if _, err := table.DetectFormat(outPath); err != nil {
			return err
		}
	}

	if !watchMode {
		return propagateOnce(ctx, cc, outPath)
	}

	if cc.Cfg.Source != nil || cc.Cfg.Input == "" || cc.Cfg.Input == "-" {
		return fmt.Errorf("--watch needs an input file\nHint: pass --input <file>")
	}
	if outPath != "" && samePath(outPath, cc.Cfg.Input) {
		return fmt.Errorf("--out %s is the watched input file\nHint: write to a different path so each run does not trigger the next", outPath)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := watch.New(cc.Cfg.Input, watch.WithDebounce(cc.Cfg.Watch.Debounce), watch.WithLogger(cc.Logger))
	if err != nil {
		return err
	}

	if err := propagateOnce(ctx, cc, outPath); err != nil {
		cc.Renderer.Warning(err.Error())
	}
	cc.Renderer.Muted(fmt.Sprintf("Watching %s for changes (Ctrl+C to stop)", w.Path()))

	return w.Run(ctx, func(ctx context.Context) error {
		// Keep watching after a bad edit; the next save may fix it.
		if err := propagateOnce(ctx, cc, outPath); err != nil && ctx.Err() == nil {
			cc.Renderer.Warning(err.Error())
		}
		return nil
	})
}

func propagateOnce(ctx context.Context, cc *CommandContext, outPath string) error {
	runID, logger := cc.NewRun()
	start := time.Now()

	t, err := cc.LoadTable(ctx)
	if err != nil {
		return err
	}

	res, err := propagate.Propagate(ctx, t, cc.PropagateOptions(logger)...)
	if err != nil {
		return err
	}

	opts := cc.Cfg.TableOptions()
	if outPath != "" {
		if err := writeFile(outPath, res.Table, opts); err != nil {
			return err
		}
	} else if err := renderNodes(cc.Renderer, res.Table, opts); err != nil {
		return err
	}

	if err := cc.WriteSink(ctx, res.Table); err != nil {
		return err
	}

	elapsed := time.Since(start)
	logger.Info("propagation complete",
		slog.Int("rows", res.Stats.Rows),
		slog.Int("overrides", res.Stats.Overrides),
		slog.Duration("elapsed", elapsed),
	)

	r := cc.Renderer
	r.Success(r.Sprintf("Propagated %d rows (%d overrides, %d rescaled) in %s",
		res.Stats.Rows, res.Stats.Overrides, res.Stats.Rescaled, elapsed.Round(time.Millisecond)))
	if outPath != "" {
		r.StatusLine("Wrote", outPath)
	}
	if cc.Cfg.Sink.Table != "" {
		r.StatusLine("Sink", fmt.Sprintf("%s.%s", cc.Cfg.Source.Type, cc.Cfg.Sink.Table))
	}
	r.StatusLine("Run", runID)
	return nil
}

func writeFile(path string, t propagate.Table, opts table.Options) error {
	f, err := os.Create(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := writeNodesTo(f, path, t, opts); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// samePath reports whether a and b name the same file, whether or not it
// exists yet.
func samePath(a, b string) bool {
	if ai, err := os.Stat(a); err == nil {
		if bi, err := os.Stat(b); err == nil {
			return os.SameFile(ai, bi)
		}
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
