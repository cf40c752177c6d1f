package commands

import (
	"github.com/leapstack-labs/leapscale/internal/fixture"
	"github.com/leapstack-labs/leapscale/internal/propagate"
	"github.com/spf13/cobra"
)

// NewSampleCommand creates the sample command.
func NewSampleCommand() *cobra.Command {
	var propagated bool

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print a sample lineage table",
		Long: `Print the seven-row sample table: two overrides, one chain of five
rows and a sibling branch. Use it as a template or to try the other
commands.`,
		Example: `  # Write the sample as CSV and propagate it
  leapscale sample -o csv > nodes.csv
  leapscale propagate -i nodes.csv

  # Show the sample after propagation
  leapscale sample --propagated`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContext(cmd)
			t := fixture.Sample()
			if propagated {
				_, logger := cc.NewRun()
				res, err := propagate.Propagate(cmd.Context(), t, propagate.WithLogger(logger))
				if err != nil {
					return err
				}
				t = res.Table
			}
			return renderNodes(cc.Renderer, t, cc.Cfg.TableOptions())
		},
	}

	cmd.Flags().BoolVar(&propagated, "propagated", false, "Print the table after propagation")

	return cmd
}
