package commands

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/leapstack-labs/leapscale/internal/cli/output"
	"github.com/leapstack-labs/leapscale/internal/propagate"
	"github.com/leapstack-labs/leapscale/internal/table"
	"github.com/spf13/cobra"
)

// NewExplainCommand creates the explain command.
func NewExplainCommand() *cobra.Command {
	var nodes []string

	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Show which override rescaled each row",
		Long: `Propagate the input and show, for every row, the override that
determined its value.

Columns:
  original  value before propagation
  anchor    nearest overridden row on the path (the row itself first)
  distance  0 for a self override, 1 for the parent, and so on
  ratio     override / original value of the anchor
  value     value after propagation`,
		Example: `  # Explain every row
  leapscale explain -i nodes.csv

  # Explain selected rows as JSON
  leapscale explain -i nodes.csv --node 5 --node 6 -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExplain(cmd, nodes)
		},
	}

	cmd.Flags().StringSliceVar(&nodes, "node", nil, "Only explain these row ids (repeatable)")
	cmd.Flags().Bool("no-validate", false, "Skip lineage validation")

	return cmd
}

func runExplain(cmd *cobra.Command, nodes []string) error {
	cc := NewCommandContext(cmd)
	ctx := cmd.Context()
	runID, logger := cc.NewRun()

	t, err := cc.LoadTable(ctx)
	if err != nil {
		return err
	}

	res, err := propagate.Propagate(ctx, t, cc.PropagateOptions(logger)...)
	if err != nil {
		return err
	}

	resolutions := res.Resolutions
	if len(nodes) > 0 {
		for _, id := range nodes {
			if _, ok := t.Lookup(id); !ok {
				return fmt.Errorf("no row with id %q\nHint: --node takes ids from the %s column", id, cc.Cfg.Columns.WithDefaults().ID)
			}
		}
		resolutions = make([]propagate.Resolution, 0, len(nodes))
		for _, rs := range res.Resolutions {
			if slices.Contains(nodes, rs.NodeID) {
				resolutions = append(resolutions, rs)
			}
		}
	}

	r := cc.Renderer
	ok, err := r.Structured(output.ExplainOutput{
		RunID:       runID,
		Resolutions: resolutions,
		Stats:       res.Stats,
	})
	if ok || err != nil {
		return err
	}

	rows := make([][]string, 0, len(resolutions))
	for _, rs := range resolutions {
		anchor, distance := "-", "-"
		if rs.Anchored() {
			anchor = rs.AnchorID
			distance = strconv.Itoa(rs.Distance)
		}
		rows = append(rows, []string{
			rs.NodeID,
			table.FormatFloat(rs.Original),
			anchor,
			distance,
			table.FormatFloat(rs.Ratio),
			table.FormatFloat(rs.Value),
		})
	}
	r.Table([]string{"id", "original", "anchor", "distance", "ratio", "value"}, rows, 2, 4, 5, 6)
	return nil
}
