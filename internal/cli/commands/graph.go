package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapscale/internal/cli/output"
	"github.com/leapstack-labs/leapscale/internal/dag"
	"github.com/leapstack-labs/leapscale/internal/propagate"
	"github.com/spf13/cobra"
)

// NewGraphCommand creates the graph command.
func NewGraphCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Show the lineage graph",
		Long: `Display the lineage graph of the input table.

Rows are grouped by depth: level 0 holds the roots, and every other row
sits one level below its deepest ancestor. For each overridden row the
rows its override can reach are listed.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format (agent-friendly)`,
		Example: `  # Show the graph
  leapscale graph -i nodes.csv

  # Output as JSON
  leapscale graph -i nodes.csv --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGraph(cmd)
		},
	}
}

func runGraph(cmd *cobra.Command) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	t, err := cc.LoadTable(cmd.Context())
	if err != nil {
		return err
	}

	g, err := propagate.BuildGraph(t)
	if err != nil {
		return err
	}

	out, err := buildGraphOutput(g)
	if err != nil {
		return err
	}

	if ok, err := r.Structured(out); ok || err != nil {
		return err
	}

	switch r.EffectiveMode() {
	case output.ModeText:
		graphText(r, out)
	default:
		graphMarkdown(r, out)
	}
	return nil
}

func buildGraphOutput(g *dag.Graph) (output.GraphOutput, error) {
	levels, err := g.GetLevels()
	if err != nil {
		return output.GraphOutput{}, fmt.Errorf("failed to get levels: %w", err)
	}

	out := output.GraphOutput{
		Roots:      g.GetRoots(),
		Leaves:     g.GetLeaves(),
		Levels:     make([]output.GraphLevel, 0, len(levels)),
		Overrides:  []output.OverrideReach{},
		TotalNodes: g.NodeCount(),
		TotalEdges: g.EdgeCount(),
	}

	for i, level := range levels {
		gl := output.GraphLevel{Level: i, Nodes: make([]output.GraphNode, 0, len(level))}
		for _, id := range level {
			n, _ := g.GetNode(id)
			gl.Nodes = append(gl.Nodes, output.GraphNode{
				ID:         id,
				Parents:    g.GetParents(id),
				Children:   g.GetChildren(id),
				Overridden: n != nil && n.Overridden,
			})
		}
		out.Levels = append(out.Levels, gl)
	}

	for _, id := range g.GetOverridden() {
		out.Overrides = append(out.Overrides, output.OverrideReach{
			ID:       id,
			Affected: g.GetAffectedNodes([]string{id}),
		})
	}

	return out, nil
}

func graphText(r *output.Renderer, out output.GraphOutput) {
	styles := r.Styles()

	r.Header(1, "Lineage Graph")

	for _, level := range out.Levels {
		r.Println(styles.Header2.Render(fmt.Sprintf("Level %d:", level.Level)))
		for _, n := range level.Nodes {
			id := styles.NodeID.Render(n.ID)
			if n.Overridden {
				id += " " + styles.Anchor.Render("(override)")
			}
			r.Printf("  %s\n", id)
			if len(n.Parents) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("descends from:"), strings.Join(n.Parents, ", "))
			}
		}
		r.Println("")
	}

	if len(out.Overrides) > 0 {
		r.Println(styles.Header2.Render("Override reach:"))
		for _, o := range out.Overrides {
			r.Printf("  %s %s %s\n", styles.Anchor.Render(o.ID), styles.Muted.Render("->"), strings.Join(o.Affected, ", "))
		}
		r.Println("")
	}

	r.Println(styles.Muted.Render(r.Sprintf("Total: %d rows, %d lineage edges", out.TotalNodes, out.TotalEdges)))
}

func graphMarkdown(r *output.Renderer, out output.GraphOutput) {
	r.Println(output.FormatHeader(1, "Lineage Graph"))
	r.Println("")

	for _, level := range out.Levels {
		name := fmt.Sprintf("Level %d", level.Level)
		if level.Level == 0 {
			name = "Level 0 (Roots)"
		}
		r.Println(output.FormatHeader(2, name))

		for _, n := range level.Nodes {
			if n.Overridden {
				r.Printf("- %s (override)\n", n.ID)
			} else {
				r.Printf("- %s\n", n.ID)
			}
			if len(n.Parents) > 0 {
				r.Printf("  - descends from: %s\n", strings.Join(n.Parents, ", "))
			}
		}
		r.Println("")
	}

	if len(out.Overrides) > 0 {
		r.Println(output.FormatHeader(2, "Override Reach"))
		for _, o := range out.Overrides {
			r.Println(output.FormatKeyValue(o.ID, output.FormatList(o.Affected)))
		}
		r.Println("")
	}

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println(output.FormatKeyValue("Roots", output.FormatList(out.Roots)))
	r.Println(output.FormatKeyValue("Leaves", output.FormatList(out.Leaves)))
	r.Println(output.FormatKeyValue("Total Rows", r.Count(out.TotalNodes)))
	r.Println(output.FormatKeyValue("Total Edges", r.Count(out.TotalEdges)))
}
