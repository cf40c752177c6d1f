package commands

import (
	"io"
	"strings"

	"github.com/leapstack-labs/leapscale/internal/cli/output"
	"github.com/leapstack-labs/leapscale/internal/propagate"
	"github.com/leapstack-labs/leapscale/internal/table"
)

// renderNodes writes t in the renderer's effective mode. Structured modes
// use the table codec so the output can be read back as input.
func renderNodes(r *output.Renderer, t propagate.Table, opts table.Options) error {
	switch r.EffectiveMode() {
	case output.ModeCSV:
		return table.Write(r.Writer(), table.FormatCSV, t, opts)
	case output.ModeJSON:
		return table.Write(r.Writer(), table.FormatJSON, t, opts)
	case output.ModeYAML:
		return table.Write(r.Writer(), table.FormatYAML, t, opts)
	}

	cols := opts.Columns.WithDefaults()
	sep := opts.LineageSeparator
	if sep == "" {
		sep = table.DefaultLineageSeparator
	}

	rows := make([][]string, 0, t.Len())
	for _, n := range t.Nodes {
		override := ""
		if n.Override != nil {
			override = table.FormatFloat(*n.Override)
		}
		rows = append(rows, []string{n.ID, table.FormatFloat(n.Value), override, strings.Join(n.Lineage, sep)})
	}
	r.Table([]string{cols.ID, cols.Value, cols.Override, cols.Lineage}, rows, 2, 3)
	return nil
}

// writeNodesTo writes t to w in the format inferred from path.
func writeNodesTo(w io.Writer, path string, t propagate.Table, opts table.Options) error {
	format, err := table.DetectFormat(path)
	if err != nil {
		return err
	}
	return table.Write(w, format, t, opts)
}
