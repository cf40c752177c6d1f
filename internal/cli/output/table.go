package output

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Table renders rows under headers in the effective mode: a boxed table for
// text, a pipe table for markdown and RFC 4180 rows for csv.
func (r *Renderer) Table(headers []string, rows [][]string, numeric ...int) {
	t := table.NewWriter()
	t.SetOutputMirror(r.w)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	t.AppendHeader(header)

	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, cell := range row {
			tr[i] = cell
		}
		t.AppendRow(tr)
	}

	configs := make([]table.ColumnConfig, 0, len(numeric))
	for _, col := range numeric {
		configs = append(configs, table.ColumnConfig{Number: col, Align: text.AlignRight})
	}
	t.SetColumnConfigs(configs)

	switch r.EffectiveMode() {
	case ModeMarkdown:
		t.RenderMarkdown()
	case ModeCSV:
		t.RenderCSV()
	default:
		t.SetStyle(table.StyleLight)
		t.Render()
	}
}
