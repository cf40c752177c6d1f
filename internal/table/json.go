package table

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/leapstack-labs/leapscale/internal/propagate"
)

// readJSON accepts either an array of records or an object with a "nodes" array.
func readJSON(r io.Reader, opts Options) (propagate.Table, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return propagate.Table{}, fmt.Errorf("failed to decode JSON table: %w", err)
	}
	return decodeDocument(doc, opts)
}

// decodeDocument turns a decoded JSON or YAML document into a table.
func decodeDocument(doc any, opts Options) (propagate.Table, error) {
	var items []any
	switch x := doc.(type) {
	case []any:
		items = x
	case map[string]any:
		nodes, ok := x["nodes"].([]any)
		if !ok {
			return propagate.Table{}, fmt.Errorf(`expected a list of records or an object with a "nodes" list`)
		}
		items = nodes
	case nil:
		return propagate.Table{}, nil
	default:
		return propagate.Table{}, fmt.Errorf("expected a list of records, got %T", doc)
	}

	nodes := make([]propagate.Node, 0, len(items))
	for row, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			return propagate.Table{}, fmt.Errorf("row %d: expected a record, got %T", row, item)
		}
		n, err := decodeRecord(rec, row, opts)
		if err != nil {
			return propagate.Table{}, err
		}
		nodes = append(nodes, n)
	}
	return propagate.NewTable(nodes...), nil
}

// encodeRecords renders nodes as records keyed by the configured column names.
func encodeRecords(t propagate.Table, opts Options) []map[string]any {
	cols := opts.Columns
	records := make([]map[string]any, len(t.Nodes))
	for i, n := range t.Nodes {
		lineage := n.Lineage
		if lineage == nil {
			lineage = []string{}
		}
		var override any
		if n.Override != nil {
			override = *n.Override
		}
		records[i] = map[string]any{
			cols.ID:       n.ID,
			cols.Value:    n.Value,
			cols.Override: override,
			cols.Lineage:  lineage,
		}
	}
	return records
}

func writeJSON(w io.Writer, t propagate.Table, opts Options) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(encodeRecords(t, opts)); err != nil {
		return fmt.Errorf("failed to encode JSON table: %w", err)
	}
	return nil
}
