package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapscale/internal/propagate"
)

func readCSV(r io.Reader, opts Options) (propagate.Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return propagate.Table{}, &propagate.MissingColumnError{Column: opts.Columns.ID, Row: -1}
		}
		return propagate.Table{}, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	if err := checkHeader(header, opts); err != nil {
		return propagate.Table{}, err
	}

	var nodes []propagate.Node
	for row := 0; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return propagate.Table{}, fmt.Errorf("failed to read CSV row %d: %w", row, err)
		}

		rec := make(map[string]any, len(header))
		for i, name := range header {
			if i < len(record) {
				rec[name] = record[i]
			}
		}

		n, err := decodeRecord(rec, row, opts)
		if err != nil {
			return propagate.Table{}, err
		}
		nodes = append(nodes, n)
	}

	return propagate.NewTable(nodes...), nil
}

// checkHeader reports the first required column the header lacks.
func checkHeader(header []string, opts Options) error {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}

	required := []string{opts.Columns.ID, opts.Columns.Value, opts.Columns.Override, opts.Columns.Lineage}
	for _, col := range required {
		if col == opts.Columns.Override && opts.AllowMissingOverride {
			continue
		}
		if !present[col] {
			return &propagate.MissingColumnError{Column: col, Row: -1}
		}
	}
	return nil
}

func writeCSV(w io.Writer, t propagate.Table, opts Options) error {
	cw := csv.NewWriter(w)
	cols := opts.Columns

	if err := cw.Write([]string{cols.ID, cols.Value, cols.Override, cols.Lineage}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, n := range t.Nodes {
		override := ""
		if n.Override != nil {
			override = FormatFloat(*n.Override)
		}
		record := []string{n.ID, FormatFloat(n.Value), override, strings.Join(n.Lineage, opts.LineageSeparator)}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row %s: %w", n.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// FormatFloat renders a value with the fewest digits that round-trip.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
