// Package table reads and writes lineage tables in CSV, JSON and YAML.
//
// Column names are configurable so tables exported from other tools load
// without renaming, e.g. the uid/production/production_user/branch layout:
//
//	opts := table.Options{Columns: table.Columns{
//	    ID: "uid", Value: "production", Override: "production_user", Lineage: "branch",
//	}}
//	t, err := table.ReadFile("nodes.csv", table.FormatAuto, opts)
package table

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leapscale/internal/propagate"
)

// Format identifies a serialization format.
type Format string

// Supported formats.
const (
	FormatAuto Format = "auto"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DefaultLineageSeparator splits delimited lineage cells.
const DefaultLineageSeparator = "|"

// Columns maps the fields of a node to input column names.
type Columns struct {
	ID       string `koanf:"id"`
	Value    string `koanf:"value"`
	Override string `koanf:"override"`
	Lineage  string `koanf:"lineage"`
}

// DefaultColumns returns the canonical column names.
func DefaultColumns() Columns {
	return Columns{
		ID:       propagate.ColumnID,
		Value:    propagate.ColumnValue,
		Override: propagate.ColumnOverride,
		Lineage:  propagate.ColumnLineage,
	}
}

// WithDefaults fills blank names with the canonical ones.
func (c Columns) WithDefaults() Columns {
	d := DefaultColumns()
	if c.ID == "" {
		c.ID = d.ID
	}
	if c.Value == "" {
		c.Value = d.Value
	}
	if c.Override == "" {
		c.Override = d.Override
	}
	if c.Lineage == "" {
		c.Lineage = d.Lineage
	}
	return c
}

// Options controls reading and writing.
type Options struct {
	Columns Columns
	// LineageSeparator splits non-JSON lineage cells
	LineageSeparator string
	// AllowMissingOverride accepts inputs without an override column or key
	AllowMissingOverride bool
}

func (o Options) withDefaults() Options {
	o.Columns = o.Columns.WithDefaults()
	if o.LineageSeparator == "" {
		o.LineageSeparator = DefaultLineageSeparator
	}
	return o
}

// ParseFormat parses a format name. The empty string means auto.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatAuto, nil
	case FormatAuto, FormatCSV, FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown table format %q (expected csv, json or yaml)", s)
	}
}

// DetectFormat infers the format from a file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("cannot infer table format from %q\nHint: pass --format csv|json|yaml", path)
	}
}

// Read decodes a table from r. FormatAuto sniffs the first significant byte:
// '[' or '{' is JSON, '-' is YAML, anything else CSV.
func Read(r io.Reader, format Format, opts Options) (propagate.Table, error) {
	opts = opts.withDefaults()
	if format == FormatAuto || format == "" {
		br := bufio.NewReader(r)
		format = sniff(br)
		r = br
	}
	switch format {
	case FormatCSV:
		return readCSV(r, opts)
	case FormatJSON:
		return readJSON(r, opts)
	case FormatYAML:
		return readYAML(r, opts)
	default:
		return propagate.Table{}, fmt.Errorf("cannot read table: unsupported format %q", format)
	}
}

// ReadFile opens path and decodes it, inferring the format for FormatAuto.
func ReadFile(path string, format Format, opts Options) (propagate.Table, error) {
	if format == FormatAuto || format == "" {
		f, err := DetectFormat(path)
		if err != nil {
			return propagate.Table{}, err
		}
		format = f
	}

	f, err := os.Open(path) //nolint:gosec // path comes from user configuration
	if err != nil {
		return propagate.Table{}, fmt.Errorf("failed to open table: %w", err)
	}
	defer func() { _ = f.Close() }()

	t, err := Read(f, format, opts)
	if err != nil {
		return propagate.Table{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// sniff peeks at the start of br without consuming it.
func sniff(br *bufio.Reader) Format {
	const window = 512
	buf, _ := br.Peek(window)
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(buf, []byte("\ufeff")), " \t\r\n")
	if len(trimmed) == 0 {
		return FormatCSV
	}
	switch trimmed[0] {
	case '[', '{':
		return FormatJSON
	case '-':
		return FormatYAML
	}
	return FormatCSV
}

// Write encodes t to w.
func Write(w io.Writer, format Format, t propagate.Table, opts Options) error {
	opts = opts.withDefaults()
	switch format {
	case FormatCSV:
		return writeCSV(w, t, opts)
	case FormatJSON:
		return writeJSON(w, t, opts)
	case FormatYAML:
		return writeYAML(w, t, opts)
	default:
		return fmt.Errorf("cannot write table: unsupported format %q", format)
	}
}
