package table

import (
	"bytes"
	"fmt"
	"io"

	"github.com/leapstack-labs/leapscale/internal/propagate"
	"gopkg.in/yaml.v3"
)

func readYAML(r io.Reader, opts Options) (propagate.Table, error) {
	// yaml.v3 flattens reader errors into strings, so read the body first.
	data, err := io.ReadAll(r)
	if err != nil {
		return propagate.Table{}, fmt.Errorf("failed to read YAML table: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return propagate.Table{}, nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return propagate.Table{}, fmt.Errorf("failed to decode YAML table: %w", err)
	}
	return decodeDocument(doc, opts)
}

func writeYAML(w io.Writer, t propagate.Table, opts Options) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(encodeRecords(t, opts)); err != nil {
		return fmt.Errorf("failed to encode YAML table: %w", err)
	}
	return enc.Close()
}
