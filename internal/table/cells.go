package table

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapscale/internal/propagate"
)

// nullCells are the cell spellings treated as an absent override.
var nullCells = map[string]bool{
	"":     true,
	"null": true,
	"nan":  true,
	"na":   true,
	"none": true,
	"<na>": true,
}

// DecodeRecord builds a node from one record keyed by column name, as read
// from a file or a query result.
func DecodeRecord(rec map[string]any, row int, opts Options) (propagate.Node, error) {
	return decodeRecord(rec, row, opts.withDefaults())
}

func decodeRecord(rec map[string]any, row int, opts Options) (propagate.Node, error) {
	cols := opts.Columns

	rawID, ok := rec[cols.ID]
	if !ok {
		return propagate.Node{}, &propagate.MissingColumnError{Column: cols.ID, Row: row}
	}
	id, err := ParseID(rawID)
	if err != nil {
		return propagate.Node{}, fmt.Errorf("row %d: %w", row, err)
	}
	if id == "" {
		return propagate.Node{}, &propagate.MissingColumnError{Column: cols.ID, Row: row}
	}

	rawValue, ok := rec[cols.Value]
	if !ok || isBlank(rawValue) {
		return propagate.Node{}, &propagate.MissingColumnError{Column: cols.Value, Row: row}
	}
	value, err := ParseFloat(rawValue)
	if err != nil {
		return propagate.Node{}, fmt.Errorf("row %d: invalid %s: %w", row, cols.Value, err)
	}

	var override *float64
	rawOverride, ok := rec[cols.Override]
	if !ok && !opts.AllowMissingOverride {
		return propagate.Node{}, &propagate.MissingColumnError{Column: cols.Override, Row: row}
	}
	if ok {
		override, err = ParseOverride(rawOverride)
		if err != nil {
			return propagate.Node{}, fmt.Errorf("row %d: invalid %s: %w", row, cols.Override, err)
		}
	}

	rawLineage, ok := rec[cols.Lineage]
	if !ok {
		return propagate.Node{}, &propagate.MissingColumnError{Column: cols.Lineage, Row: row}
	}
	lineage, err := ParseLineage(rawLineage, opts.LineageSeparator)
	if err != nil {
		return propagate.Node{}, fmt.Errorf("row %d: invalid %s: %w", row, cols.Lineage, err)
	}

	return propagate.Node{ID: id, Value: value, Override: override, Lineage: lineage}, nil
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

// ParseID normalizes a scalar id to its string form. Integral floats lose
// their fractional part so 3 and 3.0 name the same node.
func ParseID(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(x), nil
	case []byte:
		return strings.TrimSpace(string(x)), nil
	case json.Number:
		return formatID(x.String()), nil
	case *big.Int:
		if x == nil {
			return "", nil
		}
		return x.String(), nil
	}

	if i, ok := asInt64(v); ok {
		return strconv.FormatInt(i, 10), nil
	}
	if u, ok := asUint64(v); ok {
		return strconv.FormatUint(u, 10), nil
	}
	if f, ok := asFloat64(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("unsupported id type %T", v)
}

func formatID(s string) string {
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && !strings.ContainsAny(s, "eE") {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return s
}

// ParseFloat reads a numeric cell. Besides the builtin numeric types it
// accepts *big.Int and any value with a Float64() float64 method, which is
// how database drivers surface HUGEINT and DECIMAL columns.
func ParseFloat(v any) (float64, error) {
	switch x := v.(type) {
	case json.Number:
		return x.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
	case *big.Int:
		if x == nil {
			return 0, fmt.Errorf("nil integer")
		}
		f, _ := new(big.Float).SetInt(x).Float64()
		return f, nil
	}

	if i, ok := asInt64(v); ok {
		return float64(i), nil
	}
	if u, ok := asUint64(v); ok {
		return float64(u), nil
	}
	if f, ok := asFloat64(v); ok {
		return f, nil
	}
	return 0, fmt.Errorf("unsupported numeric type %T", v)
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	}
	return 0, false
}

func asUint64(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint:
		return uint64(x), true
	case uint8:
		return uint64(x), true
	case uint16:
		return uint64(x), true
	case uint32:
		return uint64(x), true
	case uint64:
		return x, true
	}
	return 0, false
}

type float64er interface {
	Float64() float64
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case float64er:
		return x.Float64(), true
	}
	return 0, false
}

// ParseOverride reads an optional numeric cell. Nil, blank, null and NaN
// spellings mean no override.
func ParseOverride(v any) (*float64, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok && nullCells[strings.ToLower(strings.TrimSpace(s))] {
		return nil, nil
	}
	f, err := ParseFloat(v)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(f) {
		return nil, nil
	}
	return propagate.Float(f), nil
}

// ParseLineage reads an ancestor list. Lists pass through; strings may be a
// JSON array ("[0, 1]"), a bracketed list with quoted items ("['a', 'b']"),
// or items joined by sep ("0|1"). Blank means a root.
func ParseLineage(v any, sep string) ([]string, error) {
	switch x := v.(type) {
	case nil:
		return []string{}, nil
	case []any:
		return idList(x)
	case []string:
		out := make([]string, 0, len(x))
		for _, s := range x {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	case []byte:
		return parseLineageString(string(x), sep)
	case string:
		return parseLineageString(x, sep)
	default:
		return nil, fmt.Errorf("unsupported lineage type %T", v)
	}
}

func parseLineageString(s, sep string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}, nil
	}

	if strings.HasPrefix(s, "[") {
		var items []any
		dec := json.NewDecoder(strings.NewReader(s))
		dec.UseNumber()
		if err := dec.Decode(&items); err == nil {
			return idList(items)
		}
		if !strings.HasSuffix(s, "]") {
			return nil, fmt.Errorf("unterminated list %q", s)
		}
		return splitIDs(s[1:len(s)-1], ","), nil
	}

	if sep == "" {
		sep = DefaultLineageSeparator
	}
	return splitIDs(s, sep), nil
}

func splitIDs(s, sep string) []string {
	out := []string{}
	for _, part := range strings.Split(s, sep) {
		part = strings.Trim(strings.TrimSpace(part), `'"`)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func idList(items []any) ([]string, error) {
	out := make([]string, 0, len(items))
	for _, item := range items {
		id, err := ParseID(item)
		if err != nil {
			return nil, err
		}
		if id == "" {
			return nil, fmt.Errorf("blank ancestor id")
		}
		out = append(out, id)
	}
	return out, nil
}
