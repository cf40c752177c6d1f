package propagate

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors matched with errors.Is.
var (
	ErrInvalidGraph  = errors.New("invalid lineage graph")
	ErrMissingColumn = errors.New("missing column")
)

// Reason classifies an InvalidGraphError.
type Reason string

// Reasons a lineage table can be rejected.
const (
	ReasonDuplicateID       Reason = "duplicate_id"
	ReasonSelfReference     Reason = "self_reference"
	ReasonDanglingReference Reason = "dangling_reference"
	ReasonCycle             Reason = "cycle"
	ReasonZeroBaseline      Reason = "zero_baseline"
	ReasonInvalidOverride   Reason = "invalid_override"
	ReasonIncompleteLineage Reason = "incomplete_lineage"
)

// InvalidGraphError is returned when a table violates the uniqueness, closure
// or acyclicity invariants of a lineage graph.
type InvalidGraphError struct {
	Reason Reason
	// NodeID is the offending row
	NodeID string
	// Ref is the lineage entry involved, if any
	Ref string
	// Path holds the closed cycle for ReasonCycle
	Path []string
}

func (e *InvalidGraphError) Error() string {
	switch e.Reason {
	case ReasonDuplicateID:
		return fmt.Sprintf("invalid lineage graph: duplicate id %q", e.NodeID)
	case ReasonSelfReference:
		return fmt.Sprintf("invalid lineage graph: node %q lists itself in its lineage", e.NodeID)
	case ReasonDanglingReference:
		return fmt.Sprintf("invalid lineage graph: node %q references unknown ancestor %q", e.NodeID, e.Ref)
	case ReasonCycle:
		return fmt.Sprintf("invalid lineage graph: cycle detected: %s", strings.Join(e.Path, " -> "))
	case ReasonZeroBaseline:
		return fmt.Sprintf("invalid lineage graph: node %q has an override but no usable value to rescale from", e.NodeID)
	case ReasonInvalidOverride:
		return fmt.Sprintf("invalid lineage graph: node %q has a non-finite override", e.NodeID)
	case ReasonIncompleteLineage:
		return fmt.Sprintf("invalid lineage graph: lineage of node %q omits upstream node %q", e.NodeID, e.Ref)
	default:
		return fmt.Sprintf("invalid lineage graph: %s at node %q", e.Reason, e.NodeID)
	}
}

// Is reports whether target is ErrInvalidGraph.
func (e *InvalidGraphError) Is(target error) bool {
	return target == ErrInvalidGraph
}

// MissingColumnError is returned when a required field is absent from the
// input. Row is the zero-based data row, or -1 when the column is missing from
// the header.
type MissingColumnError struct {
	Column string
	Row    int
}

func (e *MissingColumnError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("missing column %q", e.Column)
	}
	return fmt.Sprintf("row %d: missing column %q", e.Row, e.Column)
}

// Is reports whether target is ErrMissingColumn.
func (e *MissingColumnError) Is(target error) bool {
	return target == ErrMissingColumn
}
