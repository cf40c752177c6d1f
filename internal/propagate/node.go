package propagate

import "slices"

// Column names of a lineage table.
const (
	ColumnID       = "id"
	ColumnValue    = "value"
	ColumnOverride = "override"
	ColumnLineage  = "lineage"
)

// Node is one row of a lineage table.
type Node struct {
	// ID identifies the row; unique across the table
	ID string `json:"id" yaml:"id"`
	// Value is the computed measurement
	Value float64 `json:"value" yaml:"value"`
	// Override is the user-supplied measurement, nil when absent
	Override *float64 `json:"override" yaml:"override"`
	// Lineage lists ancestor ids from the most distant to the immediate parent
	Lineage []string `json:"lineage" yaml:"lineage"`
}

// HasOverride reports whether the node carries a user override.
func (n Node) HasOverride() bool {
	return n.Override != nil
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	out := Node{ID: n.ID, Value: n.Value}
	if n.Override != nil {
		out.Override = Float(*n.Override)
	}
	out.Lineage = slices.Clone(n.Lineage)
	if out.Lineage == nil {
		out.Lineage = []string{}
	}
	return out
}

// Table is an ordered collection of nodes.
type Table struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
}

// NewTable creates a table from the given nodes, in order.
func NewTable(nodes ...Node) Table {
	return Table{Nodes: nodes}
}

// Len returns the number of rows.
func (t Table) Len() int {
	return len(t.Nodes)
}

// Lookup returns the first node with the given id.
func (t Table) Lookup(id string) (Node, bool) {
	for _, n := range t.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Float returns a pointer to v, for building overrides inline.
func Float(v float64) *float64 {
	return &v
}
