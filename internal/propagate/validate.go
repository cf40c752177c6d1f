package propagate

import (
	"fmt"
	"math"
	"strings"

	"github.com/leapstack-labs/leapscale/internal/dag"
)

// Validate checks that t is a well-formed lineage table. Ids must be present
// and unique, every lineage entry must resolve, and the graph must be acyclic.
// Each lineage must list the node's whole upstream path. Every override must
// be finite and sit on a node with a non-zero finite value.
func Validate(t Table) error {
	_, err := BuildGraph(t)
	return err
}

// BuildGraph validates t and returns its ancestor graph, with an edge from
// every lineage entry to the row that lists it.
func BuildGraph(t Table) (*dag.Graph, error) {
	seen := make(map[string]struct{}, len(t.Nodes))
	for i, n := range t.Nodes {
		if strings.TrimSpace(n.ID) == "" {
			return nil, &MissingColumnError{Column: ColumnID, Row: i}
		}
		if _, dup := seen[n.ID]; dup {
			return nil, &InvalidGraphError{Reason: ReasonDuplicateID, NodeID: n.ID}
		}
		seen[n.ID] = struct{}{}
	}

	g := dag.NewGraph()
	for _, n := range t.Nodes {
		g.AddNode(n.ID, n.HasOverride())
	}

	for _, n := range t.Nodes {
		for _, a := range n.Lineage {
			if a == n.ID {
				return nil, &InvalidGraphError{Reason: ReasonSelfReference, NodeID: n.ID, Ref: a}
			}
			if _, ok := seen[a]; !ok {
				return nil, &InvalidGraphError{Reason: ReasonDanglingReference, NodeID: n.ID, Ref: a}
			}
			if err := g.AddEdge(a, n.ID); err != nil {
				return nil, fmt.Errorf("failed to link %s to %s: %w", a, n.ID, err)
			}
		}
	}

	if cycle := g.FindCycle(); cycle != nil {
		return nil, &InvalidGraphError{Reason: ReasonCycle, NodeID: cycle[0], Path: cycle}
	}

	if n, missing, closed := lineageClosed(t); !closed {
		return nil, &InvalidGraphError{Reason: ReasonIncompleteLineage, NodeID: n, Ref: missing}
	}

	for _, n := range t.Nodes {
		if !n.HasOverride() {
			continue
		}
		if !finite(*n.Override) {
			return nil, &InvalidGraphError{Reason: ReasonInvalidOverride, NodeID: n.ID}
		}
		if n.Value == 0 || !finite(n.Value) {
			return nil, &InvalidGraphError{Reason: ReasonZeroBaseline, NodeID: n.ID}
		}
	}

	return g, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// lineageClosed reports whether every lineage holds the node's whole upstream
// set, which holds when the lineage of each listed ancestor is itself listed.
// An ancestor already inside the lineage of a nearer checked ancestor is
// skipped, so path-shaped tables are checked in linear time. On failure it
// returns the row and the upstream id its lineage omits.
func lineageClosed(t Table) (nodeID, missing string, closed bool) {
	lineages := make(map[string][]string, len(t.Nodes))
	sets := make(map[string]map[string]struct{}, len(t.Nodes))
	for _, n := range t.Nodes {
		lineages[n.ID] = n.Lineage
		set := make(map[string]struct{}, len(n.Lineage))
		for _, a := range n.Lineage {
			set[a] = struct{}{}
		}
		sets[n.ID] = set
	}

	for _, n := range t.Nodes {
		listed := sets[n.ID]
		var checked []string
	lineage:
		for i := len(n.Lineage) - 1; i >= 0; i-- {
			a := n.Lineage[i]
			for _, c := range checked {
				if _, covered := sets[c][a]; covered {
					continue lineage
				}
			}
			for _, up := range lineages[a] {
				if _, in := listed[up]; !in {
					return n.ID, up, false
				}
			}
			checked = append(checked, a)
		}
	}
	return "", "", true
}
