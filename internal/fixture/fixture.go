// Package fixture provides the sample lineage table used by the sample
// command, documentation and tests.
package fixture

import "github.com/leapstack-labs/leapscale/internal/propagate"

// Sample returns a seven-node lineage table. Nodes 1 and 4 carry overrides;
// node 3 branches off the root and shares no overridden ancestor.
//
//	0 ─┬─ 1* ── 2 ── 4* ── 5 ── 6
//	   └─ 3
func Sample() propagate.Table {
	return propagate.NewTable(
		propagate.Node{ID: "0", Value: 1, Lineage: []string{}},
		propagate.Node{ID: "1", Value: 0.5, Override: propagate.Float(0.25), Lineage: []string{"0"}},
		propagate.Node{ID: "2", Value: 0.2, Lineage: []string{"0", "1"}},
		propagate.Node{ID: "3", Value: 0.1, Lineage: []string{"0"}},
		propagate.Node{ID: "4", Value: 0.1, Override: propagate.Float(0.18), Lineage: []string{"0", "1", "2"}},
		propagate.Node{ID: "5", Value: 0.05, Lineage: []string{"0", "1", "2", "4"}},
		propagate.Node{ID: "6", Value: 0.01, Lineage: []string{"0", "1", "2", "4", "5"}},
	)
}

// SampleExpected returns the values Sample propagates to, in row order.
func SampleExpected() []float64 {
	return []float64{
		1,
		0.25,
		0.2 * (0.25 / 0.5),
		0.1,
		0.18,
		0.05 * (0.18 / 0.1),
		0.01 * (0.18 / 0.1),
	}
}
