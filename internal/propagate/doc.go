// Package propagate rescales the values of a lineage table by user overrides.
//
// Every row of a Table carries a computed value, an optional override and its
// full ancestor path (most distant first). Propagation finds, for each row, the
// nearest node on its path that carries an override, checking the row itself
// first and then its ancestors from the immediate parent outwards. The row's
// value is multiplied by that node's override divided by its original value.
// Rows with no overridden node on their path keep their value.
//
// All ratios are computed from the input table as it was before the pass, so
// rows can be processed in any order or in parallel.
//
// # Basic Usage
//
//	t := propagate.NewTable(
//	    propagate.Node{ID: "0", Value: 1},
//	    propagate.Node{ID: "1", Value: 0.5, Override: propagate.Float(0.25), Lineage: []string{"0"}},
//	    propagate.Node{ID: "2", Value: 0.2, Lineage: []string{"0", "1"}},
//	)
//
//	res, err := propagate.Propagate(ctx, t, propagate.WithWorkers(4))
//	if err != nil {
//	    return err
//	}
//	for _, n := range res.Table.Nodes {
//	    fmt.Println(n.ID, n.Value) // 0 1, 1 0.25, 2 0.1
//	}
package propagate
