package propagate

// IndexOverrides maps the id of every overridden row to its override.
// Duplicate ids are not detected; the last row wins.
func IndexOverrides(t Table) map[string]float64 {
	idx := make(map[string]float64)
	for _, n := range t.Nodes {
		if n.Override != nil {
			idx[n.ID] = *n.Override
		}
	}
	return idx
}

// Resolution explains how one row's output value was derived.
type Resolution struct {
	NodeID string `json:"id" yaml:"id"`
	// AnchorID is the nearest overridden node on the path, empty if none
	AnchorID string `json:"anchor,omitempty" yaml:"anchor,omitempty"`
	// Distance is 0 for a self override, 1 for the immediate parent, and so on.
	// It is -1 when no anchor was found.
	Distance int     `json:"distance" yaml:"distance"`
	Ratio    float64 `json:"ratio" yaml:"ratio"`
	Original float64 `json:"original" yaml:"original"`
	Value    float64 `json:"value" yaml:"value"`
}

// Anchored reports whether an overridden node determined the ratio.
func (r Resolution) Anchored() bool {
	return r.AnchorID != ""
}

// Resolver finds the override that determines each row's rescaling. It holds
// a snapshot of the table taken before propagation and is safe for concurrent
// use.
type Resolver struct {
	overrides map[string]float64
	originals map[string]float64
}

// NewResolver snapshots the overrides and original values of t.
func NewResolver(t Table) *Resolver {
	originals := make(map[string]float64, len(t.Nodes))
	for _, n := range t.Nodes {
		originals[n.ID] = n.Value
	}
	return &Resolver{
		overrides: IndexOverrides(t),
		originals: originals,
	}
}

// Anchor returns the nearest overridden id on n's path, checking n itself
// first and then its lineage from the immediate parent outwards.
func (r *Resolver) Anchor(n Node) (id string, distance int, ok bool) {
	if _, ok := r.overrides[n.ID]; ok {
		return n.ID, 0, true
	}
	for i := len(n.Lineage) - 1; i >= 0; i-- {
		a := n.Lineage[i]
		if _, ok := r.overrides[a]; ok {
			return a, len(n.Lineage) - i, true
		}
	}
	return "", -1, false
}

// Ratio returns override/original for an overridden id.
func (r *Resolver) Ratio(anchorID string) float64 {
	return r.overrides[anchorID] / r.originals[anchorID]
}

// Resolve computes the output value of n.
func (r *Resolver) Resolve(n Node) Resolution {
	res := Resolution{
		NodeID:   n.ID,
		Distance: -1,
		Ratio:    1,
		Original: n.Value,
		Value:    n.Value,
	}

	anchor, distance, ok := r.Anchor(n)
	if !ok {
		return res
	}

	res.AnchorID = anchor
	res.Distance = distance
	res.Ratio = r.Ratio(anchor)
	if distance == 0 {
		// value * (override/value) is not always exactly override in floating point
		res.Value = r.overrides[anchor]
	} else {
		res.Value = n.Value * res.Ratio
	}
	return res
}
