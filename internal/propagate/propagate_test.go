package propagate_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/leapstack-labs/leapscale/internal/fixture"
	"github.com/leapstack-labs/leapscale/internal/propagate"
	"github.com/leapstack-labs/leapscale/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropagate_Sample(t *testing.T) {
	in := fixture.Sample()

	res, err := propagate.Propagate(context.Background(), in, propagate.WithLogger(testutil.NewTestLogger(t)))
	require.NoError(t, err)

	want := fixture.SampleExpected()
	require.Len(t, res.Table.Nodes, len(want))
	for i, n := range res.Table.Nodes {
		assert.InDelta(t, want[i], n.Value, 1e-12, "node %s", n.ID)
	}

	assert.Equal(t, propagate.Stats{Rows: 7, Overrides: 2, Rescaled: 5, Unchanged: 2}, res.Stats)
}

func TestPropagate_SampleResolutions(t *testing.T) {
	res, err := propagate.Propagate(context.Background(), fixture.Sample())
	require.NoError(t, err)

	tests := []struct {
		id       string
		anchor   string
		distance int
		ratio    float64
	}{
		{"0", "", -1, 1},
		{"1", "1", 0, 0.5},
		{"2", "1", 1, 0.5},
		{"3", "", -1, 1},
		{"4", "4", 0, 1.8},
		{"5", "4", 1, 1.8},
		{"6", "4", 2, 1.8},
	}

	for i, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			r := res.Resolutions[i]
			assert.Equal(t, tt.id, r.NodeID)
			assert.Equal(t, tt.anchor, r.AnchorID)
			assert.Equal(t, tt.distance, r.Distance)
			assert.InDelta(t, tt.ratio, r.Ratio, 1e-12)
		})
	}
}

func TestPropagate_DoesNotMutateInput(t *testing.T) {
	in := fixture.Sample()
	before := fixture.Sample()

	res, err := propagate.Propagate(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, before, in)

	// Output shares no storage with the input.
	res.Table.Nodes[2].Lineage[0] = "changed"
	*res.Table.Nodes[1].Override = 99
	assert.Equal(t, before, in)
}

func TestPropagate_PassesThroughColumns(t *testing.T) {
	in := fixture.Sample()

	out, err := propagate.Apply(in)
	require.NoError(t, err)
	require.Equal(t, in.Len(), out.Len())

	for i := range in.Nodes {
		assert.Equal(t, in.Nodes[i].ID, out.Nodes[i].ID)
		assert.Equal(t, in.Nodes[i].Lineage, out.Nodes[i].Lineage)
		assert.Equal(t, in.Nodes[i].Override, out.Nodes[i].Override)
	}
}

func TestPropagate_NoOverridesIsIdentity(t *testing.T) {
	in := fixture.Sample()
	for i := range in.Nodes {
		in.Nodes[i].Override = nil
	}

	out, err := propagate.Apply(in)
	require.NoError(t, err)
	assert.Equal(t, values(in), values(out))
}

func TestPropagate_SelfOverrideIdentity(t *testing.T) {
	overrides := []float64{0.3, 0.7, 1e-9, 123.456, 0.18}

	for _, o := range overrides {
		t.Run(fmt.Sprint(o), func(t *testing.T) {
			in := propagate.NewTable(
				propagate.Node{ID: "root", Value: 3},
				propagate.Node{ID: "a", Value: 0.1, Override: propagate.Float(o), Lineage: []string{"root"}},
			)

			out, err := propagate.Apply(in)
			require.NoError(t, err)

			n, ok := out.Lookup("a")
			require.True(t, ok)
			assert.Equal(t, o, n.Value)
		})
	}
}

func TestPropagate_NearestWins(t *testing.T) {
	in := propagate.NewTable(
		propagate.Node{ID: "far", Value: 10, Override: propagate.Float(20)},
		propagate.Node{ID: "mid", Value: 4, Lineage: []string{"far"}},
		propagate.Node{ID: "near", Value: 2, Override: propagate.Float(1), Lineage: []string{"far", "mid"}},
		propagate.Node{ID: "leaf", Value: 8, Lineage: []string{"far", "mid", "near"}},
	)

	out, err := propagate.Apply(in)
	require.NoError(t, err)

	leaf, _ := out.Lookup("leaf")
	assert.InDelta(t, 8*(1.0/2.0), leaf.Value, 1e-12, "leaf must use the nearer override only")

	mid, _ := out.Lookup("mid")
	assert.InDelta(t, 4*(20.0/10.0), mid.Value, 1e-12)
}

func TestPropagate_RootPassThrough(t *testing.T) {
	in := propagate.NewTable(
		propagate.Node{ID: "r", Value: 42},
		propagate.Node{ID: "s", Value: 7, Lineage: []string{}},
	)

	out, err := propagate.Apply(in)
	require.NoError(t, err)
	assert.Equal(t, []float64{42, 7}, values(out))
}

func TestPropagate_UsesOriginalValues(t *testing.T) {
	// The ratio of "b" must come from its original value even though "b" is
	// itself rescaled by "a" in the same pass.
	in := propagate.NewTable(
		propagate.Node{ID: "a", Value: 2, Override: propagate.Float(4)},
		propagate.Node{ID: "b", Value: 5, Override: propagate.Float(10), Lineage: []string{"a"}},
		propagate.Node{ID: "c", Value: 1, Lineage: []string{"a", "b"}},
	)

	out, err := propagate.Apply(in)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 10, 2}, values(out))
}

func TestPropagate_Deterministic(t *testing.T) {
	in := largeChain(500)

	first, err := propagate.Propagate(context.Background(), in)
	require.NoError(t, err)

	for _, workers := range []int{1, 2, 3, 8, 64, 1000} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			again, err := propagate.Propagate(context.Background(), in, propagate.WithWorkers(workers))
			require.NoError(t, err)
			assert.Equal(t, first.Table, again.Table)
			assert.Equal(t, first.Resolutions, again.Resolutions)
			assert.Equal(t, first.Stats, again.Stats)
		})
	}
}

func TestPropagate_EmptyTable(t *testing.T) {
	res, err := propagate.Propagate(context.Background(), propagate.Table{}, propagate.WithWorkers(4))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Table.Len())
	assert.Equal(t, propagate.Stats{}, res.Stats)
}

func TestPropagate_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 4} {
		res, err := propagate.Propagate(ctx, fixture.Sample(), propagate.WithWorkers(workers))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, res, "no partial result on error")
	}
}

func TestPropagate_InvalidInput(t *testing.T) {
	in := fixture.Sample()
	in.Nodes[3].Lineage = []string{"missing"}

	res, err := propagate.Propagate(context.Background(), in)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, propagate.ErrInvalidGraph))
}

func TestPropagate_WithoutValidation(t *testing.T) {
	// Dangling references are ignored when validation is off.
	in := propagate.NewTable(
		propagate.Node{ID: "a", Value: 2, Lineage: []string{"ghost"}},
		propagate.Node{ID: "b", Value: 0, Override: propagate.Float(1)},
		propagate.Node{ID: "c", Value: 3, Lineage: []string{"b"}},
	)

	out, err := propagate.Apply(in)
	require.Error(t, err)
	assert.Equal(t, 0, out.Len())

	res, err := propagate.Propagate(context.Background(), in, propagate.WithoutValidation())
	require.NoError(t, err)
	assert.Equal(t, 2.0, res.Table.Nodes[0].Value)
	assert.Equal(t, 1.0, res.Table.Nodes[1].Value)
	assert.True(t, math.IsInf(res.Table.Nodes[2].Value, 1))
}

// largeChain builds n nodes where node i descends from every node before it
// and every seventh node carries an override.
func largeChain(n int) propagate.Table {
	nodes := make([]propagate.Node, n)
	lineage := []string{}
	for i := range nodes {
		id := fmt.Sprintf("n%04d", i)
		nodes[i] = propagate.Node{
			ID:      id,
			Value:   float64(i%13 + 1),
			Lineage: append([]string(nil), lineage...),
		}
		if i%7 == 3 {
			nodes[i].Override = propagate.Float(float64(i%5 + 1))
		}
		lineage = append(lineage, id)
	}
	return propagate.NewTable(nodes...)
}

func values(t propagate.Table) []float64 {
	vals := make([]float64, t.Len())
	for i, n := range t.Nodes {
		vals[i] = n.Value
	}
	return vals
}
