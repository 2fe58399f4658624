package genome

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/examm-go/examm/internal/rnn"
)

func TestAddNodeGrowsGenomeAndStaysReachable(t *testing.T) {
	g := seedGenome()
	before := len(g.Nodes)
	err := g.AddNode(rnn.CellGRU, 0, 0, 2, 2)
	require.NoError(t, err)
	require.Greater(t, len(g.Nodes), before)
	require.False(t, g.OutputsUnreachable())
}

func TestSplitEdgeDisablesOriginalAndInsertsNode(t *testing.T) {
	g := seedGenome()
	enabledBefore := countEnabledEdges(g)
	require.NoError(t, g.SplitEdge(rnn.CellLSTM, 0, 0))
	require.Equal(t, enabledBefore-1+2, countEnabledEdges(g))
}

func TestSplitNodeDisablesTargetAndAddsTwoSiblings(t *testing.T) {
	g := seedGenome()
	err := g.AddNode(rnn.CellSimple, 0, 0, 2, 2)
	require.NoError(t, err)
	before := len(g.Nodes)
	require.NoError(t, g.SplitNode(0, 0))
	require.Equal(t, before+2, len(g.Nodes))
}

func TestMergeNodeRequiresTwoHiddenNodes(t *testing.T) {
	g := NewSeedGenome([]string{"x"}, []string{"y"}, rnn.CellLSTM, 0, 0, 7)
	err := g.MergeNode(0, 0)
	require.ErrorIs(t, err, ErrNoEligibleTarget)
}

func TestEnableDisableEdgeTogglesSomething(t *testing.T) {
	g := seedGenome()
	total := len(g.Edges) + len(g.RecurrentEdges)
	require.Greater(t, total, 0)
	enabledBefore := countEnabledEdges(g)
	require.NoError(t, g.EnableDisableEdge())
	require.NotEqual(t, enabledBefore, countEnabledEdges(g))
}

func TestAddRecurrentEdgeAppendsOneEdge(t *testing.T) {
	g := seedGenome()
	require.NoError(t, g.AddRecurrentEdge(0, 0, 3))
	require.Len(t, g.RecurrentEdges, 1)
}

func TestAddEdgeFailsWhenFullyConnected(t *testing.T) {
	g := NewSeedGenome([]string{"a"}, []string{"b"}, rnn.CellSimple, 0, 0, 1)
	err := g.AddEdge(0, 0)
	require.ErrorIs(t, err, ErrNoEligibleTarget)
}

func TestAddEdgeReenablesDisabledEdgeInsteadOfSkipping(t *testing.T) {
	g := NewSeedGenome([]string{"a"}, []string{"b"}, rnn.CellSimple, 0, 0, 1)
	require.Len(t, g.Edges, 1)
	g.Edges[0].Enabled = false
	require.NoError(t, g.AddEdge(0, 0))
	require.Len(t, g.Edges, 1, "a disabled a->b pair must be re-enabled, not duplicated")
	require.True(t, g.Edges[0].Enabled)
}

func TestAddEdgeIgnoresUnreachableNodes(t *testing.T) {
	g := seedGenome()
	var maxInnovationBefore int64
	for _, n := range g.Nodes {
		if n.InnovationNumber > maxInnovationBefore {
			maxInnovationBefore = n.InnovationNumber
		}
	}
	require.NoError(t, g.AddNode(rnn.CellSimple, 0, 0, 2, 2))
	var fresh *rnn.Node
	for _, n := range g.Nodes {
		if n.InnovationNumber > maxInnovationBefore {
			fresh = n
		}
	}
	require.NotNil(t, fresh)
	for _, e := range g.Edges {
		if e.TargetInnovation == fresh.InnovationNumber {
			e.Enabled = false
		}
	}
	g.AssignReachability()
	require.False(t, fresh.Reachable(), "fresh node with every inbound edge disabled must be unreachable")
	edgesBefore := len(g.Edges)
	// temp->temp_next and pressure->temp_next are the only reachable
	// pairs without an enabled edge; the fresh node's disabled inbound
	// edges are no candidates because the fresh node is unreachable.
	for i := 0; i < 2; i++ {
		require.NoError(t, g.AddEdge(0, 0))
	}
	require.ErrorIs(t, g.AddEdge(0, 0), ErrNoEligibleTarget)
	for _, e := range g.Edges[edgesBefore:] {
		require.False(t, e.SourceInnovation == fresh.InnovationNumber || e.TargetInnovation == fresh.InnovationNumber,
			"AddEdge must never pick an unreachable node as a candidate")
	}
}

func countEnabledEdges(g *Genome) int {
	n := 0
	for _, e := range g.Edges {
		if e.Enabled {
			n++
		}
	}
	return n
}
