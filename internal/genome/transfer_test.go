package genome

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/examm-go/examm/internal/rnn"
)

func TestTransferLearningV1RewiresNewSchema(t *testing.T) {
	g := seedGenome()
	g.TransferLearning([]string{"temp", "humidity"}, []string{"temp_next", "humidity_next"}, TransferV1, false)
	require.ElementsMatch(t, []string{"temp", "humidity"}, g.InputParameterNames)
	require.ElementsMatch(t, []string{"temp_next", "humidity_next"}, g.OutputParameterNames)
	require.False(t, g.OutputsUnreachable())
}

func TestTransferLearningDropsUnusedParameterNodes(t *testing.T) {
	g := seedGenome()
	before := len(g.Nodes)
	g.TransferLearning([]string{"temp"}, []string{"temp_next"}, TransferV1, true)
	require.Less(t, len(g.Nodes), before)
	for _, n := range g.Nodes {
		if n.Layer == rnn.LayerInput {
			require.Equal(t, "temp", n.ParameterName)
		}
	}
}

func TestTransferLearningV3ConnectsAllHidden(t *testing.T) {
	g := seedGenome()
	g.TransferLearning([]string{"temp", "pressure", "wind"}, []string{"temp_next"}, TransferV3, true)
	require.False(t, g.OutputsUnreachable())
}

func TestTransferLearningV1WiresFreshNodesToEveryCurrentCounterpart(t *testing.T) {
	g := NewSeedGenome([]string{"a", "b"}, []string{"y"}, rnn.CellSimple, 0, 0, 1)
	g.TransferLearning([]string{"a", "c"}, []string{"y", "z"}, TransferV1, true)

	var a, c, y, z *rnn.Node
	for _, n := range g.Nodes {
		switch {
		case n.Layer == rnn.LayerInput && n.ParameterName == "a":
			a = n
		case n.Layer == rnn.LayerInput && n.ParameterName == "c":
			c = n
		case n.Layer == rnn.LayerOutput && n.ParameterName == "y":
			y = n
		case n.Layer == rnn.LayerOutput && n.ParameterName == "z":
			z = n
		}
	}
	require.NotNil(t, a)
	require.NotNil(t, c)
	require.NotNil(t, y)
	require.NotNil(t, z)

	connected := func(src, dst *rnn.Node) bool {
		for _, e := range g.Edges {
			if e.SourceInnovation == src.InnovationNumber && e.TargetInnovation == dst.InnovationNumber {
				return true
			}
		}
		for _, e := range g.RecurrentEdges {
			if e.SourceInnovation == src.InnovationNumber && e.TargetInnovation == dst.InnovationNumber {
				return true
			}
		}
		return false
	}
	require.True(t, connected(c, y), "fresh input c must wire to old output y")
	require.True(t, connected(a, z), "old input a must wire to fresh output z")
}

func TestTransferLearningNonEpigeneticRandomizesWeights(t *testing.T) {
	g := seedGenome()
	before := g.Edges[0].Weight
	g.TransferLearning([]string{"temp", "pressure"}, []string{"temp_next"}, TransferV1, false)
	for _, e := range g.Edges {
		require.LessOrEqual(t, e.Weight, 0.5)
		require.GreaterOrEqual(t, e.Weight, -0.5)
	}
	_ = before
}
