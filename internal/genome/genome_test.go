package genome

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/examm-go/examm/internal/rnn"
)

func seedGenome() *Genome {
	return NewSeedGenome([]string{"temp", "pressure"}, []string{"temp_next"}, rnn.CellLSTM, 1, 2, 42)
}

func TestNewSeedGenomeIsFullyReachable(t *testing.T) {
	g := seedGenome()
	require.False(t, g.OutputsUnreachable())
	require.Equal(t, 2, g.TotalInputs())
	require.Equal(t, 1, g.TotalOutputs())
}

func TestNumWeightsMatchesParameterVector(t *testing.T) {
	g := seedGenome()
	params := g.GetParameters()
	require.Len(t, params, g.NumWeights())
	require.NoError(t, g.SetParameters(params))
}

func TestStructuralHashStableUnderNoopReachability(t *testing.T) {
	g := seedGenome()
	h1 := g.StructuralHash()
	g.AssignReachability()
	require.Equal(t, h1, g.StructuralHash())
}

func TestStructuralHashChangesWhenEdgeDisabled(t *testing.T) {
	g := seedGenome()
	before := g.StructuralHash()
	g.Edges[0].Enabled = false
	g.AssignReachability()
	require.NotEqual(t, before, g.StructuralHash())
}

func TestCopyProducesStructurallyEqualGenome(t *testing.T) {
	g := seedGenome()
	cp := g.Copy()
	require.True(t, g.StructurallyEqual(cp))
	require.NotSame(t, g, cp)
}

func TestSetParametersRejectsWrongLength(t *testing.T) {
	g := seedGenome()
	err := g.SetParameters([]float64{1, 2, 3})
	require.Error(t, err)
}
