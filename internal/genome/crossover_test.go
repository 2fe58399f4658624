package genome

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/examm-go/examm/internal/rnn"
)

func TestCrossoverProducesReachableChildFromIdenticalParents(t *testing.T) {
	more := seedGenome()
	less := more.Copy()
	child, err := Crossover(more, less, 0.5)
	require.NoError(t, err)
	require.False(t, child.OutputsUnreachable())
}

func TestCrossoverInheritsAllMoreFitGenes(t *testing.T) {
	more := seedGenome()
	require.NoError(t, more.AddNode(rnn.CellGRU, 0, 0, 2, 1))
	less := seedGenome()
	child, err := Crossover(more, less, 0)
	require.NoError(t, err)
	for _, n := range more.Nodes {
		found := false
		for _, cn := range child.Nodes {
			if cn.InnovationNumber == n.InnovationNumber {
				found = true
			}
		}
		require.True(t, found, "more-fit gene %d missing from child", n.InnovationNumber)
	}
}

func TestCrossoverChildHasIndependentRNG(t *testing.T) {
	more := seedGenome()
	less := more.Copy()
	child, err := Crossover(more, less, 0.5)
	require.NoError(t, err)
	require.NotSame(t, more.rng, child.rng)
}

func TestRelativeFitnessInheritProbTiedParentsIsEvenOdds(t *testing.T) {
	require.InDelta(t, 0.5, RelativeFitnessInheritProb(1.0, 1.0), 1e-9)
}

func TestRelativeFitnessInheritProbSkewsAwayFromMuchWorseParent(t *testing.T) {
	close := RelativeFitnessInheritProb(1.0, 1.1)
	far := RelativeFitnessInheritProb(1.0, 100.0)
	require.Less(t, far, close, "a much-worse less parent should have its unique genes inherited less often")
	require.GreaterOrEqual(t, far, 0.1)
}

func TestRelativeFitnessInheritProbHandlesDegenerateInputs(t *testing.T) {
	var zero float64
	require.Equal(t, 0.5, RelativeFitnessInheritProb(0, 0))
	require.Equal(t, 0.5, RelativeFitnessInheritProb(zero/zero, 1))
}
