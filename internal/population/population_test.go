package population

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/examm-go/examm/internal/genome"
	"github.com/examm-go/examm/internal/rnn"
)

func newSeedGenome(fitness float64, seed uint64) *genome.Genome {
	g := genome.NewSeedGenome([]string{"x"}, []string{"y"}, rnn.CellLSTM, 1, 1, seed)
	g.Fitness = fitness
	return g
}

func TestInsertOrdersAscendingByFitness(t *testing.T) {
	p := New(10)
	require.GreaterOrEqual(t, p.Insert(newSeedGenome(3, 1)), 0)
	require.GreaterOrEqual(t, p.Insert(newSeedGenome(1, 2)), 0)
	require.GreaterOrEqual(t, p.Insert(newSeedGenome(2, 3)), 0)

	all := p.All()
	require.Len(t, all, 3)
	require.Equal(t, 1.0, all[0].Fitness)
	require.Equal(t, 2.0, all[1].Fitness)
	require.Equal(t, 3.0, all[2].Fitness)
}

func TestInsertRejectsWhenFullAndWorse(t *testing.T) {
	p := New(1)
	require.Equal(t, 0, p.Insert(newSeedGenome(1, 1)))
	require.Equal(t, -1, p.Insert(newSeedGenome(5, 2)))
}

func TestInsertEvictsWorstStructuralDuplicate(t *testing.T) {
	p := New(10)
	base := newSeedGenome(5, 1)
	require.GreaterOrEqual(t, p.Insert(base), 0)

	dup := base.Copy()
	dup.Fitness = 1
	idx := p.Insert(dup)
	require.GreaterOrEqual(t, idx, 0)
	require.Equal(t, 1, p.Len())
	require.Equal(t, 1.0, p.Best().Fitness)
}

func TestInsertRejectsStructuralDuplicateWithWorseOrEqualFitness(t *testing.T) {
	p := New(10)
	base := newSeedGenome(1, 1)
	require.GreaterOrEqual(t, p.Insert(base), 0)

	dup := base.Copy()
	dup.Fitness = 5
	require.Equal(t, -1, p.Insert(dup))
	require.Equal(t, 1, p.Len())
}

func TestInsertEvictsOverCapacity(t *testing.T) {
	p := New(2)
	require.GreaterOrEqual(t, p.Insert(newSeedGenome(1, 1)), 0)
	require.GreaterOrEqual(t, p.Insert(newSeedGenome(2, 2)), 0)
	idx := p.Insert(newSeedGenome(0.5, 3))
	require.GreaterOrEqual(t, idx, 0)
	require.Equal(t, 2, p.Len())
	require.Equal(t, 1.0, p.Worst().Fitness)
}

func TestInsertReturnsCopyNotOriginal(t *testing.T) {
	p := New(10)
	g := newSeedGenome(1, 1)
	p.Insert(g)
	require.NotSame(t, g, p.Best())
}
