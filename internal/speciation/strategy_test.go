package speciation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/examm-go/examm/internal/genome"
	"github.com/examm-go/examm/internal/island"
	"github.com/examm-go/examm/internal/rnn"
)

func testConfig() Config {
	return Config{
		NumberOfIslands:          1,
		MaxIslandSize:            2,
		MutationRate:             1.0,
		IntraIslandCrossoverRate: 0,
		InterIslandCrossoverRate: 0,
		NumMutations:             1,
		HiddenCellType:           rnn.CellLSTM,
		AddNodeFanIn:             1,
		AddNodeFanOut:            1,
		MaxRecurrentDepth:        2,
	}
}

func TestSeedOnlyGenerationYieldsSeedTopologyGenomes(t *testing.T) {
	seed := genome.NewSeedGenome([]string{"x"}, []string{"y"}, rnn.CellLSTM, 0, 0, 1)
	s := New(testConfig(), seed, 7)

	g1, err := s.GenerateGenome()
	require.NoError(t, err)
	require.Equal(t, genome.EXAMMMaxDouble, g1.Fitness)

	g2, err := s.GenerateGenome()
	require.NoError(t, err)
	require.Equal(t, genome.EXAMMMaxDouble, g2.Fitness)

	require.Equal(t, island.Filled, s.Islands[0].Status)
}

func TestRateNormalizationSumsToOne(t *testing.T) {
	cfg := Config{MutationRate: 2, IntraIslandCrossoverRate: 1, InterIslandCrossoverRate: 1, NumberOfIslands: 1, MaxIslandSize: 2}
	seed := genome.NewSeedGenome([]string{"x"}, []string{"y"}, rnn.CellLSTM, 0, 0, 1)
	s := New(cfg, seed, 1)
	require.InDelta(t, 0.5, s.mutationRate, 1e-9)
	require.InDelta(t, 0.75, s.intraCrossoverCDF, 1e-9)
	require.InDelta(t, 1.0, s.interCrossoverCDF, 1e-9)
}

func TestInsertEvaluatedUpdatesGlobalBestOnEveryInsertion(t *testing.T) {
	seed := genome.NewSeedGenome([]string{"x"}, []string{"y"}, rnn.CellLSTM, 0, 0, 1)
	s := New(testConfig(), seed, 3)

	g := seed.Copy()
	g.GroupID = 0
	g.Fitness = 5
	require.GreaterOrEqual(t, s.InsertEvaluated(g), 0)
	require.NotNil(t, s.GlobalBest)
	require.Equal(t, 5.0, s.GlobalBest.Fitness)

	better := seed.Copy()
	better.GroupID = 0
	better.Fitness = 1
	s.InsertEvaluated(better)
	require.Equal(t, 1.0, s.GlobalBest.Fitness)
}

func TestExtinctionErasesWorstIsland(t *testing.T) {
	cfg := testConfig()
	cfg.NumberOfIslands = 4
	cfg.ExtinctionEventGenerationNumber = 1
	cfg.IslandsToExterminate = 1
	seed := genome.NewSeedGenome([]string{"x"}, []string{"y"}, rnn.CellLSTM, 0, 0, 1)
	s := New(cfg, seed, 11)

	fitnesses := []float64{3.0, 1.0, 2.0, 4.0}
	for i, f := range fitnesses {
		g := seed.Copy()
		g.GroupID = i
		g.Fitness = f
		s.Islands[i].Elite.Insert(g)
	}
	s.EvaluatedGenomes = 1
	s.RunExtinctionIfDue()

	require.Equal(t, island.Repopulating, s.Islands[3].Status)
	require.Equal(t, island.Initializing, s.Islands[0].Status)
}

func TestGenerateGenomeNeverReturnsUnreachableOutputs(t *testing.T) {
	cfg := testConfig()
	cfg.MaxIslandSize = 2
	cfg.NumMutations = 1
	seed := genome.NewSeedGenome([]string{"x"}, []string{"y"}, rnn.CellSimple, 0, 0, 1)
	s := New(cfg, seed, 13)

	for i := 0; i < 200; i++ {
		g, err := s.GenerateGenome()
		require.NoError(t, err)
		require.False(t, g.OutputsUnreachable(), "GenerateGenome must never hand back a candidate with unreachable outputs")
		g.Fitness = float64(i)
		s.InsertEvaluated(g)
	}
}

func TestRepopulateBestGenomeRequiresGlobalBest(t *testing.T) {
	cfg := testConfig()
	cfg.RepopulationMethod = RepopulateBestGenome
	seed := genome.NewSeedGenome([]string{"x"}, []string{"y"}, rnn.CellLSTM, 0, 0, 1)
	s := New(cfg, seed, 5)
	s.Islands[0].Status = island.Repopulating
	_, err := s.GenerateGenome()
	require.ErrorIs(t, err, ErrEmptyParentPool)
}
