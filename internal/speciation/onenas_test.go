package speciation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/examm-go/examm/internal/genome"
	"github.com/examm-go/examm/internal/rnn"
)

func TestFinalizeGenerationMergesGeneratedIntoElite(t *testing.T) {
	cfg := testConfig()
	cfg.GeneratedPerIsland = 2
	seed := genome.NewSeedGenome([]string{"x"}, []string{"y"}, rnn.CellLSTM, 0, 0, 1)
	s := NewOnline(cfg, seed, 9)

	g := seed.Copy()
	g.GroupID = 0
	g.Fitness = 2.0
	s.InsertGenerated(g)

	result := s.FinalizeGeneration(1, func(gn *genome.Genome) (float64, float64) {
		return gn.Fitness, gn.Fitness / 2
	}, false)

	require.NotNil(t, result.GlobalBest)
	require.True(t, result.NewGlobalBest)
	require.Equal(t, 0, s.Islands[0].Generated.Len())
	require.Equal(t, 1, s.Islands[0].Elite.Len())
}

func TestFinalizeGenerationGlobalBestOnlyUpdatesAtFinalize(t *testing.T) {
	cfg := testConfig()
	cfg.GeneratedPerIsland = 2
	seed := genome.NewSeedGenome([]string{"x"}, []string{"y"}, rnn.CellLSTM, 0, 0, 1)
	s := NewOnline(cfg, seed, 9)

	g := seed.Copy()
	g.GroupID = 0
	g.Fitness = 2.0
	s.InsertGenerated(g)
	require.Nil(t, s.GlobalBest, "global best must not update before finalize_generation")

	s.FinalizeGeneration(1, func(gn *genome.Genome) (float64, float64) { return gn.Fitness, gn.Fitness }, false)
	require.NotNil(t, s.GlobalBest)
}

func TestSizeControlFiresOnceAfterGenerationTen(t *testing.T) {
	cfg := testConfig()
	cfg.GeneratedPerIsland = 8
	seed := genome.NewSeedGenome([]string{"x"}, []string{"y"}, rnn.CellLSTM, 0, 0, 1)
	s := NewOnline(cfg, seed, 9)

	var fired int
	for gen := int64(1); gen <= 12; gen++ {
		g := seed.Copy()
		g.GroupID = 0
		g.Fitness = 1.0
		s.InsertGenerated(g)
		result := s.FinalizeGeneration(gen, func(gn *genome.Genome) (float64, float64) { return gn.Fitness, gn.Fitness }, false)
		if result.SizeControlFired {
			fired++
		}
	}
	require.Equal(t, 1, fired)
	require.Equal(t, 2, s.cfg.GeneratedPerIsland)
}

func TestSizeControlRebalanceRatesSetsFixedShares(t *testing.T) {
	cfg := testConfig()
	cfg.GeneratedPerIsland = 8
	cfg.ControlSizeMethod = ControlSizeRebalanceRates
	seed := genome.NewSeedGenome([]string{"x"}, []string{"y"}, rnn.CellLSTM, 0, 0, 1)
	s := NewOnline(cfg, seed, 9)

	for gen := int64(1); gen <= 12; gen++ {
		g := seed.Copy()
		g.GroupID = 0
		g.Fitness = 1.0
		s.InsertGenerated(g)
		s.FinalizeGeneration(gen, func(gn *genome.Genome) (float64, float64) { return gn.Fitness, gn.Fitness }, false)
	}

	require.InDelta(t, 0.4, s.cfg.MutationRate, 1e-9)
	require.InDelta(t, 0.4, s.cfg.IntraIslandCrossoverRate, 1e-9)
	require.InDelta(t, 0.2, s.cfg.InterIslandCrossoverRate, 1e-9)
}

func TestSizeControlNoneNeverFires(t *testing.T) {
	cfg := testConfig()
	cfg.GeneratedPerIsland = 8
	cfg.ControlSizeMethod = ControlSizeNone
	seed := genome.NewSeedGenome([]string{"x"}, []string{"y"}, rnn.CellLSTM, 0, 0, 1)
	s := NewOnline(cfg, seed, 9)

	var fired int
	for gen := int64(1); gen <= 12; gen++ {
		g := seed.Copy()
		g.GroupID = 0
		g.Fitness = 1.0
		s.InsertGenerated(g)
		result := s.FinalizeGeneration(gen, func(gn *genome.Genome) (float64, float64) { return gn.Fitness, gn.Fitness }, false)
		if result.SizeControlFired {
			fired++
		}
	}
	require.Equal(t, 0, fired)
	require.Equal(t, 8, s.cfg.GeneratedPerIsland)
}
