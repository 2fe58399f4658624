package controller

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/examm-go/examm/internal/config"
	"github.com/examm-go/examm/internal/genome"
	"github.com/examm-go/examm/internal/rnn"
	"github.com/examm-go/examm/internal/scheduler"
	"github.com/examm-go/examm/internal/speciation"
	"github.com/examm-go/examm/internal/xlog"
)

func seedEpisodes(sched *scheduler.Scheduler, n int) {
	for i := 0; i < n; i++ {
		x := float64(i)
		sched.AddEpisode(&scheduler.Episode{
			ID:      int32(i),
			Inputs:  [][]float64{{x}, {x + 1}, {x + 2}},
			Outputs: [][]float64{{x * 2}, {(x + 1) * 2}, {(x + 2) * 2}},
		})
	}
}

func newTestController(t *testing.T) *Controller {
	t.Helper()
	seed := genome.NewSeedGenome([]string{"x"}, []string{"y"}, rnn.CellSimple, 0, 0, 1)

	strategyCfg := speciation.Config{
		NumberOfIslands: 1, MaxIslandSize: 3, GeneratedPerIsland: 2,
		MutationRate: 0.6, IntraIslandCrossoverRate: 0.2, InterIslandCrossoverRate: 0.2,
		NumMutations: 1, MaxRecurrentDepth: 2,
	}
	strategy := speciation.NewOnline(strategyCfg, seed, 42)

	sched := scheduler.New(2, 1, 1.0, scheduler.SamplingUniform, 7)
	seedEpisodes(sched, 6)
	sched.SetCurrentIndex(0)

	cfg := config.NewShared(config.Config{BPIterations: 2, LearningRate: 0.01, Stochastic: false})
	log := xlog.New(xlog.LevelNone, "test", "controller")

	c, err := New(strategy, sched, cfg, log, t.TempDir())
	require.NoError(t, err)
	return c
}

func TestTrainCandidateInsertsIntoGenerated(t *testing.T) {
	c := newTestController(t)
	g, err := c.Strategy.GenerateGenome()
	require.NoError(t, err)

	require.NoError(t, c.TrainCandidate(g))
	require.Equal(t, 1, c.Strategy.Islands[0].Generated.Len())
}

func TestFinalizeGenerationWritesArtifacts(t *testing.T) {
	c := newTestController(t)

	for i := 0; i < 2; i++ {
		g, err := c.Strategy.GenerateGenome()
		require.NoError(t, err)
		require.NoError(t, c.TrainCandidate(g))
	}

	result, err := c.FinalizeGeneration(0)
	require.NoError(t, err)
	require.NotNil(t, result.GlobalBest)
	require.True(t, result.NewGlobalBest)

	_, statErr := os.Stat(filepath.Join(c.OutputDir, "global_best.genome"))
	require.NoError(t, statErr)
	_, statErr = os.Stat(filepath.Join(c.OutputDir, "training_scores.csv"))
	require.NoError(t, statErr)
}

func TestFinalizeGenerationNoTestEpisodeSkipsPredictions(t *testing.T) {
	c := newTestController(t)
	// Drain the scheduler past every episode so TestEpisode() is out of range.
	c.Scheduler.SetCurrentIndex(100)

	g, err := c.Strategy.GenerateGenome()
	require.NoError(t, err)
	require.Error(t, c.TrainCandidate(g)) // no validation window left

	_, err = c.FinalizeGeneration(0)
	require.NoError(t, err)
	_, statErr := os.Stat(filepath.Join(c.OutputDir, "generation_0_global_best.csv"))
	require.True(t, os.IsNotExist(statErr))
}
