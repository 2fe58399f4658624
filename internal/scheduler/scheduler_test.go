package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func fillScheduler(s *Scheduler, n int) {
	for i := 0; i < n; i++ {
		s.AddEpisode(&Episode{ID: int32(i), Inputs: [][]float64{{float64(i)}}, Outputs: [][]float64{{float64(i)}}})
	}
}

func TestUniformSampleDoesNotRecordHistory(t *testing.T) {
	s := New(4, 2, 1.0, SamplingUniform, 1)
	fillScheduler(s, 20)
	s.SetCurrentIndex(10)

	idx := s.GetTrainingIndex(5)
	require.Len(t, idx, 4)
	require.Empty(t, s.trainingHistory)
}

func TestTemperedHybridSplitsRecentAndOlder(t *testing.T) {
	s := New(4, 2, 1.0, SamplingTemperedPER, 2)
	fillScheduler(s, 20)
	s.SetCurrentIndex(10) // current_index = 10 + 4 = 14

	idx := s.GetTrainingIndex(1)
	require.Len(t, idx, 4)

	recentCount := 0
	for _, id := range idx[:2] {
		if id >= int32(s.CurrentIndex-2) {
			recentCount++
		}
	}
	require.Equal(t, 2, recentCount)
	require.Contains(t, s.trainingHistory, int64(1))
}

func TestValidationAndTestWindows(t *testing.T) {
	s := New(4, 3, 1.0, SamplingUniform, 1)
	fillScheduler(s, 20)
	s.SetCurrentIndex(10)

	window := s.ValidationWindow()
	require.Equal(t, []int32{14, 15, 16}, window)
	require.Equal(t, int32(17), s.TestEpisode())
}

func TestUpdateScoresIncrementsFromTrainingHistory(t *testing.T) {
	s := New(4, 2, 1.0, SamplingTemperedPER, 3)
	fillScheduler(s, 20)
	s.SetCurrentIndex(10)

	idx := s.GetTrainingIndex(7)
	before := s.Score(idx[0])
	s.UpdateScores([]int64{7}, 100)
	require.Equal(t, before+1, s.Score(idx[0]))
}

func TestUpdateScoresSkippedForUniform(t *testing.T) {
	s := New(4, 2, 1.0, SamplingUniform, 1)
	fillScheduler(s, 20)
	s.SetCurrentIndex(10)
	s.GetTrainingIndex(1)
	s.UpdateScores([]int64{1}, 100)
	require.Empty(t, s.trainingHistory)
}

func TestUpdateScoresSkippedBeforeThreshold(t *testing.T) {
	s := New(4, 2, 1.0, SamplingTemperedPER, 1)
	s.StartScoreTrackingGeneration = 50
	fillScheduler(s, 20)
	s.SetCurrentIndex(10)
	idx := s.GetTrainingIndex(7)
	s.UpdateScores([]int64{7}, 10)
	require.Equal(t, 1.0, s.Score(idx[0]))
}

func TestHistoryGCDropsBelowSmallestEliteGeneration(t *testing.T) {
	s := New(2, 2, 1.0, SamplingTemperedPER, 9)
	fillScheduler(s, 20)
	s.SetCurrentIndex(10)
	s.GetTrainingIndex(1)
	s.GetTrainingIndex(2)
	s.GetTrainingIndex(3)
	s.UpdateScores([]int64{2, 3}, 0)
	require.NotContains(t, s.trainingHistory, int64(1))
	require.Contains(t, s.trainingHistory, int64(2))
}
