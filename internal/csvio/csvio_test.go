package csvio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/examm-go/examm/internal/backprop"
)

func TestWritePredictionsHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generation_3_global_best.csv")
	expected := [][]float64{{1.0}, {2.0}, {3.0}}
	predicted := [][]float64{{1.1}, {1.9}, {3.2}}

	require.NoError(t, WritePredictions(path, []string{"temp"}, expected, predicted))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	require.Contains(t, content, "#expected_temp,naive_temp,global_best_predicted_temp")
	require.Contains(t, content, "2,1,1.9")
	require.Contains(t, content, "3,2,3.2")
}

func TestWritePredictionsRejectsLengthMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	err := WritePredictions(path, []string{"x"}, [][]float64{{1}}, [][]float64{{1}, {2}})
	require.Error(t, err)
}

func TestScoreTraceWritesHeaderOnceThenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "training_scores.csv")
	st, err := NewScoreTrace(path)
	require.NoError(t, err)

	require.NoError(t, st.Append(1, []int32{0, 1}, []float64{1, 2}))
	require.NoError(t, st.Append(2, []int32{0, 1}, []float64{2, 3}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	require.Contains(t, content, "generation,episode_0,episode_1")
	require.Contains(t, content, "1,1,2")
	require.Contains(t, content, "2,2,3")
}

func TestScoreTraceResumesWithoutRewritingHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "training_scores.csv")
	st1, err := NewScoreTrace(path)
	require.NoError(t, err)
	require.NoError(t, st1.Append(1, []int32{0}, []float64{1}))

	st2, err := NewScoreTrace(path)
	require.NoError(t, err)
	require.NoError(t, st2.Append(2, []int32{0}, []float64{2}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	require.Equal(t, 3, lines) // header + 2 rows
}

func TestTrainingLogWritesRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "training_log.csv")
	tl, err := NewTrainingLog(path)
	require.NoError(t, err)

	tl.LogIteration(backprop.IterationLog{Iteration: 0, ElapsedMS: 10, TrainingMSE: 0.5, ValidationMSE: 0.6, BestValidMSE: 0.6, BestValidMAE: 0.4, AverageGradNorm: 1.2})
	require.NoError(t, tl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "iteration,elapsed_ms,training_mse")
	require.Contains(t, string(data), "0,10,0.5,0.6,0.6,0.4,1.2")
}
