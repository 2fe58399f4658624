package backprop

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/examm-go/examm/internal/genome"
	"github.com/examm-go/examm/internal/rnn"
)

func simpleSeries(n int) *Series {
	s := &Series{Inputs: make([][]float64, n), Outputs: make([][]float64, n)}
	for t := 0; t < n; t++ {
		x := float64(t) * 0.1
		s.Inputs[t] = []float64{x}
		s.Outputs[t] = []float64{x * 2}
	}
	return s
}

func TestMSENearZeroForIdentityWiredGenome(t *testing.T) {
	g := genome.NewSeedGenome([]string{"x"}, []string{"y"}, rnn.CellSimple, 0, 0, 1)
	for _, e := range g.Edges {
		e.Weight = 2.0
	}
	series := []*Series{simpleSeries(5)}
	mse := MSE(g, series)
	require.Less(t, mse, 1e-6)
}

func TestBatchBackpropReducesTrainingMSE(t *testing.T) {
	g := genome.NewSeedGenome([]string{"x"}, []string{"y"}, rnn.CellSimple, 1, 2, 7)
	training := []*Series{simpleSeries(8), simpleSeries(6)}
	validation := []*Series{simpleSeries(4)}

	before := MSE(g, training)

	opts := Options{Iterations: 25, GradientClip: 5.0, Update: NewAdamWeightUpdate(0.05)}
	err := Batch(g, training, validation, opts)
	require.NoError(t, err)

	after := MSE(g, training)
	require.Less(t, after, before)
}

func TestStochasticBackpropTracksBestParameters(t *testing.T) {
	g := genome.NewSeedGenome([]string{"x"}, []string{"y"}, rnn.CellSimple, 1, 2, 11)
	training := []*Series{simpleSeries(6), simpleSeries(5), simpleSeries(7)}
	validation := []*Series{simpleSeries(4)}

	opts := Options{Iterations: 10, GradientClip: 5.0, Update: &SGDWeightUpdate{LearningRate: 0.02, Momentum: 0.9}}
	err := Stochastic(g, training, validation, opts, 42)
	require.NoError(t, err)
	require.NotEmpty(t, g.BestParameters)
	require.False(t, math.IsNaN(g.BestValidationMSE))
}

func TestValidateSeriesRejectsSchemaMismatch(t *testing.T) {
	g := genome.NewSeedGenome([]string{"x", "z"}, []string{"y"}, rnn.CellSimple, 0, 0, 3)
	bad := []*Series{{Inputs: [][]float64{{1.0}}, Outputs: [][]float64{{1.0}}}}

	err := Batch(g, bad, bad, Options{Iterations: 1, Update: NewAdamWeightUpdate(0.01)})
	require.Error(t, err)
}

func TestGradientClipRescalesToThreshold(t *testing.T) {
	grad := []float64{3, 4}
	norm := GradientNorm(grad)
	require.InDelta(t, 5.0, norm, 1e-9)

	ClipGradient(grad, norm, 1.0)
	require.InDelta(t, 1.0, GradientNorm(grad), 1e-9)
}

func TestAdamWeightUpdateMovesTowardNegativeGradient(t *testing.T) {
	u := NewAdamWeightUpdate(0.1)
	params := []float64{0.0}
	velocity := []float64{0.0}
	prevVelocity := []float64{0.0}
	grad := []float64{1.0}

	u.Update(params, velocity, prevVelocity, grad, 0)
	require.Less(t, params[0], 0.0)
}
