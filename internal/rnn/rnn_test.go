package rnn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSimpleCellForwardBackward(t *testing.T) {
	c := newSimpleCell(false)
	c.Reset(3)
	out := c.Forward(0, 0.5)
	require.InDelta(t, math.Tanh(0.5), out, 1e-9)
	grad := c.Backward(0, 1.0)
	require.InDelta(t, 1-out*out, grad, 1e-9)
}

func TestGatedCellRoundTripsWeights(t *testing.T) {
	for _, kind := range []CellType{CellLSTM, CellGRU, CellMGU, CellUGRNN, CellDelta} {
		c := NewCell(kind)
		w := make([]float64, c.NumWeights())
		InitWeights(w, 4, 4, InitXavier, 0, 1)
		c.SetWeights(w)
		got := make([]float64, c.NumWeights())
		c.GetWeights(got)
		require.Equal(t, w, got, "kind=%v", kind)
	}
}

func TestGatedCellForwardProducesFiniteOutput(t *testing.T) {
	c := NewCell(CellLSTM)
	w := make([]float64, c.NumWeights())
	InitWeights(w, 4, 4, InitXavier, 0, 1)
	c.SetWeights(w)
	c.Reset(5)
	for ts := 0; ts < 5; ts++ {
		out := c.Forward(ts, 0.3)
		require.False(t, math.IsNaN(out) || math.IsInf(out, 0))
	}
	grad := c.Backward(4, 1.0)
	require.False(t, math.IsNaN(grad))
}

func TestDNASCellWeightCountIsSumOfSubs(t *testing.T) {
	c := newDNASCell()
	expected := len(c.pi)
	for _, s := range c.subs {
		expected += s.NumWeights()
	}
	require.Equal(t, expected, c.NumWeights())
}

func TestGPMultiplyAggregation(t *testing.T) {
	require.Equal(t, AggProduct, CellGPMultiply.Aggregation())
	require.Equal(t, AggSum, CellGPSum.Aggregation())
	require.Equal(t, AggSum, CellLSTM.Aggregation())
}

func TestNodeForwardAggregatesProductForMultiply(t *testing.T) {
	n := NewNode(1, CellGPMultiply, 0.5)
	n.Reset(1)
	out := n.Forward(0, []float64{2.0, 3.0, 4.0})
	require.InDelta(t, 24.0, out, 1e-9)
}

func TestWeightsClippedToBound(t *testing.T) {
	w := make([]float64, 1)
	InitWeights(w, 1, 1, InitLamarckian, 1000, 1)
	require.LessOrEqual(t, w[0], WeightBound)
}
