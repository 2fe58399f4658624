package rnn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"
)

// Cell is the uniform interface every recurrent unit kind satisfies,
// replacing per-family inheritance with a dispatch table (DESIGN NOTES
// §9 of the originating spec): a fixed number of scalar weights, a
// flat-vector get/set at an offset, and a forward/backward routine
// driven one time step at a time.
type Cell interface {
	Type() CellType
	NumWeights() int
	GetWeights(out []float64)
	SetWeights(in []float64)

	// Forward consumes the summed incoming signal for time step t
	// (already weighted by incoming edges) and returns the node's
	// output at t.
	Forward(t int, incoming float64) float64
	// Backward consumes the output-side error gradient (d_error/d_output
	// at time t) and returns the gradient to propagate to incoming
	// edges; per-weight gradients accumulate internally and are read
	// with WeightGradients.
	Backward(t int, dOutput float64) float64
	WeightGradients(out []float64)
	Reset(timeSteps int)
}

// WeightBound is the fixed clip applied to every weight on assignment
// (spec §4.1: "All weights are clipped into a fixed bound").
const WeightBound = 10.0

func clip(w float64) float64 {
	if w > WeightBound {
		return WeightBound
	}
	if w < -WeightBound {
		return -WeightBound
	}
	return w
}

// InitMethod selects a per-family random weight initializer.
type InitMethod int

const (
	InitXavier InitMethod = iota
	InitKaiming
	InitUniform
	InitLamarckian
	InitGP
)

// InitWeights fills w (len == fan-related count is the caller's
// responsibility) for the given fan-in/fan-out using method. mu/sigma
// are only consulted for InitLamarckian (population statistics of the
// current best parameters).
func InitWeights(w []float64, fanIn, fanOut int, method InitMethod, mu, sigma float64) {
	switch method {
	case InitXavier:
		bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
		for i := range w {
			w[i] = clip((rand.Float64()*2 - 1) * bound)
		}
	case InitKaiming:
		bound := math.Sqrt(2.0 / float64(fanIn))
		for i := range w {
			w[i] = clip(rand.NormFloat64() * bound)
		}
	case InitUniform:
		for i := range w {
			w[i] = clip(rand.Float64() - 0.5)
		}
	case InitLamarckian:
		for i := range w {
			w[i] = clip(mu + rand.NormFloat64()*sigma)
		}
	case InitGP:
		for i := range w {
			w[i] = 1.0
		}
	}
}

// PopulationWeightStats computes (mu, sigma) across a set of parameter
// vectors flattened together, feeding the Lamarckian draw used by every
// mutation operator (spec §4.2 "Mutation operators").
func PopulationWeightStats(parameterSets [][]float64) (mu, sigma float64) {
	var all []float64
	for _, p := range parameterSets {
		all = append(all, p...)
	}
	if len(all) == 0 {
		return 0, 1
	}
	mu, sigma = stat.MeanStdDev(all, nil)
	if sigma == 0 {
		sigma = 1e-3
	}
	return mu, sigma
}

// NewCell constructs a zero-initialized cell implementation for the
// given type. Weight initialization is a separate step (InitWeights).
func NewCell(t CellType) Cell {
	switch t {
	case CellSimple:
		return &simpleCell{}
	case CellJordan:
		return &jordanCell{}
	case CellElman:
		return &elmanCell{}
	case CellLSTM:
		return newGatedCell(t, 3)
	case CellGRU:
		return newGatedCell(t, 2)
	case CellMGU:
		return newGatedCell(t, 1)
	case CellUGRNN:
		return newGatedCell(t, 1)
	case CellDelta:
		return newGatedCell(t, 3)
	case CellENARC, CellENASDAG, CellRandomDAG:
		return newGatedCell(t, 2)
	case CellDNAS:
		return newDNASCell()
	default:
		if t.IsGPOperator() {
			return newGPCell(t)
		}
		return &simpleCell{}
	}
}
