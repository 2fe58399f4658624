package rnn

import "math"

// gpCell implements the genetic-programming operator cells: fixed,
// weightless scalar functions applied to the node's aggregated
// incoming signal (sum for every GP operator except multiply, whose
// aggregation is a product — see CellType.Aggregation).
type gpCell struct {
	kind CellType
	in   []float64
	out  []float64
}

func newGPCell(kind CellType) *gpCell { return &gpCell{kind: kind} }

func (c *gpCell) Type() CellType            { return c.kind }
func (c *gpCell) NumWeights() int           { return 0 }
func (c *gpCell) GetWeights(out []float64)  {}
func (c *gpCell) SetWeights(in []float64)   {}
func (c *gpCell) WeightGradients(out []float64) {}

func (c *gpCell) Reset(timeSteps int) {
	c.in = make([]float64, timeSteps)
	c.out = make([]float64, timeSteps)
}

func (c *gpCell) Forward(t int, incoming float64) float64 {
	c.in[t] = incoming
	var out float64
	switch c.kind {
	case CellGPSin:
		out = math.Sin(incoming)
	case CellGPCos:
		out = math.Cos(incoming)
	case CellGPTanh:
		out = math.Tanh(incoming)
	case CellGPSigmoid:
		out = sigmoid(incoming)
	case CellGPInverse:
		if incoming == 0 {
			out = 0
		} else {
			out = 1.0 / incoming
		}
	case CellGPSum, CellGPMultiply:
		// Aggregation already performed the sum/product; the cell is
		// the identity over its (already-combined) input.
		out = incoming
	}
	c.out[t] = out
	return out
}

func (c *gpCell) Backward(t int, dOutput float64) float64 {
	x := c.in[t]
	switch c.kind {
	case CellGPSin:
		return dOutput * math.Cos(x)
	case CellGPCos:
		return dOutput * -math.Sin(x)
	case CellGPTanh:
		v := c.out[t]
		return dOutput * (1 - v*v)
	case CellGPSigmoid:
		v := c.out[t]
		return dOutput * v * (1 - v)
	case CellGPInverse:
		if x == 0 {
			return 0
		}
		return dOutput * (-1.0 / (x * x))
	default: // sum, multiply
		return dOutput
	}
}
