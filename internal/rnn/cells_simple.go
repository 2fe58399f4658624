package rnn

import "math"

// simpleCell is the tanh unit shared by plain hidden nodes and (in
// identity mode) input/output nodes. It owns no weights of its own:
// all learned parameters live on the edges feeding it, consistent with
// the genome treating recurrence as an edge attribute rather than a
// cycle in node ownership (DESIGN NOTES of the originating spec).
type simpleCell struct {
	identity bool
	out      []float64
}

func (c *simpleCell) Type() CellType { return CellSimple }
func (c *simpleCell) NumWeights() int { return 0 }
func (c *simpleCell) GetWeights(out []float64) {}
func (c *simpleCell) SetWeights(in []float64)  {}
func (c *simpleCell) WeightGradients(out []float64) {}

func (c *simpleCell) Reset(timeSteps int) {
	c.out = make([]float64, timeSteps)
}

func (c *simpleCell) Forward(t int, incoming float64) float64 {
	v := incoming
	if !c.identity {
		v = math.Tanh(incoming)
	}
	c.out[t] = v
	return v
}

func (c *simpleCell) Backward(t int, dOutput float64) float64 {
	if c.identity {
		return dOutput
	}
	v := c.out[t]
	return dOutput * (1 - v*v)
}

// jordanCell and elmanCell are structurally identical to simpleCell
// and differ from it only by their type tag. The genome's split_node
// mutation adds no canonical recurrent self/output loop for them.

type jordanCell struct{ simpleCell }

func (c *jordanCell) Type() CellType { return CellJordan }

type elmanCell struct{ simpleCell }

func (c *elmanCell) Type() CellType { return CellElman }

func newSimpleCell(identity bool) *simpleCell { return &simpleCell{identity: identity} }
