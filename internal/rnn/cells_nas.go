package rnn

import "math"

// dnasCell implements a differentiable-architecture-search node: a
// fixed palette of candidate sub-cells mixed by a learned softmax over
// a π vector, per spec §4.2 ("DNAS nodes recursively emit sub-nodes
// and a π vector"). Its weights are the concatenation of every
// sub-cell's weights followed by π.
type dnasCell struct {
	subs []Cell
	pi   []float64
	grad []float64 // gradient of pi only; sub-cell grads live on the subs themselves

	softmax  [][]float64 // [t][choice]
	subOuts  [][]float64 // [t][choice]
	lastT    int
}

func dnasCandidateKinds() []CellType {
	return []CellType{CellSimple, CellLSTM, CellGRU, CellUGRNN}
}

func newDNASCell() *dnasCell {
	kinds := dnasCandidateKinds()
	subs := make([]Cell, len(kinds))
	for i, k := range kinds {
		subs[i] = NewCell(k)
	}
	return &dnasCell{subs: subs, pi: make([]float64, len(kinds)), grad: make([]float64, len(kinds))}
}

func (c *dnasCell) Type() CellType { return CellDNAS }

func (c *dnasCell) NumWeights() int {
	n := len(c.pi)
	for _, s := range c.subs {
		n += s.NumWeights()
	}
	return n
}

func (c *dnasCell) GetWeights(out []float64) {
	off := 0
	for _, s := range c.subs {
		s.GetWeights(out[off : off+s.NumWeights()])
		off += s.NumWeights()
	}
	copy(out[off:], c.pi)
}

func (c *dnasCell) SetWeights(in []float64) {
	off := 0
	for _, s := range c.subs {
		s.SetWeights(in[off : off+s.NumWeights()])
		off += s.NumWeights()
	}
	copy(c.pi, in[off:])
}

func (c *dnasCell) WeightGradients(out []float64) {
	off := 0
	for _, s := range c.subs {
		s.WeightGradients(out[off : off+s.NumWeights()])
		off += s.NumWeights()
	}
	copy(out[off:], c.grad)
}

func (c *dnasCell) Reset(timeSteps int) {
	for _, s := range c.subs {
		s.Reset(timeSteps)
	}
	c.softmax = make([][]float64, timeSteps)
	c.subOuts = make([][]float64, timeSteps)
	for i := range c.grad {
		c.grad[i] = 0
	}
}

func softmaxVec(x []float64) []float64 {
	max := x[0]
	for _, v := range x {
		if v > max {
			max = v
		}
	}
	out := make([]float64, len(x))
	sum := 0.0
	for i, v := range x {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func (c *dnasCell) Forward(t int, incoming float64) float64 {
	w := softmaxVec(c.pi)
	outs := make([]float64, len(c.subs))
	mix := 0.0
	for i, s := range c.subs {
		outs[i] = s.Forward(t, incoming)
		mix += w[i] * outs[i]
	}
	c.softmax[t] = w
	c.subOuts[t] = outs
	c.lastT = t
	return mix
}

func (c *dnasCell) Backward(t int, dOutput float64) float64 {
	w := c.softmax[t]
	outs := c.subOuts[t]

	// d(mix)/d(pi_k) via softmax jacobian: dw_k/dpi_j = w_k*(delta_kj - w_j)
	for j := range c.pi {
		var dPi float64
		for k := range w {
			dOutputDWk := outs[k]
			dWkDPiJ := w[k] * (boolF(k == j) - w[j])
			dPi += dOutput * dOutputDWk * dWkDPiJ
		}
		c.grad[j] += dPi
	}

	dIncoming := 0.0
	for i, s := range c.subs {
		dIncoming += s.Backward(t, dOutput*w[i])
	}
	return dIncoming
}

func boolF(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
