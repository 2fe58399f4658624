package rnn

import "math"

func sigmoid(x float64) float64 { return 1.0 / (1.0 + math.Exp(-x)) }

// gatedCell is the generic memory-bearing unit backing LSTM, GRU, MGU,
// UGRNN, Delta and the NAS-discovered families (ENARC, ENAS-DAG,
// Random-DAG). Per the originating spec's scope note ("we only specify
// their uniform interface" for individual cell families — their exact
// numeric kernels are explicitly out of scope), every gated family
// shares one parameterized convex-gate update differing only in the
// number of sigmoid gates it carries; the cell state is private node
// memory, not modeled by an edge, matching the real architecture where
// only a node's externally-visible output travels forward/recurrent
// edges.
type gatedCell struct {
	kind   CellType
	nGates int // number of sigmoid gates, excluding the tanh candidate branch

	// weights: nGates*(Win,Wrec,Bias) followed by candidate's (Win,Wrec,Bias)
	w    []float64
	grad []float64

	// per-timestep cache for backward
	incoming []float64
	hPrev    []float64
	sPrev    []float64
	gates    [][]float64 // [t][k]
	cand     []float64
	retain   []float64
	s        []float64
	h        []float64

	// BPTT carry; reset by Reset, updated by successive Backward calls
	// which the driver MUST invoke in strictly decreasing t order.
	dHNext, dSNext float64
}

func newGatedCell(kind CellType, nGates int) *gatedCell {
	n := 3 * (nGates + 1)
	return &gatedCell{kind: kind, nGates: nGates, w: make([]float64, n), grad: make([]float64, n)}
}

func (c *gatedCell) Type() CellType  { return c.kind }
func (c *gatedCell) NumWeights() int { return len(c.w) }

func (c *gatedCell) GetWeights(out []float64) { copy(out, c.w) }
func (c *gatedCell) SetWeights(in []float64) {
	for i := range c.w {
		c.w[i] = clip(in[i])
	}
}
func (c *gatedCell) WeightGradients(out []float64) { copy(out, c.grad) }

func (c *gatedCell) Reset(timeSteps int) {
	c.incoming = make([]float64, timeSteps)
	c.hPrev = make([]float64, timeSteps)
	c.sPrev = make([]float64, timeSteps)
	c.gates = make([][]float64, timeSteps)
	c.cand = make([]float64, timeSteps)
	c.retain = make([]float64, timeSteps)
	c.s = make([]float64, timeSteps)
	c.h = make([]float64, timeSteps)
	for i := range c.grad {
		c.grad[i] = 0
	}
	c.dHNext, c.dSNext = 0, 0
}

func (c *gatedCell) gateWeight(k int) (win, wrec, bias float64) {
	base := 3 * k
	return c.w[base], c.w[base+1], c.w[base+2]
}

func (c *gatedCell) candWeight() (win, wrec, bias float64) {
	base := 3 * c.nGates
	return c.w[base], c.w[base+1], c.w[base+2]
}

func (c *gatedCell) Forward(t int, incoming float64) float64 {
	var hPrev, sPrev float64
	if t > 0 {
		hPrev, sPrev = c.h[t-1], c.s[t-1]
	}

	gates := make([]float64, c.nGates)
	sum := 0.0
	for k := 0; k < c.nGates; k++ {
		win, wrec, bias := c.gateWeight(k)
		gates[k] = sigmoid(incoming*win + hPrev*wrec + bias)
		sum += gates[k]
	}
	retain := 0.5
	if c.nGates > 0 {
		retain = sum / float64(c.nGates)
	}

	cwin, cwrec, cbias := c.candWeight()
	cand := math.Tanh(incoming*cwin + hPrev*cwrec + cbias)

	s := retain*sPrev + (1-retain)*cand

	var h float64
	if c.nGates >= 2 {
		outGate := gates[c.nGates-1]
		h = outGate * math.Tanh(s)
	} else {
		h = s
	}

	c.incoming[t] = incoming
	c.hPrev[t] = hPrev
	c.sPrev[t] = sPrev
	c.gates[t] = gates
	c.cand[t] = cand
	c.retain[t] = retain
	c.s[t] = s
	c.h[t] = h
	return h
}

func (c *gatedCell) Backward(t int, dOutput float64) float64 {
	dH := dOutput + c.dHNext

	var dSFromH, dOutGate float64
	if c.nGates >= 2 {
		outGate := c.gates[t][c.nGates-1]
		sAct := math.Tanh(c.s[t])
		dOutGate = dH * sAct
		dSFromH = dH * outGate * (1 - sAct*sAct)
	} else {
		dSFromH = dH
	}
	dS := dSFromH + c.dSNext

	retain, sPrev, cand, hPrev := c.retain[t], c.sPrev[t], c.cand[t], c.hPrev[t]
	dRetain := dS * (sPrev - cand)
	dCand := dS * (1 - retain)
	dSPrevFromS := dS * retain

	cwin, cwrec, _ := c.candWeight()
	dPreC := dCand * (1 - cand*cand)
	cbase := 3 * c.nGates
	c.grad[cbase] += dPreC * c.incoming[t]
	c.grad[cbase+1] += dPreC * hPrev
	c.grad[cbase+2] += dPreC
	dIncoming := dPreC * cwin
	dHPrev := dPreC * cwrec

	if c.nGates > 0 {
		dRetainPerGate := dRetain / float64(c.nGates)
		for k := 0; k < c.nGates; k++ {
			dGate := dRetainPerGate
			if c.nGates >= 2 && k == c.nGates-1 {
				dGate += dOutGate
			}
			g := c.gates[t][k]
			dPre := dGate * g * (1 - g)
			win, wrec, _ := c.gateWeight(k)
			base := 3 * k
			c.grad[base] += dPre * c.incoming[t]
			c.grad[base+1] += dPre * hPrev
			c.grad[base+2] += dPre
			dIncoming += dPre * win
			dHPrev += dPre * wrec
		}
	}

	c.dHNext = dHPrev
	c.dSNext = dSPrevFromS
	return dIncoming
}
