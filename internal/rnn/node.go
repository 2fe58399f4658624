package rnn

// Node is a single vertex of the genome DAG: a stable innovation
// number, a layer role, a cell-type tag dispatching to the uniform
// Cell interface, a depth in [0,1], an enabled flag, and — for
// input/output nodes only — the schema parameter name it binds to
// (spec §3 "Node").
type Node struct {
	InnovationNumber int64
	Layer            LayerType
	Type             CellType
	Depth            float64
	Enabled          bool
	ParameterName    string // only meaningful for LayerInput/LayerOutput

	ForwardReachable  bool
	BackwardReachable bool

	cell Cell
}

// Reachable is both forward- and backward-reachable (spec GLOSSARY).
func (n *Node) Reachable() bool { return n.ForwardReachable && n.BackwardReachable }

// NewNode constructs a hidden node of the given cell type at depth d.
func NewNode(innovation int64, cellType CellType, depth float64) *Node {
	n := &Node{InnovationNumber: innovation, Layer: LayerHidden, Type: cellType, Depth: depth, Enabled: true}
	n.cell = NewCell(cellType)
	return n
}

// NewIONode constructs an input (depth 0) or output (depth 1) node
// bound to parameterName. I/O nodes always carry an identity cell:
// their value is whatever the schema feeds in, or whatever the DAG
// sums into them.
func NewIONode(innovation int64, layer LayerType, parameterName string) *Node {
	depth := 0.0
	if layer == LayerOutput {
		depth = 1.0
	}
	n := &Node{InnovationNumber: innovation, Layer: layer, Type: CellSimple, Depth: depth,
		Enabled: true, ParameterName: parameterName}
	n.cell = newSimpleCell(true)
	return n
}

func (n *Node) NumWeights() int { return n.cell.NumWeights() }

func (n *Node) GetWeights(offset int, flat []float64) int {
	w := make([]float64, n.cell.NumWeights())
	n.cell.GetWeights(w)
	copy(flat[offset:], w)
	return offset + len(w)
}

func (n *Node) SetWeights(offset int, flat []float64) int {
	count := n.cell.NumWeights()
	n.cell.SetWeights(flat[offset : offset+count])
	return offset + count
}

func (n *Node) Reset(timeSteps int) { n.cell.Reset(timeSteps) }

// Forward aggregates already-edge-weighted inputs according to the
// node's cell aggregation mode and hands the combined signal to the
// cell.
func (n *Node) Forward(t int, inputs []float64) float64 {
	var agg float64
	switch n.Type.Aggregation() {
	case AggProduct:
		agg = 1.0
		for _, v := range inputs {
			agg *= v
		}
		if len(inputs) == 0 {
			agg = 0
		}
	default:
		for _, v := range inputs {
			agg += v
		}
	}
	return n.cell.Forward(t, agg)
}

// Backward propagates dOutput (external error at this node/time) back
// through the cell, returning the gradient to distribute, unchanged,
// to every enabled incoming edge (since forward aggregation is a sum
// or product whose per-edge gradient the caller derives from the
// edge's own contribution).
func (n *Node) Backward(t int, dOutput float64) float64 {
	return n.cell.Backward(t, dOutput)
}

func (n *Node) WeightGradients(out []float64) { n.cell.WeightGradients(out) }

// Copy returns a deep copy of the node, including a fresh cell with
// the same weights.
func (n *Node) Copy() *Node {
	cp := &Node{
		InnovationNumber: n.InnovationNumber, Layer: n.Layer, Type: n.Type, Depth: n.Depth,
		Enabled: n.Enabled, ParameterName: n.ParameterName,
		ForwardReachable: n.ForwardReachable, BackwardReachable: n.BackwardReachable,
	}
	cp.cell = NewCell(n.Type)
	if n.Layer != LayerHidden {
		cp.cell = newSimpleCell(true)
	}
	w := make([]float64, n.cell.NumWeights())
	n.cell.GetWeights(w)
	cp.cell.SetWeights(w)
	return cp
}
