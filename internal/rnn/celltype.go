// Package rnn implements the uniform node/edge primitives of the
// recurrent topologies evolved by the search engine: a tagged variant
// of cell kinds dispatching to per-family forward/backward/init
// routines, plus forward and recurrent edges between them.
package rnn

// LayerType identifies a node's role within the DAG.
type LayerType int

const (
	LayerInput LayerType = iota
	LayerHidden
	LayerOutput
)

func (l LayerType) String() string {
	switch l {
	case LayerInput:
		return "input"
	case LayerOutput:
		return "output"
	default:
		return "hidden"
	}
}

// CellType tags the recurrent unit kind a hidden node carries. Input
// and output nodes are always CellSimple (a single pass-through
// weight per incoming/outgoing edge; the cell itself holds no state).
type CellType int

const (
	CellSimple CellType = iota
	CellJordan
	CellElman
	CellLSTM
	CellGRU
	CellMGU
	CellUGRNN
	CellDelta
	CellENARC
	CellENASDAG
	CellRandomDAG
	CellDNAS
	// GP operator cells: fixed scalar functions with no learned gate,
	// used by the genetic-programming seed topologies.
	CellGPSin
	CellGPCos
	CellGPTanh
	CellGPSigmoid
	CellGPInverse
	CellGPSum
	CellGPMultiply
)

func (c CellType) String() string {
	names := map[CellType]string{
		CellSimple: "simple", CellJordan: "jordan", CellElman: "elman",
		CellLSTM: "lstm", CellGRU: "gru", CellMGU: "mgu", CellUGRNN: "ugrnn",
		CellDelta: "delta", CellENARC: "enarc", CellENASDAG: "enas_dag",
		CellRandomDAG: "random_dag", CellDNAS: "dnas",
		CellGPSin: "gp_sin", CellGPCos: "gp_cos", CellGPTanh: "gp_tanh",
		CellGPSigmoid: "gp_sigmoid", CellGPInverse: "gp_inverse",
		CellGPSum: "gp_sum", CellGPMultiply: "gp_multiply",
	}
	if n, ok := names[c]; ok {
		return n
	}
	return "unknown"
}

// IsGPOperator reports whether a cell type is one of the fixed,
// weightless genetic-programming operator cells.
func (c CellType) IsGPOperator() bool {
	return c >= CellGPSin && c <= CellGPMultiply
}

// AggMode selects how a node combines the values carried by its
// enabled incoming edges before handing the result to its cell.
// Every cell family sums its weighted inputs except the GP "multiply"
// operator, which takes their product (spec §4.1: GP operator cells
// are "uniformly a cell with N scalar weights and a forward/backward
// routine" — multiply's routine differs only in how inputs combine).
type AggMode int

const (
	AggSum AggMode = iota
	AggProduct
)

func (c CellType) Aggregation() AggMode {
	if c == CellGPMultiply {
		return AggProduct
	}
	return AggSum
}
