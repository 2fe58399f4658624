// Package backprop implements the time-unrolled forward/backward
// training driver over a genome's node/edge DAG: batch and stochastic
// backpropagation modes, MSE/softmax error, a pluggable stateful
// weight-update method, gradient-norm clipping, and best_parameters
// argmin tracking (spec §4.2 "Backpropagation").
package backprop

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/examm-go/examm/internal/genome"
	"github.com/examm-go/examm/internal/rnn"
)

// Series is one training/validation sequence: Inputs[t][i] feeds input
// node i at time step t, Outputs[t][j] is the target for output node j.
type Series struct {
	Inputs  [][]float64
	Outputs [][]float64
}

// order is the topological order (by depth, then innovation number)
// used for both forward and backward passes — ties broken by
// innovation number so the order is deterministic across runs (spec
// §4.1 "nodes are ordered by depth").
type order struct {
	forward []*rnn.Node // ascending depth
	byInn   map[int64]*rnn.Node
}

func buildOrder(g *genome.Genome) *order {
	nodes := append([]*rnn.Node(nil), g.Nodes...)
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Depth != nodes[j].Depth {
			return nodes[i].Depth < nodes[j].Depth
		}
		return nodes[i].InnovationNumber < nodes[j].InnovationNumber
	})
	byInn := make(map[int64]*rnn.Node, len(nodes))
	for _, n := range nodes {
		byInn[n.InnovationNumber] = n
	}
	return &order{forward: nodes, byInn: byInn}
}

// runner holds the per-call working state for a single series'
// forward+backward pass: cached per-node, per-timestep outputs and the
// incoming-edge lists needed to walk the DAG both directions.
type runner struct {
	g        *genome.Genome
	ord      *order
	incoming map[int64][]*rnn.Edge
	outgoing map[int64][]*rnn.Edge
	incRec   map[int64][]*rnn.RecurrentEdge
	outRec   map[int64][]*rnn.RecurrentEdge

	output map[int64][]float64 // node innovation -> per-timestep output
}

func newRunner(g *genome.Genome) *runner {
	r := &runner{
		g:        g,
		ord:      buildOrder(g),
		incoming: map[int64][]*rnn.Edge{},
		outgoing: map[int64][]*rnn.Edge{},
		incRec:   map[int64][]*rnn.RecurrentEdge{},
		outRec:   map[int64][]*rnn.RecurrentEdge{},
		output:   map[int64][]float64{},
	}
	for _, e := range g.Edges {
		if !e.Enabled || !e.Reachable() {
			continue
		}
		r.incoming[e.TargetInnovation] = append(r.incoming[e.TargetInnovation], e)
		r.outgoing[e.SourceInnovation] = append(r.outgoing[e.SourceInnovation], e)
	}
	for _, e := range g.RecurrentEdges {
		if !e.Enabled || !e.Reachable() {
			continue
		}
		r.incRec[e.TargetInnovation] = append(r.incRec[e.TargetInnovation], e)
		r.outRec[e.SourceInnovation] = append(r.outRec[e.SourceInnovation], e)
	}
	return r
}

// forward runs the unrolled pass over series.Inputs, writing each
// node's per-timestep output into r.output and returning the output
// nodes' predicted sequences in OutputParameterNames order.
func (r *runner) forward(series *Series) [][]float64 {
	n := len(series.Inputs)
	for _, node := range r.ord.forward {
		node.Reset(n)
		r.output[node.InnovationNumber] = make([]float64, n)
	}

	inputIdx := map[string]int{}
	for i, name := range r.g.InputParameterNames {
		inputIdx[name] = i
	}

	for t := 0; t < n; t++ {
		for _, node := range r.ord.forward {
			if node.Layer == rnn.LayerInput {
				idx := inputIdx[node.ParameterName]
				r.output[node.InnovationNumber][t] = node.Forward(t, []float64{series.Inputs[t][idx]})
				continue
			}
			var inputs []float64
			for _, e := range r.incoming[node.InnovationNumber] {
				inputs = append(inputs, r.output[e.SourceInnovation][t]*e.Weight)
			}
			for _, e := range r.incRec[node.InnovationNumber] {
				srcT := t - e.RecurrentDepth
				if srcT < 0 {
					continue
				}
				inputs = append(inputs, r.output[e.SourceInnovation][srcT]*e.Weight)
			}
			r.output[node.InnovationNumber][t] = node.Forward(t, inputs)
		}
	}

	outputs := make([][]float64, n)
	for t := 0; t < n; t++ {
		outputs[t] = make([]float64, len(r.g.OutputParameterNames))
	}
	for _, node := range r.ord.forward {
		if node.Layer != rnn.LayerOutput {
			continue
		}
		col := outputIndex(r.g, node.ParameterName)
		for t := 0; t < n; t++ {
			outputs[t][col] = r.output[node.InnovationNumber][t]
		}
	}
	return outputs
}

// Predict runs a forward-only pass over series and returns the
// predicted output sequence in OutputParameterNames order, for
// prediction-CSV writing and naive-baseline comparison (no gradient
// bookkeeping, no genome mutation).
func Predict(g *genome.Genome, series *Series) [][]float64 {
	r := newRunner(g)
	return r.forward(series)
}

func outputIndex(g *genome.Genome, name string) int {
	for i, n := range g.OutputParameterNames {
		if n == name {
			return i
		}
	}
	return -1
}

// backward runs MSE (or softmax, when useSoftmax is set) error
// backward through time, accumulating per-parameter gradients into
// grad (laid out exactly as genome.GetParameters: node weights, then
// edges, then recurrent edges) and returning the scalar error.
func (r *runner) backward(series *Series, useSoftmax bool, grad []float64) float64 {
	n := len(series.Outputs)
	dOutput := map[int64][]float64{}
	for _, node := range r.ord.forward {
		dOutput[node.InnovationNumber] = make([]float64, n)
	}

	var totalError float64
	outputNodes := map[int64]int{}
	for _, node := range r.ord.forward {
		if node.Layer == rnn.LayerOutput {
			outputNodes[node.InnovationNumber] = outputIndex(r.g, node.ParameterName)
		}
	}

	if useSoftmax {
		for t := 0; t < n; t++ {
			probs := softmaxRow(r, outputNodes, t)
			for inn, col := range outputNodes {
				target := series.Outputs[t][col]
				totalError -= target * math.Log(probs[inn]+1e-12)
				dOutput[inn][t] += probs[inn] - target
			}
		}
	} else {
		for t := 0; t < n; t++ {
			for inn, col := range outputNodes {
				pred := r.output[inn][t]
				target := series.Outputs[t][col]
				diff := pred - target
				totalError += diff * diff
				dOutput[inn][t] += 2 * diff / float64(n)
			}
		}
	}

	// reverse topological order, reverse time: a node runs Backward
	// after every node later in the order has pushed its error back
	// through the edges into it. Error that a recurrent edge carries to
	// a source at or after its target in this order (a self-loop, or a
	// loop from a deeper node back to a shallower one) arrives after
	// that source has run and goes no further back.
	dInputAgg := map[int64][]float64{}
	for _, node := range r.ord.forward {
		dInputAgg[node.InnovationNumber] = make([]float64, n)
	}
	edgeOffset, recEdgeOffset := edgeParamOffsets(r.g)
	for i := len(r.ord.forward) - 1; i >= 0; i-- {
		node := r.ord.forward[i]
		if node.Layer == rnn.LayerInput {
			continue
		}
		for t := n - 1; t >= 0; t-- {
			dAgg := node.Backward(t, dOutput[node.InnovationNumber][t])
			dInputAgg[node.InnovationNumber][t] = dAgg
		}
		for _, e := range r.incoming[node.InnovationNumber] {
			off := edgeOffset[e.InnovationNumber]
			for t := 0; t < n; t++ {
				dAgg := dInputAgg[node.InnovationNumber][t]
				srcOut := r.output[e.SourceInnovation][t]
				grad[off] += dAgg * srcOut
				dOutput[e.SourceInnovation][t] += dAgg * e.Weight
			}
		}
		for _, e := range r.incRec[node.InnovationNumber] {
			off := recEdgeOffset[e.InnovationNumber]
			for t := 0; t < n; t++ {
				srcT := t - e.RecurrentDepth
				if srcT < 0 {
					continue
				}
				dAgg := dInputAgg[node.InnovationNumber][t]
				srcOut := r.output[e.SourceInnovation][srcT]
				grad[off] += dAgg * srcOut
				dOutput[e.SourceInnovation][srcT] += dAgg * e.Weight
			}
		}
	}

	offset := 0
	for _, node := range r.g.Nodes {
		w := node.NumWeights()
		if w > 0 {
			wg := make([]float64, w)
			node.WeightGradients(wg)
			copy(grad[offset:offset+w], wg)
		}
		offset += w
	}

	return totalError
}

func softmaxRow(r *runner, outputNodes map[int64]int, t int) map[int64]float64 {
	maxV := math.Inf(-1)
	for inn := range outputNodes {
		if v := r.output[inn][t]; v > maxV {
			maxV = v
		}
	}
	sum := 0.0
	exp := map[int64]float64{}
	for inn := range outputNodes {
		e := math.Exp(r.output[inn][t] - maxV)
		exp[inn] = e
		sum += e
	}
	probs := map[int64]float64{}
	for inn, e := range exp {
		probs[inn] = e / sum
	}
	return probs
}

// edgeParamOffsets maps every edge/recurrent-edge innovation number to
// its flat-parameter index, matching genome.GetParameters' layout
// exactly (node weights, then Edges, then RecurrentEdges, each in
// their stored order).
func edgeParamOffsets(g *genome.Genome) (edge, recEdge map[int64]int) {
	offset := 0
	for _, n := range g.Nodes {
		offset += n.NumWeights()
	}
	edge = make(map[int64]int, len(g.Edges))
	for i, e := range g.Edges {
		edge[e.InnovationNumber] = offset + i
	}
	offset += len(g.Edges)
	recEdge = make(map[int64]int, len(g.RecurrentEdges))
	for i, e := range g.RecurrentEdges {
		recEdge[e.InnovationNumber] = offset + i
	}
	return edge, recEdge
}

// MSE computes mean squared error of g's current parameters over
// series, forward pass only.
func MSE(g *genome.Genome, series []*Series) float64 {
	if len(series) == 0 {
		return 0
	}
	var total float64
	var count int
	for _, s := range series {
		r := newRunner(g)
		pred := r.forward(s)
		for t := range pred {
			for j := range pred[t] {
				diff := pred[t][j] - s.Outputs[t][j]
				total += diff * diff
				count++
			}
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// MAE computes mean absolute error analogously to MSE.
func MAE(g *genome.Genome, series []*Series) float64 {
	if len(series) == 0 {
		return 0
	}
	var total float64
	var count int
	for _, s := range series {
		r := newRunner(g)
		pred := r.forward(s)
		for t := range pred {
			for j := range pred[t] {
				total += math.Abs(pred[t][j] - s.Outputs[t][j])
				count++
			}
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// GradientNorm returns the L2 norm of grad (spec §4.2 "norm-clipped
// gradient").
func GradientNorm(grad []float64) float64 {
	var sum float64
	for _, v := range grad {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// ClipGradient rescales grad in place to have norm<=threshold if norm
// exceeds it; a no-op otherwise.
func ClipGradient(grad []float64, norm, threshold float64) {
	if threshold <= 0 || norm <= threshold {
		return
	}
	scale := threshold / norm
	for i := range grad {
		grad[i] *= scale
	}
}

var errBadSeries = errors.New("backprop: series input/output width does not match genome schema")
