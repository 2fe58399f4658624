// Package genome implements the typed DAG of recurrent nodes and
// edges that the search engine evolves: structural hashing,
// reachability analysis, mutation and crossover operators, binary
// (de)serialization and transfer-learning rewrite (spec §3, §4.2).
package genome

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/examm-go/examm/internal/rnn"
)

// EXAMMMaxDouble is the sentinel "worst possible" fitness assigned to
// freshly-seeded genomes before they have ever been evaluated (spec §8
// scenario 1).
const EXAMMMaxDouble = 1.0e12

// ErrOutputsUnreachable is returned by mutation/crossover callers when
// the produced candidate fails the reachability invariant; callers are
// expected to discard and retry (spec §4.2, §7).
var ErrOutputsUnreachable = errors.New("genome: one or more outputs are not backward-reachable")

// Genome owns its nodes and edges exclusively (spec §3 "Genome").
type Genome struct {
	Nodes          []*rnn.Node
	Edges          []*rnn.Edge
	RecurrentEdges []*rnn.RecurrentEdge

	InputParameterNames  []string
	OutputParameterNames []string

	GroupID      int   // island id
	GenerationID int64 // minted monotonically by the owning strategy

	BPIterations       int
	Dropout            bool
	DropoutProbability float64
	LogFilename        string
	RNGState           string

	InitialParameters []float64
	BestParameters    []float64
	BestValidationMSE float64
	BestValidationMAE float64

	NormalizeType string
	Mins          map[string]float64
	Maxs          map[string]float64
	Avgs          map[string]float64
	StdDevs       map[string]float64

	TrainingIndices []int32

	// Fitness mirrors BestValidationMSE; NaN marks a dead genome
	// (spec §4.2 Backpropagation: NaN/inf gradient aborts a run).
	Fitness float64

	structuralHash       string
	totalInputs          int
	totalOutputs         int

	innovationCounter *int64 // shared across a lineage so new structure gets fresh ids
	rng               *rand.Rand
}

// NewSeedGenome builds the minimal genome satisfying an input/output
// schema: one input node per name, one output node per name, and
// hiddenPerLayer hidden nodes of the requested cell type in each of
// numHiddenLayers layers, fully connected input->hidden->output (a
// standard seed topology, spec §6 "rnn_type"/"num_hidden_layers").
// Edge weights are drawn uniformly from [-0.5, 0.5) by the genome's
// own RNG, so different seeds give different weights.
func NewSeedGenome(inputNames, outputNames []string, hiddenCellType rnn.CellType, numHiddenLayers, hiddenPerLayer int, seed uint64) *Genome {
	g := newEmptyGenome(seed)
	var nextInn int64 = 1

	inputs := make([]*rnn.Node, len(inputNames))
	for i, name := range inputNames {
		inputs[i] = rnn.NewIONode(nextInn, rnn.LayerInput, name)
		nextInn++
		g.Nodes = append(g.Nodes, inputs[i])
	}
	outputs := make([]*rnn.Node, len(outputNames))
	for i, name := range outputNames {
		outputs[i] = rnn.NewIONode(nextInn, rnn.LayerOutput, name)
		nextInn++
		g.Nodes = append(g.Nodes, outputs[i])
	}

	prevLayer := inputs
	for layer := 0; layer < numHiddenLayers; layer++ {
		depth := float64(layer+1) / float64(numHiddenLayers+1)
		thisLayer := make([]*rnn.Node, hiddenPerLayer)
		for i := 0; i < hiddenPerLayer; i++ {
			n := rnn.NewNode(nextInn, hiddenCellType, depth)
			nextInn++
			g.Nodes = append(g.Nodes, n)
			thisLayer[i] = n
		}
		for _, src := range prevLayer {
			for _, dst := range thisLayer {
				g.addForwardEdge(&nextInn, src, dst, -0.5+g.rng.Float64())
			}
		}
		prevLayer = thisLayer
	}
	for _, src := range prevLayer {
		for _, dst := range outputs {
			g.addForwardEdge(&nextInn, src, dst, -0.5+g.rng.Float64())
		}
	}

	counter := nextInn
	g.innovationCounter = &counter
	g.InputParameterNames = append([]string(nil), inputNames...)
	g.OutputParameterNames = append([]string(nil), outputNames...)
	g.Fitness = EXAMMMaxDouble
	g.NormalizeType = "min_max"
	g.Mins, g.Maxs, g.Avgs, g.StdDevs = map[string]float64{}, map[string]float64{}, map[string]float64{}, map[string]float64{}
	g.sortNodesAndEdges()
	g.AssignReachability()
	return g
}

func newEmptyGenome(seed uint64) *Genome {
	return &Genome{
		rng:      rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)),
		RNGState: uuid.NewString(),
	}
}

func (g *Genome) addForwardEdge(counter *int64, src, dst *rnn.Node, weight float64) *rnn.Edge {
	e := &rnn.Edge{InnovationNumber: *counter, SourceInnovation: src.InnovationNumber,
		TargetInnovation: dst.InnovationNumber, Weight: weight, Enabled: true}
	*counter++
	g.Edges = append(g.Edges, e)
	return e
}

// addEdgeAuto mints its innovation number from the genome's shared
// counter; used by every mutation operator once a genome is past
// initial construction.
func (g *Genome) addEdgeAuto(src, dst *rnn.Node, weight float64) *rnn.Edge {
	e := &rnn.Edge{InnovationNumber: g.NextInnovation(), SourceInnovation: src.InnovationNumber,
		TargetInnovation: dst.InnovationNumber, Weight: weight, Enabled: true}
	g.Edges = append(g.Edges, e)
	return e
}

// NextInnovation mints a fresh innovation number for this genome's
// lineage (node or edge id-space is shared, matching the originating
// implementation's single counter per genome).
func (g *Genome) NextInnovation() int64 {
	if g.innovationCounter == nil {
		max := int64(0)
		for _, n := range g.Nodes {
			if n.InnovationNumber > max {
				max = n.InnovationNumber
			}
		}
		c := max + 1
		g.innovationCounter = &c
	}
	id := *g.innovationCounter
	*g.innovationCounter++
	return id
}

func (g *Genome) Rand() *rand.Rand { return g.rng }

func (g *Genome) nodeByInnovation(inn int64) *rnn.Node {
	for _, n := range g.Nodes {
		if n.InnovationNumber == inn {
			return n
		}
	}
	return nil
}

func (g *Genome) sortNodesAndEdges() {
	sort.Slice(g.Nodes, func(i, j int) bool { return g.Nodes[i].InnovationNumber < g.Nodes[j].InnovationNumber })
	sort.Slice(g.Edges, func(i, j int) bool { return g.Edges[i].InnovationNumber < g.Edges[j].InnovationNumber })
	sort.Slice(g.RecurrentEdges, func(i, j int) bool {
		return g.RecurrentEdges[i].InnovationNumber < g.RecurrentEdges[j].InnovationNumber
	})
}

// NumWeights returns the total scalar parameter count: every node's
// weights plus one weight per edge and per recurrent edge, which is
// len(GetParameters()).
func (g *Genome) NumWeights() int {
	n := 0
	for _, node := range g.Nodes {
		n += node.NumWeights()
	}
	n += len(g.Edges) + len(g.RecurrentEdges)
	return n
}

// GetParameters flattens every node weight followed by every edge and
// recurrent-edge weight into one vector — the genome's parameter
// space for backprop.
func (g *Genome) GetParameters() []float64 {
	flat := make([]float64, g.NumWeights())
	offset := 0
	for _, n := range g.Nodes {
		offset = n.GetWeights(offset, flat)
	}
	for _, e := range g.Edges {
		flat[offset] = e.Weight
		offset++
	}
	for _, e := range g.RecurrentEdges {
		flat[offset] = e.Weight
		offset++
	}
	return flat
}

// SetParameters is the inverse of GetParameters.
func (g *Genome) SetParameters(flat []float64) error {
	if len(flat) != g.NumWeights() {
		return errors.Errorf("genome: parameter count mismatch, have %d want %d", len(flat), g.NumWeights())
	}
	offset := 0
	for _, n := range g.Nodes {
		offset = n.SetWeights(offset, flat)
	}
	for _, e := range g.Edges {
		e.SetWeight(flat[offset])
		offset++
	}
	for _, e := range g.RecurrentEdges {
		e.SetWeight(flat[offset])
		offset++
	}
	return nil
}

// AssignReachability runs the two BFS passes (forward from enabled
// inputs, backward from enabled outputs over enabled edges and
// recurrent edges) and sets each node/edge's Forward/BackwardReachable
// flags (spec §4.2 "Reachability").
func (g *Genome) AssignReachability() {
	for _, n := range g.Nodes {
		n.ForwardReachable, n.BackwardReachable = false, false
	}
	for _, e := range g.Edges {
		e.ForwardReachable, e.BackwardReachable = false, false
	}
	for _, e := range g.RecurrentEdges {
		e.ForwardReachable, e.BackwardReachable = false, false
	}

	byInn := map[int64]*rnn.Node{}
	for _, n := range g.Nodes {
		byInn[n.InnovationNumber] = n
	}

	// forward pass: BFS from enabled inputs along enabled (recurrent)
	// edges
	forwardSet := map[int64]bool{}
	queue := []int64{}
	for _, n := range g.Nodes {
		if n.Layer == rnn.LayerInput && n.Enabled {
			forwardSet[n.InnovationNumber] = true
			queue = append(queue, n.InnovationNumber)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range g.Edges {
			if !e.Enabled || e.SourceInnovation != cur {
				continue
			}
			if !forwardSet[e.TargetInnovation] {
				forwardSet[e.TargetInnovation] = true
				queue = append(queue, e.TargetInnovation)
			}
		}
		for _, e := range g.RecurrentEdges {
			if !e.Enabled || e.SourceInnovation != cur {
				continue
			}
			if !forwardSet[e.TargetInnovation] {
				forwardSet[e.TargetInnovation] = true
				queue = append(queue, e.TargetInnovation)
			}
		}
	}

	// backward pass: BFS from enabled outputs against enabled edges
	backwardSet := map[int64]bool{}
	queue = nil
	for _, n := range g.Nodes {
		if n.Layer == rnn.LayerOutput && n.Enabled {
			backwardSet[n.InnovationNumber] = true
			queue = append(queue, n.InnovationNumber)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range g.Edges {
			if !e.Enabled || e.TargetInnovation != cur {
				continue
			}
			if !backwardSet[e.SourceInnovation] {
				backwardSet[e.SourceInnovation] = true
				queue = append(queue, e.SourceInnovation)
			}
		}
		for _, e := range g.RecurrentEdges {
			if !e.Enabled || e.TargetInnovation != cur {
				continue
			}
			if !backwardSet[e.SourceInnovation] {
				backwardSet[e.SourceInnovation] = true
				queue = append(queue, e.SourceInnovation)
			}
		}
	}

	totalIn, totalOut := 0, 0
	for _, n := range g.Nodes {
		n.ForwardReachable = forwardSet[n.InnovationNumber]
		n.BackwardReachable = backwardSet[n.InnovationNumber]
		if n.Layer == rnn.LayerInput && n.Reachable() {
			totalIn++
		}
		if n.Layer == rnn.LayerOutput && n.Reachable() {
			totalOut++
		}
	}
	for _, e := range g.Edges {
		e.ForwardReachable = forwardSet[e.SourceInnovation] && byInn[e.SourceInnovation].Enabled
		e.BackwardReachable = backwardSet[e.TargetInnovation] && byInn[e.TargetInnovation].Enabled
	}
	for _, e := range g.RecurrentEdges {
		e.ForwardReachable = forwardSet[e.SourceInnovation] && byInn[e.SourceInnovation].Enabled
		e.BackwardReachable = backwardSet[e.TargetInnovation] && byInn[e.TargetInnovation].Enabled
	}
	g.totalInputs, g.totalOutputs = totalIn, totalOut
	g.recomputeStructuralHash()
}

func (g *Genome) TotalInputs() int  { return g.totalInputs }
func (g *Genome) TotalOutputs() int { return g.totalOutputs }

// OutputsUnreachable reports true if any enabled output node is not
// backward-reachable — the rejection condition every mutation and
// crossover caller must check (spec §3 invariant, §7).
func (g *Genome) OutputsUnreachable() bool {
	for _, n := range g.Nodes {
		if n.Layer == rnn.LayerOutput && n.Enabled && !n.Reachable() {
			return true
		}
	}
	return false
}

// recomputeStructuralHash implements spec §3's definition exactly:
// concatenation of (sum of reachable-enabled node innovation numbers,
// same for forward edges, same for recurrent edges).
func (g *Genome) recomputeStructuralHash() {
	var nodeSum, edgeSum, recSum int64
	for _, n := range g.Nodes {
		if n.Enabled && n.Reachable() {
			nodeSum += n.InnovationNumber
		}
	}
	for _, e := range g.Edges {
		if e.Enabled && e.Reachable() {
			edgeSum += e.InnovationNumber
		}
	}
	for _, e := range g.RecurrentEdges {
		if e.Enabled && e.Reachable() {
			recSum += e.InnovationNumber
		}
	}
	g.structuralHash = fmt.Sprintf("%d_%d_%d", nodeSum, edgeSum, recSum)
}

// StructuralHash returns the cached coarse fingerprint used for O(1)
// duplicate screening by the population (spec GLOSSARY).
func (g *Genome) StructuralHash() string { return g.structuralHash }

// StructurallyEqual compares two genomes innovation-number-wise and
// weight-aware (spec §3 "equality is structural... and weight-aware").
func (g *Genome) StructurallyEqual(o *Genome) bool {
	if g.StructuralHash() != o.StructuralHash() {
		return false
	}
	if len(g.Nodes) != len(o.Nodes) || len(g.Edges) != len(o.Edges) || len(g.RecurrentEdges) != len(o.RecurrentEdges) {
		return false
	}
	oNodes := map[int64]*rnn.Node{}
	for _, n := range o.Nodes {
		oNodes[n.InnovationNumber] = n
	}
	for _, n := range g.Nodes {
		on, ok := oNodes[n.InnovationNumber]
		if !ok || on.Enabled != n.Enabled {
			return false
		}
	}
	oEdges := map[int64]*rnn.Edge{}
	for _, e := range o.Edges {
		oEdges[e.InnovationNumber] = e
	}
	for _, e := range g.Edges {
		oe, ok := oEdges[e.InnovationNumber]
		if !ok || oe.Enabled != e.Enabled || oe.Weight != e.Weight {
			return false
		}
	}
	oRec := map[int64]*rnn.RecurrentEdge{}
	for _, e := range o.RecurrentEdges {
		oRec[e.InnovationNumber] = e
	}
	for _, e := range g.RecurrentEdges {
		oe, ok := oRec[e.InnovationNumber]
		if !ok || oe.Enabled != e.Enabled || oe.Weight != e.Weight {
			return false
		}
	}
	return true
}

// Copy performs a deep structural+weight copy, including a fresh RNG
// seeded independently (spec §3 "Created by mutation, crossover,
// seeding, or deserialization").
func (g *Genome) Copy() *Genome {
	cp := &Genome{
		InputParameterNames:  append([]string(nil), g.InputParameterNames...),
		OutputParameterNames: append([]string(nil), g.OutputParameterNames...),
		GroupID:              g.GroupID,
		GenerationID:         g.GenerationID,
		BPIterations:         g.BPIterations,
		Dropout:              g.Dropout,
		DropoutProbability:   g.DropoutProbability,
		LogFilename:          g.LogFilename,
		RNGState:             uuid.NewString(),
		BestValidationMSE:    g.BestValidationMSE,
		BestValidationMAE:    g.BestValidationMAE,
		NormalizeType:        g.NormalizeType,
		Fitness:              g.Fitness,
		rng:                  rand.New(rand.NewPCG(g.rng.Uint64(), g.rng.Uint64())),
	}
	cp.Mins, cp.Maxs, cp.Avgs, cp.StdDevs = cloneMap(g.Mins), cloneMap(g.Maxs), cloneMap(g.Avgs), cloneMap(g.StdDevs)
	cp.InitialParameters = append([]float64(nil), g.InitialParameters...)
	cp.BestParameters = append([]float64(nil), g.BestParameters...)
	cp.TrainingIndices = append([]int32(nil), g.TrainingIndices...)
	for _, n := range g.Nodes {
		cp.Nodes = append(cp.Nodes, n.Copy())
	}
	for _, e := range g.Edges {
		ce := *e
		cp.Edges = append(cp.Edges, &ce)
	}
	for _, e := range g.RecurrentEdges {
		ce := *e
		cp.RecurrentEdges = append(cp.RecurrentEdges, &ce)
	}
	if g.innovationCounter != nil {
		c := *g.innovationCounter
		cp.innovationCounter = &c
	}
	cp.AssignReachability()
	return cp
}

func cloneMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
