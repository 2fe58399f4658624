package genome

import (
	"math"

	"github.com/examm-go/examm/internal/rnn"
)

// TransferVersion names one of the five rewiring strategies applied
// to freshly-added input/output nodes (spec §4.2 "Transfer learning").
type TransferVersion int

const (
	TransferV1 TransferVersion = iota
	TransferV2
	TransferV3
	TransferV1V2
	TransferV1V3
)

// TransferLearning rewrites g's input/output schema to newInputs and
// newOutputs, preserving every hidden node and every edge whose
// endpoints survive. Parameter names absent from the new schema are
// dropped along with every edge touching them; names present in both
// schemas keep their existing node untouched. Learned edge weights are
// kept only when epigeneticWeights is true; otherwise every edge and
// recurrent-edge weight, old and new, is redrawn from [-0.5, 0.5).
func (g *Genome) TransferLearning(newInputs, newOutputs []string, version TransferVersion, epigeneticWeights bool) {
	keep := map[int64]bool{}
	oldInputs := map[string]*rnn.Node{}
	oldOutputs := map[string]*rnn.Node{}
	for _, n := range g.Nodes {
		if n.Layer == rnn.LayerInput {
			oldInputs[n.ParameterName] = n
		}
		if n.Layer == rnn.LayerOutput {
			oldOutputs[n.ParameterName] = n
		}
		if n.Layer == rnn.LayerHidden {
			keep[n.InnovationNumber] = true
		}
	}

	newInputSet := toSet(newInputs)
	newOutputSet := toSet(newOutputs)

	remaining := make([]*rnn.Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.Layer == rnn.LayerInput && !newInputSet[n.ParameterName] {
			continue // dropped: not in new schema
		}
		if n.Layer == rnn.LayerOutput && !newOutputSet[n.ParameterName] {
			continue
		}
		remaining = append(remaining, n)
		keep[n.InnovationNumber] = true
	}
	g.Nodes = remaining

	freshInputs := make([]*rnn.Node, 0)
	for _, name := range newInputs {
		if _, ok := oldInputs[name]; ok {
			continue
		}
		n := rnn.NewIONode(g.NextInnovation(), rnn.LayerInput, name)
		g.Nodes = append(g.Nodes, n)
		keep[n.InnovationNumber] = true
		freshInputs = append(freshInputs, n)
	}
	freshOutputs := make([]*rnn.Node, 0)
	for _, name := range newOutputs {
		if _, ok := oldOutputs[name]; ok {
			continue
		}
		n := rnn.NewIONode(g.NextInnovation(), rnn.LayerOutput, name)
		g.Nodes = append(g.Nodes, n)
		keep[n.InnovationNumber] = true
		freshOutputs = append(freshOutputs, n)
	}

	keptEdges := make([]*rnn.Edge, 0, len(g.Edges))
	for _, e := range g.Edges {
		if keep[e.SourceInnovation] && keep[e.TargetInnovation] {
			keptEdges = append(keptEdges, e)
		}
	}
	g.Edges = keptEdges
	keptRec := make([]*rnn.RecurrentEdge, 0, len(g.RecurrentEdges))
	for _, e := range g.RecurrentEdges {
		if keep[e.SourceInnovation] && keep[e.TargetInnovation] {
			keptRec = append(keptRec, e)
		}
	}
	g.RecurrentEdges = keptRec

	recurrentFraction := g.enabledRecurrentFraction()
	hidden := make([]*rnn.Node, 0)
	for _, n := range g.Nodes {
		if n.Layer == rnn.LayerHidden {
			hidden = append(hidden, n)
		}
	}

	currentInputs := make([]*rnn.Node, 0)
	currentOutputs := make([]*rnn.Node, 0)
	for _, n := range g.Nodes {
		if n.Layer == rnn.LayerInput {
			currentInputs = append(currentInputs, n)
		}
		if n.Layer == rnn.LayerOutput {
			currentOutputs = append(currentOutputs, n)
		}
	}

	allNew := append(append([]*rnn.Node{}, freshInputs...), freshOutputs...)
	applyV1 := version == TransferV1 || version == TransferV1V2 || version == TransferV1V3
	applyV2 := version == TransferV2 || version == TransferV1V2
	applyV3 := version == TransferV3 || version == TransferV1V3

	if applyV1 {
		// every new input connects to every current output, and every
		// new output connects to every current input (spec §4.2 "v1"),
		// not just the new-to-new subset — a fresh input/output pair
		// hit by both loops is wired once.
		wired := map[[2]int64]bool{}
		wire := func(in, out *rnn.Node) {
			key := [2]int64{in.InnovationNumber, out.InnovationNumber}
			if wired[key] {
				return
			}
			wired[key] = true
			g.wireTransferPair(in, out, recurrentFraction)
		}
		for _, in := range freshInputs {
			for _, out := range currentOutputs {
				wire(in, out)
			}
		}
		for _, out := range freshOutputs {
			for _, in := range currentInputs {
				wire(in, out)
			}
		}
	}
	if applyV2 {
		subsetSize := gaussianSubsetSize(g.rng.Float64(), len(hidden))
		for _, n := range allNew {
			shuffleNodes(g.rng, hidden)
			for i := 0; i < subsetSize && i < len(hidden); i++ {
				g.wireTransferIOHidden(n, hidden[i], recurrentFraction)
			}
		}
	}
	if applyV3 {
		for _, n := range allNew {
			for _, h := range hidden {
				g.wireTransferIOHidden(n, h, recurrentFraction)
			}
		}
	}

	g.sortNodesAndEdges()
	g.AssignReachability()

	// any new I/O node still missing an edge gets one injected against
	// the first node of the hidden list (shuffled if v2 ran), or against
	// the first fresh node of the opposite I/O side if no hidden exists
	for _, n := range allNew {
		if g.nodeHasNoEdges(n) {
			if len(hidden) > 0 {
				g.wireTransferIOHidden(n, hidden[0], recurrentFraction)
			} else if n.Layer == rnn.LayerInput && len(freshOutputs) > 0 {
				g.wireTransferPair(n, freshOutputs[0], recurrentFraction)
			} else if n.Layer == rnn.LayerOutput && len(freshInputs) > 0 {
				g.wireTransferPair(freshInputs[0], n, recurrentFraction)
			}
		}
	}
	g.sortNodesAndEdges()
	g.AssignReachability()

	if !epigeneticWeights {
		for _, e := range g.Edges {
			e.SetWeight(-0.5 + g.rng.Float64())
		}
		for _, e := range g.RecurrentEdges {
			e.SetWeight(-0.5 + g.rng.Float64())
		}
	}
	g.InputParameterNames = append([]string(nil), newInputs...)
	g.OutputParameterNames = append([]string(nil), newOutputs...)
}

func toSet(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

func (g *Genome) enabledRecurrentFraction() float64 {
	total := len(g.Edges) + len(g.RecurrentEdges)
	if total == 0 {
		return 0
	}
	enabledRec := 0
	for _, e := range g.RecurrentEdges {
		if e.Enabled {
			enabledRec++
		}
	}
	return float64(enabledRec) / float64(total)
}

func (g *Genome) nodeHasNoEdges(n *rnn.Node) bool {
	for _, e := range g.Edges {
		if e.SourceInnovation == n.InnovationNumber || e.TargetInnovation == n.InnovationNumber {
			return false
		}
	}
	for _, e := range g.RecurrentEdges {
		if e.SourceInnovation == n.InnovationNumber || e.TargetInnovation == n.InnovationNumber {
			return false
		}
	}
	return true
}

// wireTransferPair wires src->dst, choosing a forward or recurrent
// edge with probability recurrentFraction and falling back to a
// recurrent edge of depth 1 when a forward edge would violate the
// depth(src) < depth(dst) invariant.
func (g *Genome) wireTransferPair(src, dst *rnn.Node, recurrentFraction float64) {
	if g.rng.Float64() < recurrentFraction || src.Depth >= dst.Depth {
		g.RecurrentEdges = append(g.RecurrentEdges, &rnn.RecurrentEdge{
			InnovationNumber: g.NextInnovation(), SourceInnovation: src.InnovationNumber,
			TargetInnovation: dst.InnovationNumber, RecurrentDepth: 1,
			Weight: weightDraw(g, 0, 0), Enabled: true})
		return
	}
	g.addEdgeAuto(src, dst, weightDraw(g, 0, 0))
}

func (g *Genome) wireTransferIOHidden(ioNode, hidden *rnn.Node, recurrentFraction float64) {
	if ioNode.Layer == rnn.LayerInput {
		g.wireTransferPair(ioNode, hidden, recurrentFraction)
	} else {
		g.wireTransferPair(hidden, ioNode, recurrentFraction)
	}
}

// gaussianSubsetSize maps u in [0, 1) to a subset size in [1, n] as
// int(|2u-1|*n)+1, capped at n. For a uniform u every size is about
// equally likely; the size is not drawn from a Gaussian.
func gaussianSubsetSize(u float64, n int) int {
	if n == 0 {
		return 0
	}
	frac := math.Abs(u*2 - 1)
	size := int(frac*float64(n)) + 1
	if size > n {
		size = n
	}
	return size
}
