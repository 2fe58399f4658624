package genome

import (
	"math"

	"github.com/examm-go/examm/internal/rnn"
)

// Crossover aligns more and less by innovation number and produces a
// child: genes present in both parents get a weight at a uniform
// random point between the two parents' weights (see blendWeight),
// genes unique to `more` (the fitter parent by caller convention) are
// always inherited, and genes unique to `less` are each inherited with
// probability inheritLessUniqueProb (spec §4.2 "Crossover").
//
// Callers are responsible for ordering arguments so that more.Fitness
// <= less.Fitness (lower validation MSE is fitter) — crossover itself
// does not compare fitness.
func Crossover(more, less *Genome, inheritLessUniqueProb float64) (*Genome, error) {
	child := newEmptyGenome(more.rng.Uint64())
	child.InputParameterNames = append([]string(nil), more.InputParameterNames...)
	child.OutputParameterNames = append([]string(nil), more.OutputParameterNames...)
	child.NormalizeType = more.NormalizeType
	child.Mins, child.Maxs, child.Avgs, child.StdDevs = cloneMap(more.Mins), cloneMap(more.Maxs), cloneMap(more.Avgs), cloneMap(more.StdDevs)
	child.Fitness = EXAMMMaxDouble

	moreNodes := map[int64]*rnn.Node{}
	for _, n := range more.Nodes {
		moreNodes[n.InnovationNumber] = n
	}
	lessNodes := map[int64]*rnn.Node{}
	for _, n := range less.Nodes {
		lessNodes[n.InnovationNumber] = n
	}

	included := map[int64]bool{}
	addNode := func(n *rnn.Node) {
		if included[n.InnovationNumber] {
			return
		}
		included[n.InnovationNumber] = true
		child.Nodes = append(child.Nodes, n.Copy())
	}

	for _, n := range more.Nodes {
		addNode(n)
	}
	for _, n := range less.Nodes {
		if _, inMore := moreNodes[n.InnovationNumber]; !inMore {
			if child.rng.Float64() < inheritLessUniqueProb {
				addNode(n)
			}
		}
	}

	moreEdges := map[int64]*rnn.Edge{}
	for _, e := range more.Edges {
		moreEdges[e.InnovationNumber] = e
	}
	lessEdges := map[int64]*rnn.Edge{}
	for _, e := range less.Edges {
		lessEdges[e.InnovationNumber] = e
	}
	edgeIncluded := map[int64]bool{}
	for _, e := range more.Edges {
		if !included[e.SourceInnovation] || !included[e.TargetInnovation] {
			continue
		}
		ce := *e
		if le, ok := lessEdges[e.InnovationNumber]; ok {
			ce.Weight = blendWeight(child, e.Weight, le.Weight)
			ce.Enabled = e.Enabled || le.Enabled
		}
		child.Edges = append(child.Edges, &ce)
		edgeIncluded[e.InnovationNumber] = true
	}
	for _, e := range less.Edges {
		if edgeIncluded[e.InnovationNumber] {
			continue
		}
		if !included[e.SourceInnovation] || !included[e.TargetInnovation] {
			continue
		}
		if child.rng.Float64() < inheritLessUniqueProb {
			ce := *e
			child.Edges = append(child.Edges, &ce)
		}
	}

	moreRec := map[int64]*rnn.RecurrentEdge{}
	for _, e := range more.RecurrentEdges {
		moreRec[e.InnovationNumber] = e
	}
	lessRec := map[int64]*rnn.RecurrentEdge{}
	for _, e := range less.RecurrentEdges {
		lessRec[e.InnovationNumber] = e
	}
	recIncluded := map[int64]bool{}
	for _, e := range more.RecurrentEdges {
		if !included[e.SourceInnovation] || !included[e.TargetInnovation] {
			continue
		}
		ce := *e
		if le, ok := lessRec[e.InnovationNumber]; ok {
			ce.Weight = blendWeight(child, e.Weight, le.Weight)
			ce.Enabled = e.Enabled || le.Enabled
		}
		child.RecurrentEdges = append(child.RecurrentEdges, &ce)
		recIncluded[e.InnovationNumber] = true
	}
	for _, e := range less.RecurrentEdges {
		if recIncluded[e.InnovationNumber] {
			continue
		}
		if !included[e.SourceInnovation] || !included[e.TargetInnovation] {
			continue
		}
		if child.rng.Float64() < inheritLessUniqueProb {
			ce := *e
			child.RecurrentEdges = append(child.RecurrentEdges, &ce)
		}
	}

	maxInnovation := int64(0)
	for _, n := range child.Nodes {
		if n.InnovationNumber > maxInnovation {
			maxInnovation = n.InnovationNumber
		}
	}
	for _, e := range child.Edges {
		if e.InnovationNumber > maxInnovation {
			maxInnovation = e.InnovationNumber
		}
	}
	for _, e := range child.RecurrentEdges {
		if e.InnovationNumber > maxInnovation {
			maxInnovation = e.InnovationNumber
		}
	}
	counter := maxInnovation + 1
	child.innovationCounter = &counter

	child.sortNodesAndEdges()
	child.AssignReachability()
	if child.OutputsUnreachable() {
		return child, ErrOutputsUnreachable
	}
	return child, nil
}

// RelativeFitnessInheritProb derives the probability that a gene
// unique to the less-fit parent survives into the child from how much
// fitter more is than less (spec §4.2 "probability controlled by
// relative parent fitness (more-fit-parent bias)"): when the two
// parents are nearly tied it sits near even odds, and as less falls
// further behind more (larger validation MSE) it skews toward
// excluding less's unique genes. Clamped to [0.1, 0.9] so neither
// parent's unique genes are ever fully locked out.
func RelativeFitnessInheritProb(moreFitness, lessFitness float64) float64 {
	if math.IsNaN(moreFitness) || math.IsNaN(lessFitness) || math.IsInf(moreFitness, 0) || math.IsInf(lessFitness, 0) {
		return 0.5
	}
	total := moreFitness + lessFitness
	if total <= 0 {
		return 0.5
	}
	prob := moreFitness / total
	if prob < 0.1 {
		return 0.1
	}
	if prob > 0.9 {
		return 0.9
	}
	return prob
}

// blendWeight takes a uniform random point between the two parent
// weights — the originating implementation's "weight averaging with a
// random split point" rather than a fixed midpoint (spec §4.2).
func blendWeight(child *Genome, a, b float64) float64 {
	t := child.rng.Float64()
	return a + t*(b-a)
}
