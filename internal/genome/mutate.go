package genome

import (
	"github.com/pkg/errors"

	"github.com/examm-go/examm/internal/rnn"
)

// ErrNoEligibleTarget is returned when a mutation operator cannot find
// any structural site to act on (e.g. add_edge on a fully-connected
// DAG); distinct from ErrOutputsUnreachable, which signals a
// structurally valid but currently-dead candidate the caller should
// retry (spec §4.2, §7).
var ErrNoEligibleTarget = errors.New("genome: no eligible mutation target")

// MutationOperator names one of the eight structural mutation kinds
// (spec §4.2 "Mutation operators").
type MutationOperator int

const (
	MutateAddEdge MutationOperator = iota
	MutateAddRecurrentEdge
	MutateEnableDisableEdge
	MutateEnableDisableNode
	MutateSplitEdge
	MutateSplitNode
	MutateMergeNode
	MutateAddNode
)

// weightDraw samples a single Lamarckian weight from population
// statistics, falling back to Xavier-ish spread when sigma is zero
// (e.g. a singleton population).
func weightDraw(g *Genome, mu, sigma float64) float64 {
	w := make([]float64, 1)
	if sigma <= 0 {
		rnn.InitWeights(w, 4, 4, rnn.InitXavier, 0, 1)
	} else {
		rnn.InitWeights(w, 4, 4, rnn.InitLamarckian, mu, sigma)
	}
	return w[0]
}

func (g *Genome) forwardEdge(src, dst int64) *rnn.Edge {
	for _, e := range g.Edges {
		if e.SourceInnovation == src && e.TargetInnovation == dst {
			return e
		}
	}
	return nil
}

func (g *Genome) hasRecurrentEdge(src, dst int64, depth int) bool {
	for _, e := range g.RecurrentEdges {
		if e.SourceInnovation == src && e.TargetInnovation == dst && e.RecurrentDepth == depth {
			return true
		}
	}
	return false
}

func (g *Genome) enabledNodes() []*rnn.Node {
	out := make([]*rnn.Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.Enabled {
			out = append(out, n)
		}
	}
	return out
}

// reachableNodes returns the nodes currently both forward- and
// backward-reachable — the pool add_edge/add_recurrent_edge/split_edge/
// split_node draw from, since an enabled-but-dead node (downstream of
// some other disabled edge) is not a legitimate mutation site (spec
// §4.2, original_source rnn_genome.cxx:1902-1917).
func (g *Genome) reachableNodes() []*rnn.Node {
	out := make([]*rnn.Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.Reachable() {
			out = append(out, n)
		}
	}
	return out
}

// AddEdge connects two distinct reachable nodes with depth(src) <
// depth(dst). If the pair already has an edge and it is disabled, the
// existing edge is re-enabled rather than skipped — a separate
// candidate from a brand-new connection, matching attempt_edge_insert
// in the originating implementation (spec §4.2).
func (g *Genome) AddEdge(mu, sigma float64) error {
	nodes := g.reachableNodes()
	type candidate struct {
		a, b     *rnn.Node
		existing *rnn.Edge
	}
	candidates := make([]candidate, 0)
	for _, a := range nodes {
		for _, b := range nodes {
			if a.Depth >= b.Depth {
				continue
			}
			if e := g.forwardEdge(a.InnovationNumber, b.InnovationNumber); e != nil {
				if e.Enabled {
					continue
				}
				candidates = append(candidates, candidate{a, b, e})
				continue
			}
			candidates = append(candidates, candidate{a, b, nil})
		}
	}
	if len(candidates) == 0 {
		return ErrNoEligibleTarget
	}
	pick := candidates[g.rng.IntN(len(candidates))]
	if pick.existing != nil {
		pick.existing.Enabled = true
	} else {
		g.addEdgeAuto(pick.a, pick.b, weightDraw(g, mu, sigma))
	}
	g.sortNodesAndEdges()
	g.AssignReachability()
	return nil
}

// AddRecurrentEdge connects two randomly drawn reachable nodes (depth
// order unconstrained; source and target may be the same node, giving
// a self-loop) delayed by a randomly chosen positive depth, rejecting
// (source, target, depth) duplicates (spec §4.2).
func (g *Genome) AddRecurrentEdge(mu, sigma float64, maxRecurrentDepth int) error {
	nodes := g.reachableNodes()
	if len(nodes) < 2 {
		return ErrNoEligibleTarget
	}
	if maxRecurrentDepth < 1 {
		maxRecurrentDepth = 1
	}
	for attempt := 0; attempt < 50; attempt++ {
		a := nodes[g.rng.IntN(len(nodes))]
		b := nodes[g.rng.IntN(len(nodes))]
		depth := 1 + g.rng.IntN(maxRecurrentDepth)
		if a.InnovationNumber == b.InnovationNumber && depth == 0 {
			continue
		}
		if g.hasRecurrentEdge(a.InnovationNumber, b.InnovationNumber, depth) {
			continue
		}
		e := &rnn.RecurrentEdge{InnovationNumber: g.NextInnovation(), SourceInnovation: a.InnovationNumber,
			TargetInnovation: b.InnovationNumber, RecurrentDepth: depth, Weight: weightDraw(g, mu, sigma), Enabled: true}
		g.RecurrentEdges = append(g.RecurrentEdges, e)
		g.sortNodesAndEdges()
		g.AssignReachability()
		return nil
	}
	return ErrNoEligibleTarget
}

// EnableDisableEdge flips a random edge's (or recurrent edge's)
// Enabled flag (spec §4.2).
func (g *Genome) EnableDisableEdge() error {
	total := len(g.Edges) + len(g.RecurrentEdges)
	if total == 0 {
		return ErrNoEligibleTarget
	}
	idx := g.rng.IntN(total)
	if idx < len(g.Edges) {
		e := g.Edges[idx]
		e.Enabled = !e.Enabled
	} else {
		e := g.RecurrentEdges[idx-len(g.Edges)]
		e.Enabled = !e.Enabled
	}
	g.AssignReachability()
	return nil
}

// EnableDisableNode flips a random hidden node's Enabled flag; input
// and output nodes are never toggled off since the schema requires
// them permanently present (spec §4.2).
func (g *Genome) EnableDisableNode() error {
	hidden := make([]*rnn.Node, 0)
	for _, n := range g.Nodes {
		if n.Layer == rnn.LayerHidden {
			hidden = append(hidden, n)
		}
	}
	if len(hidden) == 0 {
		return ErrNoEligibleTarget
	}
	n := hidden[g.rng.IntN(len(hidden))]
	n.Enabled = !n.Enabled
	g.AssignReachability()
	return nil
}

// SplitEdge disables a random reachable edge and inserts a new hidden
// node at its midpoint depth, wired in by two new edges (spec §4.2).
func (g *Genome) SplitEdge(cellType rnn.CellType, mu, sigma float64) error {
	reachable := make([]*rnn.Edge, 0)
	for _, e := range g.Edges {
		if e.Enabled && e.Reachable() {
			reachable = append(reachable, e)
		}
	}
	if len(reachable) == 0 {
		return ErrNoEligibleTarget
	}
	e := reachable[g.rng.IntN(len(reachable))]
	e.Enabled = false

	src := g.nodeByInnovation(e.SourceInnovation)
	dst := g.nodeByInnovation(e.TargetInnovation)
	mid := (src.Depth + dst.Depth) / 2

	newNode := rnn.NewNode(g.NextInnovation(), cellType, mid)
	g.Nodes = append(g.Nodes, newNode)
	g.addEdgeAuto(src, newNode, weightDraw(g, mu, sigma))
	g.addEdgeAuto(newNode, dst, weightDraw(g, mu, sigma))

	g.sortNodesAndEdges()
	g.AssignReachability()
	return nil
}

// SplitNode disables a random reachable hidden node and recreates its
// incoming and outgoing connectivity on two fresh sibling nodes of the
// same cell type and depth — each enabled inbound edge and each
// enabled outbound edge is cloned onto both siblings with a fresh
// weight. Edges are not partitioned between the siblings, and no
// recurrent loop is added for Jordan or Elman cells (spec §4.2).
func (g *Genome) SplitNode(mu, sigma float64) error {
	hidden := make([]*rnn.Node, 0)
	for _, n := range g.Nodes {
		if n.Layer == rnn.LayerHidden && n.Reachable() {
			hidden = append(hidden, n)
		}
	}
	if len(hidden) == 0 {
		return ErrNoEligibleTarget
	}
	target := hidden[g.rng.IntN(len(hidden))]
	target.Enabled = false

	a := rnn.NewNode(g.NextInnovation(), target.Type, target.Depth)
	b := rnn.NewNode(g.NextInnovation(), target.Type, target.Depth)
	g.Nodes = append(g.Nodes, a, b)

	for _, e := range g.Edges {
		if !e.Enabled {
			continue
		}
		if e.TargetInnovation == target.InnovationNumber {
			src := g.nodeByInnovation(e.SourceInnovation)
			g.addEdgeAuto(src, a, weightDraw(g, mu, sigma))
			g.addEdgeAuto(src, b, weightDraw(g, mu, sigma))
		}
		if e.SourceInnovation == target.InnovationNumber {
			dst := g.nodeByInnovation(e.TargetInnovation)
			g.addEdgeAuto(a, dst, weightDraw(g, mu, sigma))
			g.addEdgeAuto(b, dst, weightDraw(g, mu, sigma))
		}
	}
	g.sortNodesAndEdges()
	g.AssignReachability()
	return nil
}

// MergeNode picks two distinct enabled hidden nodes at any depths,
// disables both, and creates a single replacement node at their mean
// depth wired to the union of their neighbors that lie below or above
// that depth (spec §4.2).
func (g *Genome) MergeNode(mu, sigma float64) error {
	hidden := make([]*rnn.Node, 0)
	for _, n := range g.Nodes {
		if n.Layer == rnn.LayerHidden && n.Enabled {
			hidden = append(hidden, n)
		}
	}
	if len(hidden) < 2 {
		return ErrNoEligibleTarget
	}
	i := g.rng.IntN(len(hidden))
	j := g.rng.IntN(len(hidden))
	for j == i {
		j = g.rng.IntN(len(hidden))
	}
	a, b := hidden[i], hidden[j]
	a.Enabled, b.Enabled = false, false

	merged := rnn.NewNode(g.NextInnovation(), a.Type, (a.Depth+b.Depth)/2)
	g.Nodes = append(g.Nodes, merged)

	seenIn, seenOut := map[int64]bool{}, map[int64]bool{}
	for _, e := range g.Edges {
		if !e.Enabled {
			continue
		}
		if e.TargetInnovation == a.InnovationNumber || e.TargetInnovation == b.InnovationNumber {
			if !seenIn[e.SourceInnovation] {
				seenIn[e.SourceInnovation] = true
				src := g.nodeByInnovation(e.SourceInnovation)
				if src.Depth < merged.Depth {
					g.addEdgeAuto(src, merged, weightDraw(g, mu, sigma))
				}
			}
		}
		if e.SourceInnovation == a.InnovationNumber || e.SourceInnovation == b.InnovationNumber {
			if !seenOut[e.TargetInnovation] {
				seenOut[e.TargetInnovation] = true
				dst := g.nodeByInnovation(e.TargetInnovation)
				if dst.Depth > merged.Depth {
					g.addEdgeAuto(merged, dst, weightDraw(g, mu, sigma))
				}
			}
		}
	}
	g.sortNodesAndEdges()
	g.AssignReachability()
	return nil
}

// AddNode inserts a brand-new hidden node of the given cell type at a
// random depth strictly between 0 and 1, wiring it to a handful of
// randomly chosen lower- and higher-depth nodes (spec §4.2).
func (g *Genome) AddNode(cellType rnn.CellType, mu, sigma float64, fanIn, fanOut int) error {
	nodes := g.enabledNodes()
	lower, higher := make([]*rnn.Node, 0), make([]*rnn.Node, 0)
	depth := 0.01 + g.rng.Float64()*0.98
	for _, n := range nodes {
		if n.Depth < depth {
			lower = append(lower, n)
		} else if n.Depth > depth {
			higher = append(higher, n)
		}
	}
	if len(lower) == 0 || len(higher) == 0 {
		return ErrNoEligibleTarget
	}
	newNode := rnn.NewNode(g.NextInnovation(), cellType, depth)
	g.Nodes = append(g.Nodes, newNode)

	shuffleNodes(g.rng, lower)
	shuffleNodes(g.rng, higher)
	for i := 0; i < fanIn && i < len(lower); i++ {
		g.addEdgeAuto(lower[i], newNode, weightDraw(g, mu, sigma))
	}
	for i := 0; i < fanOut && i < len(higher); i++ {
		g.addEdgeAuto(newNode, higher[i], weightDraw(g, mu, sigma))
	}
	g.sortNodesAndEdges()
	g.AssignReachability()
	return nil
}

func shuffleNodes(r interface{ IntN(int) int }, nodes []*rnn.Node) {
	for i := len(nodes) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
}

