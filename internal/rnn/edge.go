package rnn

// Edge is a forward connection u->v with depth(u) < depth(v) (spec §3
// "Edge (forward)"). It carries a single scalar weight and is the
// primary unit of innovation-number-based alignment during crossover.
type Edge struct {
	InnovationNumber int64
	SourceInnovation int64
	TargetInnovation int64
	Weight           float64
	Enabled          bool

	ForwardReachable  bool
	BackwardReachable bool
}

func (e *Edge) Reachable() bool { return e.ForwardReachable && e.BackwardReachable }

func (e *Edge) SetWeight(w float64) { e.Weight = clip(w) }

// RecurrentEdge connects two nodes delayed by RecurrentDepth time
// steps; unlike Edge its source depth may be >= its target depth (spec
// §3 "Recurrent edge"). At most one recurrent edge may exist per
// (source, target, depth) triple within a genome — enforced by the
// owning genome, not the edge itself.
type RecurrentEdge struct {
	InnovationNumber int64
	SourceInnovation int64
	TargetInnovation int64
	RecurrentDepth   int
	Weight           float64
	Enabled          bool

	ForwardReachable  bool
	BackwardReachable bool
}

func (e *RecurrentEdge) Reachable() bool { return e.ForwardReachable && e.BackwardReachable }

func (e *RecurrentEdge) SetWeight(w float64) { e.Weight = clip(w) }
