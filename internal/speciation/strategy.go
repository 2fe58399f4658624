// Package speciation implements the island speciation engine: genome
// generation dispatched on island status, mutation/intra-/inter-island
// crossover mixing, ranked extinction and repopulation, and global-best
// tracking (spec §4.4, §4.5), plus the OneNAS online variant
// (§4.6, in onenas.go).
package speciation

import (
	"math/rand/v2"
	"sort"

	"github.com/pkg/errors"

	"github.com/examm-go/examm/internal/genome"
	"github.com/examm-go/examm/internal/island"
	"github.com/examm-go/examm/internal/rnn"
)

// RepopulationMethod names how a Repopulating island is refilled
// (spec §4.5 "Repopulating island").
type RepopulationMethod int

const (
	RepopulateRandomParents RepopulationMethod = iota
	RepopulateBestParents
	RepopulateBestGenome
	RepopulateBestIsland
)

// RankingMethod names the island-ranking rule used to pick extinction
// targets (spec §8 scenario 5 "EraseWorst").
type RankingMethod int

const (
	RankEraseWorst RankingMethod = iota
)

// ControlSizeMethod names which of the two network-size-control
// actions finalize_generation applies once triggered (spec §6
// control_size_method, SPEC_FULL.md §5 "Network-size-control").
type ControlSizeMethod int

const (
	ControlSizeReduceAddMutation ControlSizeMethod = iota
	ControlSizeRebalanceRates
	ControlSizeNone
)

// ErrEmptyParentPool is fatal per spec §7: "fewer than 2 filled
// islands when parents-repopulation is chosen" is a configuration bug,
// not a recoverable condition.
var ErrEmptyParentPool = errors.New("speciation: fewer than 2 filled islands available for parents repopulation")

// Config bundles the strategy's tunable knobs (spec §6 option table,
// the subset relevant to generation and repopulation).
type Config struct {
	NumberOfIslands    int
	MaxIslandSize      int
	GeneratedPerIsland int // OneNAS-only: size of each island's generated population

	MutationRate             float64
	IntraIslandCrossoverRate float64
	InterIslandCrossoverRate float64

	NumMutations int

	RepopulationMethod              RepopulationMethod
	IslandRankingMethod              RankingMethod
	ExtinctionEventGenerationNumber  int64
	IslandsToExterminate             int
	RepeatExtinction                 bool
	EraseAgainCooldown               int

	ControlSizeMethod ControlSizeMethod

	StartFilled bool
	SeedStirs   int

	HiddenCellType    rnn.CellType
	AddNodeFanIn      int
	AddNodeFanOut     int
	MaxRecurrentDepth int
}

// Strategy owns every island, the global best genome, and the
// normalized cumulative rate thresholds (spec §4.5).
type Strategy struct {
	cfg Config

	Islands    []*island.Island
	SeedGenome *genome.Genome

	GeneratedGenomes int64
	EvaluatedGenomes int64

	GlobalBest *genome.Genome

	generationIsland int
	rng              *rand.Rand

	mutationRate      float64
	intraCrossoverCDF float64
	interCrossoverCDF float64
}

// New builds a strategy with cfg.NumberOfIslands fresh islands, all
// Initializing, seeded from seed.
func New(cfg Config, seed *genome.Genome, rngSeed uint64) *Strategy {
	s := &Strategy{cfg: cfg, SeedGenome: seed, rng: rand.New(rand.NewPCG(rngSeed, rngSeed^0xD1B54A32D192ED03))}
	s.normalizeRates()

	eliteSize := cfg.MaxIslandSize
	generatedSize := cfg.GeneratedPerIsland
	if generatedSize == 0 {
		generatedSize = cfg.MaxIslandSize
	}
	for i := 0; i < cfg.NumberOfIslands; i++ {
		s.Islands = append(s.Islands, island.New(i, generatedSize, eliteSize))
	}
	seed.GenerationID = s.GeneratedGenomes
	return s
}

func (s *Strategy) normalizeRates() {
	sum := s.cfg.MutationRate + s.cfg.IntraIslandCrossoverRate + s.cfg.InterIslandCrossoverRate
	mut, intra, inter := s.cfg.MutationRate, s.cfg.IntraIslandCrossoverRate, s.cfg.InterIslandCrossoverRate
	if sum != 1.0 && sum > 0 {
		mut /= sum
		intra /= sum
		inter /= sum
	}
	s.mutationRate = mut
	s.intraCrossoverCDF = mut + intra
	s.interCrossoverCDF = s.intraCrossoverCDF + inter
}

// ReduceAddMutationRates is one of the two network-size-control
// actions (spec §4.6 step h, SPEC_FULL.md §5): it halves NumMutations,
// the number of operators applied per mutated candidate, when that is
// above 1, and otherwise changes nothing. Each operator is drawn with
// equal odds from the eight, so add-node/add-edge are not reduced
// separately from the others.
func (s *Strategy) ReduceAddMutationRates() {
	if s.cfg.NumMutations > 1 {
		s.cfg.NumMutations /= 2
	}
}

// RebalanceCrossoverRates is the other size-control action: set
// mutation/intra/inter to fixed post-normalization shares (spec §5
// "Supplemented Features" — exact values 0.4/0.4/0.2).
func (s *Strategy) RebalanceCrossoverRates(mutation, intra, inter float64) {
	s.cfg.MutationRate, s.cfg.IntraIslandCrossoverRate, s.cfg.InterIslandCrossoverRate = mutation, intra, inter
	s.normalizeRates()
}

// ShrinkGeneratedPopulationSize applies the floor(0.25*G) >= 1 rule
// (spec §4.6 step h) to every island's generated-population capacity.
func (s *Strategy) ShrinkGeneratedPopulationSize() {
	newSize := s.cfg.GeneratedPerIsland / 4
	if newSize < 1 {
		newSize = 1
	}
	s.cfg.GeneratedPerIsland = newSize
	for _, isl := range s.Islands {
		isl.Generated.MaxSize = newSize
	}
}

// InsertEvaluated inserts a trained-and-validated candidate into its
// island's elite population and updates the global best on every
// insertion (base island-strategy behavior; the OneNAS online variant
// overrides this, see onenas.go). Returns the population insertion
// index (-1 on reject).
func (s *Strategy) InsertEvaluated(g *genome.Genome) int {
	isl := s.Islands[g.GroupID]
	idx := isl.Elite.Insert(g)
	isl.GenerationCheck()
	s.RecordEvaluation()
	if idx >= 0 && (s.GlobalBest == nil || g.Fitness < s.GlobalBest.Fitness) {
		s.GlobalBest = g.Copy()
	}
	return idx
}

// RecordEvaluation increments the evaluated-genome counter once a
// candidate has been scored on validation; callers drive this from
// the controller's per-candidate evaluation loop.
func (s *Strategy) RecordEvaluation() { s.EvaluatedGenomes++ }

func (s *Strategy) nextGenerationID() int64 {
	id := s.GeneratedGenomes
	s.GeneratedGenomes++
	return id
}

func (s *Strategy) filledIslands() []*island.Island {
	out := make([]*island.Island, 0, len(s.Islands))
	for _, isl := range s.Islands {
		if isl.Status == island.Filled {
			out = append(out, isl)
		}
	}
	return out
}

func (s *Strategy) otherFilledIslands(exclude int) []*island.Island {
	out := make([]*island.Island, 0, len(s.Islands))
	for _, isl := range s.Islands {
		if isl.Status == island.Filled && isl.ID != exclude {
			out = append(out, isl)
		}
	}
	return out
}

// weightStats computes population-wide (mu, sigma) from every elite
// genome's current parameters, for Lamarckian mutation draws.
func (s *Strategy) weightStats() (float64, float64) {
	var sets [][]float64
	for _, isl := range s.Islands {
		for _, g := range isl.Elite.All() {
			sets = append(sets, g.GetParameters())
		}
	}
	if len(sets) == 0 {
		return 0, 0
	}
	return rnn.PopulationWeightStats(sets)
}

// GenerateGenome implements §4.5's round-robin dispatch. The returned
// genome has a fresh generation id and its island id set; for
// Initializing islands it has also been inserted into that island's
// elite population.
func (s *Strategy) GenerateGenome() (*genome.Genome, error) {
	isl := s.Islands[s.generationIsland]
	s.generationIsland = (s.generationIsland + 1) % len(s.Islands)

	var g *genome.Genome
	var err error
	switch isl.Status {
	case island.Initializing:
		g, err = s.generateForInitializing(isl)
	case island.Filled:
		g, err = s.generateForFilled(isl)
	case island.Repopulating:
		g, err = s.generateForRepopulating(isl)
	}
	if err != nil {
		return nil, err
	}
	g.GenerationID = s.nextGenerationID()
	g.GroupID = isl.ID
	if isl.Status == island.Initializing {
		isl.Elite.Insert(g)
		isl.GenerationCheck()
	}
	return g, nil
}

func (s *Strategy) generateForInitializing(isl *island.Island) (*genome.Genome, error) {
	if isl.Elite.Len() == 0 {
		g := s.SeedGenome.Copy()
		params := g.GetParameters()
		rnn.InitWeights(params, 4, 4, rnn.InitXavier, 0, 1)
		_ = g.SetParameters(params)
		if !s.cfg.StartFilled {
			return g, nil
		}
		return s.mutateRetrying(g, s.cfg.SeedStirs)
	}
	elites := isl.Elite.All()
	source := elites[s.rng.IntN(len(elites))]
	return s.mutateRetrying(source, s.cfg.NumMutations)
}

func (s *Strategy) generateForFilled(isl *island.Island) (*genome.Genome, error) {
	r := s.rng.Float64()
	onlyOneFilled := len(s.filledIslands()) == 1

	if r < s.mutationRate || onlyOneFilled {
		elites := isl.Elite.All()
		source := elites[s.rng.IntN(len(elites))]
		return s.mutateRetrying(source, s.cfg.NumMutations)
	}
	if r < s.intraCrossoverCDF {
		elites := isl.Elite.All()
		if len(elites) < 2 {
			return s.mutateRetrying(elites[0], s.cfg.NumMutations)
		}
		i, j := distinctPair(s.rng, len(elites))
		return s.crossoverRetrying(elites[i], elites[j])
	}
	others := s.otherFilledIslands(isl.ID)
	if len(others) == 0 {
		elites := isl.Elite.All()
		source := elites[s.rng.IntN(len(elites))]
		return s.mutateRetrying(source, s.cfg.NumMutations)
	}
	mine := isl.Elite.All()
	mine1 := mine[s.rng.IntN(len(mine))]
	other := others[s.rng.IntN(len(others))]
	otherBest := other.Elite.Best()
	return s.crossoverRetrying(mine1, otherBest)
}

func (s *Strategy) generateForRepopulating(isl *island.Island) (*genome.Genome, error) {
	switch s.cfg.RepopulationMethod {
	case RepopulateBestGenome:
		if s.GlobalBest == nil {
			return nil, ErrEmptyParentPool
		}
		return s.mutateRetrying(s.GlobalBest, s.cfg.NumMutations)
	case RepopulateBestIsland:
		best := s.bestIsland(isl.ID)
		if best == nil {
			return nil, ErrEmptyParentPool
		}
		donors := best.Elite.All()
		if len(donors) == 0 {
			return nil, ErrEmptyParentPool
		}
		source := donors[s.rng.IntN(len(donors))]
		return s.mutateRetrying(source, s.cfg.NumMutations)
	default: // RepopulateRandomParents, RepopulateBestParents
		others := s.otherFilledIslands(isl.ID)
		if len(others) < 2 {
			return nil, ErrEmptyParentPool
		}
		var a, b *island.Island
		if s.cfg.RepopulationMethod == RepopulateBestParents {
			sorted := append([]*island.Island(nil), others...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].BestFitness() < sorted[j].BestFitness() })
			a, b = sorted[0], sorted[1]
		} else {
			i, j := distinctPair(s.rng, len(others))
			a, b = others[i], others[j]
		}
		more, less := a.Elite.Best(), b.Elite.Best()
		if more == nil || less == nil {
			return nil, ErrEmptyParentPool
		}
		return s.crossoverAndMutateRetrying(more, less, s.cfg.NumMutations)
	}
}

func (s *Strategy) bestIsland(exclude int) *island.Island {
	var best *island.Island
	for _, isl := range s.Islands {
		if isl.ID == exclude || isl.Status != island.Filled {
			continue
		}
		if best == nil || isl.BestFitness() < best.BestFitness() {
			best = isl
		}
	}
	return best
}

func distinctPair(r *rand.Rand, n int) (int, int) {
	i := r.IntN(n)
	j := r.IntN(n)
	for j == i && n > 1 {
		j = r.IntN(n)
	}
	return i, j
}

// maxGenerateAttempts bounds the discard-and-retry loop every
// generation path runs through: an unreachable-output candidate is
// never handed back to the caller, it is regenerated from the same
// source genome (spec §4.2/§7, Testable invariant 1).
const maxGenerateAttempts = 20

// mutateRetrying produces a mutated copy of source, retrying from a
// fresh copy of source whenever the result fails reachability instead
// of ever returning the unreachable candidate.
func (s *Strategy) mutateRetrying(source *genome.Genome, numMutations int) (*genome.Genome, error) {
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		g := source.Copy()
		err := s.applyMutations(g, numMutations)
		if err != nil && !errors.Is(err, genome.ErrOutputsUnreachable) {
			return nil, err
		}
		if err == nil {
			return g, nil
		}
	}
	return nil, genome.ErrOutputsUnreachable
}

// crossoverRetrying orders more/less by fitness, derives the
// less-unique-gene inheritance probability from their relative
// fitness (spec §4.2 "more-fit-parent bias"), and retries the
// crossover from the same two parents whenever the child fails
// reachability instead of returning it.
func (s *Strategy) crossoverRetrying(more, less *genome.Genome) (*genome.Genome, error) {
	if more.Fitness > less.Fitness {
		more, less = less, more
	}
	prob := genome.RelativeFitnessInheritProb(more.Fitness, less.Fitness)
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		child, err := genome.Crossover(more, less, prob)
		if err != nil && !errors.Is(err, genome.ErrOutputsUnreachable) {
			return nil, err
		}
		if err == nil {
			return child, nil
		}
	}
	return nil, genome.ErrOutputsUnreachable
}

// crossoverAndMutateRetrying is generateForRepopulating's
// cross-island-parents path: cross two island champions, then stir
// the child with NumMutations mutations, retrying the whole
// crossover+mutate pipeline from the same two parents whenever either
// stage fails reachability.
func (s *Strategy) crossoverAndMutateRetrying(more, less *genome.Genome, numMutations int) (*genome.Genome, error) {
	if more.Fitness > less.Fitness {
		more, less = less, more
	}
	prob := genome.RelativeFitnessInheritProb(more.Fitness, less.Fitness)
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		child, err := genome.Crossover(more, less, prob)
		if err != nil && !errors.Is(err, genome.ErrOutputsUnreachable) {
			return nil, err
		}
		if err != nil {
			continue
		}
		mutErr := s.applyMutations(child, numMutations)
		if mutErr != nil && !errors.Is(mutErr, genome.ErrOutputsUnreachable) {
			return nil, mutErr
		}
		if mutErr == nil {
			return child, nil
		}
	}
	return nil, genome.ErrOutputsUnreachable
}

// applyMutations runs n individually-chosen mutation operators
// against g, skipping ones with no eligible target and returning
// ErrOutputsUnreachable if the cumulative result fails reachability
// (spec §7 "Unreachable output after mutation").
func (s *Strategy) applyMutations(g *genome.Genome, n int) error {
	mu, sigma := s.weightStats()
	for i := 0; i < n; i++ {
		op := genome.MutationOperator(s.rng.IntN(8))
		var err error
		switch op {
		case genome.MutateAddEdge:
			err = g.AddEdge(mu, sigma)
		case genome.MutateAddRecurrentEdge:
			err = g.AddRecurrentEdge(mu, sigma, s.cfg.MaxRecurrentDepth)
		case genome.MutateEnableDisableEdge:
			err = g.EnableDisableEdge()
		case genome.MutateEnableDisableNode:
			err = g.EnableDisableNode()
		case genome.MutateSplitEdge:
			err = g.SplitEdge(s.cfg.HiddenCellType, mu, sigma)
		case genome.MutateSplitNode:
			err = g.SplitNode(mu, sigma)
		case genome.MutateMergeNode:
			err = g.MergeNode(mu, sigma)
		case genome.MutateAddNode:
			err = g.AddNode(s.cfg.HiddenCellType, mu, sigma, s.cfg.AddNodeFanIn, s.cfg.AddNodeFanOut)
		}
		if err != nil && !errors.Is(err, genome.ErrNoEligibleTarget) {
			return err
		}
	}
	if g.OutputsUnreachable() {
		return genome.ErrOutputsUnreachable
	}
	return nil
}

// RunExtinctionIfDue applies spec §4.5's extinction/repopulation rule:
// when extinction_event_generation_number>0 and evaluated%that==0,
// rank islands by best fitness descending (filtered by cooldown),
// erase the top IslandsToExterminate, and flip them to Repopulating.
func (s *Strategy) RunExtinctionIfDue() {
	if s.cfg.ExtinctionEventGenerationNumber <= 0 {
		return
	}
	if s.EvaluatedGenomes == 0 || s.EvaluatedGenomes%s.cfg.ExtinctionEventGenerationNumber != 0 {
		return
	}
	s.runExtinction()
}

func (s *Strategy) runExtinction() {
	eligible := make([]*island.Island, 0, len(s.Islands))
	for _, isl := range s.Islands {
		if isl.ErasedAgainRemaining() == 0 {
			eligible = append(eligible, isl)
		}
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].BestFitness() > eligible[j].BestFitness() })

	n := s.cfg.IslandsToExterminate
	if n > len(eligible) {
		n = len(eligible)
	}
	for i := 0; i < n; i++ {
		eligible[i].EraseIsland(s.cfg.RepeatExtinction, s.cfg.EraseAgainCooldown)
	}
	for _, isl := range s.Islands {
		isl.DecrementCooldown()
	}
}
