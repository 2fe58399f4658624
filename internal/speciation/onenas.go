package speciation

import (
	"github.com/examm-go/examm/internal/genome"
)

// OnlineStrategy wraps Strategy with the OneNAS generated/elite
// two-population online variant (spec §4.6). Candidates land in each
// island's Generated population as they're evaluated; FinalizeGeneration
// merges generated into elite once per round and performs every
// end-of-generation bookkeeping step.
type OnlineStrategy struct {
	*Strategy

	sizeControlApplied  bool
	naiveBetterCount    int
	genomeBetterCount   int
	generationsFinalized int64
}

// NewOnline builds an OnlineStrategy over the same islands/seed/config
// as Strategy.New.
func NewOnline(cfg Config, seed *genome.Genome, rngSeed uint64) *OnlineStrategy {
	return &OnlineStrategy{Strategy: New(cfg, seed, rngSeed)}
}

// InsertGenerated places a freshly trained-and-validated candidate
// into its island's Generated population — the online variant never
// writes directly to Elite or updates GlobalBest at this point (spec
// §9 Open Question: global_best is only touched in finalize_generation,
// confirmed against the original's finalize_generation_with_genomes).
func (s *OnlineStrategy) InsertGenerated(g *genome.Genome) int {
	isl := s.Islands[g.GroupID]
	idx := isl.Generated.Insert(g)
	s.RecordEvaluation()
	return idx
}

// FinalizeResult reports what a FinalizeGeneration call did, for the
// controller to act on (write predictions, persist the genome, log).
type FinalizeResult struct {
	GlobalBest        *genome.Genome
	NewGlobalBest     bool
	SizeControlFired  bool
	ExtinctionApplied bool
}

// ReevaluateFunc re-scores an elite genome against the current
// generation's validation window and returns its new (mse, mae).
type ReevaluateFunc func(g *genome.Genome) (mse, mae float64)

// FinalizeGeneration implements spec §4.6's finalize_generation:
// (a) re-evaluate every elite genome against the new validation window,
// (b) merge generated+elite and keep the top MaxIslandSize per island,
// (c) clear generated, (d) select global best, (h) one-time size
// control after generation 10 if the genome is beating naive more
// often, and (i) periodic extinction.
func (s *OnlineStrategy) FinalizeGeneration(generationNumber int64, reevaluate ReevaluateFunc, naiveBetterThisRound bool) FinalizeResult {
	for _, isl := range s.Islands {
		for _, g := range isl.Elite.All() {
			mse, mae := reevaluate(g)
			g.BestValidationMSE, g.Fitness = mse, mse
			g.BestValidationMAE = mae
		}

		merged := append(append([]*genome.Genome{}, isl.Elite.All()...), isl.Generated.All()...)
		isl.Elite.Clear()
		for _, g := range merged {
			isl.Elite.Insert(g)
		}
		isl.Generated.Clear()
		isl.GenerationCheck()
	}

	result := FinalizeResult{}
	for _, isl := range s.Islands {
		best := isl.Elite.Best()
		if best == nil {
			continue
		}
		if s.GlobalBest == nil || best.Fitness < s.GlobalBest.Fitness {
			s.GlobalBest = best.Copy()
			result.NewGlobalBest = true
		}
	}
	result.GlobalBest = s.GlobalBest

	if naiveBetterThisRound {
		s.naiveBetterCount++
	} else {
		s.genomeBetterCount++
	}

	s.generationsFinalized++
	if s.generationsFinalized > 10 && !s.sizeControlApplied && s.genomeBetterCount > s.naiveBetterCount &&
		s.cfg.ControlSizeMethod != ControlSizeNone {
		switch s.cfg.ControlSizeMethod {
		case ControlSizeRebalanceRates:
			s.RebalanceCrossoverRates(0.4, 0.4, 0.2)
		default:
			s.ReduceAddMutationRates()
		}
		s.ShrinkGeneratedPopulationSize()
		s.sizeControlApplied = true
		result.SizeControlFired = true
	}

	repopulationThreshold := int64(2 * s.cfg.ExtinctionEventGenerationNumber)
	if s.cfg.ExtinctionEventGenerationNumber > 0 && s.generationsFinalized > repopulationThreshold &&
		s.generationsFinalized%s.cfg.ExtinctionEventGenerationNumber == 0 {
		s.runExtinction()
		result.ExtinctionApplied = true
	}

	return result
}

// NaiveBetterCount and GenomeBetterCount expose the running
// naive-vs-genome comparison tallies (spec §4.6 step g).
func (s *OnlineStrategy) NaiveBetterCount() int  { return s.naiveBetterCount }
func (s *OnlineStrategy) GenomeBetterCount() int { return s.genomeBetterCount }
