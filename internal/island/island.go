// Package island implements a single subpopulation: its generated and
// elite populations, its status machine, and its erase-again cooldown
// (spec §3 "Island", §4.4).
package island

import (
	"github.com/examm-go/examm/internal/genome"
	"github.com/examm-go/examm/internal/population"
)

// Status is the three-state machine driving generate_genome's
// dispatch (spec §3 "Island").
type Status int

const (
	Initializing Status = iota
	Filled
	Repopulating
)

func (s Status) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Filled:
		return "filled"
	case Repopulating:
		return "repopulating"
	default:
		return "unknown"
	}
}

// Island owns two populations and a status; eraseAgain counts rounds
// of immunity from re-extinction remaining after being erased (spec
// §4.4: "excluded from ranking" while positive).
type Island struct {
	ID     int
	Status Status

	Generated *population.Population
	Elite     *population.Population

	LatestGeneration int64
	eraseAgain       int
}

// New constructs an island with the given generated/elite capacities.
func New(id, generatedSize, eliteSize int) *Island {
	return &Island{
		ID:        id,
		Status:    Initializing,
		Generated: population.New(generatedSize),
		Elite:     population.New(eliteSize),
	}
}

// ErasedAgainRemaining reports the cooldown rounds left before this
// island may be extinguished again.
func (isl *Island) ErasedAgainRemaining() int { return isl.eraseAgain }

// DecrementCooldown ticks the erase-again counter down once per round
// while positive (spec §4.4).
func (isl *Island) DecrementCooldown() {
	if isl.eraseAgain > 0 {
		isl.eraseAgain--
	}
}

// EraseIsland clears both populations and the structure map, flipping
// the island to Repopulating. If repeatExtinction is false the
// cooldown counter is armed to cooldownRounds (spec §4.4, §4.5
// "repeat_extinction").
func (isl *Island) EraseIsland(repeatExtinction bool, cooldownRounds int) {
	isl.Generated.Clear()
	isl.Elite.Clear()
	isl.Status = Repopulating
	if !repeatExtinction {
		isl.eraseAgain = cooldownRounds
	}
}

// GenerationCheck promotes Initializing to Filled once the elite
// population has reached capacity (spec §4.4 "promotes
// Initializing->Filled when appropriate").
func (isl *Island) GenerationCheck() {
	if isl.Status == Initializing && isl.Elite.Full() {
		isl.Status = Filled
	}
}

// BestFitness returns the island's best elite fitness, or
// genome.EXAMMMaxDouble if the elite population is empty (worst
// possible, so an empty island never wins a ranking).
func (isl *Island) BestFitness() float64 {
	best := isl.Elite.Best()
	if best == nil {
		return genome.EXAMMMaxDouble
	}
	return best.Fitness
}
