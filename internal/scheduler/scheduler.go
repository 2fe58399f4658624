// Package scheduler implements the online episode scheduler: a
// tempered prioritized-experience-replay sampler over a growing
// history of time-series episodes, sliding validation/test windows,
// and per-episode usefulness scoring fed back from surviving elite
// genomes (spec §4.7).
package scheduler

import (
	"math"
	"math/rand/v2"
	"sort"
)

// Episode is one immutable training/validation/test unit: a stable id
// plus its input/output sequences. The scheduler never mutates Inputs
// or Outputs, only the Score tracked alongside it.
type Episode struct {
	ID      int32
	Inputs  [][]float64
	Outputs [][]float64
}

// SamplingMethod selects how GetTrainingIndex draws training episodes
// (spec §4.7 "Training-index selection").
type SamplingMethod int

const (
	SamplingUniform SamplingMethod = iota
	SamplingTemperedPER
)

// Scheduler owns the episode store, the sliding current_index, each
// episode's usefulness score, and the per-generation training-history
// map needed to feed scores back from elite survivors.
type Scheduler struct {
	episodes []*Episode
	scores   map[int32]float64

	CurrentIndex int

	NumTrainingSets   int
	NumValidationSets int
	Temperature       float64 // τ: <1 sharpens (exploitation), >1 flattens (exploration), 1 = unmodified
	Method            SamplingMethod

	StartScoreTrackingGeneration int64

	trainingHistory map[int64][]int32

	rng *rand.Rand
}

// New constructs a scheduler over episodes (ordered by arrival; ID
// need not equal index but GetTrainingIndex/validation/test windows
// address episodes by position in this slice, matching the original
// "episode id == time-series index" convention).
func New(numTrainingSets, numValidationSets int, temperature float64, method SamplingMethod, seed uint64) *Scheduler {
	if temperature <= 0 {
		temperature = 1.0
	}
	return &Scheduler{
		scores:            make(map[int32]float64),
		NumTrainingSets:   numTrainingSets,
		NumValidationSets: numValidationSets,
		Temperature:       temperature,
		Method:            method,
		trainingHistory:   make(map[int64][]int32),
		rng:               rand.New(rand.NewPCG(seed, seed^0xA24BAED4963EE407)),
	}
}

// AddEpisode appends a newly arrived episode, scored 1 (spec §3
// "per-episode score (>=1)").
func (s *Scheduler) AddEpisode(e *Episode) {
	s.episodes = append(s.episodes, e)
	s.scores[e.ID] = 1
}

func (s *Scheduler) Episode(id int32) *Episode {
	for _, e := range s.episodes {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// SetCurrentIndex sets current_index = gen + num_training_sets (spec
// §4.7 "set_current_index(gen)").
func (s *Scheduler) SetCurrentIndex(gen int) {
	s.CurrentIndex = gen + s.NumTrainingSets
}

// ValidationWindow returns episode ids [current_index,
// current_index+num_validation_sets).
func (s *Scheduler) ValidationWindow() []int32 {
	out := make([]int32, 0, s.NumValidationSets)
	for i := 0; i < s.NumValidationSets; i++ {
		idx := s.CurrentIndex + i
		if idx >= len(s.episodes) {
			break
		}
		out = append(out, s.episodes[idx].ID)
	}
	return out
}

// TestEpisode returns the single test episode id at
// current_index+num_validation_sets, or -1 if out of range.
func (s *Scheduler) TestEpisode() int32 {
	idx := s.CurrentIndex + s.NumValidationSets
	if idx < 0 || idx >= len(s.episodes) {
		return -1
	}
	return s.episodes[idx].ID
}

// GetTrainingIndex dispatches on Method and, for tempered PER, records
// the result into training_history under generationID (spec §4.7;
// Uniform mode never records history or touches scores).
func (s *Scheduler) GetTrainingIndex(generationID int64) []int32 {
	var idx []int32
	switch s.Method {
	case SamplingUniform:
		idx = s.uniformSample()
		return idx
	case SamplingTemperedPER:
		idx = s.temperedHybridSample()
	}
	s.trainingHistory[generationID] = append([]int32(nil), idx...)
	return idx
}

func (s *Scheduler) uniformSample() []int32 {
	n := s.CurrentIndex
	if n > len(s.episodes) {
		n = len(s.episodes)
	}
	pool := make([]int32, n)
	for i := 0; i < n; i++ {
		pool[i] = s.episodes[i].ID
	}
	shuffleInt32(s.rng, pool)
	take := s.NumTrainingSets
	if take > len(pool) {
		take = len(pool)
	}
	return append([]int32(nil), pool[:take]...)
}

// temperedHybridSample splits num_training_sets into a deterministic
// most-recent half and a sampled-without-replacement half drawn from
// the strictly older pool via P(i) ∝ max(score_i,eps)^(1/tau) (spec
// §4.7 "Tempered PER (hybrid)").
func (s *Scheduler) temperedHybridSample() []int32 {
	numRecent := s.NumTrainingSets / 2
	numPER := s.NumTrainingSets - numRecent

	out := make([]int32, 0, s.NumTrainingSets)
	for i := 0; i < numRecent && i < s.CurrentIndex; i++ {
		out = append(out, s.episodes[s.CurrentIndex-1-i].ID)
	}

	perPoolEnd := s.CurrentIndex - numRecent
	if perPoolEnd <= 0 || numPER <= 0 {
		return out
	}
	pool := make([]int32, perPoolEnd)
	for i := 0; i < perPoolEnd; i++ {
		pool[i] = s.episodes[i].ID
	}
	shuffleInt32(s.rng, pool)

	sampled := s.sampleWithoutReplacement(pool, numPER)
	out = append(out, sampled...)
	return out
}

const scoreEpsilon = 0.001

// sampleWithoutReplacement draws up to k unique ids from pool using
// tempered-score weights P(i) ∝ max(score_i,eps)^(1/tau), removing
// each pick from the pool before redrawing so weights stay normalized
// over what remains (spec §4.7 "without replacement").
func (s *Scheduler) sampleWithoutReplacement(pool []int32, k int) []int32 {
	remaining := append([]int32(nil), pool...)
	out := make([]int32, 0, k)
	for len(out) < k && len(remaining) > 0 {
		weights := make([]float64, len(remaining))
		total := 0.0
		for i, id := range remaining {
			score := s.scores[id]
			if score <= 0 {
				score = scoreEpsilon
			}
			weights[i] = math.Pow(score, 1.0/s.Temperature)
			total += weights[i]
		}
		pick := categoricalDraw(s.rng, weights, total)
		out = append(out, remaining[pick])
		remaining = append(remaining[:pick], remaining[pick+1:]...)
	}
	return out
}

// categoricalDraw samples an index from weights via inverse-CDF, the
// same technique distuv.Categorical uses internally, applied directly
// here so the draw works off math/rand/v2's generator that every other
// stochastic choice in this module already shares.
func categoricalDraw(r *rand.Rand, weights []float64, total float64) int {
	target := r.Float64() * total
	cum := 0.0
	for i, w := range weights {
		cum += w
		if target < cum {
			return i
		}
	}
	return len(weights) - 1
}

func shuffleInt32(r *rand.Rand, s []int32) {
	for i := len(s) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}

// UpdateScores implements spec §4.7's scoring feedback: for each
// generation id in goodGenerationIDs, look up its training-episode ids
// and increment each episode's score by +1. Skipped entirely in
// Uniform mode or before StartScoreTrackingGeneration.
func (s *Scheduler) UpdateScores(goodGenerationIDs []int64, currentGeneration int64) {
	if s.Method == SamplingUniform {
		return
	}
	if currentGeneration < s.StartScoreTrackingGeneration {
		return
	}
	for _, gid := range goodGenerationIDs {
		for _, episodeID := range s.trainingHistory[gid] {
			s.scores[episodeID]++
		}
	}
	s.garbageCollectHistory(goodGenerationIDs)
}

// garbageCollectHistory drops every training_history entry keyed below
// the smallest surviving elite generation id (spec §4.7 "History GC").
func (s *Scheduler) garbageCollectHistory(eliteGenerationIDs []int64) {
	if len(eliteGenerationIDs) == 0 {
		return
	}
	smallest := eliteGenerationIDs[0]
	for _, id := range eliteGenerationIDs[1:] {
		if id < smallest {
			smallest = id
		}
	}
	for gid := range s.trainingHistory {
		if gid < smallest {
			delete(s.trainingHistory, gid)
		}
	}
}

// Score returns an episode's current usefulness score.
func (s *Scheduler) Score(episodeID int32) float64 { return s.scores[episodeID] }

// Scores returns every tracked episode id in ascending order with its
// current score, for the training-scores CSV trace (spec §6 "Score
// trace").
func (s *Scheduler) Scores() (ids []int32, scores []float64) {
	ids = make([]int32, 0, len(s.scores))
	for id := range s.scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	scores = make([]float64, len(ids))
	for i, id := range ids {
		scores[i] = s.scores[id]
	}
	return ids, scores
}
