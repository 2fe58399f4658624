// Package population implements the bounded, fitness-ascending
// ordered sequence of genomes with O(1) structural-duplicate
// detection used by every island (spec §4.3).
package population

import (
	"sort"

	"github.com/examm-go/examm/internal/genome"
)

// Population holds genomes sorted ascending by Fitness (lower
// validation MSE is fitter) bounded to MaxSize, plus a structural-hash
// bucket index for duplicate screening.
type Population struct {
	MaxSize int

	genomes []*genome.Genome
	byHash  map[string][]*genome.Genome
}

// New constructs an empty population bounded to maxSize.
func New(maxSize int) *Population {
	return &Population{MaxSize: maxSize, byHash: make(map[string][]*genome.Genome)}
}

func (p *Population) Len() int { return len(p.genomes) }

// Best returns the fittest genome (index 0) or nil if empty.
func (p *Population) Best() *genome.Genome {
	if len(p.genomes) == 0 {
		return nil
	}
	return p.genomes[0]
}

// Worst returns the least-fit genome or nil if empty.
func (p *Population) Worst() *genome.Genome {
	if len(p.genomes) == 0 {
		return nil
	}
	return p.genomes[len(p.genomes)-1]
}

// All returns the current ordered slice; callers must not mutate it.
func (p *Population) All() []*genome.Genome { return p.genomes }

func (p *Population) bucketFind(hash string, g *genome.Genome) (*genome.Genome, int) {
	bucket := p.byHash[hash]
	for i, cand := range bucket {
		if cand.StructurallyEqual(g) {
			return cand, i
		}
	}
	return nil, -1
}

func (p *Population) bucketRemove(hash string, idx int) {
	bucket := p.byHash[hash]
	bucket = append(bucket[:idx], bucket[idx+1:]...)
	if len(bucket) == 0 {
		delete(p.byHash, hash)
	} else {
		p.byHash[hash] = bucket
	}
}

func (p *Population) removeSequence(target *genome.Genome) {
	for i, g := range p.genomes {
		if g == target {
			p.genomes = append(p.genomes[:i], p.genomes[i+1:]...)
			return
		}
	}
}

// Insert runs the four-step protocol of spec §4.3 and returns the
// insertion index (>=0, 0 meaning new island best) or -1 on rejection.
// A copy of g is stored, never g itself.
func (p *Population) Insert(g *genome.Genome) int {
	if len(p.genomes) >= p.MaxSize && p.MaxSize > 0 {
		worst := p.Worst()
		if worst != nil && g.Fitness >= worst.Fitness {
			return -1
		}
	}

	hash := g.StructuralHash()
	if dup, idx := p.bucketFind(hash, g); dup != nil {
		if dup.Fitness <= g.Fitness {
			return -1
		}
		p.removeSequence(dup)
		p.bucketRemove(hash, idx)
	}

	cp := g.Copy()
	pos := sort.Search(len(p.genomes), func(i int) bool { return p.genomes[i].Fitness >= cp.Fitness })
	p.genomes = append(p.genomes, nil)
	copy(p.genomes[pos+1:], p.genomes[pos:])
	p.genomes[pos] = cp
	p.byHash[hash] = append(p.byHash[hash], cp)

	if p.MaxSize > 0 && len(p.genomes) > p.MaxSize {
		last := p.genomes[len(p.genomes)-1]
		p.genomes = p.genomes[:len(p.genomes)-1]
		lastHash := last.StructuralHash()
		if _, idx := p.bucketFind(lastHash, last); idx >= 0 {
			p.bucketRemove(lastHash, idx)
		}
	}

	return pos
}

// Full reports whether the population has reached MaxSize.
func (p *Population) Full() bool { return p.MaxSize > 0 && len(p.genomes) >= p.MaxSize }

// Clear empties the population, e.g. for a generated-population reset
// after finalize_generation (spec §4.6).
func (p *Population) Clear() {
	p.genomes = nil
	p.byHash = make(map[string][]*genome.Genome)
}
