package solver

import (
	"math/rand/v2"
	"slices"
)

// improvementEpsilon guards against accepting float noise as progress.
const improvementEpsilon = 1e-9

// seededGreedy builds groups one at a time. Each group starts from the free
// candidate with the highest mean score to the other free candidates and
// grows by the candidate with the best mean score to the current members.
// Ties go to the lower id. A seed that cannot complete a valid group is set
// aside and never seeds again.
func (p *problem) seededGreedy() (groups [][]int, free []int) {
	free = make([]int, p.n())
	for i := range free {
		free[i] = i
	}
	var setAside []int

	for len(free) >= p.k {
		seed := p.bestSeed(free)
		group := []int{seed}
		for len(group) < p.k {
			next, ok := p.bestAddition(group, free)
			if !ok {
				break
			}
			group = append(group, next)
		}
		if len(group) < p.k || p.groupScore(group) < p.minScore {
			free = removeAll(free, []int{seed})
			setAside = append(setAside, seed)
			continue
		}
		free = removeAll(free, group)
		groups = append(groups, group)
	}
	free = append(free, setAside...)
	slices.Sort(free)
	return groups, free
}

func (p *problem) bestSeed(free []int) int {
	best, bestMean := -1, 0.0
	for _, c := range free {
		var sum float64
		for _, o := range free {
			if o != c {
				sum += p.score(c, o)
			}
		}
		mean := sum / float64(len(free)-1)
		if best == -1 || mean > bestMean {
			best, bestMean = c, mean
		}
	}
	return best
}

func (p *problem) bestAddition(group, free []int) (int, bool) {
	best, bestMean := -1, 0.0
	for _, c := range free {
		if slices.Contains(group, c) {
			continue
		}
		blocked := false
		var sum float64
		for _, m := range group {
			if p.blocked(c, m) {
				blocked = true
				break
			}
			sum += p.score(c, m)
		}
		if blocked {
			continue
		}
		mean := sum / float64(len(group))
		if best == -1 || mean > bestMean {
			best, bestMean = c, mean
		}
	}
	return best, best != -1
}

func removeAll(from, drop []int) []int {
	return slices.DeleteFunc(from, func(v int) bool { return slices.Contains(drop, v) })
}

// localSearch refines the greedy construction with member swaps, between two
// groups or between a group and the free pool. A swap is kept only when it
// strictly raises the total score and both groups stay valid.
func (p *problem) localSearch(seed uint64, maxIterations int) [][]int {
	groups, free := p.seededGreedy()
	if len(groups) == 0 {
		return groups
	}
	scores := make([]float64, len(groups))
	for i, g := range groups {
		scores[i] = p.groupScore(g)
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for iter := 0; iter < maxIterations; iter++ {
		g1 := rng.IntN(len(groups))
		a := rng.IntN(p.k)

		swapWithFree := len(free) > 0 && (len(groups) == 1 || rng.IntN(2) == 0)
		if swapWithFree {
			u := rng.IntN(len(free))
			cand := slices.Clone(groups[g1])
			cand[a] = free[u]
			s, ok := p.valid(cand)
			if !ok || s-scores[g1] <= improvementEpsilon {
				continue
			}
			free[u] = groups[g1][a]
			groups[g1], scores[g1] = cand, s
			continue
		}

		if len(groups) < 2 {
			continue
		}
		g2 := rng.IntN(len(groups) - 1)
		if g2 >= g1 {
			g2++
		}
		b := rng.IntN(p.k)
		c1, c2 := slices.Clone(groups[g1]), slices.Clone(groups[g2])
		c1[a], c2[b] = groups[g2][b], groups[g1][a]
		s1, ok1 := p.valid(c1)
		s2, ok2 := p.valid(c2)
		if !ok1 || !ok2 || (s1+s2)-(scores[g1]+scores[g2]) <= improvementEpsilon {
			continue
		}
		groups[g1], scores[g1] = c1, s1
		groups[g2], scores[g2] = c2, s2
	}
	return groups
}

func (p *problem) valid(members []int) (float64, bool) {
	if p.anyBlocked(members) {
		return 0, false
	}
	s := p.groupScore(members)
	return s, s >= p.minScore
}
