// Package solver partitions a cohort into disjoint, block-free groups.
//
// Pairs (group size 2) use greedy maximum-weight selection: every unblocked pair
// is scored, pairs are taken in descending score order while both endpoints are
// free. Ties go to the lexicographically smaller (low id, high id) pair.
//
// Larger groups enumerate every k-combination while C(n,k) stays within
// Options.ExactLimit and pick disjoint groups greedily by mean pairwise score
// (ties by sorted member ids). Above the limit a seeded greedy construction is
// refined by randomized member swaps. That path is an approximation: it never
// returns an invalid group but may miss the best total.
//
// Solve is pure and deterministic for a given input and Options.Seed.
package solver

import (
	"cmp"
	"slices"

	dErrors "matchcore/pkg/domain-errors"
)

const (
	DefaultExactLimit    = 50_000
	DefaultMaxIterations = 5_000
)

// Strategy names the algorithm that produced an assignment.
type Strategy string

const (
	StrategyGreedyPairs Strategy = "greedy_pairs"
	StrategyExact       Strategy = "exact"
	StrategyLocalSearch Strategy = "local_search"
)

// Input describes one solve. Score and Blocked are indexed by position in IDs.
type Input struct {
	IDs       []string
	GroupSize int
	Score     func(i, j int) float64
	Blocked   func(i, j int) bool
}

// Options tune the group search. Zero values select defaults.
type Options struct {
	ExactLimit    int
	MaxIterations int
	Seed          uint64
	// MinScore drops groups whose aggregate score is below it.
	MinScore float64
}

func (o Options) withDefaults() Options {
	if o.ExactLimit <= 0 {
		o.ExactLimit = DefaultExactLimit
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	return o
}

// Group is one output group with sorted members.
type Group struct {
	MemberIDs []string
	Score     float64
}

// Assignment is the solver's output. Groups are ordered by descending score,
// ties by member ids. Unmatched is sorted.
type Assignment struct {
	Groups    []Group
	Unmatched []string
	Strategy  Strategy
}

// problem re-indexes the input by sorted id so index order is id order.
type problem struct {
	ids      []string
	orig     []int
	k        int
	minScore float64
	score    func(i, j int) float64
	blocked  func(i, j int) bool
}

func newProblem(in Input, minScore float64) (*problem, error) {
	if in.GroupSize < 2 {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "group size must be at least 2, got %d", in.GroupSize)
	}
	if in.Score == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "solver requires a score function")
	}
	order := make([]int, len(in.IDs))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int { return cmp.Compare(in.IDs[a], in.IDs[b]) })

	p := &problem{
		ids:      make([]string, len(order)),
		orig:     order,
		k:        in.GroupSize,
		minScore: minScore,
	}
	for pos, o := range order {
		p.ids[pos] = in.IDs[o]
		if pos > 0 && p.ids[pos] == p.ids[pos-1] {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "duplicate candidate %q", p.ids[pos])
		}
	}
	p.score = func(i, j int) float64 { return in.Score(order[i], order[j]) }
	p.blocked = func(i, j int) bool {
		if in.Blocked == nil {
			return false
		}
		return in.Blocked(order[i], order[j])
	}
	return p, nil
}

func (p *problem) n() int { return len(p.ids) }

func (p *problem) groupScore(members []int) float64 {
	var sum float64
	var pairs int
	for a := 0; a < len(members); a++ {
		for b := a + 1; b < len(members); b++ {
			sum += p.score(members[a], members[b])
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return sum / float64(pairs)
}

func (p *problem) anyBlocked(members []int) bool {
	for a := 0; a < len(members); a++ {
		for b := a + 1; b < len(members); b++ {
			if p.blocked(members[a], members[b]) {
				return true
			}
		}
	}
	return false
}

// Solve computes a conflict-free assignment. Candidates that fit no valid
// group are returned in Unmatched; that is never an error.
func Solve(in Input, opts Options) (Assignment, error) {
	opts = opts.withDefaults()
	p, err := newProblem(in, opts.MinScore)
	if err != nil {
		return Assignment{}, err
	}

	var (
		groups   [][]int
		strategy Strategy
	)
	switch {
	case p.k == 2:
		groups, strategy = p.greedyPairs(), StrategyGreedyPairs
	case combinations(p.n(), p.k, opts.ExactLimit) <= opts.ExactLimit:
		groups, strategy = p.exactGroups(), StrategyExact
	default:
		groups, strategy = p.localSearch(opts.Seed, opts.MaxIterations), StrategyLocalSearch
	}
	return p.assemble(groups, strategy), nil
}

type edge struct {
	i, j  int
	score float64
}

func (p *problem) greedyPairs() [][]int {
	n := p.n()
	edges := make([]edge, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if p.blocked(i, j) {
				continue
			}
			s := p.score(i, j)
			if s < p.minScore {
				continue
			}
			edges = append(edges, edge{i: i, j: j, score: s})
		}
	}
	slices.SortFunc(edges, func(a, b edge) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.i, b.i); c != 0 {
			return c
		}
		return cmp.Compare(a.j, b.j)
	})

	used := make([]bool, n)
	var out [][]int
	for _, e := range edges {
		if used[e.i] || used[e.j] {
			continue
		}
		used[e.i], used[e.j] = true, true
		out = append(out, []int{e.i, e.j})
	}
	return out
}

type scored struct {
	members []int
	score   float64
}

func compareScored(a, b scored) int {
	if c := cmp.Compare(b.score, a.score); c != 0 {
		return c
	}
	return slices.Compare(a.members, b.members)
}

func (p *problem) exactGroups() [][]int {
	var all []scored
	forEachCombination(p.n(), p.k, func(members []int) {
		if p.anyBlocked(members) {
			return
		}
		s := p.groupScore(members)
		if s < p.minScore {
			return
		}
		all = append(all, scored{members: slices.Clone(members), score: s})
	})
	slices.SortFunc(all, compareScored)

	used := make([]bool, p.n())
	var out [][]int
	for _, g := range all {
		if slices.ContainsFunc(g.members, func(m int) bool { return used[m] }) {
			continue
		}
		for _, m := range g.members {
			used[m] = true
		}
		out = append(out, g.members)
	}
	return out
}

func (p *problem) assemble(groups [][]int, strategy Strategy) Assignment {
	used := make([]bool, p.n())
	out := make([]scored, 0, len(groups))
	for _, g := range groups {
		members := slices.Clone(g)
		slices.Sort(members)
		for _, m := range members {
			used[m] = true
		}
		out = append(out, scored{members: members, score: p.groupScore(members)})
	}
	slices.SortStableFunc(out, compareScored)

	a := Assignment{Groups: make([]Group, 0, len(out)), Unmatched: []string{}, Strategy: strategy}
	for _, g := range out {
		ids := make([]string, len(g.members))
		for i, m := range g.members {
			ids[i] = p.ids[m]
		}
		a.Groups = append(a.Groups, Group{MemberIDs: ids, Score: g.score})
	}
	for i, u := range used {
		if !u {
			a.Unmatched = append(a.Unmatched, p.ids[i])
		}
	}
	return a
}

// combinations returns C(n,k), or limit+1 once the count exceeds limit.
func combinations(n, k, limit int) int {
	if k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	c := 1
	for i := 1; i <= k; i++ {
		c = c * (n - k + i) / i
		if c > limit {
			return limit + 1
		}
	}
	return c
}

// forEachCombination visits k-combinations of [0,n) in lexicographic order.
// The slice passed to fn is reused between calls.
func forEachCombination(n, k int, fn func([]int)) {
	if k > n || k <= 0 {
		return
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		fn(idx)
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
