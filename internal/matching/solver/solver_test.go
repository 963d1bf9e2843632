package solver

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	dErrors "matchcore/pkg/domain-errors"
)

// table builds an Input from symmetric pair scores keyed "AB" and a list of
// blocked pairs. Unlisted pairs score 0.
func table(ids []string, k int, scores map[string]float64, blocked ...string) Input {
	lookup := func(m map[string]float64, a, b string) (float64, bool) {
		if v, ok := m[a+b]; ok {
			return v, true
		}
		v, ok := m[b+a]
		return v, ok
	}
	blocks := make(map[string]float64, len(blocked))
	for _, b := range blocked {
		blocks[b] = 1
	}
	return Input{
		IDs:       ids,
		GroupSize: k,
		Score: func(i, j int) float64 {
			v, _ := lookup(scores, ids[i], ids[j])
			return v
		},
		Blocked: func(i, j int) bool {
			_, ok := lookup(blocks, ids[i], ids[j])
			return ok
		},
	}
}

type SolverSuite struct {
	suite.Suite
}

func TestSolverSuite(t *testing.T) {
	suite.Run(t, new(SolverSuite))
}

func (s *SolverSuite) TestGreedyPairs() {
	scores := map[string]float64{"AB": 90, "AC": 10, "AD": 50, "BC": 20, "BD": 95, "CD": 5}

	s.Run("takes the best pair first even when it breaks a strong pair", func() {
		got, err := Solve(table([]string{"A", "B", "C", "D"}, 2, scores), Options{})
		s.Require().NoError(err)
		s.Equal(StrategyGreedyPairs, got.Strategy)
		s.Equal([]Group{
			{MemberIDs: []string{"B", "D"}, Score: 95},
			{MemberIDs: []string{"A", "C"}, Score: 10},
		}, got.Groups)
		s.Empty(got.Unmatched)
	})

	s.Run("input order does not change the result", func() {
		got, err := Solve(table([]string{"D", "C", "B", "A"}, 2, scores), Options{})
		s.Require().NoError(err)
		s.Equal([]string{"B", "D"}, got.Groups[0].MemberIDs)
		s.Equal([]string{"A", "C"}, got.Groups[1].MemberIDs)
	})

	s.Run("never pairs a blocked pair", func() {
		three := map[string]float64{"AB": 99, "AC": 40, "BC": 60}
		got, err := Solve(table([]string{"A", "B", "C"}, 2, three, "AB"), Options{})
		s.Require().NoError(err)
		s.Equal([]Group{{MemberIDs: []string{"B", "C"}, Score: 60}}, got.Groups)
		s.Equal([]string{"A"}, got.Unmatched)
	})

	s.Run("block applies in either direction", func() {
		three := map[string]float64{"AB": 99, "AC": 70, "BC": 60}
		got, err := Solve(table([]string{"A", "B", "C"}, 2, three, "BA"), Options{})
		s.Require().NoError(err)
		s.Equal([]string{"A", "C"}, got.Groups[0].MemberIDs)
		s.Equal([]string{"B"}, got.Unmatched)
	})

	s.Run("ties go to the lexicographically smaller pair", func() {
		tied := map[string]float64{"AB": 50, "AC": 50, "AD": 50, "BC": 50, "BD": 50, "CD": 50}
		got, err := Solve(table([]string{"D", "C", "B", "A"}, 2, tied), Options{})
		s.Require().NoError(err)
		s.Equal([]string{"A", "B"}, got.Groups[0].MemberIDs)
		s.Equal([]string{"C", "D"}, got.Groups[1].MemberIDs)
	})

	s.Run("min score leaves weak pairs unmatched", func() {
		got, err := Solve(table([]string{"A", "B", "C", "D"}, 2, scores), Options{MinScore: 30})
		s.Require().NoError(err)
		s.Equal([]Group{{MemberIDs: []string{"B", "D"}, Score: 95}}, got.Groups)
		s.Equal([]string{"A", "C"}, got.Unmatched)
	})

	s.Run("empty and single cohorts are not errors", func() {
		got, err := Solve(table(nil, 2, nil), Options{})
		s.Require().NoError(err)
		s.Empty(got.Groups)
		s.Empty(got.Unmatched)

		got, err = Solve(table([]string{"A"}, 2, nil), Options{})
		s.Require().NoError(err)
		s.Equal([]string{"A"}, got.Unmatched)
	})
}

func (s *SolverSuite) TestExactGroups() {
	ids := []string{"A", "B", "C", "D", "E", "F"}
	scores := map[string]float64{
		"AB": 90, "AC": 90, "BC": 90,
		"DE": 60, "DF": 60, "EF": 60,
		"AD": 10, "AE": 10, "AF": 10,
		"BD": 10, "BE": 10, "BF": 10,
		"CD": 10, "CE": 10, "CF": 10,
	}

	s.Run("picks the best triple then the best disjoint one", func() {
		got, err := Solve(table(ids, 3, scores), Options{})
		s.Require().NoError(err)
		s.Equal(StrategyExact, got.Strategy)
		s.Require().Len(got.Groups, 2)
		s.Equal([]string{"A", "B", "C"}, got.Groups[0].MemberIDs)
		s.InDelta(90, got.Groups[0].Score, 1e-9)
		s.Equal([]string{"D", "E", "F"}, got.Groups[1].MemberIDs)
	})

	s.Run("a block breaks the strong triple", func() {
		got, err := Solve(table(ids, 3, scores, "AB"), Options{})
		s.Require().NoError(err)
		for _, g := range got.Groups {
			s.False(containsBoth(g.MemberIDs, "A", "B"))
		}
	})

	s.Run("leftover members are unmatched", func() {
		got, err := Solve(table([]string{"A", "B", "C", "D"}, 3, scores), Options{})
		s.Require().NoError(err)
		s.Require().Len(got.Groups, 1)
		s.Equal([]string{"D"}, got.Unmatched)
	})
}

func (s *SolverSuite) TestLocalSearchFallback() {
	in := randomInput(40, 4, 7, 0.05)

	s.Run("switches strategy above the exact limit", func() {
		got, err := Solve(in, Options{ExactLimit: 10, Seed: 1})
		s.Require().NoError(err)
		s.Equal(StrategyLocalSearch, got.Strategy)
		assertValidAssignment(s.T(), in, got)
	})

	s.Run("same seed gives the same assignment", func() {
		a, err := Solve(in, Options{ExactLimit: 10, Seed: 42})
		s.Require().NoError(err)
		b, err := Solve(in, Options{ExactLimit: 10, Seed: 42})
		s.Require().NoError(err)
		s.Equal(a, b)
	})

	s.Run("search never lowers the greedy total", func() {
		p, err := newProblem(in, 0)
		s.Require().NoError(err)
		greedy, _ := p.seededGreedy()
		improved := p.localSearch(3, 2000)
		s.GreaterOrEqual(total(p, improved), total(p, greedy)-1e-9)
	})
}

func (s *SolverSuite) TestInvalidInput() {
	_, err := Solve(Input{IDs: []string{"A", "B"}, GroupSize: 1, Score: func(int, int) float64 { return 0 }}, Options{})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = Solve(Input{IDs: []string{"A", "A"}, GroupSize: 2, Score: func(int, int) float64 { return 0 }}, Options{})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = Solve(Input{IDs: []string{"A", "B"}, GroupSize: 2}, Options{})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

// TestAssignmentInvariants checks disjointness, block respect and
// determinism over random cohorts for every strategy.
func TestAssignmentInvariants(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		for _, k := range []int{2, 3, 4} {
			t.Run(fmt.Sprintf("seed=%d/k=%d", seed, k), func(t *testing.T) {
				in := randomInput(12+int(seed%7), k, seed, 0.15)
				for _, opts := range []Options{{}, {ExactLimit: 5, Seed: seed}} {
					first, err := Solve(in, opts)
					require.NoError(t, err)
					assertValidAssignment(t, in, first)

					again, err := Solve(in, opts)
					require.NoError(t, err)
					assert.Equal(t, first, again)
				}
			})
		}
	}
}

func TestCombinations(t *testing.T) {
	assert.Equal(t, 6, combinations(4, 2, 100))
	assert.Equal(t, 1, combinations(3, 3, 100))
	assert.Equal(t, 0, combinations(2, 3, 100))
	assert.Equal(t, 101, combinations(1000, 4, 100))

	var seen [][]int
	forEachCombination(4, 3, func(c []int) { seen = append(seen, append([]int(nil), c...)) })
	assert.Equal(t, [][]int{{0, 1, 2}, {0, 1, 3}, {0, 2, 3}, {1, 2, 3}}, seen)
}

func randomInput(n, k int, seed uint64, blockRate float64) Input {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("user-%03d", rng.IntN(1000)*1000+i)
	}
	scores := make([][]float64, n)
	blocked := make([][]bool, n)
	for i := range scores {
		scores[i] = make([]float64, n)
		blocked[i] = make([]bool, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := float64(rng.IntN(101))
			scores[i][j], scores[j][i] = v, v
			b := rng.Float64() < blockRate
			blocked[i][j], blocked[j][i] = b, b
		}
	}
	return Input{
		IDs:       ids,
		GroupSize: k,
		Score:     func(i, j int) float64 { return scores[i][j] },
		Blocked:   func(i, j int) bool { return blocked[i][j] },
	}
}

func assertValidAssignment(t *testing.T, in Input, a Assignment) {
	t.Helper()
	index := make(map[string]int, len(in.IDs))
	for i, id := range in.IDs {
		index[id] = i
	}
	seen := make(map[string]bool)
	for _, g := range a.Groups {
		require.Len(t, g.MemberIDs, in.GroupSize)
		for x, m := range g.MemberIDs {
			assert.False(t, seen[m], "member %s appears in two groups", m)
			seen[m] = true
			for _, o := range g.MemberIDs[x+1:] {
				assert.False(t, in.Blocked(index[m], index[o]), "blocked pair %s/%s grouped", m, o)
			}
		}
	}
	for _, u := range a.Unmatched {
		assert.False(t, seen[u], "unmatched member %s is also grouped", u)
		seen[u] = true
	}
	assert.Len(t, seen, len(in.IDs))
}

func containsBoth(members []string, a, b string) bool {
	var hasA, hasB bool
	for _, m := range members {
		hasA = hasA || m == a
		hasB = hasB || m == b
	}
	return hasA && hasB
}

func total(p *problem, groups [][]int) float64 {
	var sum float64
	for _, g := range groups {
		sum += p.groupScore(g)
	}
	return sum
}
