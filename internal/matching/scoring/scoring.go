// Package scoring computes pairwise compatibility from preference vectors.
//
// Scores are cosine similarity rescaled to [0, 100]: identical directions score
// 100, orthogonal vectors 50, opposite directions 0. A zero-norm vector has no
// direction and is treated as orthogonal to everything.
//
// Group scores aggregate as the arithmetic mean of all C(n,2) pairwise scores.
package scoring

import (
	"fmt"
	"math"
)

const (
	MinScore = 0.0
	MaxScore = 100.0
)

// Score returns the compatibility of two vectors. It is pure and symmetric.
// Vectors of different length are a programming error and panic; callers
// validate dimensions before scoring.
func Score(a, b []float64) float64 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("scoring: dimension mismatch %d != %d", len(a), len(b)))
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return rescale(0)
	}
	return rescale(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func rescale(cos float64) float64 {
	s := 50 * (cos + 1)
	switch {
	case math.IsNaN(s):
		return 50
	case s < MinScore:
		return MinScore
	case s > MaxScore:
		return MaxScore
	}
	return s
}

// GroupScore is the mean of the given pairwise scores. An empty slice
// scores zero.
func GroupScore(pairwise []float64) float64 {
	if len(pairwise) == 0 {
		return 0
	}
	var sum float64
	for _, s := range pairwise {
		sum += s
	}
	return sum / float64(len(pairwise))
}

// Matrix holds precomputed pairwise scores for a fixed candidate order.
type Matrix struct {
	n      int
	scores []float64
}

// NewMatrix scores every pair of vectors once. All vectors must share a
// dimension.
func NewMatrix(vectors [][]float64) *Matrix {
	n := len(vectors)
	m := &Matrix{n: n, scores: make([]float64, n*n)}
	for i := 0; i < n; i++ {
		m.scores[i*n+i] = MaxScore
		for j := i + 1; j < n; j++ {
			s := Score(vectors[i], vectors[j])
			m.scores[i*n+j] = s
			m.scores[j*n+i] = s
		}
	}
	return m
}

func (m *Matrix) Len() int { return m.n }

// At returns the score between candidates i and j.
func (m *Matrix) At(i, j int) float64 {
	return m.scores[i*m.n+j]
}

// Group returns the mean pairwise score of the indexed members.
func (m *Matrix) Group(idx []int) float64 {
	pairwise := make([]float64, 0, len(idx)*(len(idx)-1)/2)
	for a := 0; a < len(idx); a++ {
		for b := a + 1; b < len(idx); b++ {
			pairwise = append(pairwise, m.At(idx[a], idx[b]))
		}
	}
	return GroupScore(pairwise)
}
