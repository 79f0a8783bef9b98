// Package risk derives subzone dengue-risk scores: AHP-weighted linear
// combination of normalized indicators, with cluster case load discounted
// by an exponential recency decay.
package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwq-lab/denguewatch/internal/core/model"
)

// Indicators in comparison-matrix row/column order.
var Indicators = []string{
	model.IndCaseLoad,
	model.IndRainfall,
	model.IndMinTemp,
	model.IndVegetation,
	model.IndPopDensity,
}

// ErrInconsistent flags a pairwise matrix whose consistency ratio exceeds
// the conventional 0.1 threshold.
var ErrInconsistent = errors.New("ahp: comparison matrix is inconsistent")

// Weights is the AHP result: the principal eigenvector of the pairwise
// matrix plus its consistency diagnostics.
type Weights struct {
	ByIndicator map[string]float64
	LambdaMax   float64
	CI          float64
	CR          float64
}

// Random consistency index by matrix order (Saaty).
var randomIndex = map[int]float64{
	1: 0, 2: 0, 3: 0.58, 4: 0.90, 5: 1.12,
	6: 1.24, 7: 1.32, 8: 1.41, 9: 1.45, 10: 1.49,
}

// DefaultMatrix encodes the study's pairwise judgments: case load dominates,
// the lagged weather drivers sit above vegetation and population density.
func DefaultMatrix() [][]float64 {
	return [][]float64{
		{1, 3, 3, 5, 5},
		{1.0 / 3, 1, 1, 3, 3},
		{1.0 / 3, 1, 1, 3, 3},
		{1.0 / 5, 1.0 / 3, 1.0 / 3, 1, 1},
		{1.0 / 5, 1.0 / 3, 1.0 / 3, 1, 1},
	}
}

// DeriveWeights computes the principal eigenvector of matrix by power
// iteration and checks consistency. The matrix must be square, positive and
// reciprocal, ordered like Indicators. ErrInconsistent is returned (with
// the weights still populated) when CR > 0.1.
func DeriveWeights(matrix [][]float64) (Weights, error) {
	n := len(matrix)
	if n == 0 || n != len(Indicators) {
		return Weights{}, fmt.Errorf("ahp: matrix order %d, want %d", n, len(Indicators))
	}
	for i, row := range matrix {
		if len(row) != n {
			return Weights{}, fmt.Errorf("ahp: row %d has %d entries, want %d", i, len(row), n)
		}
		for j, v := range row {
			if v <= 0 {
				return Weights{}, fmt.Errorf("ahp: entry (%d,%d) must be positive", i, j)
			}
			if i == j && v != 1 {
				return Weights{}, fmt.Errorf("ahp: diagonal entry (%d,%d) must be 1", i, j)
			}
			recip := matrix[j][i]
			if math.Abs(v*recip-1) > 1e-6 {
				return Weights{}, fmt.Errorf("ahp: entries (%d,%d) and (%d,%d) are not reciprocal", i, j, j, i)
			}
		}
	}

	// power iteration on the column-normalized start vector
	v := make([]float64, n)
	for i := range v {
		v[i] = 1.0 / float64(n)
	}
	next := make([]float64, n)
	for iter := 0; iter < 100; iter++ {
		var sum float64
		for i := 0; i < n; i++ {
			next[i] = 0
			for j := 0; j < n; j++ {
				next[i] += matrix[i][j] * v[j]
			}
			sum += next[i]
		}
		var delta float64
		for i := 0; i < n; i++ {
			next[i] /= sum
			delta += math.Abs(next[i] - v[i])
		}
		copy(v, next)
		if delta < 1e-12 {
			break
		}
	}

	// lambda_max from the Rayleigh-style estimate
	var lambda float64
	for i := 0; i < n; i++ {
		var mv float64
		for j := 0; j < n; j++ {
			mv += matrix[i][j] * v[j]
		}
		lambda += mv / v[i]
	}
	lambda /= float64(n)

	w := Weights{
		ByIndicator: make(map[string]float64, n),
		LambdaMax:   lambda,
	}
	for i, name := range Indicators {
		w.ByIndicator[name] = v[i]
	}
	if n > 1 {
		w.CI = (lambda - float64(n)) / float64(n-1)
		if ri := randomIndex[n]; ri > 0 {
			w.CR = w.CI / ri
		}
	}
	if w.CR > 0.1 {
		return w, fmt.Errorf("%w: CR=%.3f", ErrInconsistent, w.CR)
	}
	return w, nil
}
