// Package sample generates observer training data: space-filling designs
// over the state space and (x, z) pairs obtained by jointly integrating
// the plant and the linear observer dynamics, so that z is the ground
// truth image T(x) up to solver tolerance.
package sample

import (
	"fmt"
	"math"
	"math/rand"

	kkl "github.com/monabf/learn-observe-KKL"
	"gonum.org/v1/gonum/mat"
)

// SamplingMethod selects the space-filling design.
type SamplingMethod int

const (
	// LHS is a Latin Hypercube design: exactly n points, each axis
	// stratified into n equally likely bins holding one point each.
	LHS SamplingMethod = iota
	// Uniform is a regular grid; n must be a perfect d-th power of the
	// points-per-axis count.
	Uniform
)

// ParseSamplingMethod maps configuration strings to a SamplingMethod.
func ParseSamplingMethod(s string) (SamplingMethod, error) {
	switch s {
	case "LHS", "lhs":
		return LHS, nil
	case "uniform", "Uniform", "grid":
		return Uniform, nil
	}
	return LHS, &kkl.ConfigError{Field: "sampling.method", Reason: fmt.Sprintf("unknown method %q", s)}
}

// LatinHypercube draws n points over the box given by per-dimension
// limits, stratified so that every axis is divided into n bins each
// containing exactly one point.
func LatinHypercube(rng *rand.Rand, limits [][2]float64, n int) *mat.Dense {
	d := len(limits)
	res := mat.NewDense(n, d, nil)
	for j := 0; j < d; j++ {
		perm := rng.Perm(n)
		lo, hi := limits[j][0], limits[j][1]
		width := (hi - lo) / float64(n)
		for i := 0; i < n; i++ {
			u := (float64(perm[i]) + rng.Float64()) * width
			res.Set(i, j, lo+u)
		}
	}
	return res
}

// UniformGrid produces a regular grid with k points per axis where
// k^d = n exactly; any other n is a configuration error.
func UniformGrid(limits [][2]float64, n int) (*mat.Dense, error) {
	d := len(limits)
	k := int(math.Round(math.Pow(float64(n), 1/float64(d))))
	if pow(k, d) != n {
		return nil, &kkl.ConfigError{
			Field:  "sampling.num_samples",
			Reason: fmt.Sprintf("%d is not a %d-th power; uniform gridding needs num_samples = k^dim_x", n, d),
		}
	}

	res := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		idx := i
		for j := 0; j < d; j++ {
			step := idx % k
			idx /= k
			lo, hi := limits[j][0], limits[j][1]
			var v float64
			if k == 1 {
				v = (lo + hi) / 2
			} else {
				v = lo + (hi-lo)*float64(step)/float64(k-1)
			}
			res.Set(i, j, v)
		}
	}
	return res, nil
}

// Mesh dispatches to the configured design.
func Mesh(rng *rand.Rand, limits [][2]float64, n int, method SamplingMethod) (*mat.Dense, error) {
	if n < 1 {
		return nil, &kkl.ConfigError{Field: "sampling.num_samples", Reason: "must be positive"}
	}
	switch method {
	case LHS:
		return LatinHypercube(rng, limits, n), nil
	case Uniform:
		return UniformGrid(limits, n)
	}
	return nil, &kkl.ConfigError{Field: "sampling.method", Reason: "unknown method"}
}

func pow(k, d int) int {
	res := 1
	for i := 0; i < d; i++ {
		res *= k
	}
	return res
}
