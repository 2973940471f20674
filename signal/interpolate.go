package signal

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Interpolation selects how a sampled series is evaluated between samples.
type Interpolation int

const (
	// Linear interpolates linearly between neighbouring samples.
	Linear Interpolation = iota
	// ZeroOrderHold holds the most recent sample.
	ZeroOrderHold
)

// Series is a measurement signal reconstructed from sparse, possibly
// irregular samples. Evaluation outside the sampled range clamps to the
// first respectively last sample.
type Series struct {
	ts     []float64
	values *mat.Dense
	interp Interpolation
}

// NewSeries wraps sample times ts and the matching sample matrix
// (one row per time point) into an interpolating Series. The time stamps
// must be strictly increasing.
func NewSeries(ts []float64, values *mat.Dense, interp Interpolation) *Series {
	r, _ := values.Dims()
	if r != len(ts) {
		panic("signal: sample count does not match time stamps")
	}
	for i := 1; i < len(ts); i++ {
		if ts[i] <= ts[i-1] {
			panic("signal: time stamps must be strictly increasing")
		}
	}
	return &Series{ts: ts, values: values, interp: interp}
}

// Dim returns the dimension of a sample.
func (s *Series) Dim() int {
	_, c := s.values.Dims()
	return c
}

// Value evaluates the interpolated signal at time t.
func (s *Series) Value(t float64) mat.Vector {
	n := len(s.ts)
	_, dim := s.values.Dims()
	res := mat.NewVecDense(dim, nil)

	switch {
	case t <= s.ts[0]:
		res.CopyVec(s.values.RowView(0))
		return res
	case t >= s.ts[n-1]:
		res.CopyVec(s.values.RowView(n - 1))
		return res
	}

	// Index of the first sample strictly after t.
	hi := sort.SearchFloat64s(s.ts, t)
	if s.ts[hi] == t {
		res.CopyVec(s.values.RowView(hi))
		return res
	}
	lo := hi - 1

	if s.interp == ZeroOrderHold {
		res.CopyVec(s.values.RowView(lo))
		return res
	}

	w := (t - s.ts[lo]) / (s.ts[hi] - s.ts[lo])
	res.AddScaledVec(res, 1-w, s.values.RowView(lo))
	res.AddScaledVec(res, w, s.values.RowView(hi))
	return res
}
