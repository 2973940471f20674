package signal

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestVectorFunction(t *testing.T) {
	b := mat.NewVecDense(3, []float64{1, 0, 2})
	vf := NewInput(func(tt float64) float64 { return 2 * tt }, b)

	got := vf.Bu(1.5)
	want := []float64{3, 0, 6}
	for i := range want {
		if got.AtVec(i) != want[i] {
			t.Errorf("Bu(1.5)[%d] = %v, want %v", i, got.AtVec(i), want[i])
		}
	}
}

func TestSeriesLinearInterpolation(t *testing.T) {
	ts := []float64{0, 1, 2}
	values := mat.NewDense(3, 2, []float64{
		0, 10,
		2, 20,
		4, 10,
	})
	s := NewSeries(ts, values, Linear)

	if s.Dim() != 2 {
		t.Fatalf("dim = %d, want 2", s.Dim())
	}
	got := s.Value(0.5)
	if got.AtVec(0) != 1 || got.AtVec(1) != 15 {
		t.Errorf("Value(0.5) = (%v, %v), want (1, 15)", got.AtVec(0), got.AtVec(1))
	}
	// Exactly on a sample.
	got = s.Value(1)
	if got.AtVec(0) != 2 || got.AtVec(1) != 20 {
		t.Errorf("Value(1) = (%v, %v), want (2, 20)", got.AtVec(0), got.AtVec(1))
	}
}

func TestSeriesZeroOrderHold(t *testing.T) {
	ts := []float64{0, 1}
	values := mat.NewDense(2, 1, []float64{5, 9})
	s := NewSeries(ts, values, ZeroOrderHold)

	if got := s.Value(0.99).AtVec(0); got != 5 {
		t.Errorf("Value(0.99) = %v, want the held sample 5", got)
	}
	if got := s.Value(1).AtVec(0); got != 9 {
		t.Errorf("Value(1) = %v, want 9", got)
	}
}

func TestSeriesClampsOutsideRange(t *testing.T) {
	ts := []float64{1, 2}
	values := mat.NewDense(2, 1, []float64{-3, 7})
	s := NewSeries(ts, values, Linear)

	if got := s.Value(0).AtVec(0); got != -3 {
		t.Errorf("Value before the range = %v, want the first sample -3", got)
	}
	if got := s.Value(10).AtVec(0); got != 7 {
		t.Errorf("Value after the range = %v, want the last sample 7", got)
	}
}

func TestNewSeriesPanicsOnBadStamps(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("non-increasing time stamps must panic")
		}
	}()
	NewSeries([]float64{0, 0}, mat.NewDense(2, 1, []float64{1, 2}), Linear)
}

func TestSeriesMidpointIsExactForLinearData(t *testing.T) {
	ts := []float64{0, 2, 4, 6}
	values := mat.NewDense(4, 1, []float64{0, 2, 4, 6})
	s := NewSeries(ts, values, Linear)
	for _, q := range []float64{0.3, 1.7, 3.14, 5.9} {
		if got := s.Value(q).AtVec(0); math.Abs(got-q) > 1e-12 {
			t.Errorf("Value(%v) = %v on linear data", q, got)
		}
	}
}
