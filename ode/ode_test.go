package ode

import (
	"errors"
	"math"
	"testing"

	kkl "github.com/monabf/learn-observe-KKL"
	"gonum.org/v1/gonum/mat"
)

func TestRK4Stages(t *testing.T) {
	if got := NewRK4().Stages(); got != 4 {
		t.Errorf("RK4 should have four stages, got %v", got)
	}
	if NewRK4().Adaptive() {
		t.Error("RK4 is a fixed-step method")
	}
}

func TestEulerStages(t *testing.T) {
	if got := NewEuler().Stages(); got != 1 {
		t.Errorf("wrong number of stages: %v", got)
	}
}

func TestDopri5Stages(t *testing.T) {
	rk := NewDopri5()
	if got := rk.Stages(); got != 7 {
		t.Errorf("Dormand-Prince should have seven stages, got %v", got)
	}
	if !rk.Adaptive() {
		t.Error("dopri5 must report an error estimate")
	}
}

// decay is x' = -x, solution x(t) = x0 exp(-t).
var decay = Func(func(t float64, x mat.Vector) mat.Vector {
	res := mat.NewVecDense(x.Len(), nil)
	res.ScaleVec(-1, x)
	return res
})

func TestIntegrateExponentialDecay(t *testing.T) {
	for _, method := range []string{MethodRK4, MethodEuler, MethodDopri5} {
		opts := DefaultOptions()
		opts.Method = method
		opts.StepSize = 1e-3
		opts.Tol = 1e-9
		solver, err := NewSolver(opts)
		if err != nil {
			t.Fatal(err)
		}

		ts := []float64{0, 0.5, 1, 2}
		x0 := mat.NewVecDense(1, []float64{1})
		res, err := solver.Integrate(decay, x0, ts)
		if err != nil {
			t.Fatalf("%s: %v", method, err)
		}

		tol := 1e-6
		if method == MethodEuler {
			tol = 1e-2
		}
		for i, ti := range ts {
			want := math.Exp(-ti)
			if got := res.At(i, 0); math.Abs(got-want) > tol {
				t.Errorf("%s: x(%v) = %v, want %v", method, ti, got, want)
			}
		}
	}
}

func TestIntegrateLandsOnGrid(t *testing.T) {
	opts := DefaultOptions()
	opts.Method = MethodDopri5
	solver, err := NewSolver(opts)
	if err != nil {
		t.Fatal(err)
	}
	// Awkward grid spacings must still be hit exactly.
	ts := []float64{0, 0.1234567, 0.9, 1.234567891}
	x0 := mat.NewVecDense(2, []float64{1, -3})
	res, err := solver.Integrate(decay, x0, ts)
	if err != nil {
		t.Fatal(err)
	}
	r, c := res.Dims()
	if r != len(ts) || c != 2 {
		t.Fatalf("result shape %dx%d, want %dx2", r, c, len(ts))
	}
	for i, ti := range ts {
		want := math.Exp(-ti)
		if got := res.At(i, 0); math.Abs(got-want) > 1e-6 {
			t.Errorf("x(%v) = %v, want %v", ti, got, want)
		}
	}
}

func TestIntegrateBatchMatchesSequential(t *testing.T) {
	solver, err := NewSolver(DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	ts := Grid(0, 1, 0.1)
	x0s := mat.NewDense(4, 2, []float64{
		1, 0,
		0, 1,
		-2, 3,
		0.5, -0.5,
	})

	batch, err := solver.IntegrateBatch(decay, x0s, ts)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		single, err := solver.Integrate(decay, x0s.RowView(i), ts)
		if err != nil {
			t.Fatal(err)
		}
		if !mat.EqualApprox(batch[i], single, 1e-14) {
			t.Errorf("batch row %d differs from sequential result", i)
		}
	}
}

func TestIntegrateDivergence(t *testing.T) {
	explode := Func(func(tt float64, x mat.Vector) mat.Vector {
		res := mat.NewVecDense(x.Len(), nil)
		res.ScaleVec(50, x)
		return res
	})
	opts := DefaultOptions()
	opts.SanityBound = 1e3
	opts.StepSize = 1e-2
	solver, err := NewSolver(opts)
	if err != nil {
		t.Fatal(err)
	}
	_, err = solver.Integrate(explode, mat.NewVecDense(1, []float64{1}), []float64{0, 1})
	var div *kkl.DivergenceError
	if !errors.As(err, &div) {
		t.Fatalf("expected a DivergenceError, got %v", err)
	}
	if div.Norm <= div.Bound {
		t.Errorf("reported norm %v should exceed the bound %v", div.Norm, div.Bound)
	}
}

func TestNewSolverRejectsBadOptions(t *testing.T) {
	if _, err := NewSolver(Options{Method: "leapfrog", StepSize: 1e-3}); err == nil {
		t.Error("unknown method accepted")
	}
	if _, err := NewSolver(Options{Method: MethodRK4}); err == nil {
		t.Error("zero step size accepted for a fixed-step method")
	}
	if _, err := NewSolver(Options{Method: MethodDopri5}); err == nil {
		t.Error("zero tolerance accepted for an adaptive method")
	}
}

func TestReversedField(t *testing.T) {
	// Integrating x' = -x backwards for time tc then the original field
	// forwards for tc must return to the start.
	solver, err := NewSolver(DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	ts := []float64{0, 0.7}
	x0 := mat.NewVecDense(2, []float64{0.3, -1.1})

	back, err := solver.Integrate(Reversed(decay), x0, ts)
	if err != nil {
		t.Fatal(err)
	}
	fwd, err := solver.Integrate(decay, back.RowView(1), ts)
	if err != nil {
		t.Fatal(err)
	}
	for j := 0; j < 2; j++ {
		if got, want := fwd.At(1, j), x0.AtVec(j); math.Abs(got-want) > 1e-8 {
			t.Errorf("component %d: round trip gave %v, want %v", j, got, want)
		}
	}
}

func TestAugmentedField(t *testing.T) {
	// [a' ; b'] with a' = -a and b' = a - b: b converges toward a.
	field := Augmented{
		DimA: 1,
		FieldA: func(tt float64, xa mat.Vector) mat.Vector {
			res := mat.NewVecDense(1, nil)
			res.SetVec(0, -xa.AtVec(0))
			return res
		},
		FieldB: func(tt float64, xa, xb mat.Vector) mat.Vector {
			res := mat.NewVecDense(1, nil)
			res.SetVec(0, xa.AtVec(0)-xb.AtVec(0))
			return res
		},
	}
	d := field.Derivative(0, mat.NewVecDense(2, []float64{2, 5}))
	if got := d.AtVec(0); got != -2 {
		t.Errorf("plant part: got %v, want -2", got)
	}
	if got := d.AtVec(1); got != -3 {
		t.Errorf("coupled part: got %v, want -3", got)
	}
}

func TestGrid(t *testing.T) {
	ts := Grid(0, 1, 0.25)
	want := []float64{0, 0.25, 0.5, 0.75}
	if len(ts) != len(want) {
		t.Fatalf("grid length %d, want %d", len(ts), len(want))
	}
	for i := range want {
		if math.Abs(ts[i]-want[i]) > 1e-12 {
			t.Errorf("ts[%d] = %v, want %v", i, ts[i], want[i])
		}
	}
}
