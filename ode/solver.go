package ode

import (
	"math"
	"sync"

	kkl "github.com/monabf/learn-observe-KKL"
	"github.com/monabf/learn-observe-KKL/gonumExtensions"
	"gonum.org/v1/gonum/mat"
)

// Solver method names recognised in Options.Method.
const (
	MethodRK4    = "rk4"
	MethodEuler  = "euler"
	MethodDopri5 = "dopri5"
)

// Options configures a Solver.
type Options struct {
	// Method is one of "rk4", "euler" (fixed step) or "dopri5" (adaptive).
	Method string `yaml:"method"`
	// StepSize is the fixed integration step. It is an upper bound: the
	// solver substeps so that the actual step divides every inter-sample
	// gap exactly and never exceeds StepSize.
	StepSize float64 `yaml:"step_size"`
	// Tol is the local error tolerance for adaptive methods.
	Tol float64 `yaml:"tol"`
	// SanityBound is the state-norm threshold beyond which the
	// integration is reported as divergent.
	SanityBound float64 `yaml:"sanity_bound"`
}

// DefaultOptions returns the solver options used throughout the
// experiments: fixed-step RK4 at 1e-3.
func DefaultOptions() Options {
	return Options{
		Method:      MethodRK4,
		StepSize:    1e-3,
		Tol:         1e-8,
		SanityBound: 1e6,
	}
}

// Solver integrates vector fields over requested time grids.
type Solver struct {
	rk   *RungeKutta
	opts Options
}

// NewSolver validates the options and returns a ready solver.
func NewSolver(opts Options) (*Solver, error) {
	if opts.SanityBound <= 0 {
		opts.SanityBound = DefaultOptions().SanityBound
	}
	var rk *RungeKutta
	switch opts.Method {
	case MethodRK4:
		rk = NewRK4()
	case MethodEuler:
		rk = NewEuler()
	case MethodDopri5:
		rk = NewDopri5()
	case "":
		return nil, &kkl.ConfigError{Field: "solver.method", Reason: "missing"}
	default:
		return nil, &kkl.ConfigError{Field: "solver.method", Reason: "unknown method " + opts.Method}
	}
	if rk.Adaptive() {
		if opts.Tol <= 0 {
			return nil, &kkl.ConfigError{Field: "solver.tol", Reason: "must be positive for adaptive methods"}
		}
	} else if opts.StepSize <= 0 {
		return nil, &kkl.ConfigError{Field: "solver.step_size", Reason: "must be positive for fixed-step methods"}
	}
	return &Solver{rk: rk, opts: opts}, nil
}

// Options returns the options the solver was built with.
func (s *Solver) Options() Options { return s.opts }

// Integrate solves x'(t) = f(t, x) from x(ts[0]) = x0 and returns the state
// evaluated exactly at the requested time points, one row per time point.
// The time grid must be strictly increasing. A DivergenceError is returned
// as soon as the state norm exceeds the sanity bound or turns NaN/Inf.
func (s *Solver) Integrate(field VectorField, x0 mat.Vector, ts []float64) (*mat.Dense, error) {
	if len(ts) < 1 {
		return nil, &kkl.ConfigError{Field: "ts", Reason: "empty time grid"}
	}
	m := x0.Len()
	res := mat.NewDense(len(ts), m, nil)
	res.SetRow(0, rawVec(x0))

	state := mat.NewVecDense(m, nil)
	state.CloneFromVec(x0)

	for i := 1; i < len(ts); i++ {
		if ts[i] <= ts[i-1] {
			return nil, &kkl.ConfigError{Field: "ts", Reason: "time grid must be strictly increasing"}
		}
		var err error
		if s.rk.Adaptive() {
			err = s.adaptiveAdvance(field, ts[i-1], ts[i], state)
		} else {
			err = s.fixedAdvance(field, ts[i-1], ts[i], state)
		}
		if err != nil {
			return nil, err
		}
		res.SetRow(i, state.RawVector().Data)
	}
	return res, nil
}

// IntegrateBatch integrates one trajectory per row of x0s concurrently,
// one goroutine per initial condition. Results are identical to calling
// Integrate sequentially on each row.
func (s *Solver) IntegrateBatch(field VectorField, x0s *mat.Dense, ts []float64) ([]*mat.Dense, error) {
	n, _ := x0s.Dims()
	res := make([]*mat.Dense, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(row int) {
			defer wg.Done()
			res[row], errs[row] = s.Integrate(field, x0s.RowView(row), ts)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

// fixedAdvance moves state from t0 to t1 using a constant substep that is
// never larger than the configured step size.
func (s *Solver) fixedAdvance(field VectorField, t0, t1 float64, state *mat.VecDense) error {
	span := t1 - t0
	n := int(math.Ceil(span / s.opts.StepSize))
	if n < 1 {
		n = 1
	}
	h := span / float64(n)
	t := t0
	for k := 0; k < n; k++ {
		next, _ := s.rk.Step(field, t, h, state)
		state.CopyVec(next)
		t = t0 + float64(k+1)*h
		if err := s.sanity(t, state); err != nil {
			return err
		}
	}
	return nil
}

// adaptiveAdvance moves state from t0 to t1, adapting the step so the local
// error estimate stays below the tolerance, and clamping the final step to
// land exactly on t1.
func (s *Solver) adaptiveAdvance(field VectorField, t0, t1 float64, state *mat.VecDense) error {
	const maxNumberOfIterations = 100000

	t := t0
	h := s.initialStep(t1 - t0)
	count := 0
	for t < t1 {
		if h > t1-t {
			h = t1 - t
		}
		next, errEst := s.rk.Step(field, t, h, state)
		localErr := errNorm(errEst, next, s.opts.Tol)

		if localErr <= 1 {
			state.CopyVec(next)
			t += h
			if err := s.sanity(t, state); err != nil {
				return err
			}
		}
		// Standard step-size controller for an order 4(5) pair.
		factor := 0.9 * math.Pow(math.Max(localErr, 1e-10), -1./5.)
		h *= math.Min(5, math.Max(0.2, factor))

		count++
		if count >= maxNumberOfIterations {
			return &kkl.DivergenceError{T: t, Norm: mat.Norm(state, 2), Bound: s.opts.SanityBound}
		}
	}
	return nil
}

func (s *Solver) initialStep(span float64) float64 {
	if s.opts.StepSize > 0 && s.opts.StepSize < span {
		return s.opts.StepSize
	}
	return span / 10
}

func (s *Solver) sanity(t float64, state *mat.VecDense) error {
	norm := mat.Norm(state, 2)
	if math.IsNaN(norm) || math.IsInf(norm, 0) || norm > s.opts.SanityBound ||
		gonumExtensions.NANORINFVec(state) {
		return &kkl.DivergenceError{T: t, Norm: norm, Bound: s.opts.SanityBound}
	}
	return nil
}

// errNorm scales the raw error estimate by the tolerance relative to the
// state magnitude; values at or below 1 mean the step is acceptable.
func errNorm(errEst, state *mat.VecDense, tol float64) float64 {
	if errEst == nil {
		return 0
	}
	sum := 0.
	for i := 0; i < errEst.Len(); i++ {
		scale := tol * (1 + math.Abs(state.AtVec(i)))
		e := errEst.AtVec(i) / scale
		sum += e * e
	}
	return math.Sqrt(sum / float64(errEst.Len()))
}

func rawVec(x mat.Vector) []float64 {
	res := make([]float64, x.Len())
	for i := range res {
		res[i] = x.AtVec(i)
	}
	return res
}
