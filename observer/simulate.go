package observer

import (
	kkl "github.com/monabf/learn-observe-KKL"
	"github.com/monabf/learn-observe-KKL/ode"
	"github.com/monabf/learn-observe-KKL/signal"
	"github.com/monabf/learn-observe-KKL/ssm"
	"gonum.org/v1/gonum/mat"
)

// Span is a simulation interval [T0, T1).
type Span struct {
	T0 float64 `yaml:"t0"`
	T1 float64 `yaml:"t1"`
}

// Simulate integrates the linear observer dynamics
//
//	z'(t) = D z(t) + F y(t)
//
// driven by the interpolated measurement series y over tsim at resolution
// dt, starting from z0 (zero when nil). It returns the time grid and one z
// row per grid point.
func (o *LuenbergerObserver) Simulate(y *signal.Series, tsim Span, dt float64, z0 mat.Vector) ([]float64, *mat.Dense, error) {
	if y.Dim() != o.DimY {
		return nil, nil, &kkl.ShapeError{Op: "observer.Simulate", Want: o.DimY, Got: y.Dim()}
	}
	if z0 == nil {
		z0 = mat.NewVecDense(o.DimZ, nil)
	}
	if err := kkl.CheckDim("observer.Simulate z0", z0, o.DimZ); err != nil {
		return nil, nil, err
	}

	// Each measurement channel j enters as the input F[:,j] y_j(t).
	inputs := make([]signal.VectorFunction, o.DimY)
	for j := 0; j < o.DimY; j++ {
		j := j
		inputs[j] = signal.NewInput(func(t float64) float64 {
			return y.Value(t).AtVec(j)
		}, o.F.ColView(j))
	}
	model := ssm.NewLinearStateSpaceModel(o.D, inputs...)

	ts := ode.Grid(tsim.T0, tsim.T1, dt)
	z, err := o.solver.Integrate(model, z0, ts)
	if err != nil {
		return nil, nil, err
	}
	return ts, z, nil
}

// Predict reconstructs the plant state trajectory from measurements: it
// forward-simulates the linear observer and decodes every observer state.
// This is the observer's core inference path; a divergence here is fatal
// and returned to the caller.
func (o *LuenbergerObserver) Predict(y *signal.Series, tsim Span, dt float64) ([]float64, *mat.Dense, error) {
	ts, z, err := o.Simulate(y, tsim, dt, nil)
	if err != nil {
		return nil, nil, err
	}
	xhat, err := o.DecodeBatch(z)
	if err != nil {
		return nil, nil, err
	}
	return ts, xhat, nil
}

// SimulateCorrected is an alternative inference mode that augments the
// linear observer dynamics with the encoder's PDE defect evaluated along
// the decoded estimate:
//
//	z' = D z + F y(t) + (dT/dx f(xhat) - D T(xhat) - F h(xhat)),  xhat = T*(z)
//
// For a perfectly trained transformation the correction vanishes and the
// mode coincides with Simulate. It is kept as an explicitly selected
// strategy, not the default prediction path.
func (o *LuenbergerObserver) SimulateCorrected(y *signal.Series, tsim Span, dt float64, z0 mat.Vector) ([]float64, *mat.Dense, error) {
	if o.sys == nil {
		return nil, nil, &kkl.ConfigError{Field: "dynamics", Reason: "SetDynamics must be called before SimulateCorrected"}
	}
	if y.Dim() != o.DimY {
		return nil, nil, &kkl.ShapeError{Op: "observer.SimulateCorrected", Want: o.DimY, Got: y.Dim()}
	}
	if z0 == nil {
		z0 = mat.NewVecDense(o.DimZ, nil)
	}

	field := ode.Func(func(t float64, z mat.Vector) mat.Vector {
		res := mat.NewVecDense(o.DimZ, nil)
		res.MulVec(o.D, z)

		var fy mat.VecDense
		fy.MulVec(o.F, y.Value(t))
		res.AddVec(res, &fy)

		xhat := o.Decoder.Forward(z)
		zhat, jvp := o.Encoder.JVP(xhat, o.sys.F(xhat))

		var defect mat.VecDense
		defect.MulVec(o.D, zhat)
		var fh mat.VecDense
		fh.MulVec(o.F, o.sys.H(xhat))
		defect.AddVec(&defect, &fh)

		res.AddVec(res, jvp)
		res.SubVec(res, &defect)
		return res
	})

	ts := ode.Grid(tsim.T0, tsim.T1, dt)
	z, err := o.solver.Integrate(field, z0, ts)
	if err != nil {
		return nil, nil, err
	}
	return ts, z, nil
}
