// Package ode is an ordinary differential equation library that implements
// the Runge-Kutta methods https://en.wikipedia.org/wiki/Runge–Kutta_methods,
// both fixed-step (Euler, classic RK4) and adaptive
// (Dormand–Prince 4(5), https://en.wikipedia.org/wiki/Dormand–Prince_method).
// It integrates any vector field implementing the VectorField interface and
// supports batched integration of many initial conditions.
package ode

import (
	"gonum.org/v1/gonum/mat"
)

// VectorField is the right hand side of x'(t) = f(t, x(t)).
type VectorField interface {
	Derivative(t float64, x mat.Vector) mat.Vector
}

// Func adapts a plain function to the VectorField interface.
type Func func(t float64, x mat.Vector) mat.Vector

// Derivative evaluates the wrapped function.
func (f Func) Derivative(t float64, x mat.Vector) mat.Vector { return f(t, x) }

// butcherTableau describes the approximate solution, see
// https://en.wikipedia.org/wiki/Runge–Kutta_methods.
type butcherTableau struct {
	stages           int
	weights          [][]float64
	nodes            []float64
	rungeKuttaMatrix [][]float64
}

// RungeKutta holds the butcherTableau which describes the Runge Kutta method.
type RungeKutta struct {
	description butcherTableau
}

// Stages returns the number of derivative evaluations per step.
func (rk *RungeKutta) Stages() int { return rk.description.stages }

// Adaptive reports whether the tableau carries an embedded lower-order
// solution for error estimation.
func (rk *RungeKutta) Adaptive() bool { return len(rk.description.weights) == 2 }

// Step advances the state from time t by step h. It returns the updated
// state and, for adaptive tableaus, the local error estimate (nil for
// fixed-step tableaus).
func (rk *RungeKutta) Step(field VectorField, t, h float64, x mat.Vector) (*mat.VecDense, *mat.VecDense) {
	m := x.Len()
	tb := rk.description

	// The precomputed derivative points
	K := make([]mat.Vector, tb.stages)
	var tmp mat.VecDense
	for index := range K {
		tmp.CloneFromVec(x)
		// Combine previously computed derivative points according to the
		// Butcher Tableau.
		for index2, a := range tb.rungeKuttaMatrix[index] {
			if a != 0 {
				tmp.AddScaledVec(&tmp, h*a, K[index2])
			}
		}
		K[index] = field.Derivative(t+h*tb.nodes[index], &tmp)
	}

	// Sum up the different contributions with relevant weights.
	next := mat.NewVecDense(m, nil)
	next.CloneFromVec(x)
	var errEst *mat.VecDense
	if rk.Adaptive() {
		errEst = mat.NewVecDense(m, nil)
	}
	for index, k := range K {
		next.AddScaledVec(next, h*tb.weights[0][index], k)
		if errEst != nil {
			errEst.AddScaledVec(errEst, h*(tb.weights[0][index]-tb.weights[1][index]), k)
		}
	}
	return next, errEst
}

// NewRK4 function returns a fourth order Runge-Kutta object
func NewRK4() *RungeKutta {
	var temp butcherTableau
	temp.stages = 4
	temp.nodes = []float64{0, 1. / 2., 1. / 2., 1}
	temp.weights = [][]float64{{1. / 6., 1. / 3., 1. / 3., 1. / 6.}}
	temp.rungeKuttaMatrix = [][]float64{
		nil,
		{1. / 2.},
		{0, 1. / 2.},
		{0, 0, 1.},
	}
	return &RungeKutta{temp}
}

// NewEuler returns a Runge-Kutta object that does the Euler method.
func NewEuler() *RungeKutta {
	var temp butcherTableau
	temp.stages = 1
	temp.nodes = []float64{0}
	temp.weights = [][]float64{{1}}
	temp.rungeKuttaMatrix = [][]float64{nil}
	return &RungeKutta{temp}
}

// NewDopri5 implements the Dormand–Prince 4(5) pair,
// https://en.wikipedia.org/wiki/Dormand–Prince_method. The first weight row
// is the fifth order solution used to propagate the state, the second the
// embedded fourth order solution used for the error estimate.
func NewDopri5() *RungeKutta {
	var temp butcherTableau
	temp.stages = 7
	temp.nodes = []float64{0, 1. / 5., 3. / 10., 4. / 5., 8. / 9., 1., 1.}
	temp.weights = [][]float64{
		{35. / 384., 0, 500. / 1113., 125. / 192., -2187. / 6784., 11. / 84., 0},
		{5179. / 57600., 0, 7571. / 16695., 393. / 640., -92097. / 339200., 187. / 2100., 1. / 40.},
	}
	temp.rungeKuttaMatrix = [][]float64{
		nil,
		{1. / 5.},
		{3. / 40., 9. / 40.},
		{44. / 45., -56. / 15., 32. / 9.},
		{19372. / 6561., -25360. / 2187., 64448. / 6561., -212. / 729.},
		{9017. / 3168., -355. / 33., 46732. / 5247., 49. / 176., -5103. / 18656.},
		{35. / 384., 0, 500. / 1113., 125. / 192., -2187. / 6784., 11. / 84.},
	}
	return &RungeKutta{temp}
}
