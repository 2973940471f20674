package system

import (
	"gonum.org/v1/gonum/mat"
)

// HarmonicOscillator is the linear system
//
//	x1' = x2
//
//	x2' = -omega^2 x1
//
// with measurement y = x1. For a linear plant the KKL transformation T is
// itself linear and available in closed form, so this system anchors the
// exactness tests of the data generator and the observer.
type HarmonicOscillator struct {
	Omega float64
}

// NewHarmonicOscillator returns a unit-frequency harmonic oscillator.
func NewHarmonicOscillator() HarmonicOscillator { return HarmonicOscillator{Omega: 1} }

// Dims returns (dimX, dimY) = (2, 1).
func (HarmonicOscillator) Dims() (int, int) { return 2, 1 }

// Name identifies the system in run records.
func (HarmonicOscillator) Name() string { return "Harmonic_Oscillator" }

// F evaluates the vector field.
func (s HarmonicOscillator) F(x mat.Vector) mat.Vector {
	return vec(x.AtVec(1), -s.Omega*s.Omega*x.AtVec(0))
}

// H measures the first state.
func (HarmonicOscillator) H(x mat.Vector) mat.Vector {
	return vec(x.AtVec(0))
}

// A returns the state matrix of the linear plant, used by tests that
// compute the closed-form transformation via a Sylvester equation.
func (s HarmonicOscillator) A() *mat.Dense {
	return mat.NewDense(2, 2, []float64{0, 1, -s.Omega * s.Omega, 0})
}

// C returns the measurement matrix of the linear plant.
func (s HarmonicOscillator) C() *mat.Dense {
	return mat.NewDense(1, 2, []float64{1, 0})
}
