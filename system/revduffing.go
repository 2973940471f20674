package system

import (
	"gonum.org/v1/gonum/mat"
)

// RevDuffing is the reversed Duffing oscillator
//
//	x1' = x2^3
//
//	x2' = -x1
//
// with measurement y = x1. Its trajectories are bounded closed orbits,
// which makes it the standard benchmark for KKL observer learning.
type RevDuffing struct{}

// NewRevDuffing returns the reversed Duffing oscillator.
func NewRevDuffing() RevDuffing { return RevDuffing{} }

// Dims returns (dimX, dimY) = (2, 1).
func (RevDuffing) Dims() (int, int) { return 2, 1 }

// Name identifies the system in run records.
func (RevDuffing) Name() string { return "Reversed_Duffing_Oscillator" }

// F evaluates the vector field.
func (RevDuffing) F(x mat.Vector) mat.Vector {
	x2 := x.AtVec(1)
	return vec(x2*x2*x2, -x.AtVec(0))
}

// H measures the first state.
func (RevDuffing) H(x mat.Vector) mat.Vector {
	return vec(x.AtVec(0))
}
