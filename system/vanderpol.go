package system

import (
	"gonum.org/v1/gonum/mat"
)

// VanDerPol is the Van der Pol oscillator
//
//	x1' = x2
//
//	x2' = eps (1 - x1^2) x2 - x1
//
// with measurement y = x1.
type VanDerPol struct {
	Eps float64
}

// NewVanDerPol returns a Van der Pol oscillator with the usual eps = 1.
func NewVanDerPol() VanDerPol { return VanDerPol{Eps: 1} }

// Dims returns (dimX, dimY) = (2, 1).
func (VanDerPol) Dims() (int, int) { return 2, 1 }

// Name identifies the system in run records.
func (VanDerPol) Name() string { return "Van_der_Pol_Oscillator" }

// F evaluates the vector field.
func (s VanDerPol) F(x mat.Vector) mat.Vector {
	x1, x2 := x.AtVec(0), x.AtVec(1)
	return vec(x2, s.Eps*(1-x1*x1)*x2-x1)
}

// H measures the first state.
func (VanDerPol) H(x mat.Vector) mat.Vector {
	return vec(x.AtVec(0))
}
