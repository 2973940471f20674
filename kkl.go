// Package kkl holds the shared contracts for learning
// Kazantzis-Kravaris/Luenberger (KKL) observers: the dynamical system
// interface that every concrete plant implements, and the error taxonomy
// used across data generation, training and inference.
package kkl

import "gonum.org/v1/gonum/mat"

// System describes an autonomous dynamical system
//
//	x'(t) = f(x(t))
//
//	y(t)  = h(x(t))
//
// where x lives in R^dimX and y in R^dimY. Implementations must be
// stateless and side-effect free; F and H are called many times per
// integration step.
type System interface {
	// Dims returns the state and measurement dimensions (dimX, dimY).
	Dims() (int, int)
	// F evaluates the vector field f(x).
	F(x mat.Vector) mat.Vector
	// H evaluates the measurement map h(x).
	H(x mat.Vector) mat.Vector
	// Name identifies the system in run records and checkpoints.
	Name() string
}

// HardwareRemapper converts raw sensor rows into the state convention the
// System was modeled in, e.g. wrapping measured angles into the ranges the
// training data covered. Systems backed by experimental data implement it
// in addition to System.
type HardwareRemapper interface {
	RemapHardware(raw []float64) []float64
}

// CheckDim validates that a vector has the expected length and returns a
// ShapeError otherwise. op names the failing contract in the error.
func CheckDim(op string, x mat.Vector, want int) error {
	if got := x.Len(); got != want {
		return &ShapeError{Op: op, Want: want, Got: got}
	}
	return nil
}
