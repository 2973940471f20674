// Package system contains the concrete dynamical systems observers are
// learned for. Every system is a stateless value implementing kkl.System;
// systems backed by experimental rigs additionally implement
// kkl.HardwareRemapper to convert raw sensor rows into the modeling
// convention.
package system

import (
	"gonum.org/v1/gonum/mat"
)

func vec(vals ...float64) mat.Vector {
	return mat.NewVecDense(len(vals), vals)
}
