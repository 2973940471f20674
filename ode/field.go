package ode

import (
	"gonum.org/v1/gonum/mat"
)

// Augmented couples two subsystems into a single vector field over the
// stacked state [xa; xb]. The first subsystem evolves on its own, the
// second is driven by both its own state and the first subsystem's state.
// This is the joint "plant + linear observer" system used to generate
// observer training data in one integration call.
type Augmented struct {
	// DimA is the dimension of the leading subsystem's state.
	DimA int
	// FieldA evaluates the derivative of the leading subsystem.
	FieldA func(t float64, xa mat.Vector) mat.Vector
	// FieldB evaluates the derivative of the trailing subsystem given
	// both states.
	FieldB func(t float64, xa, xb mat.Vector) mat.Vector
}

// Derivative evaluates the stacked derivative [f_a(xa); f_b(xa, xb)].
func (a Augmented) Derivative(t float64, x mat.Vector) mat.Vector {
	xa := slice(x, 0, a.DimA)
	xb := slice(x, a.DimA, x.Len())

	da := a.FieldA(t, xa)
	db := a.FieldB(t, xa, xb)

	res := mat.NewVecDense(x.Len(), nil)
	for i := 0; i < da.Len(); i++ {
		res.SetVec(i, da.AtVec(i))
	}
	for i := 0; i < db.Len(); i++ {
		res.SetVec(a.DimA+i, db.AtVec(i))
	}
	return res
}

// Reversed flips a vector field in time so that integrating it forward
// traces the original system backwards: g(t, x) = -f(t, x).
func Reversed(f VectorField) VectorField {
	return Func(func(t float64, x mat.Vector) mat.Vector {
		d := f.Derivative(t, x)
		res := mat.NewVecDense(d.Len(), nil)
		res.ScaleVec(-1, d)
		return res
	})
}

func slice(x mat.Vector, from, to int) mat.Vector {
	if v, ok := x.(*mat.VecDense); ok {
		return v.SliceVec(from, to)
	}
	res := mat.NewVecDense(to-from, nil)
	for i := from; i < to; i++ {
		res.SetVec(i-from, x.AtVec(i))
	}
	return res
}
