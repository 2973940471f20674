// Package ssm provides the linear state space model driving the KKL
// observer coordinates:
//
//	z'(t) = D z(t) + F y(t)
//
// expressed as a matrix D and a list of vector-valued input functions.
package ssm

import (
	"gonum.org/v1/gonum/mat"
)

// StateSpaceModel is the contract shared by the models in this package:
// a differentiable state plus the state space order.
type StateSpaceModel interface {
	// Derivative of the state evaluated at time t and state(t).
	Derivative(t float64, state mat.Vector) mat.Vector
	// StateSpaceOrder returns the state space order.
	StateSpaceOrder() int
}
