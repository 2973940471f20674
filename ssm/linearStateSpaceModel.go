package ssm

import (
	"errors"

	"github.com/monabf/learn-observe-KKL/signal"
	"gonum.org/v1/gonum/mat"
)

// LinearStateSpaceModel struct represents the system
//
// x'(t) = A x(t) + input[0](t) ... + input[N](t)
//
// where N is the number of inputs.
type LinearStateSpaceModel struct {
	// State Dynamics
	A mat.Matrix
	// List of input functions
	Input []signal.VectorFunction
}

// NewLinearStateSpaceModel creates a new Linear state space model
func NewLinearStateSpaceModel(A mat.Matrix, input ...signal.VectorFunction) *LinearStateSpaceModel {
	// Check that system parameters match
	m, n := A.Dims()
	if m != n {
		panic(errors.New("state transition matrix must be square"))
	}
	for _, inp := range input {
		if inp.B.Len() != m {
			panic(errors.New("input vector doesn't match state transition matrix"))
		}
	}
	return &LinearStateSpaceModel{A, input}
}

// NewAutonomousLinearStateSpaceModel creates a linear model without inputs,
// x'(t) = A x(t).
func NewAutonomousLinearStateSpaceModel(A mat.Matrix) *LinearStateSpaceModel {
	return NewLinearStateSpaceModel(A)
}

// Derivative returns the state derivative
// x'(t) = Ax(t) + Bu(t)
// where state = x(t) at an arbitrary time t.
func (model *LinearStateSpaceModel) Derivative(t float64, state mat.Vector) mat.Vector {
	m, _ := model.A.Dims()
	if state.Len() != m {
		panic(errors.New("state vector doesn't match state transition matrix"))
	}

	res := mat.NewVecDense(m, nil)
	res.MulVec(model.A, state)
	for _, input := range model.Input {
		res.AddVec(res, input.Bu(t))
	}
	return res
}

// StateSpaceOrder returns the state space order.
func (model *LinearStateSpaceModel) StateSpaceOrder() int {
	m, _ := model.A.Dims()
	return m
}

// Stable reports whether all eigenvalues of A have strictly negative real
// part, i.e. whether the autonomous system x' = Ax converges to zero.
func (model *LinearStateSpaceModel) Stable() bool {
	return Stable(model.A)
}

// Stable reports whether every eigenvalue of A has negative real part.
func Stable(A mat.Matrix) bool {
	m, n := A.Dims()
	if m != n {
		return false
	}
	var dense mat.Dense
	dense.CloneFrom(A)
	var eig mat.Eigen
	if ok := eig.Factorize(&dense, mat.EigenNone); !ok {
		return false
	}
	for _, v := range eig.Values(nil) {
		if real(v) >= 0 {
			return false
		}
	}
	return true
}
