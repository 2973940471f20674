// Package nn implements the feed-forward networks approximating the KKL
// transformations, together with exact forward-mode Jacobians, backprop
// (including backprop through Jacobian-vector products, needed for the PDE
// residual loss) and the Adam optimizer.
package nn

import (
	"fmt"
	"math"
)

// Activation selects the hidden-layer nonlinearity. The output layer is
// always linear.
type Activation int

const (
	// SiLU is x * sigmoid(x), https://en.wikipedia.org/wiki/Swish_function.
	SiLU Activation = iota
	// ReLU is max(0, x).
	ReLU
	// Tanh is the hyperbolic tangent.
	Tanh
)

// ParseActivation maps a configuration string to an Activation.
func ParseActivation(s string) (Activation, error) {
	switch s {
	case "silu", "SiLU":
		return SiLU, nil
	case "relu", "ReLU":
		return ReLU, nil
	case "tanh", "Tanh":
		return Tanh, nil
	}
	return SiLU, fmt.Errorf("unknown activation %q", s)
}

func (a Activation) String() string {
	switch a {
	case SiLU:
		return "silu"
	case ReLU:
		return "relu"
	case Tanh:
		return "tanh"
	}
	return "unknown"
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// value evaluates the activation.
func (a Activation) value(x float64) float64 {
	switch a {
	case SiLU:
		return x * sigmoid(x)
	case ReLU:
		if x > 0 {
			return x
		}
		return 0
	case Tanh:
		return math.Tanh(x)
	}
	return x
}

// deriv evaluates the first derivative.
func (a Activation) deriv(x float64) float64 {
	switch a {
	case SiLU:
		s := sigmoid(x)
		return s + x*s*(1-s)
	case ReLU:
		if x > 0 {
			return 1
		}
		return 0
	case Tanh:
		t := math.Tanh(x)
		return 1 - t*t
	}
	return 1
}

// deriv2 evaluates the second derivative, required when backpropagating
// through a Jacobian-vector product.
func (a Activation) deriv2(x float64) float64 {
	switch a {
	case SiLU:
		s := sigmoid(x)
		return s * (1 - s) * (2 + x*(1-2*s))
	case ReLU:
		return 0
	case Tanh:
		t := math.Tanh(x)
		return -2 * t * (1 - t*t)
	}
	return 0
}
