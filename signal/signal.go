// Package signal provides the input-signal abstractions used by the state
// space models and the observer: vector-valued input functions and
// interpolation of sampled measurement series.
package signal

import (
	"gonum.org/v1/gonum/mat"
)

// Signal holds the signal interface
type Signal interface {
	Value(float64) mat.Vector
}
