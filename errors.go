package kkl

import "fmt"

// ShapeError reports a violated dimension contract between a system, the
// observer matrices and the transformation networks.
type ShapeError struct {
	Op   string
	Want int
	Got  int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: dimension mismatch, want %d got %d", e.Op, e.Want, e.Got)
}

// DivergenceError reports that an integrated state exceeded the solver's
// sanity bound. During data generation the offending sample is dropped;
// during prediction it is fatal.
type DivergenceError struct {
	T     float64
	Norm  float64
	Bound float64
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("integration diverged at t=%g: |x|=%g exceeds bound %g", e.T, e.Norm, e.Bound)
}

// ConfigError reports a missing or inconsistent configuration option.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration %s: %s", e.Field, e.Reason)
}

// ConvergenceError reports a training failure: the loss became NaN or
// otherwise unusable. It is surfaced immediately, never retried.
type ConvergenceError struct {
	Epoch int
	Loss  float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("training failed to converge at epoch %d: loss %g", e.Epoch, e.Loss)
}
