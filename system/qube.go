package system

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// QuanserQubeServo2 models the unactuated Quanser Qube-Servo 2 Furuta
// pendulum with state (theta, alpha, theta', alpha'): rotary arm angle,
// pendulum angle and their velocities. The equations of motion follow the
// manufacturer parameters; the motor input is zero during observer data
// generation, only the back-EMF braking torque remains.
type QuanserQubeServo2 struct {
	// Motor
	Rm float64 // terminal resistance [Ohm]
	Kt float64 // torque constant [N m / A]
	Km float64 // back-EMF constant [V s / rad]
	// Rotary arm
	Mr float64 // mass [kg]
	Lr float64 // length [m]
	Dr float64 // viscous damping [N m s / rad]
	// Pendulum
	Mp float64 // mass [kg]
	Lp float64 // length [m]
	Dp float64 // viscous damping [N m s / rad]

	G float64 // gravity [m / s^2]

	// MeasureAlpha adds the pendulum angle to the measurement, giving
	// y = (theta, alpha) instead of y = theta.
	MeasureAlpha bool
}

// NewQuanserQubeServo2 returns the Qube with the manufacturer parameters,
// measuring only the arm angle theta.
func NewQuanserQubeServo2() QuanserQubeServo2 {
	return QuanserQubeServo2{
		Rm: 8.4, Kt: 0.042, Km: 0.042,
		Mr: 0.095, Lr: 0.085, Dr: 5e-4,
		Mp: 0.024, Lp: 0.129, Dp: 5e-5,
		G: 9.81,
	}
}

// NewQuanserQubeServo2Meas2 returns the Qube measuring both angles.
func NewQuanserQubeServo2Meas2() QuanserQubeServo2 {
	s := NewQuanserQubeServo2()
	s.MeasureAlpha = true
	return s
}

// Dims returns (dimX, dimY).
func (s QuanserQubeServo2) Dims() (int, int) {
	if s.MeasureAlpha {
		return 4, 2
	}
	return 4, 1
}

// Name identifies the system in run records.
func (s QuanserQubeServo2) Name() string {
	if s.MeasureAlpha {
		return "QuanserQubeServo2_meas2"
	}
	return "QuanserQubeServo2_meas1"
}

// F evaluates the Furuta pendulum equations of motion by solving the
// two-by-two mass matrix at the current configuration.
func (s QuanserQubeServo2) F(x mat.Vector) mat.Vector {
	alpha := x.AtVec(1)
	thetaDot := x.AtVec(2)
	alphaDot := x.AtVec(3)

	sinA, cosA := math.Sin(alpha), math.Cos(alpha)

	jr := s.Mr * s.Lr * s.Lr / 12
	jp := s.Mp * s.Lp * s.Lp / 12

	// Mass matrix entries.
	m11 := s.Mp*s.Lr*s.Lr + 0.25*s.Mp*s.Lp*s.Lp*sinA*sinA + jr
	m12 := -0.5 * s.Mp * s.Lp * s.Lr * cosA
	m22 := jp + 0.25*s.Mp*s.Lp*s.Lp

	// Coriolis, centrifugal and gravity terms.
	c1 := 0.5*s.Mp*s.Lp*s.Lp*sinA*cosA*thetaDot*alphaDot +
		0.5*s.Mp*s.Lp*s.Lr*sinA*alphaDot*alphaDot
	c2 := -0.25*s.Mp*s.Lp*s.Lp*cosA*sinA*thetaDot*thetaDot +
		0.5*s.Mp*s.Lp*s.G*sinA

	// Back-EMF braking with zero input voltage.
	tau := -s.Kt * s.Km * thetaDot / s.Rm

	r1 := tau - s.Dr*thetaDot - c1
	r2 := -s.Dp*alphaDot - c2

	det := m11*m22 - m12*m12
	thetaDD := (m22*r1 - m12*r2) / det
	alphaDD := (m11*r2 - m12*r1) / det

	return vec(thetaDot, alphaDot, thetaDD, alphaDD)
}

// H measures the arm angle, and the pendulum angle when MeasureAlpha is set.
func (s QuanserQubeServo2) H(x mat.Vector) mat.Vector {
	if s.MeasureAlpha {
		return vec(x.AtVec(0), x.AtVec(1))
	}
	return vec(x.AtVec(0))
}

// RemapHardware converts a raw encoder row (theta, alpha, theta', alpha')
// into the modeling convention: theta wrapped into [-pi, pi], alpha into
// [0, 2pi). Velocities pass through unchanged.
func (s QuanserQubeServo2) RemapHardware(raw []float64) []float64 {
	out := make([]float64, len(raw))
	copy(out, raw)
	if len(out) > 0 {
		out[0] = WrapToPi(out[0])
	}
	if len(out) > 1 {
		out[1] = WrapTo2Pi(out[1])
	}
	return out
}

// WrapToPi wraps an angle into [-pi, pi).
func WrapToPi(a float64) float64 {
	return WrapTo2Pi(a+math.Pi) - math.Pi
}

// WrapTo2Pi wraps an angle into [0, 2pi).
func WrapTo2Pi(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}
