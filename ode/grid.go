package ode

// Grid returns the uniform time grid t0, t0+dt, ... up to but not
// including t1.
func Grid(t0, t1, dt float64) []float64 {
	n := int((t1 - t0) / dt)
	if n < 1 {
		n = 1
	}
	ts := make([]float64, n)
	for i := range ts {
		ts[i] = t0 + float64(i)*dt
	}
	return ts
}
