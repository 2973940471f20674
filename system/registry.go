package system

import (
	"fmt"

	kkl "github.com/monabf/learn-observe-KKL"
)

// FromName resolves a system by its Name(), used when restoring
// checkpoint artifacts and when reading experiment configurations.
func FromName(name string) (kkl.System, error) {
	switch name {
	case "Reversed_Duffing_Oscillator", "revduffing":
		return NewRevDuffing(), nil
	case "Van_der_Pol_Oscillator", "vanderpol":
		return NewVanDerPol(), nil
	case "Harmonic_Oscillator", "harmonic":
		return NewHarmonicOscillator(), nil
	case "QuanserQubeServo2_meas1", "qube":
		return NewQuanserQubeServo2(), nil
	case "QuanserQubeServo2_meas2", "qube_meas2":
		return NewQuanserQubeServo2Meas2(), nil
	}
	return nil, fmt.Errorf("unknown system %q", name)
}
