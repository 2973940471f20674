package train

import "math"

// PlateauOptions configures the reduce-on-plateau learning rate schedule:
// when the validation loss fails to improve by more than Threshold for
// Patience consecutive validation checks, the learning rate is multiplied
// by Factor (never below MinLR).
type PlateauOptions struct {
	Factor    float64 `yaml:"factor"`
	Patience  int     `yaml:"patience"`
	Threshold float64 `yaml:"threshold"`
	MinLR     float64 `yaml:"min_lr"`
}

// DefaultPlateauOptions matches the reference experiments.
func DefaultPlateauOptions() PlateauOptions {
	return PlateauOptions{Factor: 0.1, Patience: 5, Threshold: 1e-4, MinLR: 1e-7}
}

type plateau struct {
	opts PlateauOptions
	best float64
	bad  int
}

func newPlateau(opts PlateauOptions) *plateau {
	return &plateau{opts: opts, best: inf()}
}

// step digests a validation loss and returns the multiplier to apply to
// the learning rate (1 when unchanged).
func (p *plateau) step(valLoss float64) float64 {
	if valLoss < p.best-p.opts.Threshold {
		p.best = valLoss
		p.bad = 0
		return 1
	}
	p.bad++
	if p.bad > p.opts.Patience {
		p.bad = 0
		return p.opts.Factor
	}
	return 1
}

// EarlyStopOptions configures early stopping on the validation loss.
type EarlyStopOptions struct {
	MinDelta float64 `yaml:"min_delta"`
	Patience int     `yaml:"patience"`
}

// DefaultEarlyStopOptions matches the reference experiments.
func DefaultEarlyStopOptions() EarlyStopOptions {
	return EarlyStopOptions{MinDelta: 1e-4, Patience: 10}
}

type earlyStopper struct {
	opts EarlyStopOptions
	best float64
	bad  int
}

func newEarlyStopper(opts EarlyStopOptions) *earlyStopper {
	return &earlyStopper{opts: opts, best: inf()}
}

// step digests a validation loss and reports whether training should stop.
func (s *earlyStopper) step(valLoss float64) bool {
	if valLoss < s.best-s.opts.MinDelta {
		s.best = valLoss
		s.bad = 0
		return false
	}
	s.bad++
	return s.bad >= s.opts.Patience
}

func inf() float64 {
	return math.Inf(1)
}
