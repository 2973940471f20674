// Package train implements the Learner that fits the observer's
// transformation networks on generated data: supervised regression or the
// unsupervised PDE-residual objective, with a plateau learning-rate
// schedule, early stopping and best-checkpoint retention.
package train

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	kkl "github.com/monabf/learn-observe-KKL"
	"github.com/monabf/learn-observe-KKL/nn"
	"github.com/monabf/learn-observe-KKL/observer"
	"github.com/monabf/learn-observe-KKL/sample"
)

// Target selects which transformation the Learner optimizes.
type Target int

const (
	// T fits the encoder on (x -> z) pairs.
	T Target = iota
	// TStar fits the decoder on (z -> x) pairs.
	TStar
	// Joint fits both networks with the autoencoder + PDE residual loss,
	// without using the z targets.
	Joint
)

// ParseTarget maps configuration strings to a Target.
func ParseTarget(s string) (Target, error) {
	switch s {
	case "T":
		return T, nil
	case "T_star", "TStar":
		return TStar, nil
	case "Autoencoder", "joint", "Joint":
		return Joint, nil
	}
	return T, &kkl.ConfigError{Field: "learner.method", Reason: fmt.Sprintf("unknown target %q", s)}
}

func (t Target) String() string {
	switch t {
	case T:
		return "T"
	case TStar:
		return "T_star"
	case Joint:
		return "Autoencoder"
	}
	return "unknown"
}

// Options configures a Learner.
type Options struct {
	Target        Target
	BatchSize     int
	MaxEpochs     int
	CheckValEvery int // validate every n epochs
	Optimizer     nn.AdamOptions
	Scheduler     PlateauOptions
	Stopper       EarlyStopOptions
	// PDEWeight scales the residual term of the Joint loss.
	PDEWeight float64
	Seed      int64
}

// DefaultOptions mirrors the reference experiment settings.
func DefaultOptions() Options {
	return Options{
		Target:        TStar,
		BatchSize:     100,
		MaxEpochs:     100,
		CheckValEvery: 3,
		Optimizer:     nn.DefaultAdamOptions(),
		Scheduler:     DefaultPlateauOptions(),
		Stopper:       DefaultEarlyStopOptions(),
		PDEWeight:     1e-1,
	}
}

// EpochStats records one epoch of training for reporting and run stores.
type EpochStats struct {
	Epoch     int
	LR        float64
	TrainLoss float64
	ValLoss   float64
	Validated bool
}

// Report summarises a completed fit.
type Report struct {
	History      []EpochStats
	Epochs       int
	BestEpoch    int
	BestValLoss  float64
	EarlyStopped bool
}

// Learner owns the transformation networks of one observer during
// training. It is the only writer of their parameters until Fit returns.
type Learner struct {
	Obs   *observer.LuenbergerObserver
	Train sample.Dataset
	Val   sample.Dataset
	Opts  Options

	// OnEpoch, when set, receives every epoch's statistics. It is a
	// reporting side effect and must not mutate the learner.
	OnEpoch func(EpochStats)

	optEnc *nn.Adam
	optDec *nn.Adam
	rng    *rand.Rand

	bestEnc  *nn.Network
	bestDec  *nn.Network
	bestLoss float64
}

// NewLearner validates the datasets against the observer dimensions and
// returns a ready learner.
func NewLearner(obs *observer.LuenbergerObserver, train, val sample.Dataset, opts Options) (*Learner, error) {
	if train.Len() == 0 {
		return nil, &kkl.ConfigError{Field: "training_data", Reason: "empty"}
	}
	if val.Len() == 0 {
		return nil, &kkl.ConfigError{Field: "validation_data", Reason: "empty"}
	}
	for _, ds := range []sample.Dataset{train, val} {
		if ds.DimX != obs.DimX || ds.DimZ != obs.DimZ {
			return nil, &kkl.ShapeError{Op: "learner dataset", Want: obs.DimX + obs.DimZ, Got: ds.DimX + ds.DimZ}
		}
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 100
	}
	if opts.MaxEpochs < 1 {
		opts.MaxEpochs = 100
	}
	if opts.CheckValEvery < 1 {
		opts.CheckValEvery = 1
	}
	if opts.Target == Joint && obs.System() == nil {
		return nil, &kkl.ConfigError{Field: "dynamics", Reason: "the PDE loss needs a bound system"}
	}
	return &Learner{
		Obs:      obs,
		Train:    train,
		Val:      val,
		Opts:     opts,
		optEnc:   nn.NewAdam(obs.Encoder, opts.Optimizer),
		optDec:   nn.NewAdam(obs.Decoder, opts.Optimizer),
		rng:      rand.New(rand.NewSource(opts.Seed)),
		bestLoss: math.Inf(1),
	}, nil
}

// Fit runs the training loop: shuffle and batch, optimize, periodically
// validate, adjust the learning rate on plateaus, retain the best
// snapshot, and stop early when the validation loss stalls. A NaN loss is
// a ConvergenceError and aborts immediately.
func (l *Learner) Fit(ctx context.Context) (*Report, error) {
	report := &Report{BestValLoss: math.Inf(1)}
	scheduler := newPlateau(l.Opts.Scheduler)
	stopper := newEarlyStopper(l.Opts.Stopper)

	idx := make([]int, l.Train.Len())
	for i := range idx {
		idx[i] = i
	}

	gradsEnc := nn.NewGrads(l.Obs.Encoder)
	gradsDec := nn.NewGrads(l.Obs.Decoder)

	for epoch := 1; epoch <= l.Opts.MaxEpochs; epoch++ {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		l.rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		trainLoss := 0.
		batches := 0
		for at := 0; at < len(idx); at += l.Opts.BatchSize {
			end := at + l.Opts.BatchSize
			if end > len(idx) {
				end = len(idx)
			}
			loss := l.batchStep(idx[at:end], gradsEnc, gradsDec)
			if math.IsNaN(loss) || math.IsInf(loss, 0) {
				return report, &kkl.ConvergenceError{Epoch: epoch, Loss: loss}
			}
			trainLoss += loss
			batches++
		}
		trainLoss /= float64(batches)

		stats := EpochStats{Epoch: epoch, LR: l.optEnc.LR(), TrainLoss: trainLoss}

		if epoch%l.Opts.CheckValEvery == 0 || epoch == l.Opts.MaxEpochs {
			valLoss := l.Loss(l.Val)
			if math.IsNaN(valLoss) || math.IsInf(valLoss, 0) {
				return report, &kkl.ConvergenceError{Epoch: epoch, Loss: valLoss}
			}
			stats.ValLoss = valLoss
			stats.Validated = true

			if valLoss < l.bestLoss {
				l.bestLoss = valLoss
				l.bestEnc = l.Obs.Encoder.Clone()
				l.bestDec = l.Obs.Decoder.Clone()
				report.BestEpoch = epoch
				report.BestValLoss = valLoss
			}

			if factor := scheduler.step(valLoss); factor != 1 {
				lr := l.optEnc.LR() * factor
				if lr < l.Opts.Scheduler.MinLR {
					lr = l.Opts.Scheduler.MinLR
				}
				l.optEnc.SetLR(lr)
				l.optDec.SetLR(lr)
			}

			if stopper.step(valLoss) {
				report.EarlyStopped = true
			}
		}

		report.History = append(report.History, stats)
		report.Epochs = epoch
		if l.OnEpoch != nil {
			l.OnEpoch(stats)
		}
		if report.EarlyStopped {
			break
		}
	}
	return report, nil
}

// Best returns the snapshot with the lowest validation loss seen so far,
// or the live networks when no validation has happened yet.
func (l *Learner) Best() (*nn.Network, *nn.Network, float64) {
	if l.bestEnc == nil {
		return l.Obs.Encoder, l.Obs.Decoder, l.bestLoss
	}
	return l.bestEnc, l.bestDec, l.bestLoss
}

// RestoreBest overwrites the observer's live networks with the best
// snapshot, so evaluation uses the retained checkpoint rather than the
// last epoch.
func (l *Learner) RestoreBest() {
	if l.bestEnc != nil {
		l.Obs.Encoder.CopyFrom(l.bestEnc)
		l.Obs.Decoder.CopyFrom(l.bestDec)
	}
}
