// Package checkpoint persists trained observers: a single gob artifact
// holding the full learner state, restorable into an equivalent live
// object, plus a SQLite store recording training runs and their epoch
// metrics.
package checkpoint

import (
	"encoding/gob"
	"os"

	"github.com/monabf/learn-observe-KKL/nn"
	"github.com/monabf/learn-observe-KKL/observer"
	"github.com/monabf/learn-observe-KKL/ode"
	"github.com/monabf/learn-observe-KKL/sample"
	"github.com/monabf/learn-observe-KKL/system"
	"github.com/monabf/learn-observe-KKL/train"
	"gonum.org/v1/gonum/mat"
)

// Artifact is the serialized form of a Learner: observer matrices and
// networks (live and best snapshot), the training and validation data,
// the training options and the epoch history. One artifact restores into
// an equivalent live learner for later evaluation sessions.
type Artifact struct {
	SystemName string

	DimX int
	DimY int
	DimZ int
	WC   float64

	D *mat.Dense
	F *mat.Dense

	Encoder *nn.Network
	Decoder *nn.Network

	BestEncoder *nn.Network
	BestDecoder *nn.Network
	BestValLoss float64

	Method string
	Solver ode.Options

	TrainData *mat.Dense
	ValData   *mat.Dense

	Options train.Options
	History []train.EpochStats
}

// FromLearner snapshots a learner, retaining the best networks alongside
// the live ones.
func FromLearner(l *train.Learner, report *train.Report) *Artifact {
	bestEnc, bestDec, bestLoss := l.Best()
	a := &Artifact{
		SystemName:  l.Obs.System().Name(),
		DimX:        l.Obs.DimX,
		DimY:        l.Obs.DimY,
		DimZ:        l.Obs.DimZ,
		WC:          l.Obs.WC,
		D:           l.Obs.D,
		F:           l.Obs.F,
		Encoder:     l.Obs.Encoder,
		Decoder:     l.Obs.Decoder,
		BestEncoder: bestEnc,
		BestDecoder: bestDec,
		BestValLoss: bestLoss,
		Method:      l.Obs.Method.String(),
		Solver:      l.Obs.Solver().Options(),
		TrainData:   l.Train.Data,
		ValData:     l.Val.Data,
		Options:     l.Opts,
	}
	if report != nil {
		a.History = report.History
	}
	return a
}

// Save writes the artifact to path as a single gob stream.
func (a *Artifact) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(a)
}

// Load reads an artifact written by Save.
func Load(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	a := &Artifact{}
	if err := gob.NewDecoder(f).Decode(a); err != nil {
		return nil, err
	}
	return a, nil
}

// Observer rebuilds a live observer from the artifact. With useBest set,
// the best-validation snapshot replaces the live networks, so evaluation
// uses the retained checkpoint rather than the final epoch.
func (a *Artifact) Observer(useBest bool) (*observer.LuenbergerObserver, error) {
	method, err := observer.ParseMethod(a.Method)
	if err != nil {
		return nil, err
	}
	obs, err := observer.New(observer.Config{
		DimX:   a.DimX,
		DimY:   a.DimY,
		DimZ:   a.DimZ,
		WC:     a.WC,
		D:      a.D,
		F:      a.F,
		Method: method,
		Solver: a.Solver,
	})
	if err != nil {
		return nil, err
	}
	obs.Encoder = a.Encoder
	obs.Decoder = a.Decoder
	if useBest && a.BestEncoder != nil {
		obs.Encoder = a.BestEncoder
		obs.Decoder = a.BestDecoder
	}

	sys, err := system.FromName(a.SystemName)
	if err != nil {
		return nil, err
	}
	if err := obs.SetDynamics(sys); err != nil {
		return nil, err
	}
	return obs, nil
}

// Learner restores the full live learner, including its datasets.
func (a *Artifact) Learner() (*train.Learner, error) {
	obs, err := a.Observer(false)
	if err != nil {
		return nil, err
	}
	trainDS := sample.Dataset{Data: a.TrainData, DimX: a.DimX, DimZ: a.DimZ}
	valDS := sample.Dataset{Data: a.ValData, DimX: a.DimX, DimZ: a.DimZ}
	return train.NewLearner(obs, trainDS, valDS, a.Options)
}
