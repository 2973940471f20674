package sample

import (
	"errors"
	"log"
	"math"
	"math/rand"
	"sync"

	kkl "github.com/monabf/learn-observe-KKL"
	"github.com/monabf/learn-observe-KKL/observer"
	"github.com/monabf/learn-observe-KKL/ode"
	"gonum.org/v1/gonum/mat"
)

// Generator produces observer training data for a configured
// LuenbergerObserver with bound dynamics. z components always come from
// actually solving the coupled ODE, never from a learned map.
type Generator struct {
	obs *observer.LuenbergerObserver
	rng *rand.Rand
	// NoiseStd adds zero-mean Gaussian noise to the z columns of
	// generated samples; zero disables it.
	NoiseStd float64
}

// NewGenerator returns a generator with its own reproducible random
// source.
func NewGenerator(obs *observer.LuenbergerObserver, seed int64) *Generator {
	return &Generator{obs: obs, rng: rand.New(rand.NewSource(seed))}
}

// Rand exposes the generator's random source so downstream steps
// (dataset splitting) stay on the same reproducible stream.
func (g *Generator) Rand() *rand.Rand { return g.rng }

// joint couples the plant and the linear observer coordinates into the
// augmented field [f(x); D z + F h(x)].
func (g *Generator) joint() ode.Augmented {
	sys := g.obs.System()
	return ode.Augmented{
		DimA:   g.obs.DimX,
		FieldA: func(t float64, xa mat.Vector) mat.Vector { return sys.F(xa) },
		FieldB: func(t float64, xa, xb mat.Vector) mat.Vector {
			res := mat.NewVecDense(g.obs.DimZ, nil)
			res.MulVec(g.obs.D, xb)
			var fh mat.VecDense
			fh.MulVec(g.obs.F, sys.H(xa))
			res.AddVec(res, &fh)
			return res
		},
	}
}

// settleTime returns k characteristic time constants of the observer
// dynamics, 1 / min |Re lambda(D)| each, the horizon after which z has
// converged to its asymptotic relationship with x.
func (g *Generator) settleTime(k float64) float64 {
	var dense mat.Dense
	dense.CloneFrom(g.obs.D)
	var eig mat.Eigen
	if ok := eig.Factorize(&dense, mat.EigenNone); !ok {
		return k / (2 * math.Pi * g.obs.WC)
	}
	minRe := math.Inf(1)
	for _, v := range eig.Values(nil) {
		if re := math.Abs(real(v)); re < minRe && re > 0 {
			minRe = re
		}
	}
	if math.IsInf(minRe, 1) {
		return k / (2 * math.Pi * g.obs.WC)
	}
	return k / minRe
}

// SVL generates numSamples supervised (x, z) pairs over the box limits
// using the requested space-filling design. For every mesh point the
// plant is first integrated backwards for k time constants, then the
// coupled plant+observer system is integrated forwards from (x_backward,
// z = 0) over the same horizon, so the trajectory ends at the sampled
// point with z carrying the converged observer coordinates T(x).
// Samples whose integration diverges are dropped, not substituted.
func (g *Generator) SVL(limits [][2]float64, numSamples int, method SamplingMethod, k float64) (Dataset, error) {
	if g.obs.System() == nil {
		return Dataset{}, &kkl.ConfigError{Field: "dynamics", Reason: "observer has no bound system"}
	}
	mesh, err := Mesh(g.rng, limits, numSamples, method)
	if err != nil {
		return Dataset{}, err
	}

	tc := g.settleTime(k)
	// Two integration points suffice: only the endpoint states are kept.
	ts := []float64{0, tc}

	solver := g.obs.Solver()
	sys := g.obs.System()
	reversed := ode.Reversed(ode.Func(func(t float64, x mat.Vector) mat.Vector {
		return sys.F(x)
	}))
	jointField := g.joint()

	dimX, dimZ := g.obs.DimX, g.obs.DimZ
	rows := make([][]float64, numSamples)
	errs := make([]error, numSamples)

	var wg sync.WaitGroup
	wg.Add(numSamples)
	for i := 0; i < numSamples; i++ {
		go func(i int) {
			defer wg.Done()
			back, err := solver.Integrate(reversed, mesh.RowView(i), ts)
			if err != nil {
				errs[i] = err
				return
			}

			init := mat.NewVecDense(dimX+dimZ, nil)
			for j := 0; j < dimX; j++ {
				init.SetVec(j, back.At(1, j))
			}
			fwd, err := solver.Integrate(jointField, init, ts)
			if err != nil {
				errs[i] = err
				return
			}
			rows[i] = rawRow(fwd, 1)
		}(i)
	}
	wg.Wait()

	kept := make([][]float64, 0, numSamples)
	dropped := 0
	for i := range rows {
		if errs[i] != nil {
			var div *kkl.DivergenceError
			if errors.As(errs[i], &div) {
				dropped++
				continue
			}
			return Dataset{}, errs[i]
		}
		kept = append(kept, rows[i])
	}
	if dropped > 0 {
		log.Printf("sample: dropped %d of %d divergent samples", dropped, numSamples)
	}
	if len(kept) == 0 {
		return Dataset{}, &kkl.ConfigError{Field: "sampling", Reason: "all samples diverged"}
	}

	data := mat.NewDense(len(kept), dimX+dimZ, nil)
	for i, row := range kept {
		data.SetRow(i, row)
	}
	ds := Dataset{Data: data, DimX: dimX, DimZ: dimZ}
	g.addNoise(ds)
	return ds, nil
}

// Trajectories integrates full joint trajectories from numICs initial
// conditions drawn over limits, over tsim at fixed dt, starting the
// observer coordinates at zero. Divergent trajectories are dropped.
func (g *Generator) Trajectories(limits [][2]float64, numICs int, method SamplingMethod, tsim observer.Span, dt float64) (TrajectorySet, error) {
	if g.obs.System() == nil {
		return TrajectorySet{}, &kkl.ConfigError{Field: "dynamics", Reason: "observer has no bound system"}
	}
	mesh, err := Mesh(g.rng, limits, numICs, method)
	if err != nil {
		return TrajectorySet{}, err
	}

	ts := ode.Grid(tsim.T0, tsim.T1, dt)
	dimX, dimZ := g.obs.DimX, g.obs.DimZ
	solver := g.obs.Solver()
	jointField := g.joint()

	trajs := make([]*mat.Dense, numICs)
	errs := make([]error, numICs)
	var wg sync.WaitGroup
	wg.Add(numICs)
	for i := 0; i < numICs; i++ {
		go func(i int) {
			defer wg.Done()
			init := mat.NewVecDense(dimX+dimZ, nil)
			for j := 0; j < dimX; j++ {
				init.SetVec(j, mesh.At(i, j))
			}
			trajs[i], errs[i] = solver.Integrate(jointField, init, ts)
		}(i)
	}
	wg.Wait()

	set := TrajectorySet{DimX: dimX, DimZ: dimZ}
	dropped := 0
	for i := range trajs {
		if errs[i] != nil {
			var div *kkl.DivergenceError
			if errors.As(errs[i], &div) {
				dropped++
				continue
			}
			return TrajectorySet{}, errs[i]
		}
		set.Trajs = append(set.Trajs, Trajectory{Ts: ts, Data: trajs[i]})
	}
	if dropped > 0 {
		log.Printf("sample: dropped %d of %d divergent trajectories", dropped, numICs)
	}
	return set, nil
}

// Forward integrates a single joint trajectory from init (a stacked
// [x0; z0] vector) over tsim at dt and keeps only the tail after k
// observer time constants, downsampled to numDatapoints rows. It
// supplements mesh data with samples along a genuine forward trajectory.
func (g *Generator) Forward(init mat.Vector, tsim observer.Span, numDatapoints int, k, dt float64) (Dataset, error) {
	if g.obs.System() == nil {
		return Dataset{}, &kkl.ConfigError{Field: "dynamics", Reason: "observer has no bound system"}
	}
	dimX, dimZ := g.obs.DimX, g.obs.DimZ
	if err := kkl.CheckDim("sample.Forward init", init, dimX+dimZ); err != nil {
		return Dataset{}, err
	}

	ts := ode.Grid(tsim.T0, tsim.T1, dt)
	traj, err := g.obs.Solver().Integrate(g.joint(), init, ts)
	if err != nil {
		return Dataset{}, err
	}

	cut := tsim.T0 + g.settleTime(k)
	first := 0
	for first < len(ts) && ts[first] < cut {
		first++
	}
	if first >= len(ts)-1 {
		return Dataset{}, &kkl.ConfigError{Field: "tsim", Reason: "horizon shorter than the observer transient"}
	}

	avail := len(ts) - first
	if numDatapoints <= 0 || numDatapoints > avail {
		numDatapoints = avail
	}
	stride := avail / numDatapoints

	data := mat.NewDense(numDatapoints, dimX+dimZ, nil)
	for i := 0; i < numDatapoints; i++ {
		data.SetRow(i, rawRow(traj, first+i*stride))
	}
	ds := Dataset{Data: data, DimX: dimX, DimZ: dimZ}
	g.addNoise(ds)
	return ds, nil
}

func (g *Generator) addNoise(ds Dataset) {
	if g.NoiseStd <= 0 {
		return
	}
	z := ds.Z()
	r, c := z.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			z.Set(i, j, z.At(i, j)+g.rng.NormFloat64()*g.NoiseStd)
		}
	}
}
