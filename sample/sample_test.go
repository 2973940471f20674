package sample

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/monabf/learn-observe-KKL/nn"
	"github.com/monabf/learn-observe-KKL/observer"
	"github.com/monabf/learn-observe-KKL/system"
	"gonum.org/v1/gonum/mat"
)

var box = [][2]float64{{-1, 1}, {0, 2}}

func TestLatinHypercubeStratification(t *testing.T) {
	const n = 50
	rng := rand.New(rand.NewSource(1))
	pts := LatinHypercube(rng, box, n)

	r, c := pts.Dims()
	if r != n || c != 2 {
		t.Fatalf("shape %dx%d, want %dx2", r, c, n)
	}
	for j := 0; j < 2; j++ {
		lo, hi := box[j][0], box[j][1]
		width := (hi - lo) / n
		col := make([]float64, n)
		mat.Col(col, j, pts)
		sort.Float64s(col)
		for i, v := range col {
			if v < lo || v >= hi {
				t.Fatalf("axis %d: point %v outside the box", j, v)
			}
			// One point per stratum: the i-th sorted value lies in bin i.
			bin := int((v - lo) / width)
			if bin != i {
				t.Errorf("axis %d: sorted point %d falls in bin %d", j, i, bin)
			}
		}
	}
}

func TestUniformGrid(t *testing.T) {
	pts, err := UniformGrid(box, 9)
	if err != nil {
		t.Fatal(err)
	}
	r, _ := pts.Dims()
	if r != 9 {
		t.Fatalf("got %d points, want 9", r)
	}
	// Corners of the box must be present.
	foundCorner := false
	for i := 0; i < r; i++ {
		if pts.At(i, 0) == -1 && pts.At(i, 1) == 0 {
			foundCorner = true
		}
	}
	if !foundCorner {
		t.Error("grid misses the lower corner of the box")
	}

	if _, err := UniformGrid(box, 10); err == nil {
		t.Error("10 points over 2 dimensions is not a perfect square and must be rejected")
	}
}

func TestMeshDispatch(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	if _, err := Mesh(rng, box, 0, LHS); err == nil {
		t.Error("zero samples accepted")
	}
	pts, err := Mesh(rng, box, 16, Uniform)
	if err != nil {
		t.Fatal(err)
	}
	if r, _ := pts.Dims(); r != 16 {
		t.Errorf("got %d points", r)
	}
}

func TestDatasetViewsAndSplit(t *testing.T) {
	data := mat.NewDense(10, 5, nil)
	for i := 0; i < 10; i++ {
		for j := 0; j < 5; j++ {
			data.Set(i, j, float64(i*10+j))
		}
	}
	ds := Dataset{Data: data, DimX: 2, DimZ: 3}

	if ds.Len() != 10 {
		t.Fatalf("len = %d", ds.Len())
	}
	if _, c := ds.X().Dims(); c != 2 {
		t.Errorf("X has %d columns", c)
	}
	if _, c := ds.Z().Dims(); c != 3 {
		t.Errorf("Z has %d columns", c)
	}
	x, z := ds.Row(4)
	if x.AtVec(0) != 40 || z.AtVec(0) != 42 {
		t.Errorf("row 4 = (%v, %v)", x.AtVec(0), z.AtVec(0))
	}

	rng := rand.New(rand.NewSource(3))
	train, val := ds.Split(rng, 0.2, true)
	if train.Len() != 8 || val.Len() != 2 {
		t.Errorf("split sizes %d/%d, want 8/2", train.Len(), val.Len())
	}

	// Every original row must appear exactly once across the split.
	seen := map[float64]bool{}
	for _, part := range []Dataset{train, val} {
		for i := 0; i < part.Len(); i++ {
			x, _ := part.Row(i)
			seen[x.AtVec(0)] = true
		}
	}
	if len(seen) != 10 {
		t.Errorf("split lost or duplicated rows: %d distinct", len(seen))
	}
}

func TestConcatAndFlatten(t *testing.T) {
	a := Dataset{Data: mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6}), DimX: 1, DimZ: 2}
	b := Dataset{Data: mat.NewDense(1, 3, []float64{7, 8, 9}), DimX: 1, DimZ: 2}
	c := a.Concat(b)
	if c.Len() != 3 || c.Data.At(2, 2) != 9 {
		t.Error("concat lost rows")
	}

	set := TrajectorySet{
		Trajs: []Trajectory{
			{Ts: []float64{0, 1}, Data: a.Data},
			{Ts: []float64{0}, Data: b.Data},
		},
		DimX: 1, DimZ: 2,
	}
	flat := set.Flatten()
	if flat.Len() != 3 || flat.Data.At(2, 0) != 7 {
		t.Error("flatten misassembled the rows")
	}
}

func linearTestObserver(t *testing.T) (*observer.LuenbergerObserver, system.HarmonicOscillator) {
	t.Helper()
	sys := system.NewHarmonicOscillator()
	obs, err := observer.New(observer.Config{
		DimX: 2, DimY: 1, WC: 0.15,
		Activation: nn.SiLU, NumHL: 1, SizeHL: 5,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := obs.SetDynamics(sys); err != nil {
		t.Fatal(err)
	}
	return obs, sys
}

// closedFormT computes the exact linear transformation T of the harmonic
// oscillator from T A - D T = F C by direct elimination on the vectorised
// system.
func closedFormT(sys system.HarmonicOscillator, obs *observer.LuenbergerObserver) *mat.Dense {
	A, C := sys.A(), sys.C()
	dimZ := obs.DimZ
	n := dimZ * 2

	lhs := mat.NewDense(n, n, nil)
	var fc mat.Dense
	fc.Mul(obs.F, C)
	rhs := mat.NewVecDense(n, nil)
	for col := 0; col < 2; col++ {
		for row := 0; row < dimZ; row++ {
			r := col*dimZ + row
			for colP := 0; colP < 2; colP++ {
				lhs.Set(r, colP*dimZ+row, lhs.At(r, colP*dimZ+row)+A.At(colP, col))
			}
			for rowP := 0; rowP < dimZ; rowP++ {
				lhs.Set(r, col*dimZ+rowP, lhs.At(r, col*dimZ+rowP)-obs.D.At(row, rowP))
			}
			rhs.SetVec(r, fc.At(row, col))
		}
	}
	var sol mat.VecDense
	if err := sol.SolveVec(lhs, rhs); err != nil {
		panic(err)
	}
	T := mat.NewDense(dimZ, 2, nil)
	for col := 0; col < 2; col++ {
		for row := 0; row < dimZ; row++ {
			T.Set(row, col, sol.AtVec(col*dimZ+row))
		}
	}
	return T
}

func TestSVLMatchesClosedFormTransformation(t *testing.T) {
	obs, sys := linearTestObserver(t)
	T := closedFormT(sys, obs)

	gen := NewGenerator(obs, 11)
	ds, err := gen.SVL([][2]float64{{-1, 1}, {-1, 1}}, 20, LHS, 15)
	if err != nil {
		t.Fatal(err)
	}
	if ds.Len() == 0 {
		t.Fatal("no samples generated")
	}

	for i := 0; i < ds.Len(); i++ {
		x, z := ds.Row(i)
		var want mat.VecDense
		want.MulVec(T, x)
		for j := 0; j < obs.DimZ; j++ {
			if diff := math.Abs(z.AtVec(j) - want.AtVec(j)); diff > 1e-3 {
				t.Errorf("sample %d, z[%d]: generated %v, closed form %v", i, j, z.AtVec(j), want.AtVec(j))
			}
		}
	}
}

func TestSVLEndpointsLieOnMesh(t *testing.T) {
	obs, _ := linearTestObserver(t)
	gen := NewGenerator(obs, 4)

	limits := [][2]float64{{-1, 1}, {-1, 1}}
	ds, err := gen.SVL(limits, 10, LHS, 10)
	if err != nil {
		t.Fatal(err)
	}
	// The backward/forward construction must return x to the sampled box.
	for i := 0; i < ds.Len(); i++ {
		x, _ := ds.Row(i)
		for j := 0; j < 2; j++ {
			if v := x.AtVec(j); v < limits[j][0]-1e-3 || v > limits[j][1]+1e-3 {
				t.Errorf("sample %d: x[%d] = %v escaped the sampling box", i, j, v)
			}
		}
	}
}

func TestTrajectoriesShapes(t *testing.T) {
	obs, _ := linearTestObserver(t)
	gen := NewGenerator(obs, 5)

	set, err := gen.Trajectories([][2]float64{{-1, 1}, {-1, 1}}, 3, LHS,
		observer.Span{T0: 0, T1: 2}, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if len(set.Trajs) != 3 {
		t.Fatalf("got %d trajectories", len(set.Trajs))
	}
	for _, tr := range set.Trajs {
		r, c := tr.Data.Dims()
		if c != obs.DimX+obs.DimZ {
			t.Errorf("trajectory has %d columns, want %d", c, obs.DimX+obs.DimZ)
		}
		if r != len(tr.Ts) {
			t.Errorf("rows %d do not match time stamps %d", r, len(tr.Ts))
		}
		// Observer coordinates start at zero.
		for j := obs.DimX; j < c; j++ {
			if tr.Data.At(0, j) != 0 {
				t.Error("initial observer state should be zero")
			}
		}
	}
}

func TestForwardSkipsTransient(t *testing.T) {
	obs, _ := linearTestObserver(t)
	gen := NewGenerator(obs, 6)

	init := mat.NewVecDense(obs.DimX+obs.DimZ, []float64{0.5, 0.5, 0, 0, 0})
	ds, err := gen.Forward(init, observer.Span{T0: 0, T1: 40}, 50, 3, 0.01)
	if err != nil {
		t.Fatal(err)
	}
	if ds.Len() != 50 {
		t.Errorf("got %d datapoints, want 50", ds.Len())
	}

	// Horizon shorter than the transient must be rejected.
	if _, err := gen.Forward(init, observer.Span{T0: 0, T1: 0.5}, 10, 10, 0.01); err == nil {
		t.Error("transient longer than the horizon accepted")
	}
}

func TestGeneratorNoise(t *testing.T) {
	obs, _ := linearTestObserver(t)
	gen := NewGenerator(obs, 7)
	gen.NoiseStd = 0.5

	ds, err := gen.SVL([][2]float64{{-1, 1}, {-1, 1}}, 30, LHS, 10)
	if err != nil {
		t.Fatal(err)
	}
	clean := NewGenerator(obs, 7)
	ref, err := clean.SVL([][2]float64{{-1, 1}, {-1, 1}}, 30, LHS, 10)
	if err != nil {
		t.Fatal(err)
	}

	// Same seed, so only the z columns may differ, and they must differ.
	if !mat.EqualApprox(ds.X(), ref.X(), 1e-12) {
		t.Error("noise must not touch the x columns")
	}
	if mat.EqualApprox(ds.Z(), ref.Z(), 1e-12) {
		t.Error("noise had no effect on the z columns")
	}
}
