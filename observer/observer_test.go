package observer

import (
	"math"
	"math/rand"
	"testing"

	"github.com/monabf/learn-observe-KKL/nn"
	"github.com/monabf/learn-observe-KKL/signal"
	"github.com/monabf/learn-observe-KKL/ssm"
	"github.com/monabf/learn-observe-KKL/system"
	"gonum.org/v1/gonum/mat"
)

func TestNewDefaults(t *testing.T) {
	obs, err := New(Config{DimX: 2, DimY: 1, WC: 0.15})
	if err != nil {
		t.Fatal(err)
	}
	if obs.DimZ != 3 {
		t.Errorf("default dim_z = %d, want dim_y (dim_x + 1) = 3", obs.DimZ)
	}
	if !ssm.Stable(obs.D) {
		t.Error("generated D is not Hurwitz")
	}
	if r, c := obs.F.Dims(); r != 3 || c != 1 {
		t.Errorf("F shape %dx%d, want 3x1", r, c)
	}
	if obs.F.At(0, 0) != 1 || obs.F.At(2, 0) != 1 {
		t.Error("default F should be all ones")
	}
	if obs.Encoder.InDim() != 2 || obs.Encoder.OutDim() != 3 {
		t.Errorf("encoder maps %d->%d, want 2->3", obs.Encoder.InDim(), obs.Encoder.OutDim())
	}
	if obs.Decoder.InDim() != 3 || obs.Decoder.OutDim() != 2 {
		t.Errorf("decoder maps %d->%d, want 3->2", obs.Decoder.InDim(), obs.Decoder.OutDim())
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(Config{DimX: 0, DimY: 1, WC: 0.15}); err == nil {
		t.Error("zero dim_x accepted")
	}
	if _, err := New(Config{DimX: 2, DimY: 1}); err == nil {
		t.Error("missing wc with nil D accepted")
	}
	unstable := mat.NewDense(3, 3, []float64{1, 0, 0, 0, -1, 0, 0, 0, -1})
	if _, err := New(Config{DimX: 2, DimY: 1, D: unstable}); err == nil {
		t.Error("non-Hurwitz D accepted")
	}
}

func TestBlockDiagDEigenvalues(t *testing.T) {
	for _, dimZ := range []int{2, 3, 4, 5, 7} {
		wc := 0.15
		D := BlockDiagD(wc, dimZ)
		if r, c := D.Dims(); r != dimZ || c != dimZ {
			t.Fatalf("dim %d: shape %dx%d", dimZ, r, c)
		}
		if !ssm.Stable(D) {
			t.Errorf("dim %d: D is not Hurwitz", dimZ)
		}

		var eig mat.Eigen
		if ok := eig.Factorize(D, mat.EigenNone); !ok {
			t.Fatalf("dim %d: eigen factorization failed", dimZ)
		}
		radius := 2 * math.Pi * wc
		for _, v := range eig.Values(nil) {
			if got := math.Hypot(real(v), imag(v)); math.Abs(got-radius) > 1e-10 {
				t.Errorf("dim %d: eigenvalue magnitude %v, want %v", dimZ, got, radius)
			}
		}
	}
}

func TestEncodeDecodeShapeChecks(t *testing.T) {
	obs, err := New(Config{DimX: 2, DimY: 1, WC: 0.15})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := obs.Encode(mat.NewVecDense(3, nil)); err == nil {
		t.Error("encoding a wrong-size vector should fail")
	}
	if _, err := obs.Decode(mat.NewVecDense(2, nil)); err == nil {
		t.Error("decoding a wrong-size vector should fail")
	}
	if _, err := obs.Encode(mat.NewVecDense(2, []float64{0.1, 0.2})); err != nil {
		t.Errorf("valid encode failed: %v", err)
	}
}

func TestSetDynamicsChecksDims(t *testing.T) {
	obs, err := New(Config{DimX: 3, DimY: 1, WC: 0.15})
	if err != nil {
		t.Fatal(err)
	}
	if err := obs.SetDynamics(system.NewRevDuffing()); err == nil {
		t.Error("2-state system bound to a 3-state observer")
	}
}

func TestSimulateDecaysWithoutMeasurement(t *testing.T) {
	obs, err := New(Config{DimX: 2, DimY: 1, WC: 0.3})
	if err != nil {
		t.Fatal(err)
	}
	ts := []float64{0, 5, 10, 15, 20}
	zeros := mat.NewDense(len(ts), 1, nil)
	y := signal.NewSeries(ts, zeros, signal.ZeroOrderHold)

	z0 := mat.NewVecDense(obs.DimZ, []float64{1, -2, 0.5})
	grid, z, err := obs.Simulate(y, Span{T0: 0, T1: 20}, 0.01, z0)
	if err != nil {
		t.Fatal(err)
	}
	last := z.RowView(len(grid) - 1)
	if norm := mat.Norm(last, 2); norm > 1e-3 {
		t.Errorf("observer state should decay to zero, final norm %v", norm)
	}
}

func TestSimulateReachesSteadyState(t *testing.T) {
	obs, err := New(Config{DimX: 2, DimY: 1, WC: 0.3})
	if err != nil {
		t.Fatal(err)
	}
	const c = 2.5
	ts := []float64{0, 50}
	ys := mat.NewDense(2, 1, []float64{c, c})
	y := signal.NewSeries(ts, ys, signal.ZeroOrderHold)

	grid, z, err := obs.Simulate(y, Span{T0: 0, T1: 50}, 0.01, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Steady state of z' = D z + F c is z* = -D^{-1} F c.
	var dInv mat.Dense
	if err := dInv.Inverse(obs.D); err != nil {
		t.Fatal(err)
	}
	var zStar mat.VecDense
	zStar.MulVec(&dInv, obs.F.ColView(0))
	zStar.ScaleVec(-c, &zStar)

	last := z.RowView(len(grid) - 1)
	for i := 0; i < obs.DimZ; i++ {
		if math.Abs(last.AtVec(i)-zStar.AtVec(i)) > 1e-4 {
			t.Errorf("z[%d] = %v, steady state %v", i, last.AtVec(i), zStar.AtVec(i))
		}
	}
}

// linearNetwork builds a network that computes exactly M x on the region
// where every hidden pre-activation stays positive: one ReLU layer with
// identity weights and a large positive bias, undone by the output layer.
func linearNetwork(M *mat.Dense) *nn.Network {
	out, in := M.Dims()
	const shift = 1e3
	n := nn.NewNetwork(in, out, 1, in, nn.ReLU, rand.New(rand.NewSource(0)))

	n.W[0].Zero()
	for i := 0; i < in; i++ {
		n.W[0].Set(i, i, 1)
		n.B[0].SetVec(i, shift)
	}
	n.W[1].Copy(M)
	var corr mat.VecDense
	ones := mat.NewVecDense(in, nil)
	for i := 0; i < in; i++ {
		ones.SetVec(i, shift)
	}
	corr.MulVec(M, ones)
	for i := 0; i < out; i++ {
		n.B[1].SetVec(i, -corr.AtVec(i))
	}
	return n
}

// solveSylvester returns the unique T with T A - D T = F C, the exact KKL
// transformation of a linear plant, by solving the vectorised system.
func solveSylvester(A, D, F, C *mat.Dense) *mat.Dense {
	dimZ, _ := D.Dims()
	dimX, _ := A.Dims()
	n := dimZ * dimX

	// vec(TA) = (A^T kron I) vec(T), vec(DT) = (I kron D) vec(T), with
	// column-major vec and T stored as dimZ x dimX.
	lhs := mat.NewDense(n, n, nil)
	for col := 0; col < dimX; col++ {
		for row := 0; row < dimZ; row++ {
			r := col*dimZ + row
			// (A^T kron I): entry couples vec index (col', row) with A[col', col].
			for colP := 0; colP < dimX; colP++ {
				lhs.Set(r, colP*dimZ+row, lhs.At(r, colP*dimZ+row)+A.At(colP, col))
			}
			// -(I kron D): couples (col, row') with D[row, row'].
			for rowP := 0; rowP < dimZ; rowP++ {
				lhs.Set(r, col*dimZ+rowP, lhs.At(r, col*dimZ+rowP)-D.At(row, rowP))
			}
		}
	}

	var fc mat.Dense
	fc.Mul(F, C)
	rhs := mat.NewVecDense(n, nil)
	for col := 0; col < dimX; col++ {
		for row := 0; row < dimZ; row++ {
			rhs.SetVec(col*dimZ+row, fc.At(row, col))
		}
	}

	var sol mat.VecDense
	if err := sol.SolveVec(lhs, rhs); err != nil {
		panic(err)
	}
	T := mat.NewDense(dimZ, dimX, nil)
	for col := 0; col < dimX; col++ {
		for row := 0; row < dimZ; row++ {
			T.Set(row, col, sol.AtVec(col*dimZ+row))
		}
	}
	return T
}

// leftInverse returns (M^T M)^{-1} M^T.
func leftInverse(M *mat.Dense) *mat.Dense {
	var mtm mat.Dense
	mtm.Mul(M.T(), M)
	var inv mat.Dense
	if err := inv.Inverse(&mtm); err != nil {
		panic(err)
	}
	r, c := M.Dims()
	res := mat.NewDense(c, r, nil)
	res.Mul(&inv, M.T())
	return res
}

func exactLinearObserver(t *testing.T) (*LuenbergerObserver, system.HarmonicOscillator, *mat.Dense) {
	t.Helper()
	sys := system.NewHarmonicOscillator()
	obs, err := New(Config{DimX: 2, DimY: 1, WC: 0.15, Activation: nn.ReLU, NumHL: 1, SizeHL: 2})
	if err != nil {
		t.Fatal(err)
	}
	if err := obs.SetDynamics(sys); err != nil {
		t.Fatal(err)
	}
	T := solveSylvester(sys.A(), obs.D, obs.F, sys.C())
	obs.Encoder = linearNetwork(T)
	obs.Decoder = linearNetwork(leftInverse(T))
	return obs, sys, T
}

func TestPDEResidualVanishesForExactTransformation(t *testing.T) {
	obs, _, T := exactLinearObserver(t)

	X := mat.NewDense(3, 2, []float64{
		0.5, -0.3,
		-1, 0.8,
		0.1, 0.1,
	})
	res, err := obs.PDEResidualForward(X)
	if err != nil {
		t.Fatal(err)
	}
	if norm := mat.Norm(res, 2); norm > 1e-9 {
		t.Errorf("forward residual should vanish for the Sylvester solution, norm %v", norm)
	}

	// The backward residual vanishes on the image of T.
	Z := mat.NewDense(3, obs.DimZ, nil)
	for i := 0; i < 3; i++ {
		var z mat.VecDense
		z.MulVec(T, X.RowView(i))
		Z.SetRow(i, z.RawVector().Data)
	}
	resB, err := obs.PDEResidualBackward(Z)
	if err != nil {
		t.Fatal(err)
	}
	if norm := mat.Norm(resB, 2); norm > 1e-9 {
		t.Errorf("backward residual should vanish on the image of T, norm %v", norm)
	}
}

func TestPredictReconstructsLinearPlant(t *testing.T) {
	obs, sys, _ := exactLinearObserver(t)

	// True plant trajectory from a known initial condition.
	dt := 0.01
	span := Span{T0: 0, T1: 25}
	x0 := mat.NewVecDense(2, []float64{0.8, -0.2})

	nSteps := int(span.T1 / dt)
	ts := make([]float64, nSteps)
	truth := mat.NewDense(nSteps, 2, nil)
	ys := mat.NewDense(nSteps, 1, nil)
	for i := 0; i < nSteps; i++ {
		ti := float64(i) * dt
		ts[i] = ti
		// Closed-form harmonic motion with omega = 1.
		x1 := x0.AtVec(0)*math.Cos(ti) + x0.AtVec(1)*math.Sin(ti)
		x2 := -x0.AtVec(0)*math.Sin(ti) + x0.AtVec(1)*math.Cos(ti)
		truth.Set(i, 0, x1)
		truth.Set(i, 1, x2)
		ys.Set(i, 0, sys.H(truth.RowView(i)).AtVec(0))
	}
	y := signal.NewSeries(ts, ys, signal.Linear)

	grid, xhat, err := obs.Predict(y, span, dt)
	if err != nil {
		t.Fatal(err)
	}

	// After the observer transient the estimate must track the true state.
	for i := len(grid) - 100; i < len(grid); i++ {
		for j := 0; j < 2; j++ {
			if diff := math.Abs(xhat.At(i, j) - truth.At(i, j)); diff > 5e-2 {
				t.Errorf("t = %v, state %d: estimate off by %v", grid[i], j, diff)
			}
		}
	}
}
