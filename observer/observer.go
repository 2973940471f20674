// Package observer implements the Luenberger (KKL) observer: the fixed
// stable linear dynamics z' = D z + F y and the learned transformations
// T: x -> z (encoder) and T*: z -> x (decoder) between the plant state
// space and the observer coordinate space.
package observer

import (
	"fmt"
	"math"
	"math/rand"

	kkl "github.com/monabf/learn-observe-KKL"
	"github.com/monabf/learn-observe-KKL/gonumExtensions"
	"github.com/monabf/learn-observe-KKL/nn"
	"github.com/monabf/learn-observe-KKL/ode"
	"github.com/monabf/learn-observe-KKL/ssm"
	"gonum.org/v1/gonum/mat"
)

// Method selects the training objective the observer is built for. It is a
// configuration-time choice, not per-call dispatch.
type Method int

const (
	// Supervised regresses the networks on generated (x, z) pairs.
	Supervised Method = iota
	// Autoencoder trains without z targets, combining the reconstruction
	// loss decode(encode(x)) ~ x with the KKL PDE residual loss.
	Autoencoder
)

// ParseMethod maps the configuration strings to a Method.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "Supervised", "supervised":
		return Supervised, nil
	case "Autoencoder", "autoencoder", "PDE", "pde":
		return Autoencoder, nil
	}
	return Supervised, &kkl.ConfigError{Field: "method", Reason: fmt.Sprintf("unknown method %q", s)}
}

func (m Method) String() string {
	if m == Autoencoder {
		return "Autoencoder"
	}
	return "Supervised"
}

// Config collects the options recognised when constructing a
// LuenbergerObserver.
type Config struct {
	DimX int
	DimY int
	// DimZ defaults to DimY * (DimX + 1), the canonical KKL dimension.
	DimZ int
	// WC is the cutoff frequency scaling the eigenvalues of the
	// auto-generated gain matrix.
	WC float64
	// D overrides the auto-generated block-diagonal gain matrix. It must
	// be stable (all eigenvalues with negative real part).
	D *mat.Dense
	// F overrides the default all-ones coupling matrix.
	F *mat.Dense

	Method     Method
	Activation nn.Activation
	// NumHL and SizeHL set the hidden depth and width of both networks;
	// they default to 5 layers of 50 units.
	NumHL  int
	SizeHL int

	Solver ode.Options
	// Seed initialises the network weights reproducibly.
	Seed int64
}

// LuenbergerObserver owns the observer matrices and the two
// transformation networks. The matrices are fixed; only the networks are
// mutated, and only by the Learner during training.
type LuenbergerObserver struct {
	DimX int
	DimY int
	DimZ int
	WC   float64

	D *mat.Dense
	F *mat.Dense

	Encoder *nn.Network
	Decoder *nn.Network

	Method Method

	solver *ode.Solver
	sys    kkl.System
}

// New validates the configuration and builds the observer. A nil D is
// replaced by a block-diagonal stable matrix generated from WC, a nil F by
// the all-ones coupling matrix.
func New(cfg Config) (*LuenbergerObserver, error) {
	if cfg.DimX < 1 {
		return nil, &kkl.ConfigError{Field: "dim_x", Reason: "must be positive"}
	}
	if cfg.DimY < 1 {
		return nil, &kkl.ConfigError{Field: "dim_y", Reason: "must be positive"}
	}
	if cfg.DimZ == 0 {
		cfg.DimZ = cfg.DimY * (cfg.DimX + 1)
	}
	if cfg.DimZ < 1 {
		return nil, &kkl.ConfigError{Field: "dim_z", Reason: "must be positive"}
	}
	if cfg.D == nil {
		if cfg.WC <= 0 {
			return nil, &kkl.ConfigError{Field: "wc", Reason: "must be positive to generate a block-diagonal D"}
		}
		cfg.D = BlockDiagD(cfg.WC, cfg.DimZ)
	}
	if r, c := cfg.D.Dims(); r != cfg.DimZ || c != cfg.DimZ {
		return nil, &kkl.ConfigError{Field: "D", Reason: fmt.Sprintf("must be %d x %d, got %d x %d", cfg.DimZ, cfg.DimZ, r, c)}
	}
	if !ssm.Stable(cfg.D) {
		return nil, &kkl.ConfigError{Field: "D", Reason: "gain matrix must be Hurwitz (all eigenvalues with negative real part)"}
	}
	if cfg.F == nil {
		cfg.F = gonumExtensions.Ones(cfg.DimZ, cfg.DimY)
	}
	if r, c := cfg.F.Dims(); r != cfg.DimZ || c != cfg.DimY {
		return nil, &kkl.ConfigError{Field: "F", Reason: fmt.Sprintf("must be %d x %d, got %d x %d", cfg.DimZ, cfg.DimY, r, c)}
	}
	if cfg.NumHL == 0 {
		cfg.NumHL = 5
	}
	if cfg.SizeHL == 0 {
		cfg.SizeHL = 50
	}
	if cfg.Solver.Method == "" {
		cfg.Solver = ode.DefaultOptions()
	}
	solver, err := ode.NewSolver(cfg.Solver)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	return &LuenbergerObserver{
		DimX:    cfg.DimX,
		DimY:    cfg.DimY,
		DimZ:    cfg.DimZ,
		WC:      cfg.WC,
		D:       cfg.D,
		F:       cfg.F,
		Encoder: nn.NewNetwork(cfg.DimX, cfg.DimZ, cfg.NumHL, cfg.SizeHL, cfg.Activation, rng),
		Decoder: nn.NewNetwork(cfg.DimZ, cfg.DimX, cfg.NumHL, cfg.SizeHL, cfg.Activation, rng),
		Method:  cfg.Method,
		solver:  solver,
	}, nil
}

// BlockDiagD generates the default stable gain matrix: a block-diagonal
// assembly of the Butterworth poles of order dimZ with cutoff frequency
// 2 pi wc, complex pairs as 2 x 2 rotation blocks and the odd real pole as
// a scalar block. All eigenvalues sit on the circle of radius 2 pi wc in
// the open left half plane.
func BlockDiagD(wc float64, dimZ int) *mat.Dense {
	radius := 2 * math.Pi * wc
	n := float64(dimZ)

	var blocks []mat.Matrix
	for k := 1; 2*k <= dimZ; k++ {
		theta := math.Pi * (2*float64(k) + n - 1) / (2 * n)
		sigma := radius * math.Cos(theta)
		omega := radius * math.Sin(theta)
		blocks = append(blocks, mat.NewDense(2, 2, []float64{
			sigma, omega,
			-omega, sigma,
		}))
	}
	if dimZ%2 == 1 {
		blocks = append(blocks, mat.NewDense(1, 1, []float64{-radius}))
	}
	return gonumExtensions.BlockDiag(blocks...)
}

// SetDynamics binds the plant whose state the observer reconstructs. It
// must be called before data generation or prediction.
func (o *LuenbergerObserver) SetDynamics(sys kkl.System) error {
	dimX, dimY := sys.Dims()
	if dimX != o.DimX {
		return &kkl.ShapeError{Op: "observer.SetDynamics dim_x", Want: o.DimX, Got: dimX}
	}
	if dimY != o.DimY {
		return &kkl.ShapeError{Op: "observer.SetDynamics dim_y", Want: o.DimY, Got: dimY}
	}
	o.sys = sys
	return nil
}

// System returns the bound plant, or nil before SetDynamics.
func (o *LuenbergerObserver) System() kkl.System { return o.sys }

// Solver returns the ODE solver the observer was configured with.
func (o *LuenbergerObserver) Solver() *ode.Solver { return o.solver }

// Encode evaluates the learned forward transformation T(x).
func (o *LuenbergerObserver) Encode(x mat.Vector) (*mat.VecDense, error) {
	if err := kkl.CheckDim("observer.Encode", x, o.DimX); err != nil {
		return nil, err
	}
	return o.Encoder.Forward(x), nil
}

// Decode evaluates the learned backward transformation T*(z).
func (o *LuenbergerObserver) Decode(z mat.Vector) (*mat.VecDense, error) {
	if err := kkl.CheckDim("observer.Decode", z, o.DimZ); err != nil {
		return nil, err
	}
	return o.Decoder.Forward(z), nil
}

// EncodeBatch evaluates T on every row of X.
func (o *LuenbergerObserver) EncodeBatch(X *mat.Dense) (*mat.Dense, error) {
	if _, c := X.Dims(); c != o.DimX {
		return nil, &kkl.ShapeError{Op: "observer.EncodeBatch", Want: o.DimX, Got: c}
	}
	return o.Encoder.ForwardBatch(X), nil
}

// DecodeBatch evaluates T* on every row of Z.
func (o *LuenbergerObserver) DecodeBatch(Z *mat.Dense) (*mat.Dense, error) {
	if _, c := Z.Dims(); c != o.DimZ {
		return nil, &kkl.ShapeError{Op: "observer.DecodeBatch", Want: o.DimZ, Got: c}
	}
	return o.Decoder.ForwardBatch(Z), nil
}
