package nn

import (
	"math"
	"math/rand"

	"github.com/monabf/learn-observe-KKL/gonumExtensions"
	"gonum.org/v1/gonum/mat"
)

// Network is a fully connected feed-forward network with a fixed hidden
// activation and a linear output layer. Layer l maps sizes[l] to
// sizes[l+1] through s = W[l] a + b[l].
type Network struct {
	sizes []int
	act   Activation
	W     []*mat.Dense
	B     []*mat.VecDense
}

// NewNetwork builds a network with numHL hidden layers of width sizeHL
// mapping R^in to R^out, initialised with Xavier-uniform weights drawn
// from rng.
func NewNetwork(in, out, numHL, sizeHL int, act Activation, rng *rand.Rand) *Network {
	if in < 1 || out < 1 || numHL < 1 || sizeHL < 1 {
		panic("nn: network dimensions must be positive")
	}
	sizes := make([]int, 0, numHL+2)
	sizes = append(sizes, in)
	for l := 0; l < numHL; l++ {
		sizes = append(sizes, sizeHL)
	}
	sizes = append(sizes, out)

	n := &Network{sizes: sizes, act: act}
	for l := 0; l+1 < len(sizes); l++ {
		fanIn, fanOut := sizes[l], sizes[l+1]
		limit := math.Sqrt(6 / float64(fanIn+fanOut))
		w := make([]float64, fanOut*fanIn)
		for i := range w {
			w[i] = (2*rng.Float64() - 1) * limit
		}
		n.W = append(n.W, mat.NewDense(fanOut, fanIn, w))
		n.B = append(n.B, mat.NewVecDense(fanOut, nil))
	}
	return n
}

// InDim returns the input dimension.
func (n *Network) InDim() int { return n.sizes[0] }

// OutDim returns the output dimension.
func (n *Network) OutDim() int { return n.sizes[len(n.sizes)-1] }

// Layers returns the number of weight layers.
func (n *Network) Layers() int { return len(n.W) }

// Activation returns the hidden activation.
func (n *Network) Activation() Activation { return n.act }

// Clone returns a deep copy of the network, used for best-checkpoint
// retention during training.
func (n *Network) Clone() *Network {
	c := &Network{sizes: append([]int(nil), n.sizes...), act: n.act}
	for l := range n.W {
		var w mat.Dense
		w.CloneFrom(n.W[l])
		c.W = append(c.W, &w)
		var b mat.VecDense
		b.CloneFromVec(n.B[l])
		c.B = append(c.B, &b)
	}
	return c
}

// CopyFrom overwrites the parameters with those of src, which must have
// the same architecture.
func (n *Network) CopyFrom(src *Network) {
	for l := range n.W {
		n.W[l].Copy(src.W[l])
		n.B[l].CopyVec(src.B[l])
	}
}

// lastLayer reports whether layer l is the linear output layer.
func (n *Network) lastLayer(l int) bool { return l == len(n.W)-1 }

// cache holds the per-layer pre-activations and activations of a forward
// pass, reused by the backward passes.
type cache struct {
	a []*mat.VecDense // a[0] = input, a[l+1] = activation of layer l
	s []*mat.VecDense // s[l] = pre-activation of layer l
}

// forward runs the network and records the cache.
func (n *Network) forward(x mat.Vector) cache {
	c := cache{
		a: make([]*mat.VecDense, len(n.W)+1),
		s: make([]*mat.VecDense, len(n.W)),
	}
	a := mat.NewVecDense(x.Len(), nil)
	a.CloneFromVec(x)
	c.a[0] = a
	for l := range n.W {
		s := mat.NewVecDense(n.sizes[l+1], nil)
		s.MulVec(n.W[l], c.a[l])
		s.AddVec(s, n.B[l])
		c.s[l] = s

		out := mat.NewVecDense(s.Len(), nil)
		if n.lastLayer(l) {
			out.CopyVec(s)
		} else {
			for i := 0; i < s.Len(); i++ {
				out.SetVec(i, n.act.value(s.AtVec(i)))
			}
		}
		c.a[l+1] = out
	}
	return c
}

// Forward evaluates the network at x.
func (n *Network) Forward(x mat.Vector) *mat.VecDense {
	c := n.forward(x)
	return c.a[len(c.a)-1]
}

// ForwardBatch evaluates the network on every row of X and returns one
// output row per input row.
func (n *Network) ForwardBatch(X *mat.Dense) *mat.Dense {
	r, _ := X.Dims()
	res := mat.NewDense(r, n.OutDim(), nil)
	for i := 0; i < r; i++ {
		res.SetRow(i, n.Forward(X.RowView(i)).RawVector().Data)
	}
	return res
}

// Jacobian computes the exact Jacobian dN/dx at x by forward-mode tangent
// propagation, one column per input dimension.
func (n *Network) Jacobian(x mat.Vector) *mat.Dense {
	c := n.forward(x)
	// The tangent matrix starts as the identity on the input space and is
	// pushed through each layer: J <- diag(act'(s)) W J.
	j := gonumExtensions.Eye(n.InDim(), n.InDim())
	for l := 0; l < len(n.W); l++ {
		var next mat.Dense
		next.Mul(n.W[l], j)
		n.scaleRows(&next, l, c)
		j = mat.DenseCopyOf(&next)
	}
	return j
}

// scaleRows multiplies row i of m by act'(s[l][i]); the output layer is
// linear and left untouched.
func (n *Network) scaleRows(m *mat.Dense, l int, c cache) {
	if n.lastLayer(l) {
		return
	}
	r, cols := m.Dims()
	for i := 0; i < r; i++ {
		d := n.act.deriv(c.s[l].AtVec(i))
		for k := 0; k < cols; k++ {
			m.Set(i, k, m.At(i, k)*d)
		}
	}
}
