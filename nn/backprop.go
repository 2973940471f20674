package nn

import (
	"gonum.org/v1/gonum/mat"
)

// Grads mirrors the parameters of a Network and accumulates their
// gradients.
type Grads struct {
	W []*mat.Dense
	B []*mat.VecDense
}

// NewGrads returns zeroed gradients matching the architecture of n.
func NewGrads(n *Network) *Grads {
	g := &Grads{}
	for l := range n.W {
		r, c := n.W[l].Dims()
		g.W = append(g.W, mat.NewDense(r, c, nil))
		g.B = append(g.B, mat.NewVecDense(n.B[l].Len(), nil))
	}
	return g
}

// Zero resets all accumulated gradients.
func (g *Grads) Zero() {
	for l := range g.W {
		g.W[l].Zero()
		g.B[l].Zero()
	}
}

// Scale multiplies all gradients by alpha, typically 1/batchSize.
func (g *Grads) Scale(alpha float64) {
	for l := range g.W {
		g.W[l].Scale(alpha, g.W[l])
		g.B[l].ScaleVec(alpha, g.B[l])
	}
}

// Backprop accumulates into g the parameter gradients of a scalar loss
// whose gradient with respect to the network output at x is gradOut, and
// returns the gradient of the loss with respect to the input x. The
// returned input gradient lets losses chain through composed networks,
// e.g. decode(encode(x)).
func (n *Network) Backprop(x mat.Vector, gradOut mat.Vector, g *Grads) *mat.VecDense {
	c := n.forward(x)

	sBar := mat.NewVecDense(gradOut.Len(), nil)
	sBar.CloneFromVec(gradOut)

	for l := len(n.W) - 1; l >= 0; l-- {
		if !n.lastLayer(l) {
			// Next layer's input adjoint passes through the activation.
			for i := 0; i < sBar.Len(); i++ {
				sBar.SetVec(i, sBar.AtVec(i)*n.act.deriv(c.s[l].AtVec(i)))
			}
		}
		// W_l gradient: sBar a_l^T, bias gradient: sBar.
		g.W[l].RankOne(g.W[l], 1, sBar, c.a[l])
		g.B[l].AddVec(g.B[l], sBar)

		if l > 0 {
			aBar := mat.NewVecDense(n.sizes[l], nil)
			aBar.MulVec(n.W[l].T(), sBar)
			sBar = aBar
		} else {
			xBar := mat.NewVecDense(n.sizes[0], nil)
			xBar.MulVec(n.W[0].T(), sBar)
			return xBar
		}
	}
	return nil
}

// JVP evaluates the network and the Jacobian-vector product J(x) v in a
// single tangent-propagation pass. It returns the output T(x) and J(x) v.
func (n *Network) JVP(x, v mat.Vector) (*mat.VecDense, *mat.VecDense) {
	c, _, tangents := n.jvpCached(x, v)
	return c.a[len(c.a)-1], tangents[len(tangents)-1]
}

// jvpCached runs the tangent-propagation pass keeping everything the
// backward sweep needs: the forward cache, the per-layer pre-products
// u[l] = W[l] v[l] and the tangent states v[l].
func (n *Network) jvpCached(x, v mat.Vector) (cache, []*mat.VecDense, []*mat.VecDense) {
	c := n.forward(x)

	tangents := make([]*mat.VecDense, len(n.W)+1)
	us := make([]*mat.VecDense, len(n.W))

	t0 := mat.NewVecDense(v.Len(), nil)
	t0.CloneFromVec(v)
	tangents[0] = t0

	for l := range n.W {
		u := mat.NewVecDense(n.sizes[l+1], nil)
		u.MulVec(n.W[l], tangents[l])
		us[l] = u

		next := mat.NewVecDense(u.Len(), nil)
		if n.lastLayer(l) {
			next.CopyVec(u)
		} else {
			for i := 0; i < u.Len(); i++ {
				next.SetVec(i, u.AtVec(i)*n.act.deriv(c.s[l].AtVec(i)))
			}
		}
		tangents[l+1] = next
	}
	return c, us, tangents
}

// BackpropJVP accumulates the parameter gradients of a scalar loss that
// depends on both the network output T(x) and the Jacobian-vector product
// J(x) v. outBar is the loss gradient with respect to T(x) and jvpBar the
// loss gradient with respect to J(x) v. The tangent direction v is treated
// as a constant. This is the machinery behind training on the KKL PDE
// residual, which contains the term dT/dx f(x).
func (n *Network) BackpropJVP(x, v mat.Vector, outBar, jvpBar mat.Vector, g *Grads) {
	c, us, tangents := n.jvpCached(x, v)

	aBar := mat.NewVecDense(outBar.Len(), nil)
	aBar.CloneFromVec(outBar)
	vBar := mat.NewVecDense(jvpBar.Len(), nil)
	vBar.CloneFromVec(jvpBar)

	for l := len(n.W) - 1; l >= 0; l-- {
		sBar := mat.NewVecDense(n.sizes[l+1], nil)
		uBar := mat.NewVecDense(n.sizes[l+1], nil)
		if n.lastLayer(l) {
			sBar.CopyVec(aBar)
			uBar.CopyVec(vBar)
		} else {
			for i := 0; i < sBar.Len(); i++ {
				si := c.s[l].AtVec(i)
				d1 := n.act.deriv(si)
				d2 := n.act.deriv2(si)
				// a_{l+1} = act(s) contributes act'(s); the tangent
				// v_{l+1} = act'(s) u contributes u act''(s) to s and
				// act'(s) to u.
				sBar.SetVec(i, aBar.AtVec(i)*d1+vBar.AtVec(i)*us[l].AtVec(i)*d2)
				uBar.SetVec(i, vBar.AtVec(i)*d1)
			}
		}

		// W_l receives contributions through both the primal and the
		// tangent path; b_l only through the primal one.
		g.W[l].RankOne(g.W[l], 1, sBar, c.a[l])
		g.W[l].RankOne(g.W[l], 1, uBar, tangents[l])
		g.B[l].AddVec(g.B[l], sBar)

		if l > 0 {
			nextABar := mat.NewVecDense(n.sizes[l], nil)
			nextABar.MulVec(n.W[l].T(), sBar)
			nextVBar := mat.NewVecDense(n.sizes[l], nil)
			nextVBar.MulVec(n.W[l].T(), uBar)
			aBar, vBar = nextABar, nextVBar
		}
	}
}
