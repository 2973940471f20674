package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// AdamOptions configures the Adam optimizer,
// https://arxiv.org/abs/1412.6980.
type AdamOptions struct {
	LR          float64 `yaml:"lr"`
	Beta1       float64 `yaml:"beta1"`
	Beta2       float64 `yaml:"beta2"`
	Eps         float64 `yaml:"eps"`
	WeightDecay float64 `yaml:"weight_decay"`
}

// DefaultAdamOptions matches the settings used by the reference
// experiments.
func DefaultAdamOptions() AdamOptions {
	return AdamOptions{
		LR:          5e-3,
		Beta1:       0.9,
		Beta2:       0.999,
		Eps:         1e-8,
		WeightDecay: 1e-8,
	}
}

// Adam holds the optimizer state (first and second moment estimates) for
// one network.
type Adam struct {
	opts AdamOptions
	m    *Grads
	v    *Grads
	t    int
}

// NewAdam returns an Adam optimizer for the given network.
func NewAdam(n *Network, opts AdamOptions) *Adam {
	if opts.Beta1 <= 0 || opts.Beta1 >= 1 {
		opts.Beta1 = 0.9
	}
	if opts.Beta2 <= 0 || opts.Beta2 >= 1 {
		opts.Beta2 = 0.999
	}
	if opts.Eps <= 0 {
		opts.Eps = 1e-8
	}
	return &Adam{opts: opts, m: NewGrads(n), v: NewGrads(n)}
}

// LR returns the current learning rate.
func (o *Adam) LR() float64 { return o.opts.LR }

// SetLR updates the learning rate; used by the plateau scheduler.
func (o *Adam) SetLR(lr float64) { o.opts.LR = lr }

// Step applies one Adam update with bias correction and decoupled-style L2
// weight decay (decay is added to the gradient, as in the reference
// optimizer).
func (o *Adam) Step(n *Network, g *Grads) {
	o.t++
	c1 := 1 - math.Pow(o.opts.Beta1, float64(o.t))
	c2 := 1 - math.Pow(o.opts.Beta2, float64(o.t))

	for l := range n.W {
		o.stepDense(n.W[l], g.W[l], o.m.W[l], o.v.W[l], c1, c2, true)
		o.stepVec(n.B[l], g.B[l], o.m.B[l], o.v.B[l], c1, c2)
	}
}

func (o *Adam) stepDense(p, g, m, v *mat.Dense, c1, c2 float64, decay bool) {
	r, c := p.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			grad := g.At(i, j)
			if decay {
				grad += o.opts.WeightDecay * p.At(i, j)
			}
			mi := o.opts.Beta1*m.At(i, j) + (1-o.opts.Beta1)*grad
			vi := o.opts.Beta2*v.At(i, j) + (1-o.opts.Beta2)*grad*grad
			m.Set(i, j, mi)
			v.Set(i, j, vi)
			p.Set(i, j, p.At(i, j)-o.opts.LR*(mi/c1)/(math.Sqrt(vi/c2)+o.opts.Eps))
		}
	}
}

func (o *Adam) stepVec(p, g, m, v *mat.VecDense, c1, c2 float64) {
	for i := 0; i < p.Len(); i++ {
		grad := g.AtVec(i)
		mi := o.opts.Beta1*m.AtVec(i) + (1-o.opts.Beta1)*grad
		vi := o.opts.Beta2*v.AtVec(i) + (1-o.opts.Beta2)*grad*grad
		m.SetVec(i, mi)
		v.SetVec(i, vi)
		p.SetVec(i, p.AtVec(i)-o.opts.LR*(mi/c1)/(math.Sqrt(vi/c2)+o.opts.Eps))
	}
}
