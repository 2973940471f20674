package train

import (
	"github.com/monabf/learn-observe-KKL/nn"
	"github.com/monabf/learn-observe-KKL/sample"
	"gonum.org/v1/gonum/mat"
)

// batchStep accumulates gradients over one mini batch, applies the
// optimizer, and returns the batch loss.
func (l *Learner) batchStep(rows []int, gradsEnc, gradsDec *nn.Grads) float64 {
	gradsEnc.Zero()
	gradsDec.Zero()

	var loss float64
	switch l.Opts.Target {
	case T:
		loss = l.supervisedEncoder(rows, gradsEnc)
		l.optEnc.Step(l.Obs.Encoder, gradsEnc)
	case TStar:
		loss = l.supervisedDecoder(rows, gradsDec)
		l.optDec.Step(l.Obs.Decoder, gradsDec)
	case Joint:
		loss = l.jointLoss(rows, gradsEnc, gradsDec)
		l.optEnc.Step(l.Obs.Encoder, gradsEnc)
		l.optDec.Step(l.Obs.Decoder, gradsDec)
	}
	return loss
}

// supervisedEncoder regresses T(x) on the generated z targets with mean
// squared error.
func (l *Learner) supervisedEncoder(rows []int, grads *nn.Grads) float64 {
	n := float64(len(rows)) * float64(l.Obs.DimZ)
	loss := 0.
	for _, r := range rows {
		x, z := l.Train.Row(r)
		pred := l.Obs.Encoder.Forward(x)

		gradOut := mat.NewVecDense(pred.Len(), nil)
		for i := 0; i < pred.Len(); i++ {
			d := pred.AtVec(i) - z.AtVec(i)
			loss += d * d / n
			gradOut.SetVec(i, 2*d/n)
		}
		l.Obs.Encoder.Backprop(x, gradOut, grads)
	}
	return loss
}

// supervisedDecoder regresses T*(z) on the sampled states.
func (l *Learner) supervisedDecoder(rows []int, grads *nn.Grads) float64 {
	n := float64(len(rows)) * float64(l.Obs.DimX)
	loss := 0.
	for _, r := range rows {
		x, z := l.Train.Row(r)
		pred := l.Obs.Decoder.Forward(z)

		gradOut := mat.NewVecDense(pred.Len(), nil)
		for i := 0; i < pred.Len(); i++ {
			d := pred.AtVec(i) - x.AtVec(i)
			loss += d * d / n
			gradOut.SetVec(i, 2*d/n)
		}
		l.Obs.Decoder.Backprop(z, gradOut, grads)
	}
	return loss
}

// jointLoss is the unsupervised objective: the reconstruction error of
// decode(encode(x)) plus the weighted forward PDE residual norm. The z
// columns of the dataset are not used.
func (l *Learner) jointLoss(rows []int, gradsEnc, gradsDec *nn.Grads) float64 {
	sys := l.Obs.System()
	nRec := float64(len(rows)) * float64(l.Obs.DimX)
	nPDE := float64(len(rows)) * float64(l.Obs.DimZ)
	loss := 0.

	for _, r := range rows {
		x, _ := l.Train.Row(r)

		// Reconstruction term: backprop the decoder, then chain its
		// input gradient into the encoder.
		z := l.Obs.Encoder.Forward(x)
		xhat := l.Obs.Decoder.Forward(z)

		gradOut := mat.NewVecDense(xhat.Len(), nil)
		for i := 0; i < xhat.Len(); i++ {
			d := xhat.AtVec(i) - x.AtVec(i)
			loss += d * d / nRec
			gradOut.SetVec(i, 2*d/nRec)
		}
		zBar := l.Obs.Decoder.Backprop(z, gradOut, gradsDec)
		l.Obs.Encoder.Backprop(x, zBar, gradsEnc)

		// PDE residual term: r = dT/dx f(x) - D T(x) - F h(x). The loss
		// gradient reaches the encoder through both T(x) and the
		// Jacobian-vector product.
		fx := sys.F(x)
		zEnc, jvp := l.Obs.Encoder.JVP(x, fx)

		res := mat.NewVecDense(l.Obs.DimZ, nil)
		res.CopyVec(jvp)
		var dz mat.VecDense
		dz.MulVec(l.Obs.D, zEnc)
		res.SubVec(res, &dz)
		var fh mat.VecDense
		fh.MulVec(l.Obs.F, sys.H(x))
		res.SubVec(res, &fh)

		jvpBar := mat.NewVecDense(res.Len(), nil)
		for i := 0; i < res.Len(); i++ {
			ri := res.AtVec(i)
			loss += l.Opts.PDEWeight * ri * ri / nPDE
			jvpBar.SetVec(i, 2*l.Opts.PDEWeight*ri/nPDE)
		}
		outBar := mat.NewVecDense(res.Len(), nil)
		outBar.MulVec(l.Obs.D.T(), jvpBar)
		outBar.ScaleVec(-1, outBar)

		l.Obs.Encoder.BackpropJVP(x, fx, outBar, jvpBar, gradsEnc)
	}
	return loss
}

// Loss evaluates the configured objective on a dataset without touching
// any gradient state.
func (l *Learner) Loss(ds sample.Dataset) float64 {
	switch l.Opts.Target {
	case T:
		return mseBatch(l.Obs.Encoder, ds.X(), ds.Z())
	case TStar:
		return mseBatch(l.Obs.Decoder, ds.Z(), ds.X())
	case Joint:
		return l.jointEval(ds)
	}
	return 0
}

func mseBatch(net *nn.Network, in, target *mat.Dense) float64 {
	r, c := target.Dims()
	pred := net.ForwardBatch(in)
	loss := 0.
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			d := pred.At(i, j) - target.At(i, j)
			loss += d * d
		}
	}
	return loss / float64(r*c)
}

func (l *Learner) jointEval(ds sample.Dataset) float64 {
	sys := l.Obs.System()
	loss := 0.
	nRec := float64(ds.Len()) * float64(l.Obs.DimX)
	nPDE := float64(ds.Len()) * float64(l.Obs.DimZ)
	for r := 0; r < ds.Len(); r++ {
		x, _ := ds.Row(r)
		z := l.Obs.Encoder.Forward(x)
		xhat := l.Obs.Decoder.Forward(z)
		for i := 0; i < xhat.Len(); i++ {
			d := xhat.AtVec(i) - x.AtVec(i)
			loss += d * d / nRec
		}

		zEnc, jvp := l.Obs.Encoder.JVP(x, sys.F(x))
		var dz, fh mat.VecDense
		dz.MulVec(l.Obs.D, zEnc)
		fh.MulVec(l.Obs.F, sys.H(x))
		for i := 0; i < jvp.Len(); i++ {
			ri := jvp.AtVec(i) - dz.AtVec(i) - fh.AtVec(i)
			loss += l.Opts.PDEWeight * ri * ri / nPDE
		}
	}
	return loss
}
