// Package evaluate computes the reconstruction metrics reported after
// training and ingests experimental hardware data for sim-to-real
// evaluation.
package evaluate

import (
	"errors"
	"math"

	kkl "github.com/monabf/learn-observe-KKL"
	"github.com/monabf/learn-observe-KKL/gonumExtensions"
	"gonum.org/v1/gonum/mat"
)

// RMSE returns the root-mean-square error between two equally shaped
// trajectories, one value per state dimension. Non-finite entries mean the
// prediction diverged; they are rejected rather than folded into the metric.
func RMSE(pred, truth *mat.Dense) ([]float64, error) {
	pr, pc := pred.Dims()
	tr, tc := truth.Dims()
	if pr != tr || pc != tc {
		return nil, &kkl.ShapeError{Op: "evaluate.RMSE", Want: tr * tc, Got: pr * pc}
	}
	if gonumExtensions.NANORINF(pred) || gonumExtensions.NANORINF(truth) {
		return nil, errors.New("evaluate.RMSE: non-finite entries")
	}
	res := make([]float64, pc)
	for j := 0; j < pc; j++ {
		sum := 0.
		for i := 0; i < pr; i++ {
			d := pred.At(i, j) - truth.At(i, j)
			sum += d * d
		}
		res[j] = math.Sqrt(sum / float64(pr))
	}
	return res, nil
}

// TotalRMSE reduces per-dimension errors to a single scalar.
func TotalRMSE(pred, truth *mat.Dense) (float64, error) {
	per, err := RMSE(pred, truth)
	if err != nil {
		return 0, err
	}
	sum := 0.
	for _, v := range per {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(per))), nil
}

// TrajRMSE evaluates RMSE per trajectory, one row of per-dimension errors
// for each (pred, truth) pair.
func TrajRMSE(preds, truths []*mat.Dense) (*mat.Dense, error) {
	if len(preds) != len(truths) {
		return nil, &kkl.ShapeError{Op: "evaluate.TrajRMSE", Want: len(truths), Got: len(preds)}
	}
	if len(preds) == 0 {
		return nil, &kkl.ConfigError{Field: "trajectories", Reason: "empty"}
	}
	_, dims := preds[0].Dims()
	res := mat.NewDense(len(preds), dims, nil)
	for i := range preds {
		per, err := RMSE(preds[i], truths[i])
		if err != nil {
			return nil, err
		}
		res.SetRow(i, per)
	}
	return res, nil
}
