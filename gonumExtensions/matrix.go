package gonumExtensions

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Ones returns a (m by n) matrix filled with ones
func Ones(m, n int) *mat.Dense {
	return Full(m, n, 1.)
}

// Full returns a (m by n) matrix filled with value
func Full(m, n int, value float64) *mat.Dense {
	data := make([]float64, m*n)
	for index := range data {
		data[index] = value
	}
	return mat.NewDense(m, n, data)
}

// Eye returns the (m by n) identity matrix
func Eye(m, n int) *mat.Dense {
	res := mat.NewDense(m, n, nil)
	for i := 0; i < m && i < n; i++ {
		res.Set(i, i, 1)
	}
	return res
}

// BlockDiag assembles square blocks into a block-diagonal matrix.
func BlockDiag(blocks ...mat.Matrix) *mat.Dense {
	n := 0
	for _, b := range blocks {
		r, c := b.Dims()
		if r != c {
			panic("gonumExtensions: BlockDiag requires square blocks")
		}
		n += r
	}
	res := mat.NewDense(n, n, nil)
	offset := 0
	for _, b := range blocks {
		r, _ := b.Dims()
		res.Slice(offset, offset+r, offset, offset+r).(*mat.Dense).Copy(b)
		offset += r
	}
	return res
}

// NANORINF checks if there are any NAN or INF in matrix
func NANORINF(matrix mat.Matrix) bool {
	m, n := matrix.Dims()
	for row := 0; row < m; row++ {
		for col := 0; col < n; col++ {
			if math.IsNaN(matrix.At(row, col)) || math.IsInf(matrix.At(row, col), 0) {
				return true
			}
		}
	}
	return false
}

// NANORINFVec checks if there are any NAN or INF in a vector
func NANORINFVec(v mat.Vector) bool {
	for i := 0; i < v.Len(); i++ {
		if math.IsNaN(v.AtVec(i)) || math.IsInf(v.AtVec(i), 0) {
			return true
		}
	}
	return false
}
