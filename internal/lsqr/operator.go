package lsqr

import (
	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// Operator is the linear map consumed by Solve. Implementations apply the
// matrix and its transpose to dense vectors without exposing storage.
type Operator interface {
	// Dims returns the operator shape as (rows, cols).
	Dims() (rows, cols int)
	// MatVec computes dst = A*x. len(x) must equal cols and len(dst) rows.
	MatVec(dst, x []float64)
	// MatTVec computes dst = A'*x. len(x) must equal rows and len(dst) cols.
	MatTVec(dst, x []float64)
}

// SparseOperator adapts a sparse matrix to the Operator interface. Both
// products walk the stored entries once, so the cost per application is
// proportional to the number of nonzeros.
type SparseOperator struct {
	A sparse.Sparser
}

func (op SparseOperator) Dims() (rows, cols int) { return op.A.Dims() }

func (op SparseOperator) MatVec(dst, x []float64) {
	clear(dst)
	op.A.DoNonZero(func(i, j int, v float64) {
		dst[i] += v * x[j]
	})
}

func (op SparseOperator) MatTVec(dst, x []float64) {
	clear(dst)
	op.A.DoNonZero(func(i, j int, v float64) {
		dst[j] += v * x[i]
	})
}

// DenseOperator adapts any gonum matrix to the Operator interface. Suited
// to small systems where walking every entry is acceptable.
type DenseOperator struct {
	A mat.Matrix
}

func (op DenseOperator) Dims() (rows, cols int) { return op.A.Dims() }

func (op DenseOperator) MatVec(dst, x []float64) {
	rows, cols := op.A.Dims()
	for i := 0; i < rows; i++ {
		s := 0.0
		for j := 0; j < cols; j++ {
			s += op.A.At(i, j) * x[j]
		}
		dst[i] = s
	}
}

func (op DenseOperator) MatTVec(dst, x []float64) {
	rows, cols := op.A.Dims()
	for j := 0; j < cols; j++ {
		s := 0.0
		for i := 0; i < rows; i++ {
			s += op.A.At(i, j) * x[i]
		}
		dst[j] = s
	}
}
