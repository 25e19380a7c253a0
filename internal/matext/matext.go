// Package matext supplies the sparse and dense matrix conveniences the
// external matrix stack does not provide directly: structural transpose,
// vertical stacking, diagonal construction, row scaling, sparse
// matrix-vector products, and an SVD-based pseudo-inverse.
package matext

import (
	"errors"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// ErrSVDFailed indicates the SVD factorization did not converge.
var ErrSVDFailed = errors.New("matext: SVD factorization failed")

// Ones returns a length-n slice filled with ones.
func Ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}

	return out
}

// MulVec computes a*x for a sparse matrix, visiting stored entries only.
// It panics if len(x) does not match the column count.
func MulVec(a sparse.Sparser, x []float64) []float64 {
	r, c := a.Dims()
	if len(x) != c {
		panic("matext: dimension mismatch in MulVec")
	}

	out := make([]float64, r)
	a.DoNonZero(func(i, j int, v float64) {
		out[i] += v * x[j]
	})

	return out
}

// MulTVec computes aᵀ*x, visiting stored entries only.
// It panics if len(x) does not match the row count.
func MulTVec(a sparse.Sparser, x []float64) []float64 {
	r, c := a.Dims()
	if len(x) != r {
		panic("matext: dimension mismatch in MulTVec")
	}

	out := make([]float64, c)
	a.DoNonZero(func(i, j int, v float64) {
		out[j] += v * x[i]
	})

	return out
}

// RowSums returns the per-row sums of a, equal to a times a vector of ones.
func RowSums(a sparse.Sparser) []float64 {
	r, _ := a.Dims()

	out := make([]float64, r)
	a.DoNonZero(func(i, _ int, v float64) {
		out[i] += v
	})

	return out
}

// Transpose materializes aᵀ as a new CSR matrix.
func Transpose(a sparse.Sparser) *sparse.CSR {
	r, c := a.Dims()

	coo := sparse.NewCOO(c, r, nil, nil, nil)
	a.DoNonZero(func(i, j int, v float64) {
		coo.Set(j, i, v)
	})

	return coo.ToCSR()
}

// Diagonal builds a square CSR matrix with values on the main diagonal.
func Diagonal(values []float64) *sparse.CSR {
	n := len(values)

	coo := sparse.NewCOO(n, n, nil, nil, nil)
	for i, v := range values {
		if v != 0 {
			coo.Set(i, i, v)
		}
	}

	return coo.ToCSR()
}

// Scale returns f*a as a new CSR matrix.
func Scale(f float64, a sparse.Sparser) *sparse.CSR {
	r, c := a.Dims()

	coo := sparse.NewCOO(r, c, nil, nil, nil)
	a.DoNonZero(func(i, j int, v float64) {
		if f*v != 0 {
			coo.Set(i, j, f*v)
		}
	})

	return coo.ToCSR()
}

// ScaleRows returns a copy of a with row i multiplied by s[i].
// It panics if len(s) does not match the row count.
func ScaleRows(a sparse.Sparser, s []float64) *sparse.CSR {
	r, c := a.Dims()
	if len(s) != r {
		panic("matext: dimension mismatch in ScaleRows")
	}

	coo := sparse.NewCOO(r, c, nil, nil, nil)
	a.DoNonZero(func(i, j int, v float64) {
		if s[i]*v != 0 {
			coo.Set(i, j, s[i]*v)
		}
	})

	return coo.ToCSR()
}

// Add returns a+b as a new CSR matrix. Both operands must share dimensions.
func Add(a, b sparse.Sparser) *sparse.CSR {
	ar, ac := a.Dims()
	br, bc := b.Dims()

	if ar != br || ac != bc {
		panic("matext: dimension mismatch in Add")
	}

	// COO sums duplicate entries on conversion.
	coo := sparse.NewCOO(ar, ac, nil, nil, nil)
	a.DoNonZero(coo.Set)
	b.DoNonZero(coo.Set)

	return coo.ToCSR()
}

// VStack stacks the given matrices vertically. All blocks must share the
// same column count.
func VStack(blocks ...sparse.Sparser) *sparse.CSR {
	if len(blocks) == 0 {
		panic("matext: VStack of no blocks")
	}

	rows := 0
	_, cols := blocks[0].Dims()

	for _, b := range blocks {
		br, bc := b.Dims()
		if bc != cols {
			panic("matext: column mismatch in VStack")
		}

		rows += br
	}

	coo := sparse.NewCOO(rows, cols, nil, nil, nil)

	offset := 0
	for _, b := range blocks {
		br, _ := b.Dims()
		base := offset
		b.DoNonZero(func(i, j int, v float64) {
			coo.Set(base+i, j, v)
		})

		offset += br
	}

	return coo.ToCSR()
}

// ToSym copies the symmetric part (a+aᵀ)/2 of a square matrix into a
// SymDense. Matrices that are symmetric up to roundoff pass through
// unchanged apart from averaging that roundoff away.
func ToSym(a mat.Matrix) *mat.SymDense {
	r, c := a.Dims()
	if r != c {
		panic("matext: ToSym of non-square matrix")
	}

	s := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			s.SetSym(i, j, 0.5*(a.At(i, j)+a.At(j, i)))
		}
	}

	return s
}
