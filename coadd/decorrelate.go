package coadd

import (
	"errors"
	"math"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"

	"github.com/quidditymaster/resampling/internal/lsqr"
	"github.com/quidditymaster/resampling/internal/matext"
)

// ErrEigenFailed is returned when the symmetric eigendecomposition
// behind a decorrelation does not converge.
var ErrEigenFailed = errors.New("coadd: eigendecomposition failed")

// DecorrelatedResult holds the output of DeconvolveDecorrelated.
type DecorrelatedResult struct {
	// Flux is the model spectrum on the target grid, identical to what
	// Deconvolve produces.
	Flux []float64
	// Decorrelated is R applied to Flux: the spectrum in the basis
	// where its per-pixel errors are statistically independent.
	Decorrelated []float64
	// Norm holds the row sums of the unnormalized square root matrix.
	Norm []float64
	// R is the row-normalized symmetric square root of the inverse
	// covariance. Each row is the effective resolution kernel of the
	// corresponding decorrelated pixel.
	R *mat.Dense
	// Transforms holds the per-order blur matrices, in input order.
	Transforms []*sparse.CSR
	// Stats describes the least squares solve.
	Stats SolverStats
}

// DeconvolveDecorrelated runs the same solve as Deconvolve and
// additionally rotates the result with the symmetric square root of
// the normal matrix, after Bolton and Schlegel. The rotation trades
// the strongly correlated errors of the deconvolved spectrum for
// independent ones at a modest, locally quantified loss of resolution.
func DeconvolveDecorrelated(orders []Order, target Target, opts ...DeconvOption) (*DecorrelatedResult, error) {
	cfg := defaultDeconvConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	transforms, lhs, rhs, err := deconvSystem(orders, target, cfg.preserveNorm)
	if err != nil {
		return nil, err
	}

	r, norm, err := decorrelationOperator(matext.ToSym(lhs))
	if err != nil {
		return nil, err
	}

	n := len(target.Wavelengths)
	op, b := dampedSystem(lhs, rhs, cfg.damp, n)
	res, err := lsqr.Solve(op, b, lsqr.Settings{MaxIterations: cfg.maxIterations})
	if err != nil {
		return nil, err
	}

	return &DecorrelatedResult{
		Flux:         res.X,
		Decorrelated: mulDense(r, res.X),
		Norm:         norm,
		R:            r,
		Transforms:   transforms,
		Stats:        newSolverStats(res.Stats),
	}, nil
}

// Diagonalization holds a decorrelation built from an explicit
// covariance matrix.
type Diagonalization struct {
	// Decorrelated is R applied to the input flux.
	Decorrelated []float64
	// Norm holds the row sums of the unnormalized square root matrix.
	Norm []float64
	// R is the row-normalized symmetric square root of the
	// pseudoinverse of the covariance.
	R *mat.Dense
}

// Diagonalize rotates a spectrum into the basis where its errors are
// independent, given its covariance. The covariance is pseudoinverted,
// so rank-deficient matrices from resampled or padded spectra are
// acceptable.
func Diagonalize(flux []float64, covariance mat.Matrix) (*Diagonalization, error) {
	rows, cols := covariance.Dims()
	if rows != cols || rows != len(flux) {
		return nil, ErrLengthMismatch
	}
	invcov, err := matext.PseudoInverse(covariance)
	if err != nil {
		return nil, err
	}
	r, norm, err := decorrelationOperator(matext.ToSym(invcov))
	if err != nil {
		return nil, err
	}
	return &Diagonalization{
		Decorrelated: mulDense(r, flux),
		Norm:         norm,
		R:            r,
	}, nil
}

// decorrelationOperator builds the row-normalized symmetric square
// root of sym. Eigenvalues pushed below zero by roundoff are clamped
// before the square root. Rows summing to zero, which occur for output
// pixels no data constrains, are left unscaled.
func decorrelationOperator(sym *mat.SymDense) (*mat.Dense, []float64, error) {
	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		return nil, nil, ErrEigenFailed
	}
	vals := eig.Values(nil)
	var q mat.Dense
	eig.VectorsTo(&q)

	n := len(vals)
	sqrtVals := make([]float64, n)
	for i, v := range vals {
		if v > 0 {
			sqrtVals[i] = math.Sqrt(v)
		}
	}

	qs := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			qs.Set(i, j, q.At(i, j)*sqrtVals[j])
		}
	}
	var r mat.Dense
	r.Mul(qs, q.T())

	norm := make([]float64, n)
	for i := 0; i < n; i++ {
		s := 0.0
		for j := 0; j < n; j++ {
			s += r.At(i, j)
		}
		norm[i] = s
	}
	for i := 0; i < n; i++ {
		d := norm[i]
		if d == 0 {
			d = 1
		}
		for j := 0; j < n; j++ {
			r.Set(i, j, r.At(i, j)/d)
		}
	}
	return &r, norm, nil
}

// mulDense applies a dense matrix to a vector.
func mulDense(a *mat.Dense, x []float64) []float64 {
	rows, cols := a.Dims()
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		s := 0.0
		for j := 0; j < cols; j++ {
			s += a.At(i, j) * x[j]
		}
		out[i] = s
	}
	return out
}
