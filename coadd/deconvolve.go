package coadd

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/cwbudde/algo-vecmath"
	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/stat"

	"github.com/quidditymaster/resampling/density"
	"github.com/quidditymaster/resampling/internal/lsqr"
	"github.com/quidditymaster/resampling/internal/matext"
	"github.com/quidditymaster/resampling/resample"
)

// ErrResolutionTooSharp is returned when an order resolves finer detail
// than the requested target resolution, leaving no real Gaussian width
// that blurs the model down to the order. Request a sharper target to
// recover from it.
var ErrResolutionTooSharp = errors.New("coadd: order resolution sharper than target resolution")

// Target describes the model grid a deconvolving coadd solves on: the
// output wavelengths and the per-pixel resolution width the combined
// spectrum should have. The target must be at least as sharp as every
// contributing order over the region they share.
type Target struct {
	Wavelengths []float64
	Resolution  []float64
}

func (t *Target) validate() error {
	if len(t.Resolution) != len(t.Wavelengths) {
		return ErrLengthMismatch
	}
	return nil
}

// DeconvOption adjusts a deconvolving coadd.
type DeconvOption func(*deconvConfig)

type deconvConfig struct {
	preserveNorm  bool
	damp          float64
	maxIterations int
}

func defaultDeconvConfig() deconvConfig {
	return deconvConfig{
		preserveNorm:  true,
		damp:          1e-4,
		maxIterations: 500000,
	}
}

// WithPreserveNormalization controls the row normalization of the
// per-order blur matrices. It defaults to on, which keeps the blurred
// model on the flux scale of the data.
func WithPreserveNormalization(enabled bool) DeconvOption {
	return func(c *deconvConfig) {
		c.preserveNorm = enabled
	}
}

// WithCurvatureDamping sets the weight of the second-derivative penalty
// appended to the normal equations. Zero disables the penalty. The
// default of 1e-4 suppresses the noise ringing a plain inverse would
// produce in poorly constrained pixels.
func WithCurvatureDamping(v float64) DeconvOption {
	return func(c *deconvConfig) {
		if v >= 0 {
			c.damp = v
		}
	}
}

// WithMaxIterations caps the iterative solver.
func WithMaxIterations(n int) DeconvOption {
	return func(c *deconvConfig) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

// SolverStats reports how the iterative least squares solve ended.
type SolverStats struct {
	Iterations   int
	StopReason   string
	ResidualNorm float64
	SolutionNorm float64
}

func newSolverStats(s lsqr.Stats) SolverStats {
	return SolverStats{
		Iterations:   s.Iterations,
		StopReason:   s.StopReason.String(),
		ResidualNorm: s.ResidualNorm,
		SolutionNorm: s.SolutionNorm,
	}
}

// DeconvResult holds the output of Deconvolve.
type DeconvResult struct {
	// Flux is the model spectrum on the target grid.
	Flux []float64
	// Variance estimates the per-pixel variance of Flux from the
	// solver's normal matrix diagonal.
	Variance []float64
	// Transforms holds the per-order blur matrices mapping the target
	// grid onto each order's pixels, in input order.
	Transforms []*sparse.CSR
	// Stats describes the least squares solve.
	Stats SolverStats
}

// Deconvolve combines the orders into a single spectrum at the target
// resolution. Each order contributes a blur matrix taking the model to
// that order's wavelengths and resolution; the stacked system is solved
// in its inverse-variance weighted normal form with a curvature penalty
// appended against noise amplification.
func Deconvolve(orders []Order, target Target, opts ...DeconvOption) (*DeconvResult, error) {
	cfg := defaultDeconvConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	transforms, lhs, rhs, err := deconvSystem(orders, target, cfg.preserveNorm)
	if err != nil {
		return nil, err
	}

	n := len(target.Wavelengths)
	op, b := dampedSystem(lhs, rhs, cfg.damp, n)
	res, err := lsqr.Solve(op, b, lsqr.Settings{
		MaxIterations:   cfg.maxIterations,
		ComputeVariance: true,
	})
	if err != nil {
		return nil, err
	}

	return &DeconvResult{
		Flux:       res.X,
		Variance:   res.Variance,
		Transforms: transforms,
		Stats:      newSolverStats(res.Stats),
	}, nil
}

// deconvSystem builds the per-order blur matrices and the weighted
// normal equations lhs*x = rhs shared by the deconvolving coadds.
func deconvSystem(orders []Order, target Target, preserveNorm bool) (transforms []*sparse.CSR, lhs *sparse.CSR, rhs []float64, err error) {
	if err := validateOrders(orders); err != nil {
		return nil, nil, nil, err
	}
	if err := target.validate(); err != nil {
		return nil, nil, nil, err
	}
	for i := range orders {
		if orders[i].Resolution == nil {
			return nil, nil, nil, fmt.Errorf("order %d: %w", i, ErrNoResolution)
		}
	}

	transforms = make([]*sparse.CSR, 0, len(orders))
	var flatFlux, flatInvVar []float64
	for i := range orders {
		o := &orders[i]
		widths, err := blurWidths(o, target)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("order %d: %w", i, err)
		}
		dens := density.NewGaussian(target.Wavelengths, widths)
		trans, err := resample.Matrix(target.Wavelengths, o.Wavelengths,
			resample.WithDensity(dens),
			resample.WithNormalization(preserveNorm))
		if err != nil {
			return nil, nil, nil, err
		}
		transforms = append(transforms, trans)
		flatFlux = append(flatFlux, o.Flux...)
		flatInvVar = append(flatInvVar, o.invVar()...)
	}

	back := matext.VStack(sparsers(transforms)...)
	backT := matext.Transpose(back)

	// lhs = B'*W*B and rhs = B'*W*y with W the diagonal of inverse
	// variances.
	var l sparse.CSR
	l.Mul(backT, matext.ScaleRows(back, flatInvVar))
	wy := make([]float64, len(flatFlux))
	vecmath.MulBlock(wy, flatInvVar, flatFlux)
	return transforms, &l, matext.MulVec(backT, wy), nil
}

// dampedSystem appends damp times the curvature matrix below lhs and
// zero-pads rhs to match, yielding the operator and right hand side for
// the solver. A zero damp passes the system through unchanged.
func dampedSystem(lhs *sparse.CSR, rhs []float64, damp float64, n int) (lsqr.Operator, []float64) {
	if damp == 0 {
		return lsqr.SparseOperator{A: lhs}, rhs
	}
	full := matext.VStack(lhs, matext.Scale(damp, curvatureMatrix(n)))
	b := make([]float64, 2*n)
	copy(b, rhs)
	return lsqr.SparseOperator{A: full}, b
}

// blurWidths returns, per target pixel, the width of the Gaussian that
// blurs the target resolution out to the order's. The order resolution
// is interpolated onto the target grid, falling back to its mean
// outside the order's wavelength coverage.
func blurWidths(o *Order, target Target) ([]float64, error) {
	fill := stat.Mean(o.Resolution, nil)
	widths := make([]float64, len(target.Wavelengths))
	for i, wv := range target.Wavelengths {
		res := interpolateAt(o.Wavelengths, o.Resolution, wv, fill)
		d2 := res*res - target.Resolution[i]*target.Resolution[i]
		if d2 < 0 {
			return nil, ErrResolutionTooSharp
		}
		widths[i] = math.Sqrt(d2)
	}
	return widths, nil
}

// interpolateAt linearly interpolates ys over xs at q, returning fill
// outside the span of xs.
func interpolateAt(xs, ys []float64, q, fill float64) float64 {
	if q < xs[0] || q > xs[len(xs)-1] {
		return fill
	}
	j := sort.SearchFloat64s(xs, q)
	if j == 0 {
		return ys[0]
	}
	alpha := (q - xs[j-1]) / (xs[j] - xs[j-1])
	return ys[j-1] + alpha*(ys[j]-ys[j-1])
}

// curvatureMatrix builds the discrete second-derivative operator used
// as the damping penalty. Interior rows hold (0.5, -1, 0.5); the first
// and last rows pair their -1 with a single neighbor weight of 1 so
// that flat spectra stay in its null space at the boundaries.
func curvatureMatrix(n int) *sparse.CSR {
	coo := sparse.NewCOO(n, n, nil, nil, nil)
	for i := 0; i < n; i++ {
		coo.Set(i, i, -1)
	}
	for i := 1; i < n; i++ {
		v := 0.5
		if i == n-1 {
			v = 1.0
		}
		coo.Set(i, i-1, v)
	}
	for i := 0; i < n-1; i++ {
		v := 0.5
		if i == 0 {
			v = 1.0
		}
		coo.Set(i, i+1, v)
	}
	return coo.ToCSR()
}

func sparsers(ms []*sparse.CSR) []sparse.Sparser {
	out := make([]sparse.Sparser, len(ms))
	for i, m := range ms {
		out[i] = m
	}
	return out
}
