package resample

import (
	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"

	"github.com/quidditymaster/resampling/internal/matext"
)

// CovOption configures covariance propagation.
type CovOption func(*covConfig)

type covConfig struct {
	fill float64
}

// WithFillVariance substitutes v for diagonal entries that come out
// exactly zero, marking output pixels that received no information.
// The default of zero leaves such entries alone.
func WithFillVariance(v float64) CovOption {
	return func(c *covConfig) {
		c.fill = v
	}
}

// PropagateCovariance pushes an input covariance through the resampling
// matrix t, returning t*cov*t'. The covariance must be square with side
// equal to t's column count.
func PropagateCovariance(t *sparse.CSR, cov mat.Matrix, opts ...CovOption) *sparse.CSR {
	cfg := covConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	var tc sparse.CSR
	tc.Mul(t, cov)
	var out sparse.CSR
	out.Mul(&tc, matext.Transpose(t))

	if cfg.fill == 0 {
		return &out
	}

	return fillDiagonal(&out, cfg.fill)
}

// PropagateVariance is PropagateCovariance for uncorrelated inputs given
// as a per-pixel variance vector.
func PropagateVariance(t *sparse.CSR, variance []float64, opts ...CovOption) *sparse.CSR {
	return PropagateCovariance(t, matext.Diagonal(variance), opts...)
}

// fillDiagonal rebuilds a with every empty diagonal slot set to fill.
func fillDiagonal(a *sparse.CSR, fill float64) *sparse.CSR {
	r, c := a.Dims()
	seen := make([]bool, r)

	coo := sparse.NewCOO(r, c, nil, nil, nil)
	a.DoNonZero(func(i, j int, v float64) {
		if i == j {
			seen[i] = true
		}
		coo.Set(i, j, v)
	})
	for i := 0; i < r && i < c; i++ {
		if !seen[i] {
			coo.Set(i, i, fill)
		}
	}

	return coo.ToCSR()
}
