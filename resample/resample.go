package resample

import (
	"errors"
	"math"

	"github.com/james-bowman/sparse"

	"github.com/quidditymaster/resampling/density"
	"github.com/quidditymaster/resampling/grid"
	"github.com/quidditymaster/resampling/internal/matext"
)

// ErrGridTooShort reports an input or output grid with fewer than two
// centers, for which pixel bounds are undefined.
var ErrGridTooShort = errors.New("resample: grids need at least two centers")

// Option configures matrix construction.
type Option func(*config)

type config struct {
	dens         density.Model
	preserveNorm bool
	upweightEnds bool
}

func defaultConfig() config {
	return config{upweightEnds: true}
}

// WithDensity sets the flux distribution model of the input pixels. The
// default is a box density over the input centers.
func WithDensity(m density.Model) Option {
	return func(c *config) {
		c.dens = m
	}
}

// WithNormalization toggles rescaling every row with a positive sum to
// sum to exactly one, so a constant input resamples to the same constant.
// When enabled it overrides edge upweighting.
func WithNormalization(enabled bool) Option {
	return func(c *config) {
		c.preserveNorm = enabled
	}
}

// WithEdgeUpweighting toggles rescaling of the leading and trailing rows
// whose sums are suppressed by partial input coverage, matching them to
// the nearest fully covered row. Enabled by default.
func WithEdgeUpweighting(enabled bool) Option {
	return func(c *config) {
		c.upweightEnds = enabled
	}
}

// Matrix builds the flux-conserving resampling matrix from the input grid
// onto the output grid. The result has one row per output pixel and one
// column per input pixel. Both center sequences must be monotonically
// increasing; this is an unchecked precondition.
func Matrix(inputCenters, outputCenters []float64, opts ...Option) (*sparse.CSR, error) {
	if len(inputCenters) < 2 || len(outputCenters) < 2 {
		return nil, ErrGridTooShort
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	dens := cfg.dens
	if dens == nil {
		dens = density.NewBox(inputCenters)
	}

	nIn, nOut := len(inputCenters), len(outputCenters)
	inputEdges := grid.CentersToEdges(inputCenters)
	outputEdges := grid.CentersToEdges(outputCenters)

	// Round each output center onto the input index grid. The clamped
	// copy supplies valid pixel indices for support lookups even where an
	// output pixel falls off the input grid entirely.
	centralIdx := make([]int, nOut)
	available := make([]int, nOut)
	for i, fi := range grid.MapIndices(outputCenters, inputCenters) {
		ci := int(math.RoundToEven(fi))
		centralIdx[i] = ci
		switch {
		case ci < 0:
			available[i] = 0
		case ci >= nIn:
			available[i] = nIn - 1
		default:
			available[i] = ci
		}
	}

	coo := sparse.NewCOO(nOut, nIn, nil, nil, nil)
	rowSum := make([]float64, nOut)
	emit := func(row, col int, lb, ub float64) {
		if v := density.Integrate(dens, col, lb, ub); v != 0 {
			coo.Set(row, col, v)
			rowSum[row] += v
		}
	}

	for outIdx := 0; outIdx < nOut; outIdx++ {
		civ := centralIdx[outIdx]
		outLb, outUb := outputEdges[outIdx], outputEdges[outIdx+1]

		// Support bounds come from the neighboring rows' central pixels,
		// which brackets every input pixel this row can overlap.
		prevAvail := available[max(0, outIdx-1)]
		nextAvail := available[min(nOut-1, outIdx+1)]
		inLb, _ := dens.SupportRange(prevAvail)
		_, inUb := dens.SupportRange(nextAvail)

		if 0 <= civ && civ < nIn {
			emit(outIdx, civ, outLb, outUb)
		} else {
			// The central pixel is off the grid; if the output pixel
			// cannot touch the nearest surviving input bins either, the
			// whole row stays empty.
			sharpUb := inputEdges[nextAvail+1]
			sharpLb := inputEdges[prevAvail]
			if outLb > sharpUb || outUb < sharpLb {
				continue
			}
		}

		// Walk upward from the central pixel until the support bound is
		// passed or the grid ends. Each pixel is emitted before the bound
		// test, so the first pixel beyond the bound still contributes.
		for delta := 1; ; delta++ {
			c := civ + delta
			if c >= 0 {
				if c >= nIn {
					break
				}
				emit(outIdx, c, outLb, outUb)
				if inputCenters[c] > inUb {
					break
				}
			}
		}

		// Mirror walk downward.
		for delta := 1; ; delta++ {
			c := civ - delta
			if c < nIn {
				if c < 0 {
					break
				}
				emit(outIdx, c, outLb, outUb)
				if inputCenters[c] < inLb {
					break
				}
			}
		}
	}

	rescale := matext.Ones(nOut)
	if cfg.upweightEnds {
		upweightEdges(rescale, rowSum, outputCenters, available, dens)
	}
	if cfg.preserveNorm {
		for i, rs := range rowSum {
			if rs > 0 {
				rescale[i] = 1 / rs
			} else {
				rescale[i] = 1
			}
		}
	}

	return matext.ScaleRows(coo, rescale), nil
}

// upweightEdges rescales the leading and trailing runs of nonzero rows to
// the row sum one density width into the interior, correcting the flux
// deficit of output pixels that see only part of an input pixel's
// profile.
func upweightEdges(rescale, rowSum, outputCenters []float64, available []int, dens density.Model) {
	var nz []int
	for i, rs := range rowSum {
		if rs != 0 {
			nz = append(nz, i)
		}
	}
	if len(nz) <= 3 {
		return
	}
	firstNZ, lastNZ := nz[0], nz[len(nz)-1]

	// Grow the run until the span of output centers covers one full
	// density support width, falling back to the widest in-bounds run on
	// short grids.
	nzDelta := 1
	centerDelta := math.Abs(outputCenters[firstNZ+1] - outputCenters[firstNZ])
	lb, ub := dens.SupportRange(available[firstNZ])
	widthDelta := ub - lb
	for centerDelta < widthDelta {
		nzDelta++
		if firstNZ+nzDelta >= len(outputCenters) || lastNZ-nzDelta < 0 {
			nzDelta--
			break
		}
		centerDelta = math.Abs(outputCenters[firstNZ+nzDelta] - outputCenters[firstNZ])
	}

	for d := 0; d <= nzDelta; d++ {
		rescale[firstNZ+d] = rowSum[firstNZ+nzDelta] / rowSum[firstNZ+d]
		rescale[lastNZ-d] = rowSum[lastNZ-nzDelta] / rowSum[lastNZ-d]
	}
}
