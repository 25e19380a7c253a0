// Package grid builds and maps one dimensional wavelength grids.
//
// Grids are described by their pixel centers. CentersToEdges recovers the
// pixel boundaries implied by a center sequence, MapIndices places
// arbitrary coordinates onto the fractional index scale of a grid, and
// Wavelengths generates standard linear or logarithmic solutions.
package grid

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Errors returned by wavelength grid generation.
var (
	ErrUnknownSpacing = errors.New("grid: unknown spacing")
	ErrLogRange       = errors.New("grid: log spacing requires positive wavelength bounds")
)

// Spacing selects how Wavelengths distributes pixel centers.
type Spacing int

const (
	// SpacingLinear spaces centers uniformly in wavelength.
	SpacingLinear Spacing = iota
	// SpacingLog spaces centers uniformly in log wavelength, which keeps
	// the resolving power constant across the grid.
	SpacingLog
)

// CentersToEdges converts n pixel centers to the n+1 boundaries of the
// pixels around them. Interior edges sit halfway between neighboring
// centers and the outermost edges mirror the half spacing of the boundary
// pixels. Fewer than two centers yield an empty result, since a single
// center implies no spacing.
func CentersToEdges(centers []float64) []float64 {
	n := len(centers)
	if n < 2 {
		return nil
	}

	edges := make([]float64, n+1)
	for i := 1; i < n; i++ {
		edges[i] = 0.5 * (centers[i-1] + centers[i])
	}
	edges[0] = centers[0] - (edges[1] - centers[0])
	edges[n] = centers[n-1] + 0.5*(centers[n-1]-centers[n-2])

	return edges
}

// MapIndices places each query coordinate onto the fractional index scale
// of target, so that a query equal to target[i] maps exactly to i.
// Queries between centers interpolate linearly; queries outside the grid
// extrapolate with the slope of the nearest boundary segment. The target
// must hold at least two strictly increasing values.
func MapIndices(queries, target []float64) []float64 {
	n := len(target)
	startSlope := 1 / (target[1] - target[0])
	endSlope := 1 / (target[n-1] - target[n-2])

	out := make([]float64, len(queries))
	for i, q := range queries {
		switch {
		case q <= target[0]:
			out[i] = startSlope * (q - target[0])
		case q >= target[n-1]:
			out[i] = float64(n-1) + endSlope*(q-target[n-1])
		default:
			// target[j-1] < q <= target[j] after the boundary cases above.
			j := sort.SearchFloat64s(target, q)
			out[i] = float64(j-1) + (q-target[j-1])/(target[j]-target[j-1])
		}
	}

	return out
}

// Wavelengths generates an n point wavelength solution covering
// [minWv, maxWv] inclusive with the requested spacing.
func Wavelengths(minWv, maxWv float64, n int, spacing Spacing) ([]float64, error) {
	switch spacing {
	case SpacingLinear, SpacingLog:
	default:
		return nil, ErrUnknownSpacing
	}
	if spacing == SpacingLog && (minWv <= 0 || maxWv <= 0) {
		return nil, ErrLogRange
	}

	if n <= 0 {
		return nil, nil
	}
	if n == 1 {
		return []float64{minWv}, nil
	}

	wvs := make([]float64, n)
	switch spacing {
	case SpacingLinear:
		floats.Span(wvs, minWv, maxWv)
	case SpacingLog:
		floats.Span(wvs, math.Log10(minWv), math.Log10(maxWv))
		for i, lw := range wvs {
			wvs[i] = math.Pow(10, lw)
		}
	}

	return wvs, nil
}
