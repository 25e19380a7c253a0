package density

import (
	"github.com/quidditymaster/resampling/grid"
)

// Model is the cumulative flux distribution of individual pixels.
// Implementations must be usable from multiple goroutines once built.
type Model interface {
	// CumulativeAt returns the fraction (or unnormalized amount) of pixel
	// index's flux lying below coord.
	CumulativeAt(index int, coord float64) float64
	// SupportRange returns the coordinate interval outside of which pixel
	// index's cumulative distribution no longer changes.
	SupportRange(index int) (lb, ub float64)
}

// Integrate returns the amount of pixel index's flux falling between lb
// and ub under the model m.
func Integrate(m Model, index int, lb, ub float64) float64 {
	return m.CumulativeAt(index, ub) - m.CumulativeAt(index, lb)
}

// Box spreads each pixel's flux uniformly across its own bin. It is the
// default model for resampling when nothing better is known about the
// instrument profile.
type Box struct {
	centers []float64
	edges   []float64
}

// NewBox builds a box model over the given pixel centers. At least two
// centers are required to define the bins.
func NewBox(centers []float64) *Box {
	return &Box{centers: centers, edges: grid.CentersToEdges(centers)}
}

func (d *Box) CumulativeAt(index int, coord float64) float64 {
	clb, cub := d.edges[index], d.edges[index+1]
	switch {
	case clb > coord:
		return 0
	case cub < coord:
		return 1
	default:
		return (coord - clb) / (cub - clb)
	}
}

func (d *Box) SupportRange(index int) (lb, ub float64) {
	return d.edges[index], d.edges[index+1]
}

// Interpolated follows a piecewise linear flux profile through the pixel
// values, so pixels with large values shed proportionally more flux. The
// cumulative distribution is quadratic within each half bin and is not
// normalized to one.
type Interpolated struct {
	centers []float64
	values  []float64
	edges   []float64
}

// NewInterpolated builds a piecewise linear model from pixel centers and
// the profile value at each center. Boundary pixels reuse their own value
// in place of the missing neighbor.
func NewInterpolated(centers, values []float64) *Interpolated {
	return &Interpolated{
		centers: centers,
		values:  values,
		edges:   grid.CentersToEdges(centers),
	}
}

func (d *Interpolated) CumulativeAt(index int, coord float64) float64 {
	lastVal := d.values[index]
	if index > 0 {
		lastVal = d.values[index-1]
	}
	nextVal := d.values[index]
	if index < len(d.centers)-1 {
		nextVal = d.values[index+1]
	}
	cVal := d.values[index]

	// Total integral over the lower half bin, then over the whole bin.
	leftMax := 0.5 * (lastVal + cVal)
	rightMax := leftMax + 0.5*(nextVal+cVal)

	clb, cub := d.edges[index], d.edges[index+1]
	center := d.centers[index]

	switch {
	case coord < center:
		if coord <= clb {
			return 0
		}
		alpha := (coord - clb) / (center - clb)
		return lastVal*alpha + 0.5*(cVal-lastVal)*alpha*alpha
	case coord >= cub:
		return rightMax
	default:
		alpha := (coord - center) / (cub - center)
		return leftMax + cVal*alpha + 0.5*(nextVal-cVal)*alpha*alpha
	}
}

func (d *Interpolated) SupportRange(index int) (lb, ub float64) {
	return d.edges[index], d.edges[index+1]
}
