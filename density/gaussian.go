package density

import (
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	tableSize = 1024
	tableMinZ = -6.0
	tableMaxZ = 6.0
)

// cdfTable is a precomputed standard normal CDF sampled uniformly on
// [tableMinZ, tableMaxZ] with linear interpolation between samples.
// Lookups clip to 0 below the span and to 1 near and above its top.
type cdfTable struct {
	vals  [tableSize]float64
	delta float64
}

func newCDFTable() *cdfTable {
	t := &cdfTable{delta: (tableMaxZ - tableMinZ) / float64(tableSize-1)}
	for i := range t.vals {
		t.vals[i] = distuv.UnitNormal.CDF(tableMinZ + float64(i)*t.delta)
	}

	return t
}

func (t *cdfTable) at(z float64) float64 {
	if z > tableMaxZ-t.delta-1e-5 {
		return 1
	}
	if z < tableMinZ {
		return 0
	}

	pos := (z - tableMinZ) / t.delta
	base := int(pos)
	alpha := pos - float64(base)

	return t.vals[base]*(1-alpha) + t.vals[base+1]*alpha
}

// stdNormal is shared by every Gaussian; the table is immutable after
// construction.
var stdNormal = newCDFTable()

// defaultMaxSigma bounds the support of a Gaussian pixel in units of its
// width.
const defaultMaxSigma = 5.0

// Option configures Gaussian construction.
type Option func(*gaussianConfig)

type gaussianConfig struct {
	maxSigma float64
	table    *cdfTable
}

func defaultGaussianConfig() gaussianConfig {
	return gaussianConfig{maxSigma: defaultMaxSigma, table: stdNormal}
}

// WithMaxSigma sets how many widths around each center count as the
// pixel's support. Values at or below zero are ignored.
func WithMaxSigma(v float64) Option {
	return func(c *gaussianConfig) {
		if v > 0 {
			c.maxSigma = v
		}
	}
}

// Gaussian spreads each pixel's flux as a normal profile centered on the
// pixel with a per-pixel standard deviation. It models instrument line
// spread functions and resolution matching kernels.
type Gaussian struct {
	centers  []float64
	widths   []float64
	maxSigma float64
	table    *cdfTable
}

// NewGaussian builds a Gaussian model from pixel centers and per-pixel
// widths. The slices must have equal length.
func NewGaussian(centers, widths []float64, opts ...Option) *Gaussian {
	cfg := defaultGaussianConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Gaussian{
		centers:  centers,
		widths:   widths,
		maxSigma: cfg.maxSigma,
		table:    cfg.table,
	}
}

func (d *Gaussian) CumulativeAt(index int, coord float64) float64 {
	z := (coord - d.centers[index]) / d.widths[index]
	return d.table.at(z)
}

func (d *Gaussian) SupportRange(index int) (lb, ub float64) {
	half := d.maxSigma * d.widths[index]
	return d.centers[index] - half, d.centers[index] + half
}
