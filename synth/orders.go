package synth

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/floats"

	"github.com/quidditymaster/resampling/coadd"
	"github.com/quidditymaster/resampling/grid"
)

// Line is one Gaussian absorption feature.
type Line struct {
	// Center is the line position in wavelength units.
	Center float64
	// Depth is the fractional depth at line center, 1 meaning fully
	// saturated.
	Depth float64
	// Width is the Gaussian sigma in wavelength units.
	Width float64
}

// Continuum evaluates a linear continuum over the wavelengths.
func Continuum(wvs []float64, level, slope float64) []float64 {
	out := make([]float64, len(wvs))
	for i, wv := range wvs {
		out[i] = level + slope*wv
	}
	return out
}

// Absorption multiplies Gaussian absorption lines into a continuum and
// returns the resulting spectrum. Lines with non-positive widths are
// skipped.
func Absorption(wvs, continuum []float64, lines []Line) []float64 {
	profile := make([]float64, len(wvs))
	for i, wv := range wvs {
		p := 1.0
		for _, l := range lines {
			if l.Width <= 0 {
				continue
			}
			z := (wv - l.Center) / l.Width
			p *= 1 - l.Depth*math.Exp(-0.5*z*z)
		}
		profile[i] = p
	}
	out := make([]float64, len(wvs))
	vecmath.MulBlock(out, continuum, profile)
	return out
}

// OrderConfig describes one synthetic order. A zero Level is taken as
// a unit continuum.
type OrderConfig struct {
	MinWv, MaxWv float64
	Pixels       int
	Spacing      grid.Spacing
	Level        float64
	Slope        float64
	Lines        []Line
	NoiseSigma   float64
	Resolution   float64
}

// MakeOrder synthesizes one order: a linear continuum with absorption
// lines over the requested wavelength standard, optional white noise,
// and a constant per-pixel resolution. Noiseless orders get unit
// variance so they still carry weight in a coadd.
func (g *Generator) MakeOrder(cfg OrderConfig) (coadd.Order, error) {
	return makeOrder(g.seed, cfg)
}

// MakeOrders synthesizes one order per config. Each order draws from
// its own noise stream offset from the generator seed, so the noise
// realizations are independent across orders.
func (g *Generator) MakeOrders(cfgs []OrderConfig) ([]coadd.Order, error) {
	orders := make([]coadd.Order, 0, len(cfgs))
	for i, cfg := range cfgs {
		o, err := makeOrder(g.seed+int64(i), cfg)
		if err != nil {
			return nil, fmt.Errorf("order %d: %w", i, err)
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func makeOrder(seed int64, cfg OrderConfig) (coadd.Order, error) {
	if cfg.Pixels <= 0 {
		return coadd.Order{}, fmt.Errorf("order pixels must be > 0: %d", cfg.Pixels)
	}
	wvs, err := grid.Wavelengths(cfg.MinWv, cfg.MaxWv, cfg.Pixels, cfg.Spacing)
	if err != nil {
		return coadd.Order{}, err
	}

	level := cfg.Level
	if level == 0 {
		level = 1
	}
	flux := Absorption(wvs, Continuum(wvs, level, cfg.Slope), cfg.Lines)

	pixelVar := 1.0
	if cfg.NoiseSigma > 0 {
		noise, err := whiteNoise(seed, cfg.NoiseSigma, cfg.Pixels)
		if err != nil {
			return coadd.Order{}, err
		}
		floats.Add(flux, noise)
		pixelVar = cfg.NoiseSigma * cfg.NoiseSigma
	}
	variance := make([]float64, cfg.Pixels)
	for i := range variance {
		variance[i] = pixelVar
	}

	o := coadd.Order{
		Wavelengths: wvs,
		Flux:        flux,
		Variance:    variance,
	}
	if cfg.Resolution > 0 {
		o.Resolution = make([]float64, cfg.Pixels)
		for i := range o.Resolution {
			o.Resolution[i] = cfg.Resolution
		}
	}
	return o, nil
}
