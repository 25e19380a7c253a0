// Package synth generates deterministic synthetic spectral orders for
// demos and tests: smooth continua with Gaussian absorption lines plus
// white or correlated noise, assembled into ready-to-coadd orders.
package synth

import (
	"fmt"
	"math"
	"math/rand"

	algofft "github.com/MeKo-Christian/algo-fft"
	"gonum.org/v1/gonum/floats"
)

// Generator creates deterministic spectra from a shared seed. Every
// call reseeds its own stream, so repeated calls with the same
// arguments return the same data.
type Generator struct {
	seed int64
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed sets the deterministic random seed for noise generation.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.seed = seed
	}
}

// NewGenerator creates a configured spectrum generator.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{seed: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// SetSeed replaces the generator seed.
func (g *Generator) SetSeed(seed int64) {
	g.seed = seed
}

// Seed returns the current generator seed.
func (g *Generator) Seed() int64 {
	return g.seed
}

// WhiteNoise generates deterministic Gaussian noise with the given
// standard deviation.
func (g *Generator) WhiteNoise(sigma float64, samples int) ([]float64, error) {
	return whiteNoise(g.seed, sigma, samples)
}

func whiteNoise(seed int64, sigma float64, samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("noise samples must be > 0: %d", samples)
	}
	if sigma < 0 {
		return nil, fmt.Errorf("noise sigma must be >= 0: %f", sigma)
	}
	out := make([]float64, samples)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = rng.NormFloat64() * sigma
	}
	return out, nil
}

// CorrelatedNoise generates Gaussian noise whose fluctuations are
// correlated over roughly corrLength adjacent samples. White noise is
// shaped in the frequency domain with a Gaussian envelope and scaled
// back to the requested standard deviation.
func (g *Generator) CorrelatedNoise(sigma, corrLength float64, samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("noise samples must be > 0: %d", samples)
	}
	if sigma < 0 {
		return nil, fmt.Errorf("noise sigma must be >= 0: %f", sigma)
	}
	if corrLength <= 0 {
		return nil, fmt.Errorf("noise correlation length must be > 0: %f", corrLength)
	}

	fftSize := nextPowerOf2(samples)
	white, err := whiteNoise(g.seed, 1, fftSize)
	if err != nil {
		return nil, err
	}

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, err
	}
	src := make([]complex128, fftSize)
	for i, v := range white {
		src[i] = complex(v, 0)
	}
	freq := make([]complex128, fftSize)
	if err := plan.Forward(freq, src); err != nil {
		return nil, err
	}

	// Symmetric Gaussian envelope over positive and negative
	// frequencies keeps the inverse transform real.
	for k := range freq {
		f := k
		if k > fftSize/2 {
			f = fftSize - k
		}
		x := float64(f) * corrLength / float64(fftSize)
		freq[k] *= complex(math.Exp(-2*math.Pi*math.Pi*x*x), 0)
	}
	if err := plan.Inverse(src, freq); err != nil {
		return nil, err
	}

	out := make([]float64, samples)
	for i := range out {
		out[i] = real(src[i])
	}
	rms := math.Sqrt(floats.Dot(out, out) / float64(samples))
	if rms > 0 {
		floats.Scale(sigma/rms, out)
	}
	return out, nil
}

func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
