package testutil

import (
	"math"
	"math/rand"
)

// LinearGrid generates n evenly spaced wavelength centers spanning [lo, hi].
func LinearGrid(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = lo
		return out
	}
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + step*float64(i)
	}
	return out
}

// GaussianDip samples a flat unit continuum with a Gaussian absorption
// feature of the given fractional depth at center.
func GaussianDip(wvs []float64, center, depth, width float64) []float64 {
	out := make([]float64, len(wvs))
	for i, wv := range wvs {
		z := (wv - center) / width
		out[i] = 1 - depth*math.Exp(-0.5*z*z)
	}
	return out
}

// DeterministicNoise draws length uniform samples from [-amplitude,
// amplitude], reproducible from the seed.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, length)
	for i := range out {
		out[i] = amplitude * (2*rng.Float64() - 1)
	}
	return out
}

// Impulse generates a spectrum carrying a single unit pixel at pos,
// zero everywhere else. Out-of-range positions yield all zeros.
func Impulse(length, pos int) []float64 {
	out := make([]float64, length)
	if pos >= 0 && pos < length {
		out[pos] = 1
	}
	return out
}

// Constant generates a constant-valued series.
func Constant(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}
	return out
}

// Ones returns a slice of length n filled with 1.0.
func Ones(n int) []float64 {
	return Constant(1.0, n)
}
