// Package density models how the flux of a single pixel is distributed
// along the wavelength axis.
//
// A density answers one question: how much of pixel i's flux lies below a
// given coordinate. Resampling integrates that answer over output pixel
// bounds, so each model exposes its cumulative distribution and a finite
// support range outside of which the distribution is flat.
//
// Three models are provided. Box spreads flux uniformly across the
// pixel's own bin, Gaussian spreads it as a normal profile with a
// per-pixel width, and Interpolated follows a piecewise linear profile
// through neighboring pixel values.
package density
