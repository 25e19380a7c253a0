// Package resample builds sparse flux-conserving resampling matrices
// between one dimensional wavelength grids.
//
// A resampling matrix T maps a flux vector sampled on an input grid onto
// an output grid: entry (i, j) is the fraction of input pixel j's flux
// that lands in output pixel i, computed by integrating the pixel's
// density model over the output pixel's bounds. Applying T to a flux
// vector redistributes flux without inventing or destroying it, and
// T*C*T' propagates the matching covariance.
//
// Row scaling policies:
//   - edge upweighting (default on): boundary rows that see fewer input
//     pixels are rescaled to match the first fully covered interior row
//   - normalization: every nonzero row is rescaled to sum to one, so a
//     constant input maps to the same constant; overrides upweighting
//
// Common workflows:
//   - Matrix(inputCenters, outputCenters, opts...)
//   - PropagateVariance(t, variance, opts...)
//   - PropagateCovariance(t, covariance, opts...)
package resample
