// Package coadd combines overlapping spectral orders onto a shared
// output wavelength grid.
//
// Three strategies are provided, trading fidelity against cost:
//
//   - Simple: resample every order onto the output grid and average,
//     tracking coverage and the summed covariance. Fast, but correlated
//     output pixels and no resolution handling.
//   - Deconvolve: model the output spectrum at a chosen target
//     resolution and solve the regularized inverse problem through
//     per-order Gaussian blur matrices. DeconvolveDecorrelated
//     additionally applies the symmetric square root rotation that
//     decorrelates the output errors.
//   - Blockwise: tile the output grid into overlapping blocks, combine
//     orders per block under their propagated inverse covariances, and
//     stitch the solutions with squared-ramp apodization. Scales to
//     long grids where a global solve is too expensive.
//
// Inputs are Order values carrying per-pixel wavelengths, flux and
// uncertainty; zero variance or zero inverse variance both mark pixels
// without information. All functions leave diagnostics in their result
// structs rather than logging.
package coadd
