package coadd

import (
	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/floats"

	"github.com/quidditymaster/resampling/internal/matext"
	"github.com/quidditymaster/resampling/resample"
)

// SimpleResult holds the output of a coverage-weighted coadd.
type SimpleResult struct {
	// Flux is the coverage-normalized combined spectrum.
	Flux []float64
	// Covariance is the sum of the propagated per-order covariances.
	// It is not divided by the coverage.
	Covariance *sparse.CSR
	// Coverage counts, per output pixel, how many input pixels mapped
	// onto it across all orders. Pixels with zero coverage keep a zero
	// flux.
	Coverage []float64
}

// Simple resamples every order onto outputWvs and averages them by
// coverage. The first order sets the flux scale through an
// edge-upweighted transform; the remaining orders are resampled with
// row normalization so that they blend into the established scale
// without double counting flux in the overlaps.
func Simple(orders []Order, outputWvs []float64) (*SimpleResult, error) {
	if err := validateOrders(orders); err != nil {
		return nil, err
	}

	nOut := len(outputWvs)
	flux := make([]float64, nOut)
	coverage := make([]float64, nOut)
	var covar *sparse.CSR

	for i := range orders {
		o := &orders[i]
		opts := []resample.Option{}
		if i > 0 {
			opts = append(opts, resample.WithNormalization(true))
		}
		trans, err := resample.Matrix(o.Wavelengths, outputWvs, opts...)
		if err != nil {
			return nil, err
		}

		floats.Add(flux, matext.MulVec(trans, o.Flux))
		floats.Add(coverage, matext.MulVec(trans, matext.Ones(len(o.Wavelengths))))

		pv := resample.PropagateVariance(trans, o.variance())
		if covar == nil {
			covar = pv
		} else {
			covar = matext.Add(covar, pv)
		}
	}

	for i := range flux {
		if coverage[i] != 0 {
			flux[i] /= coverage[i]
		}
	}

	return &SimpleResult{Flux: flux, Covariance: covar, Coverage: coverage}, nil
}
